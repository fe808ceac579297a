// Package method implements the Method Definition registry shared by
// every worker: explicit Definitions with parameter-count and
// parameter-type validation, looked up by name at dispatch time.
package method

import "fmt"

// ParamCountKind selects how a method's declared parameter count is
// checked against an incoming Request.
type ParamCountKind int

const (
	Exactly ParamCountKind = iota
	RangeKind
	AtLeast
	Any
)

// ParamCount validates the number of parameters sent with a Request.
type ParamCount struct {
	Kind   ParamCountKind
	Lo, Hi int
}

func ExactlyN(n int) ParamCount       { return ParamCount{Kind: Exactly, Lo: n} }
func RangeN(lo, hi int) ParamCount    { return ParamCount{Kind: RangeKind, Lo: lo, Hi: hi} }
func AtLeastN(n int) ParamCount       { return ParamCount{Kind: AtLeast, Lo: n} }
func AnyCount() ParamCount            { return ParamCount{Kind: Any} }

// Matches reports whether n parameters satisfies this count.
func (p ParamCount) Matches(n int) bool {
	switch p.Kind {
	case Exactly:
		return n == p.Lo
	case RangeKind:
		return n >= p.Lo && n <= p.Hi
	case AtLeast:
		return n >= p.Lo
	case Any:
		return true
	default:
		return false
	}
}

// String renders a human-readable description, used in BadRequest labels.
func (p ParamCount) String() string {
	switch p.Kind {
	case Exactly:
		return fmt.Sprintf("exactly %d", p.Lo)
	case RangeKind:
		return fmt.Sprintf("between %d and %d", p.Lo, p.Hi)
	case AtLeast:
		return fmt.Sprintf("at least %d", p.Lo)
	default:
		return "any number of"
	}
}

// ParamType is the declared type of one positional parameter.
type ParamType int

const (
	TypeAny ParamType = iota
	TypeString
	TypeNumber
	TypeBool
	TypeObject
	TypeArray
)

// Matches reports whether v satisfies t. Matches itself accepts nil for
// every type; the worker additionally rejects nil at positions within
// the method's required minimum, so only extra trailing params are
// optional.
func (t ParamType) Matches(v any) bool {
	if v == nil {
		return true
	}
	switch t {
	case TypeAny:
		return true
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		_, ok := v.(float64)
		return ok
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	default:
		return false
	}
}

// Context carries per-request ambient state into a Handler: the
// locale/timezone/trace id adopted for this Request's duration, plus
// an Emit callback used to stream zero-or-more Result values before
// the worker sends the implicit Complete.
type Context struct {
	Locale   string
	Timezone string
	TraceID  string
	Ingress  string
	Emit     func(content any) error
}

// Handler implements one registered API method.
type Handler func(ctx *Context, params []any) error

// Definition is one registered method.
type Definition struct {
	Name       string
	ParamCount ParamCount
	ParamTypes []ParamType
	Handler    Handler
}

// Registry is the immutable, shared method table built at startup
// and wrapped in an immutable shared pointer: every worker thread
// reads it without locking.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry builds a registry, always including the
// opensrf.system.echo built-in.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]Definition)}
	r.Register(Definition{
		Name:       "opensrf.system.echo",
		ParamCount: AnyCount(),
		Handler: func(ctx *Context, params []any) error {
			for _, p := range params {
				if err := ctx.Emit(p); err != nil {
					return err
				}
			}
			return nil
		},
	})
	return r
}

// Register adds or replaces a method definition. Called only during
// startup, before the registry is shared across worker threads.
func (r *Registry) Register(d Definition) {
	r.defs[d.Name] = d
}

// Lookup returns the definition for name, if registered.
func (r *Registry) Lookup(name string) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}
