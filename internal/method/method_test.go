package method

import "testing"

func TestParamCountMatches(t *testing.T) {
	cases := []struct {
		pc   ParamCount
		n    int
		want bool
	}{
		{ExactlyN(2), 2, true},
		{ExactlyN(2), 3, false},
		{RangeN(1, 3), 1, true},
		{RangeN(1, 3), 3, true},
		{RangeN(1, 3), 0, false},
		{AtLeastN(2), 5, true},
		{AtLeastN(2), 1, false},
		{AnyCount(), 0, true},
		{AnyCount(), 99, true},
	}
	for _, c := range cases {
		if got := c.pc.Matches(c.n); got != c.want {
			t.Errorf("%+v.Matches(%d) = %v, want %v", c.pc, c.n, got, c.want)
		}
	}
}

func TestParamTypeMatches(t *testing.T) {
	if !TypeString.Matches(nil) {
		t.Error("nil should satisfy any declared type")
	}
	if !TypeString.Matches("hello") {
		t.Error("TypeString should match a string")
	}
	if TypeString.Matches(42.0) {
		t.Error("TypeString should not match a number")
	}
	if !TypeNumber.Matches(42.0) {
		t.Error("TypeNumber should match a float64")
	}
	if !TypeAny.Matches(map[string]any{"a": 1}) {
		t.Error("TypeAny should match anything")
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Lookup("opensrf.system.echo"); !ok {
		t.Fatal("built-in opensrf.system.echo not registered")
	}

	r.Register(Definition{
		Name:       "opensrf.test.add",
		ParamCount: ExactlyN(2),
		ParamTypes: []ParamType{TypeNumber, TypeNumber},
		Handler: func(ctx *Context, params []any) error {
			return ctx.Emit(params[0].(float64) + params[1].(float64))
		},
	})

	d, ok := r.Lookup("opensrf.test.add")
	if !ok {
		t.Fatal("opensrf.test.add not found after Register")
	}

	var emitted []any
	ctx := &Context{Emit: func(v any) error { emitted = append(emitted, v); return nil }}
	if err := d.Handler(ctx, []any{1.0, 2.0}); err != nil {
		t.Fatalf("Handler: %v", err)
	}
	if len(emitted) != 1 || emitted[0] != 3.0 {
		t.Fatalf("emitted = %v, want [3]", emitted)
	}

	if _, ok := r.Lookup("opensrf.nonexistent"); ok {
		t.Fatal("Lookup found a method that was never registered")
	}
}

func TestEchoBuiltinEmitsEveryParam(t *testing.T) {
	r := NewRegistry()
	d, _ := r.Lookup("opensrf.system.echo")

	var emitted []any
	ctx := &Context{Emit: func(v any) error { emitted = append(emitted, v); return nil }}
	if err := d.Handler(ctx, []any{"a", "b", "c"}); err != nil {
		t.Fatalf("Handler: %v", err)
	}
	if len(emitted) != 3 {
		t.Fatalf("emitted %d values, want 3", len(emitted))
	}
}
