// Package bus implements the bus transport layer: blocking
// and non-blocking receive with deadlines, send to an arbitrary
// recipient, and the utility operations a bus connection needs from
// the underlying FIFO store, layered on github.com/redis/go-redis/v9.
package bus

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kcls/opensrf-go/internal/addr"
	"github.com/kcls/opensrf-go/internal/logging"
	"github.com/kcls/opensrf-go/internal/osrferr"
	"github.com/kcls/opensrf-go/internal/osrfmsg"
)

// Domain describes one bus (Redis-compatible) endpoint.
type Domain struct {
	Name string
	Port int
}

// ClientConfig supplies everything needed to open a Bus connection.
type ClientConfig struct {
	Username string
	Password string
	Domain   Domain
}

// Bus manages one connection to the message bus and the unique
// client address bound to it.
type Bus struct {
	rdb     *redis.Client
	address addr.Address
}

// Connect opens a new Bus connection using a freshly generated client
// address, mirroring evergreen/src/osrf/bus.rs Bus::new.
func Connect(cfg ClientConfig) (*Bus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addrString(cfg.Domain),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, &osrferr.BusConnectError{Msg: err.Error()}
	}

	return &Bus{
		rdb:     rdb,
		address: addr.ForClient(cfg.Username, cfg.Domain.Name),
	}, nil
}

func addrString(d Domain) string {
	if d.Port == 0 {
		d.Port = 6379
	}
	return d.Name + ":" + itoa(d.Port)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Address returns this connection's unique client address.
func (b *Bus) Address() addr.Address { return b.address }

// SetAddress rebinds this connection to a different address, used by
// worker threads that receive on their service address instead of a
// per-connection client address.
func (b *Bus) SetAddress(a addr.Address) { b.address = a }

// recvOneChunk returns at most one raw JSON string pulled from
// recipient's queue, or "", false if the pop times out.
//
// timeout == 0: non-blocking LPOP.
// timeout < 0: block forever (BLPOP with a zero Redis timeout).
// timeout > 0: BLPOP for timeout seconds.
func (b *Bus) recvOneChunk(ctx context.Context, timeout int, recipient string) (string, bool, error) {
	if timeout == 0 {
		val, err := b.rdb.LPop(ctx, recipient).Result()
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		if err != nil {
			return "", false, &osrferr.BusIOError{Msg: err.Error()}
		}
		return val, true, nil
	}

	blockFor := time.Duration(timeout) * time.Second
	if timeout < 0 {
		blockFor = 0 // go-redis: 0 means block indefinitely
	}

	resp, err := b.rdb.BLPop(ctx, blockFor, recipient).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &osrferr.BusIOError{Msg: err.Error()}
	}
	if len(resp) < 2 {
		return "", false, nil
	}
	return resp[1], true, nil
}

// Recv pulls at most one Envelope from this Bus's own queue, retrying
// until one is available or the timeout elapses. A malformed envelope
// is logged and treated as "nothing received" rather than failing the
// call, matching evergreen/src/osrf/bus.rs Bus::recv: one bad message
// on the wire must not take down an otherwise-healthy conversation.
func (b *Bus) Recv(ctx context.Context, timeout int) (*osrfmsg.Envelope, error) {
	return b.RecvFrom(ctx, timeout, b.address.String())
}

// RecvFrom is Recv against an explicit recipient queue rather than
// this Bus's own address.
func (b *Bus) RecvFrom(ctx context.Context, timeout int, recipient string) (*osrfmsg.Envelope, error) {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(time.Duration(timeout) * time.Second)
	}

	for {
		remaining := timeout
		if timeout > 0 {
			remaining = int(time.Until(deadline).Seconds())
			if remaining <= 0 {
				return nil, nil
			}
		}

		chunk, ok, err := b.recvOneChunk(ctx, remaining, recipient)
		if err != nil {
			return nil, err
		}
		if !ok {
			if timeout < 0 {
				continue // block-forever mode retries until something arrives
			}
			return nil, nil // timeout == 0: non-blocking, return immediately
		}

		env, err := osrfmsg.Decode([]byte(chunk))
		if err != nil {
			logging.Logger().Errorw("discarding malformed envelope", "err", err)
			if timeout == 0 {
				return nil, nil
			}
			continue
		}
		return &env, nil
	}
}

// Send transmits env to the recipient named in env.To.
func (b *Bus) Send(ctx context.Context, env osrfmsg.Envelope) error {
	return b.SendTo(ctx, env, env.To)
}

// SendTo transmits env to recipient regardless of env.To. The
// envelope's own trace id travels as osrf_xid; an envelope that carries
// none is stamped with a freshly generated one first.
func (b *Bus) SendTo(ctx context.Context, env osrfmsg.Envelope, recipient string) error {
	if env.TraceID == "" {
		env.TraceID = uuid.NewString()
	}

	data, err := env.Encode()
	if err != nil {
		return err
	}

	if err := b.rdb.RPush(ctx, recipient, data).Err(); err != nil {
		return &osrferr.BusIOError{Msg: err.Error()}
	}
	return nil
}

// Keys returns bus keys matching pattern.
func (b *Bus) Keys(ctx context.Context, pattern string) ([]string, error) {
	res, err := b.rdb.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, &osrferr.BusIOError{Msg: err.Error()}
	}
	return res, nil
}

// LLen returns the length of the list at key.
func (b *Bus) LLen(ctx context.Context, key string) (int64, error) {
	res, err := b.rdb.LLen(ctx, key).Result()
	if err != nil {
		return 0, &osrferr.BusIOError{Msg: err.Error()}
	}
	return res, nil
}

// TTL returns the time-to-live of key, in seconds (-1 no expiry, -2 no key).
func (b *Bus) TTL(ctx context.Context, key string) (int64, error) {
	d, err := b.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, &osrferr.BusIOError{Msg: err.Error()}
	}
	if d < 0 {
		// go-redis reports the -1/-2 sentinels as raw durations, not seconds.
		return int64(d), nil
	}
	return int64(d.Seconds()), nil
}

// LRange returns a slice of the list at key.
func (b *Bus) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	res, err := b.rdb.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, &osrferr.BusIOError{Msg: err.Error()}
	}
	return res, nil
}

// SetKeyTimeout sets key to expire after timeout seconds.
func (b *Bus) SetKeyTimeout(ctx context.Context, key string, timeout time.Duration) error {
	if err := b.rdb.Expire(ctx, key, timeout).Err(); err != nil {
		return &osrferr.BusIOError{Msg: err.Error()}
	}
	return nil
}

// ClearBus removes all pending data from this connection's own queue.
func (b *Bus) ClearBus(ctx context.Context) error {
	if err := b.rdb.Del(ctx, b.address.String()).Err(); err != nil {
		return &osrferr.BusIOError{Msg: err.Error()}
	}
	return nil
}

// Close purges this connection's queue and releases the underlying
// redis client. Every Bus address is used exactly once; nothing may
// be waiting on it once the owner disconnects, so any stragglers are
// discarded silently, matching the Rust Drop impl.
func (b *Bus) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b.rdb.Del(ctx, b.address.String())
	b.rdb.Close()
}
