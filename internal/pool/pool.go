// Package pool owns the per-instance editor connections and the retry and
// timeout policy for command dispatch. Commands to one instance are
// serialized on its single pooled connection; unrelated instances proceed in
// parallel.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lydakis/ubridge/internal/protocol"
	"github.com/lydakis/ubridge/internal/wire"
)

// Lookup maps a canonical instance id to its local transport port.
type Lookup func(id string) (port int, ok bool)

// Options configures retry and timeout policy.
type Options struct {
	Attempts       int
	AttemptTimeout time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

func (o Options) withDefaults() Options {
	if o.Attempts < 1 {
		o.Attempts = 3
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 30 * time.Second
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 250 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 2 * time.Second
	}
	return o
}

// pooled holds the single connection object for one instance id. reqMu
// serializes command/response pairs on the connection; mu guards the handle
// itself against teardown.
type pooled struct {
	reqMu sync.Mutex
	mu    sync.Mutex
	conn  *wire.Conn
}

// Pool manages editor connections, creating them on demand.
type Pool struct {
	lookup Lookup
	opts   Options
	dial   func(ctx context.Context, addr string) (*wire.Conn, error)

	mu    sync.Mutex
	conns map[string]*pooled
}

// New creates a connection pool backed by the given id→port lookup.
func New(lookup Lookup, opts Options) *Pool {
	return &Pool{
		lookup: lookup,
		opts:   opts.withDefaults(),
		dial:   wire.Dial,
		conns:  make(map[string]*pooled),
	}
}

// Send dispatches one command to an instance and returns its normalized
// envelope. Transient outcomes (dial failure, reset, per-attempt timeout,
// host mid-reload) are retried with backoff up to the attempt budget; an
// exhausted budget surfaces as RetryBudgetError. Caller cancellation aborts
// promptly and is never retried.
func (p *Pool) Send(ctx context.Context, id, cmdType string, params map[string]any) (protocol.Envelope, error) {
	if _, ok := p.lookup(id); !ok {
		return protocol.Envelope{}, fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}

	pc := p.getOrCreate(id)
	pc.reqMu.Lock()
	defer pc.reqMu.Unlock()

	cmd := protocol.Command{Type: cmdType, Params: params}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.opts.BackoffInitial
	bo.MaxInterval = p.opts.BackoffMax
	bo.MaxElapsedTime = 0
	bo.Reset()

	var lastErr error
	for attempt := 1; attempt <= p.opts.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(bo.NextBackOff()):
			case <-ctx.Done():
				return protocol.Envelope{}, ctx.Err()
			}
		}

		env, err := p.attempt(ctx, pc, id, cmd)
		if err == nil {
			if protocol.Reloading(env) {
				lastErr = fmt.Errorf("instance %s is reloading its scripting domain", id)
				continue
			}
			return env, nil
		}
		if ctx.Err() != nil {
			return protocol.Envelope{}, ctx.Err()
		}
		lastErr = err
	}

	return protocol.Envelope{}, &RetryBudgetError{InstanceID: id, Attempts: p.opts.Attempts, Err: lastErr}
}

func (p *Pool) attempt(ctx context.Context, pc *pooled, id string, cmd protocol.Command) (protocol.Envelope, error) {
	conn, err := p.ensureConn(ctx, pc, id)
	if err != nil {
		return protocol.Envelope{}, &ConnectError{InstanceID: id, Err: err}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, p.opts.AttemptTimeout)
	defer cancel()

	env, err := conn.Call(attemptCtx, cmd)
	if err != nil {
		p.invalidate(pc, conn)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return protocol.Envelope{}, &TimeoutError{InstanceID: id, Timeout: p.opts.AttemptTimeout}
		}
		return protocol.Envelope{}, err
	}
	return env, nil
}

// getOrCreate returns the single pooled slot for an instance id, creating it
// exactly once under the pool mutex.
func (p *Pool) getOrCreate(id string) *pooled {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pc, ok := p.conns[id]; ok {
		return pc
	}
	pc := &pooled{}
	p.conns[id] = pc
	return pc
}

func (p *Pool) ensureConn(ctx context.Context, pc *pooled, id string) (*wire.Conn, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.conn != nil && pc.conn.Err() == nil {
		return pc.conn, nil
	}
	if pc.conn != nil {
		pc.conn.Close()
		pc.conn = nil
	}

	port, ok := p.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}

	conn, err := p.dial(ctx, fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, err
	}
	pc.conn = conn
	return conn, nil
}

func (p *Pool) invalidate(pc *pooled, conn *wire.Conn) {
	pc.mu.Lock()
	if pc.conn == conn {
		pc.conn = nil
	}
	pc.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Close disconnects a specific instance without forgetting its pool slot.
func (p *Pool) Close(id string) {
	p.mu.Lock()
	pc, ok := p.conns[id]
	p.mu.Unlock()
	if !ok {
		return
	}

	pc.mu.Lock()
	conn := pc.conn
	pc.conn = nil
	pc.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// CloseAll disconnects every instance. The explicit teardown hook for the
// serving process.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]*pooled)
	p.mu.Unlock()

	for _, pc := range conns {
		pc.mu.Lock()
		conn := pc.conn
		pc.conn = nil
		pc.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
	}
}
