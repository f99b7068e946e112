// Package dispatch is the facade between the agent-facing surface and the
// instance machinery: it resolves a specifier, sends the command through the
// pool, and maps every failure into a normalized envelope.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/lydakis/ubridge/internal/instance"
	"github.com/lydakis/ubridge/internal/pool"
	"github.com/lydakis/ubridge/internal/protocol"
	"github.com/lydakis/ubridge/internal/resolve"
)

// SendFunc delivers one command to a resolved instance. Satisfied by
// (*pool.Pool).Send.
type SendFunc func(ctx context.Context, instanceID, cmdType string, params map[string]any) (protocol.Envelope, error)

// Dispatcher ties resolution, the connection pool, and the registry together
// behind a single entry point. Callers never see transport errors as faults;
// everything comes back as an envelope.
type Dispatcher struct {
	registry *instance.Registry
	resolver *resolve.Resolver
	send     SendFunc

	// logf receives one line per dispatched command; defaults to stderr.
	logf func(format string, args ...any)
}

// New wires a dispatcher over the live pool.
func New(registry *instance.Registry, resolver *resolve.Resolver, p *pool.Pool) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		resolver: resolver,
		send:     p.Send,
		logf: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		},
	}
}

// Dispatch resolves the specifier, sends the command, and normalizes the
// outcome. An empty specifier uses the caller's session selection or the
// single running instance.
func (d *Dispatcher) Dispatch(ctx context.Context, specifier, cmdType string, params map[string]any) protocol.Envelope {
	key := resolve.SessionKeyFromContext(ctx)

	id, err := d.resolver.Resolve(ctx, specifier, key)
	if err != nil {
		return envelopeForError(err)
	}

	d.logf("dispatch: caller=%s instance=%s command=%s", CredentialFromContext(ctx), id, cmdType)

	env, err := d.send(ctx, id, cmdType, params)
	if err != nil {
		return envelopeForError(err)
	}
	return env
}

// DropSession forgets a session's instance selection; called when the client
// session ends.
func (d *Dispatcher) DropSession(key resolve.SessionKey) {
	d.resolver.Sessions().Drop(key)
}

// SelectInstance records the caller's explicit instance selection for the
// rest of the session.
func (d *Dispatcher) SelectInstance(ctx context.Context, specifier string) protocol.Envelope {
	key := resolve.SessionKeyFromContext(ctx)

	id, err := d.resolver.SetActive(ctx, specifier, key)
	if err != nil {
		return envelopeForError(err)
	}

	env := protocol.Envelope{Success: true, Message: "active instance set to " + id}
	env.Data, _ = json.Marshal(map[string]any{"instance_id": id})
	return env
}

// ListInstances returns the current instance listing, refreshing the
// registry cache when forced. Duplicate names are surfaced as a warning.
func (d *Dispatcher) ListInstances(ctx context.Context, forceRefresh bool) protocol.Envelope {
	records, err := d.registry.DiscoverAll(ctx, forceRefresh)
	if err != nil {
		return envelopeForError(err)
	}

	listing := make([]map[string]any, len(records))
	for i, rec := range records {
		listing[i] = rec.ToMap()
	}
	payload := map[string]any{
		"instances":      listing,
		"instance_count": len(records),
	}
	if warning := instance.DuplicateNameWarning(records); warning != "" {
		payload["warning"] = warning
	}

	env := protocol.Envelope{Success: true}
	env.Data, _ = json.Marshal(payload)
	return env
}

// envelopeForError maps dispatch-path errors onto the envelope shape.
// Resolution failures and unknown ids are terminal; an exhausted retry
// budget keeps the retryable hint so the caller may re-issue the command.
func envelopeForError(err error) protocol.Envelope {
	switch {
	case pool.IsRetryBudget(err):
		return protocol.RetryableFailure("%v", err)
	case errors.Is(err, pool.ErrUnknownInstance),
		resolve.IsNotFound(err),
		resolve.IsAmbiguous(err):
		return protocol.Failure("%v", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return protocol.Failure("command aborted: %v", err)
	default:
		return protocol.Failure("%v", err)
	}
}

type credentialKey struct{}

// WithCredential attaches the authenticated caller name to the context for
// attribution in dispatch logs.
func WithCredential(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, credentialKey{}, name)
}

// CredentialFromContext returns the attributed caller name, or "local".
func CredentialFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(credentialKey{}).(string); ok && name != "" {
		return name
	}
	return "local"
}

// SetLogf overrides the dispatch log sink; used by tests and by the server
// when it owns the log stream.
func (d *Dispatcher) SetLogf(logf func(format string, args ...any)) {
	if logf != nil {
		d.logf = logf
	}
}
