// Package resolve turns loose client-supplied instance specifiers into
// canonical instance ids and keeps per-session instance affinity.
package resolve

import (
	"context"
	"strconv"
	"strings"

	"github.com/lydakis/ubridge/internal/instance"
)

// Resolver canonicalizes instance specifiers against the registry snapshot.
type Resolver struct {
	registry *instance.Registry
	sessions *Sessions
}

// New creates a resolver over the given registry and affinity map.
func New(registry *instance.Registry, sessions *Sessions) *Resolver {
	return &Resolver{registry: registry, sessions: sessions}
}

// Sessions exposes the affinity map, for session teardown.
func (r *Resolver) Sessions() *Sessions {
	return r.sessions
}

// Resolve turns a specifier into exactly one canonical instance id.
// Resolution order for a non-empty specifier: full id, bare hash or unique
// hash prefix, local port, then unique name. An empty specifier falls back
// to the session's explicit selection, then to the single running instance.
func (r *Resolver) Resolve(ctx context.Context, specifier string, key SessionKey) (string, error) {
	records, err := r.registry.DiscoverAll(ctx, false)
	if err != nil {
		return "", err
	}

	specifier = strings.TrimSpace(specifier)
	if specifier == "" {
		return r.resolveImplicit(records, key)
	}
	return resolveSpecifier(records, specifier)
}

// SetActive records an explicit instance selection for a session. The
// specifier must resolve to a live instance at the time of the call; the
// registry is refreshed before committing.
func (r *Resolver) SetActive(ctx context.Context, specifier string, key SessionKey) (string, error) {
	records, err := r.registry.DiscoverAll(ctx, true)
	if err != nil {
		return "", err
	}

	id, err := resolveSpecifier(records, strings.TrimSpace(specifier))
	if err != nil {
		return "", err
	}
	r.sessions.Set(key, id)
	return id, nil
}

func (r *Resolver) resolveImplicit(records []instance.Record, key SessionKey) (string, error) {
	if id, ok := r.sessions.Get(key); ok {
		for _, rec := range records {
			if rec.ID() == id {
				return id, nil
			}
		}
		// The explicitly selected instance went away; surfacing that beats
		// silently routing the session somewhere else.
		return "", &NotFoundError{Specifier: id, Known: ids(records)}
	}

	switch len(records) {
	case 0:
		return "", &NotFoundError{}
	case 1:
		return records[0].ID(), nil
	default:
		return "", &AmbiguousError{Matches: ids(records)}
	}
}

func resolveSpecifier(records []instance.Record, specifier string) (string, error) {
	if specifier == "" {
		return "", &NotFoundError{Specifier: specifier, Known: ids(records)}
	}

	// Full canonical id.
	for _, rec := range records {
		if rec.ID() == specifier {
			return rec.ID(), nil
		}
	}

	// Bare hash, or a unique hash prefix.
	if isHashy(specifier) {
		var matches []string
		for _, rec := range records {
			if rec.Hash == specifier {
				return rec.ID(), nil
			}
			if strings.HasPrefix(rec.Hash, specifier) {
				matches = append(matches, rec.ID())
			}
		}
		switch len(matches) {
		case 1:
			return matches[0], nil
		case 0:
		default:
			return "", &AmbiguousError{Specifier: specifier, Matches: matches}
		}
	}

	// Local transport port.
	if port, err := strconv.Atoi(specifier); err == nil {
		for _, rec := range records {
			if rec.Port == port {
				return rec.ID(), nil
			}
		}
	}

	// Bare name: only an unambiguous match succeeds.
	var matches []string
	for _, rec := range records {
		if rec.Name == specifier {
			matches = append(matches, rec.ID())
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", &NotFoundError{Specifier: specifier, Known: ids(records)}
	default:
		return "", &AmbiguousError{Specifier: specifier, Matches: matches}
	}
}

// isHashy reports whether a specifier could be a hash or hash prefix.
func isHashy(s string) bool {
	if len(s) == 0 || len(s) > instance.HashLength {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func ids(records []instance.Record) []string {
	out := make([]string, len(records))
	for i, rec := range records {
		out[i] = rec.ID()
	}
	return out
}
