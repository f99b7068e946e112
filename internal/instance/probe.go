package instance

import (
	"context"
	"fmt"

	"github.com/lydakis/ubridge/internal/wire"
)

// defaultProbe dials the candidate port, issues the identity ping, and tears
// the probe connection down again. The pool owns long-lived connections;
// probes stay one-shot so a sweep never steals a pooled handle.
func defaultProbe(ctx context.Context, port int) (Record, error) {
	conn, err := wire.Dial(ctx, fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return Record{}, err
	}
	defer conn.Close()

	identity, err := conn.Ping(ctx)
	if err != nil {
		return Record{}, err
	}
	return NewRecord(identity.ProjectPath, port, identity.UnityVersion, identity.Reloading), nil
}
