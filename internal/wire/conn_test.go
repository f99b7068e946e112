package wire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/lydakis/ubridge/internal/protocol"
)

// scriptedHost answers each incoming frame with the payload produced by
// reply. Returning nil suppresses the response entirely.
func scriptedHost(t *testing.T, reply func(id string, req map[string]any) []byte) *Conn {
	t.Helper()

	client, host := net.Pipe()
	go func() {
		for {
			payload, err := ReadFrame(host)
			if err != nil {
				return
			}
			var req map[string]any
			if err := json.Unmarshal(payload, &req); err != nil {
				continue
			}
			id, _ := req["id"].(string)
			if out := reply(id, req); out != nil {
				if err := WriteFrame(host, out); err != nil {
					return
				}
			}
		}
	}()

	conn := newConn(client)
	t.Cleanup(func() {
		conn.Close()
		host.Close()
	})
	return conn
}

func TestCallCorrelatesReplyByID(t *testing.T) {
	conn := scriptedHost(t, func(id string, req map[string]any) []byte {
		return fmt.Appendf(nil, `{"id":%q,"success":true,"message":"pong"}`, id)
	})

	env, err := conn.Call(context.Background(), protocol.Command{Type: "ping"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !env.Success || env.Message != "pong" {
		t.Fatalf("Call() = %+v, want success pong", env)
	}
}

func TestCallDeliversIDLessReplyToSinglePendingCall(t *testing.T) {
	conn := scriptedHost(t, func(string, map[string]any) []byte {
		return []byte(`{"success":true,"message":"legacy host"}`)
	})

	env, err := conn.Call(context.Background(), protocol.Command{Type: "ping"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !env.Success || env.Message != "legacy host" {
		t.Fatalf("Call() = %+v, want success from id-less reply", env)
	}
}

func TestCallTimesOutAndDiscardsStraggler(t *testing.T) {
	release := make(chan struct{})
	conn := scriptedHost(t, func(id string, req map[string]any) []byte {
		if req["type"] == "slow" {
			<-release
			return fmt.Appendf(nil, `{"id":%q,"success":true,"message":"late"}`, id)
		}
		return fmt.Appendf(nil, `{"id":%q,"success":true,"message":"fast"}`, id)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := conn.Call(ctx, protocol.Command{Type: "slow"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Call() error = %v, want deadline exceeded", err)
	}

	// Let the straggler arrive, then verify a fresh call is not poisoned by it.
	close(release)
	time.Sleep(20 * time.Millisecond)

	env, err := conn.Call(context.Background(), protocol.Command{Type: "ping"})
	if err != nil {
		t.Fatalf("Call() after straggler error = %v", err)
	}
	if env.Message != "fast" {
		t.Fatalf("Call() message = %q, want %q (straggler must be dropped)", env.Message, "fast")
	}
}

func TestCallAfterStreamFailureReturnsErrClosed(t *testing.T) {
	client, host := net.Pipe()
	conn := newConn(client)
	host.Close()

	// Give the read loop a moment to observe the failure.
	deadline := time.Now().Add(time.Second)
	for conn.Err() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	_, err := conn.Call(context.Background(), protocol.Command{Type: "ping"})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("Call() error = %v, want ErrClosed", err)
	}
}

func TestPingDecodesIdentity(t *testing.T) {
	conn := scriptedHost(t, func(id string, req map[string]any) []byte {
		return fmt.Appendf(nil,
			`{"id":%q,"success":true,"data":{"project_path":"/work/Tower","unity_version":"6000.0.23f1"}}`, id)
	})

	identity, err := conn.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if identity.ProjectPath != "/work/Tower" {
		t.Fatalf("ProjectPath = %q, want %q", identity.ProjectPath, "/work/Tower")
	}
	if identity.UnityVersion != "6000.0.23f1" {
		t.Fatalf("UnityVersion = %q, want %q", identity.UnityVersion, "6000.0.23f1")
	}
}

func TestPingRejectsReplyWithoutProjectPath(t *testing.T) {
	conn := scriptedHost(t, func(id string, req map[string]any) []byte {
		return fmt.Appendf(nil, `{"id":%q,"success":true,"data":{}}`, id)
	})

	if _, err := conn.Ping(context.Background()); err == nil {
		t.Fatal("Ping() error = nil, want non-nil for missing project path")
	}
}
