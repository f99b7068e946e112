package protocol

import (
	"encoding/json"
	"testing"
)

func TestNormalizeCanonicalSuccess(t *testing.T) {
	env := Normalize(json.RawMessage(`{"success":true,"message":"ok","data":{"objects":3}}`))
	if !env.Success {
		t.Fatalf("Success = false, want true")
	}
	if env.Message != "ok" {
		t.Fatalf("Message = %q, want %q", env.Message, "ok")
	}
	if string(env.Data) != `{"objects":3}` {
		t.Fatalf("Data = %s, want objects payload", env.Data)
	}
}

func TestNormalizeClearsErrorOnSuccess(t *testing.T) {
	env := Normalize(json.RawMessage(`{"success":true,"error":"stale"}`))
	if !env.Success {
		t.Fatalf("Success = false, want true")
	}
	if env.Error != "" {
		t.Fatalf("Error = %q, want empty on success", env.Error)
	}
}

func TestNormalizeStatusVariant(t *testing.T) {
	env := Normalize(json.RawMessage(`{"status":"success","result":{"id":"cube"}}`))
	if !env.Success {
		t.Fatalf("Success = false, want true")
	}
	if string(env.Data) != `{"id":"cube"}` {
		t.Fatalf("Data = %s, want result payload", env.Data)
	}

	env = Normalize(json.RawMessage(`{"status":"error","error":"no such object"}`))
	if env.Success {
		t.Fatalf("Success = true, want false")
	}
	if env.Error != "no such object" {
		t.Fatalf("Error = %q, want %q", env.Error, "no such object")
	}
}

func TestNormalizeBareObjectIsSuccessPayload(t *testing.T) {
	env := Normalize(json.RawMessage(`{"objects":["a","b"]}`))
	if !env.Success {
		t.Fatalf("Success = false, want true")
	}
	if string(env.Data) != `{"objects":["a","b"]}` {
		t.Fatalf("Data = %s, want whole reply", env.Data)
	}
}

func TestNormalizeNonObjectReplyBecomesFailure(t *testing.T) {
	env := Normalize(json.RawMessage(`"compilation in progress"`))
	if env.Success {
		t.Fatalf("Success = true, want false")
	}
	if env.Message != "compilation in progress" {
		t.Fatalf("Message = %q, want stringified reply", env.Message)
	}
	if env.Error == "" {
		t.Fatal("Error is empty, want non-empty")
	}
}

func TestNormalizeEmptyReplyBecomesFailure(t *testing.T) {
	env := Normalize(nil)
	if env.Success || env.Error == "" {
		t.Fatalf("Normalize(nil) = %+v, want failure with error", env)
	}
}

func TestReloading(t *testing.T) {
	env := Normalize(json.RawMessage(`{"status":"reloading"}`))
	if !Reloading(env) {
		t.Fatalf("Reloading(%+v) = false, want true", env)
	}

	env = Normalize(json.RawMessage(`{"success":false,"error":"domain reload in progress"}`))
	if !Reloading(env) {
		t.Fatalf("Reloading(%+v) = false, want true", env)
	}

	env = Normalize(json.RawMessage(`{"success":true}`))
	if Reloading(env) {
		t.Fatal("Reloading(success) = true, want false")
	}

	env = Normalize(json.RawMessage(`{"success":false,"error":"missing parameter"}`))
	if Reloading(env) {
		t.Fatal("Reloading(terminal failure) = true, want false")
	}
}
