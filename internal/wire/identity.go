package wire

import (
	"encoding/json"
	"fmt"

	"github.com/lydakis/ubridge/internal/protocol"
)

// Identity is what an editor instance reports about itself in reply to the
// ping probe.
type Identity struct {
	ProjectPath  string `json:"project_path"`
	UnityVersion string `json:"unity_version"`
	Reloading    bool   `json:"reloading"`
}

func identityFromEnvelope(env protocol.Envelope) (Identity, error) {
	if !env.Success {
		return Identity{}, fmt.Errorf("probe rejected: %s", env.Error)
	}
	var id Identity
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &id); err != nil {
			return Identity{}, fmt.Errorf("decoding probe identity: %w", err)
		}
	}
	if id.ProjectPath == "" {
		return Identity{}, fmt.Errorf("probe reply carries no project path")
	}
	return id, nil
}
