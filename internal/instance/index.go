package instance

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// indexEntry is the file an editor instance drops under the index directory
// while its bridge listener is up. Only the port is trusted; identity always
// comes from a live probe.
type indexEntry struct {
	ProjectPath  string `json:"project_path"`
	Port         int    `json:"port"`
	UnityVersion string `json:"unity_version,omitempty"`
}

// readIndexPorts returns the candidate ports advertised by index files,
// keyed to the advertising file so a sweep can clear stale entries.
// Unreadable or malformed files are skipped; a missing directory is an empty
// result, not an error.
func readIndexPorts(dir string) map[int]string {
	matches, err := filepath.Glob(filepath.Join(dir, "ubridge-*.json"))
	if err != nil {
		return nil
	}

	ports := make(map[int]string)
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var entry indexEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		if entry.Port > 0 && entry.Port <= 65535 {
			ports[entry.Port] = path
		}
	}
	return ports
}
