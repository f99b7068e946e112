// Package instance maintains the registry of running editor instances:
// discovery, identity, and the cached snapshot read by resolution.
package instance

import (
	"crypto/sha1"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"
)

// Instance statuses.
const (
	StatusRunning   = "running"
	StatusReloading = "reloading"
	StatusOffline   = "offline"
)

// HashLength is the number of hex characters kept from the project path digest.
const HashLength = 8

// Record is an immutable snapshot of one discovered editor instance.
type Record struct {
	Name          string
	Path          string
	Hash          string
	Port          int
	Status        string
	LastHeartbeat time.Time
	UnityVersion  string
}

// PathHash returns the deterministic short digest of a project path. Two
// records with the same path always share the same hash.
func PathHash(path string) string {
	sum := sha1.Sum([]byte(filepath.Clean(path)))
	return hex.EncodeToString(sum[:])[:HashLength]
}

// NameForPath derives the instance name from the project root directory.
func NameForPath(path string) string {
	base := filepath.Base(filepath.Clean(path))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return base
}

// NewRecord builds a record for a probed instance.
func NewRecord(path string, port int, unityVersion string, reloading bool) Record {
	status := StatusRunning
	if reloading {
		status = StatusReloading
	}
	return Record{
		Name:          NameForPath(path),
		Path:          path,
		Hash:          PathHash(path),
		Port:          port,
		Status:        status,
		LastHeartbeat: time.Now(),
		UnityVersion:  unityVersion,
	}
}

// ID returns the canonical instance id: "Name@hash", or the bare hash when
// the name is unknown.
func (r Record) ID() string {
	if r.Name == "" {
		return r.Hash
	}
	return r.Name + "@" + r.Hash
}

// ToMap renders the record for the instance listing surface.
func (r Record) ToMap() map[string]any {
	m := map[string]any{
		"id":     r.ID(),
		"name":   r.Name,
		"path":   r.Path,
		"hash":   r.Hash,
		"port":   r.Port,
		"status": r.Status,
	}
	if !r.LastHeartbeat.IsZero() {
		m["last_heartbeat"] = r.LastHeartbeat.UTC().Format(time.RFC3339)
	}
	if r.UnityVersion != "" {
		m["unity_version"] = r.UnityVersion
	}
	return m
}

// DuplicateNameWarning returns a warning listing names shared by two or more
// records, or "" when all names are distinct. Duplicates are surfaced, never
// silently resolved.
func DuplicateNameWarning(records []Record) string {
	seen := make(map[string]int, len(records))
	for _, r := range records {
		if r.Name != "" {
			seen[r.Name]++
		}
	}

	var dups []string
	for _, r := range records {
		if seen[r.Name] > 1 {
			seen[r.Name] = -seen[r.Name] // report each name once
			dups = append(dups, r.Name)
		}
	}
	if len(dups) == 0 {
		return ""
	}
	return "duplicate instance names detected: " + strings.Join(dups, ", ") +
		"; address these instances by full id or hash"
}
