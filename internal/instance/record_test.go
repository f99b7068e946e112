package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathHashIsDeterministic(t *testing.T) {
	first := PathHash("/work/Tower")
	second := PathHash("/work/Tower")

	assert.Equal(t, first, second)
	assert.Len(t, first, HashLength)
}

func TestPathHashNormalizesEquivalentPaths(t *testing.T) {
	assert.Equal(t, PathHash("/work/Tower"), PathHash("/work/Tower/"))
	assert.Equal(t, PathHash("/work/Tower"), PathHash("/work/./Tower"))
}

func TestPathHashDiffersForDifferentPaths(t *testing.T) {
	assert.NotEqual(t, PathHash("/work/Tower"), PathHash("/work/Bridge"))
}

func TestRecordIDUsesNameAndHash(t *testing.T) {
	rec := NewRecord("/work/Tower", 6400, "6000.0.23f1", false)

	require.Equal(t, "Tower", rec.Name)
	assert.Equal(t, "Tower@"+rec.Hash, rec.ID())
	assert.Equal(t, StatusRunning, rec.Status)
}

func TestRecordIDFallsBackToHashWithoutName(t *testing.T) {
	rec := Record{Hash: "deadbeef"}
	assert.Equal(t, "deadbeef", rec.ID())
}

func TestNewRecordMarksReloading(t *testing.T) {
	rec := NewRecord("/work/Tower", 6400, "", true)
	assert.Equal(t, StatusReloading, rec.Status)
}

func TestRecordsWithDifferentPathsNeverShareID(t *testing.T) {
	a := NewRecord("/alpha/Game", 6400, "", false)
	b := NewRecord("/beta/Game", 6401, "", false)

	// Same name, different hash: distinct ids, both resolvable.
	require.Equal(t, a.Name, b.Name)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestDuplicateNameWarning(t *testing.T) {
	records := []Record{
		NewRecord("/alpha/Game", 6400, "", false),
		NewRecord("/beta/Game", 6401, "", false),
		NewRecord("/work/Tower", 6402, "", false),
	}

	warning := DuplicateNameWarning(records)
	require.NotEmpty(t, warning)
	assert.Contains(t, warning, "Game")
	assert.NotContains(t, warning, "Tower")
}

func TestDuplicateNameWarningEmptyWhenDistinct(t *testing.T) {
	records := []Record{
		NewRecord("/alpha/Game", 6400, "", false),
		NewRecord("/work/Tower", 6401, "", false),
	}
	assert.Empty(t, DuplicateNameWarning(records))
}

func TestToMapIncludesOptionalFields(t *testing.T) {
	rec := NewRecord("/work/Tower", 6400, "6000.0.23f1", false)
	m := rec.ToMap()

	assert.Equal(t, rec.ID(), m["id"])
	assert.Equal(t, 6400, m["port"])
	assert.Equal(t, "6000.0.23f1", m["unity_version"])
	assert.Contains(t, m, "last_heartbeat")
}
