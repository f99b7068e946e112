package instance

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProbe answers for the given port→path mapping and counts probes.
func fakeProbe(answers map[int]string, probes *atomic.Int64) ProbeFunc {
	return func(_ context.Context, port int) (Record, error) {
		if probes != nil {
			probes.Add(1)
		}
		path, ok := answers[port]
		if !ok {
			return Record{}, fmt.Errorf("connection refused on %d", port)
		}
		return NewRecord(path, port, "6000.0.23f1", false), nil
	}
}

func newTestRegistry(answers map[int]string, probes *atomic.Int64) *Registry {
	return NewRegistry(Options{
		PortStart: 6400,
		PortEnd:   6404,
		CacheTTL:  time.Minute,
		Probe:     fakeProbe(answers, probes),
	})
}

func TestDiscoverAllFindsAnsweringEndpoints(t *testing.T) {
	reg := newTestRegistry(map[int]string{
		6400: "/work/Tower",
		6402: "/work/Bridge",
	}, nil)

	records, err := reg.DiscoverAll(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Ordered by port.
	assert.Equal(t, 6400, records[0].Port)
	assert.Equal(t, "Tower", records[0].Name)
	assert.Equal(t, 6402, records[1].Port)
	assert.Equal(t, "Bridge", records[1].Name)
}

func TestDiscoverAllEmptySweepIsNotAnError(t *testing.T) {
	reg := newTestRegistry(nil, nil)

	records, err := reg.DiscoverAll(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDiscoverAllUsesCacheUntilForced(t *testing.T) {
	var probes atomic.Int64
	reg := newTestRegistry(map[int]string{6400: "/work/Tower"}, &probes)

	_, err := reg.DiscoverAll(context.Background(), false)
	require.NoError(t, err)
	afterFirst := probes.Load()
	require.Positive(t, afterFirst)

	// Fresh cache: no re-probing.
	_, err = reg.DiscoverAll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, afterFirst, probes.Load())

	// Forced: always re-probes.
	_, err = reg.DiscoverAll(context.Background(), true)
	require.NoError(t, err)
	assert.Greater(t, probes.Load(), afterFirst)
}

func TestDiscoverAllReplacesCacheWholesale(t *testing.T) {
	answers := map[int]string{6400: "/work/Tower", 6401: "/work/Bridge"}
	reg := newTestRegistry(answers, nil)

	records, err := reg.DiscoverAll(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// The instance on 6401 goes away; a full sweep must not carry it forward.
	delete(answers, 6401)

	records, err = reg.DiscoverAll(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Tower", records[0].Name)

	_, ok := reg.Lookup(NewRecord("/work/Bridge", 6401, "", false).ID())
	assert.False(t, ok, "offline instance must not survive a sweep")
}

func TestStableHashAcrossSweeps(t *testing.T) {
	reg := newTestRegistry(map[int]string{6400: "/work/Tower"}, nil)

	first, err := reg.DiscoverAll(context.Background(), true)
	require.NoError(t, err)
	second, err := reg.DiscoverAll(context.Background(), true)
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID(), second[0].ID())
	assert.Equal(t, first[0].Hash, second[0].Hash)
}

func TestLookupFindsRecordByCanonicalID(t *testing.T) {
	reg := newTestRegistry(map[int]string{6400: "/work/Tower"}, nil)

	records, err := reg.DiscoverAll(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec, ok := reg.Lookup(records[0].ID())
	require.True(t, ok)
	assert.Equal(t, 6400, rec.Port)
}

func TestRegistryStartsStale(t *testing.T) {
	reg := newTestRegistry(nil, nil)
	assert.True(t, reg.Stale())

	_, err := reg.DiscoverAll(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, reg.Stale())
}

func TestSweepIncludesIndexFilePorts(t *testing.T) {
	dir := t.TempDir()
	entry, err := json.Marshal(indexEntry{ProjectPath: "/work/Hidden", Port: 7321})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ubridge-abc123.json"), entry, 0600))
	// Malformed files are skipped, not fatal.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ubridge-bad.json"), []byte("{"), 0600))

	reg := NewRegistry(Options{
		PortStart: 6400,
		PortEnd:   6401,
		IndexDir:  dir,
		CacheTTL:  time.Minute,
		Probe:     fakeProbe(map[int]string{7321: "/work/Hidden"}, nil),
	})

	records, err := reg.DiscoverAll(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 7321, records[0].Port)
	assert.Equal(t, "Hidden", records[0].Name)
}

func TestSweepClearsStaleIndexFiles(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "ubridge-dead999.json")
	entry, err := json.Marshal(indexEntry{ProjectPath: "/gone/Project", Port: 7999})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(stale, entry, 0600))

	live := filepath.Join(dir, "ubridge-abc123.json")
	entry, err = json.Marshal(indexEntry{ProjectPath: "/work/Hidden", Port: 7321})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(live, entry, 0600))

	reg := NewRegistry(Options{
		PortStart: 6400,
		PortEnd:   6400,
		IndexDir:  dir,
		CacheTTL:  time.Minute,
		Probe:     fakeProbe(map[int]string{7321: "/work/Hidden"}, nil),
	})

	_, err = reg.DiscoverAll(context.Background(), true)
	require.NoError(t, err)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale index file must be removed by the sweep")
	_, err = os.Stat(live)
	assert.NoError(t, err, "live index file must survive the sweep")
}
