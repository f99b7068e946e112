package instance

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"
)

// probeConcurrency bounds the number of simultaneous identity probes during
// a sweep.
const probeConcurrency = 16

// ProbeFunc attempts a lightweight identity probe against one local port and
// returns the record for the instance answering there.
type ProbeFunc func(ctx context.Context, port int) (Record, error)

// Options configures a Registry.
type Options struct {
	PortStart    int
	PortEnd      int
	IndexDir     string
	ProbeTimeout time.Duration
	CacheTTL     time.Duration

	// Probe overrides the default wire probe; used by tests.
	Probe ProbeFunc
}

// Registry caches the set of discovered instances. The cache is replaced
// wholesale by each discovery sweep and read concurrently by resolution and
// listing; a sweep never exposes a partially built snapshot.
type Registry struct {
	opts  Options
	probe ProbeFunc

	mu          sync.RWMutex
	records     []Record
	byID        map[string]Record
	lastRefresh time.Time

	sweepMu sync.Mutex // one sweep at a time
}

// NewRegistry creates an empty registry. The cache starts stale; the first
// DiscoverAll performs a full sweep.
func NewRegistry(opts Options) *Registry {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Second
	}
	probe := opts.Probe
	if probe == nil {
		probe = defaultProbe
	}
	return &Registry{
		opts:  opts,
		probe: probe,
		byID:  make(map[string]Record),
	}
}

// DiscoverAll returns the current instance snapshot, sweeping first when
// forced or when the cache is stale. Probe failures are swallowed per
// endpoint; a sweep finding nothing is a valid empty result.
func (g *Registry) DiscoverAll(ctx context.Context, forceRefresh bool) ([]Record, error) {
	if !forceRefresh && !g.Stale() {
		return g.Snapshot(), nil
	}

	g.sweepMu.Lock()
	defer g.sweepMu.Unlock()

	// Another caller may have finished a sweep while we waited.
	if !forceRefresh && !g.Stale() {
		return g.Snapshot(), nil
	}

	records := g.sweep(ctx)

	byID := make(map[string]Record, len(records))
	for _, r := range records {
		byID[r.ID()] = r
	}

	g.mu.Lock()
	g.records = records
	g.byID = byID
	g.lastRefresh = time.Now()
	g.mu.Unlock()

	return g.Snapshot(), nil
}

func (g *Registry) sweep(ctx context.Context) []Record {
	indexFiles := readIndexPorts(g.opts.IndexDir)

	candidates := make(map[int]struct{})
	for port := range indexFiles {
		candidates[port] = struct{}{}
	}
	for port := g.opts.PortStart; port <= g.opts.PortEnd; port++ {
		candidates[port] = struct{}{}
	}

	var (
		mu      sync.Mutex
		records []Record
		wg      sync.WaitGroup
		sem     = make(chan struct{}, probeConcurrency)
	)

	for port := range candidates {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			probeCtx, cancel := context.WithTimeout(ctx, g.opts.ProbeTimeout)
			defer cancel()

			rec, err := g.probe(probeCtx, port)
			if err != nil {
				return // endpoint did not answer; omitted from the sweep
			}
			mu.Lock()
			records = append(records, rec)
			mu.Unlock()
		}(port)
	}
	wg.Wait()

	// Index files whose port did not answer are stale leftovers from a
	// crashed editor; clear them best-effort.
	live := make(map[int]struct{}, len(records))
	for _, r := range records {
		live[r.Port] = struct{}{}
	}
	for port, file := range indexFiles {
		if _, ok := live[port]; !ok {
			os.Remove(file)
		}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Port < records[j].Port })
	return records
}

// Snapshot returns a copy of the cached records.
func (g *Registry) Snapshot() []Record {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Record, len(g.records))
	copy(out, g.records)
	return out
}

// Lookup returns the cached record for a canonical instance id.
func (g *Registry) Lookup(id string) (Record, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rec, ok := g.byID[id]
	return rec, ok
}

// Stale reports whether the cache needs a sweep before being trusted.
func (g *Registry) Stale() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastRefresh.IsZero() || time.Since(g.lastRefresh) > g.opts.CacheTTL
}

// LastRefresh returns the time of the last completed sweep.
func (g *Registry) LastRefresh() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastRefresh
}
