package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/collections/internal/clock"
	"github.com/smallbiznis/collections/internal/collections/engine"
)

const (
	snapshotKeyFormat   = "collections:workflows:%d:%d"
	generationKeyFormat = "collections:workflows:%d:gen"
	DefaultSnapshotTTL  = 90 * time.Second
)

// SnapshotCache holds the per-tenant ledger snapshot workflows are derived
// from. Snapshots are stored per generation and Invalidate starts a new
// one, so a snapshot read before a write can never be served after it.
type SnapshotCache interface {
	// Get returns the tenant's current generation together with the cached
	// snapshot. A miss is reported as ok=false with a nil error.
	Get(ctx context.Context, orgID snowflake.ID) (snap engine.Snapshot, gen int64, ok bool, err error)
	// Set stores snap under gen, the generation observed before the ledger
	// read. Stale generations are never addressed again.
	Set(ctx context.Context, orgID snowflake.ID, gen int64, snap engine.Snapshot) error
	Invalidate(ctx context.Context, orgID snowflake.ID) error
}

func SnapshotKey(orgID snowflake.ID, gen int64) string {
	return fmt.Sprintf(snapshotKeyFormat, int64(orgID), gen)
}

func GenerationKey(orgID snowflake.ID) string {
	return fmt.Sprintf(generationKeyFormat, int64(orgID))
}

type memorySnapshotCache struct {
	items Cache[string, engine.Snapshot]
	ttl   time.Duration

	mu          sync.Mutex
	generations map[snowflake.ID]int64
}

// NewMemorySnapshotCache keeps snapshots in process memory.
func NewMemorySnapshotCache(clk clock.Clock, ttl time.Duration) SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &memorySnapshotCache{
		items:       NewTTLCache[string, engine.Snapshot](clk),
		ttl:         ttl,
		generations: map[snowflake.ID]int64{},
	}
}

func (c *memorySnapshotCache) Get(_ context.Context, orgID snowflake.ID) (engine.Snapshot, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.generations[orgID]
	snap, ok := c.items.Get(SnapshotKey(orgID, gen))
	return snap, gen, ok, nil
}

func (c *memorySnapshotCache) Set(_ context.Context, orgID snowflake.ID, gen int64, snap engine.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[orgID] != gen {
		return nil
	}
	c.items.Set(SnapshotKey(orgID, gen), snap, c.ttl)
	return nil
}

func (c *memorySnapshotCache) Invalidate(_ context.Context, orgID snowflake.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Delete(SnapshotKey(orgID, c.generations[orgID]))
	c.generations[orgID]++
	return nil
}
