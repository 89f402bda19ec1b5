package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sydlexius/driftwood/internal/media"
)

// FetchFunc produces the live (uncached) result for a cache key.
type FetchFunc func(ctx context.Context) ([]*media.Item, error)

// Key builds a cache key for a per-provider listing call. The instance id is
// part of the key: two accounts of the same provider type can serve
// different catalogs.
func Key(providerType media.ProviderType, instanceID, operation, itemID string) string {
	return fmt.Sprintf("%s.%s.%s.%s", providerType, instanceID, operation, itemID)
}

type writeJob struct {
	key   string
	value []byte
}

// Policy implements cache-aside fetching of provider listings: hit returns
// the cached result without revalidation, miss calls the live fetch and
// schedules a best-effort write-back that never blocks or fails the caller.
type Policy struct {
	store  Store
	logger *slog.Logger

	sf     singleflight.Group
	writes chan writeJob
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewPolicy creates a Policy with a bounded write-back queue drained by a
// single worker goroutine.
func NewPolicy(store Store, logger *slog.Logger, queueSize int) *Policy {
	if queueSize <= 0 {
		queueSize = 64
	}
	p := &Policy{
		store:  store,
		logger: logger.With(slog.String("component", "cache")),
		writes: make(chan writeJob, queueSize),
		done:   make(chan struct{}),
	}
	p.wg.Add(1)
	go p.writer()
	return p
}

// FetchItems returns the cached item list for key, or performs the live
// fetch on a miss. Concurrent misses for the same key share one live fetch.
// Store read failures propagate to the caller; write-back failures do not.
func (p *Policy) FetchItems(ctx context.Context, key string, fetch FetchFunc) ([]*media.Item, error) {
	data, ok, err := p.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}
	if ok {
		var items []*media.Item
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decoding cache entry %s: %w", key, err)
		}
		return items, nil
	}

	// The shared fetch serializes once; every caller decodes its own copy so
	// no two requests ever hold the same item pointers.
	v, err, _ := p.sf.Do(key, func() (any, error) {
		items, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(items)
		if err != nil {
			return nil, fmt.Errorf("serializing cache entry %s: %w", key, err)
		}
		p.enqueueWrite(key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	var items []*media.Item
	if err := json.Unmarshal(v.([]byte), &items); err != nil {
		return nil, fmt.Errorf("decoding fetched entry %s: %w", key, err)
	}
	return items, nil
}

// enqueueWrite hands the serialized result to the write-back worker. A full
// queue drops the write: the entry will simply be fetched live again.
func (p *Policy) enqueueWrite(key string, data []byte) {
	select {
	case p.writes <- writeJob{key: key, value: data}:
	default:
		p.logger.Warn("cache write queue full, dropping write-back", "key", key)
	}
}

func (p *Policy) writer() {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.writes:
			p.write(job)
		case <-p.done:
			// Drain remaining writes
			for {
				select {
				case job := <-p.writes:
					p.write(job)
				default:
					return
				}
			}
		}
	}
}

func (p *Policy) write(job writeJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.store.Set(ctx, job.key, job.value); err != nil {
		p.logger.Warn("cache write-back failed", "key", job.key, "error", err)
	}
}

// Close drains pending write-backs and stops the worker.
func (p *Policy) Close() {
	p.once.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}
