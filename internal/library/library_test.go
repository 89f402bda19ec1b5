package library

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sydlexius/driftwood/internal/cache"
	"github.com/sydlexius/driftwood/internal/database"
	"github.com/sydlexius/driftwood/internal/event"
	"github.com/sydlexius/driftwood/internal/media"
	"github.com/sydlexius/driftwood/internal/metadata"
	"github.com/sydlexius/driftwood/internal/provider"
)

type harness struct {
	svc      *Service
	db       *sql.DB
	bus      *event.Bus
	registry *provider.Registry
	policy   *cache.Policy
}

func setupService(t *testing.T) *harness {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating database: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := event.NewBus(logger, 16)
	go bus.Start()
	t.Cleanup(bus.Stop)

	registry := provider.NewRegistry()
	limiters := provider.NewRateLimiterMap()
	policy := cache.NewPolicy(cache.NewSQLStore(db, time.Hour), logger, 16)
	t.Cleanup(policy.Close)

	svc := NewService(Deps{
		DB:       db,
		Bus:      bus,
		Registry: registry,
		Cache:    policy,
		Enricher: metadata.NewProviderEnricher(registry, limiters, logger),
		Limiters: limiters,
		Logger:   logger,
	})
	return &harness{svc: svc, db: db, bus: bus, registry: registry, policy: policy}
}

// fakeClient is an in-memory provider adapter. Listing and search responses
// are keyed by provider item id and by exact query string.
type fakeClient struct {
	typ      media.ProviderType
	instance string

	mu           sync.Mutex
	topTracks    map[string][]*media.Item
	artistAlbums map[string][]*media.Item
	trackHits    map[string][]*media.Item
	albumHits    map[string][]*media.Item
	artists      map[string]*media.Item
	tracks       map[string]*media.Item
	listErr      error

	listingCalls int
	trackQueries []string
	albumQueries []string
}

func newFakeClient(typ media.ProviderType, instance string) *fakeClient {
	return &fakeClient{
		typ:          typ,
		instance:     instance,
		topTracks:    make(map[string][]*media.Item),
		artistAlbums: make(map[string][]*media.Item),
		trackHits:    make(map[string][]*media.Item),
		albumHits:    make(map[string][]*media.Item),
		artists:      make(map[string]*media.Item),
		tracks:       make(map[string]*media.Item),
	}
}

func (f *fakeClient) Type() media.ProviderType          { return f.typ }
func (f *fakeClient) InstanceID() string                { return f.instance }
func (f *fakeClient) SupportsMediaType(media.Type) bool { return true }

func (f *fakeClient) TopTracks(_ context.Context, artistID string) ([]*media.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listingCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return cloneItems(f.topTracks[artistID]), nil
}

func (f *fakeClient) ArtistAlbums(_ context.Context, artistID string) ([]*media.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listingCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return cloneItems(f.artistAlbums[artistID]), nil
}

func (f *fakeClient) SearchTracks(_ context.Context, query string) ([]*media.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trackQueries = append(f.trackQueries, query)
	return cloneItems(f.trackHits[query]), nil
}

func (f *fakeClient) SearchAlbums(_ context.Context, query string) ([]*media.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.albumQueries = append(f.albumQueries, query)
	return cloneItems(f.albumHits[query]), nil
}

func (f *fakeClient) Artist(_ context.Context, artistID string) (*media.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item, ok := f.artists[artistID]; ok {
		c := *item
		return &c, nil
	}
	return nil, &provider.ErrItemNotFound{Provider: f.typ, ID: artistID}
}

func (f *fakeClient) Track(_ context.Context, trackID string) (*media.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item, ok := f.tracks[trackID]; ok {
		c := *item
		return &c, nil
	}
	return nil, &provider.ErrItemNotFound{Provider: f.typ, ID: trackID}
}

// cloneItems deep-enough copies so callers mutating merge results never
// disturb the fake's fixtures.
func cloneItems(items []*media.Item) []*media.Item {
	out := make([]*media.Item, len(items))
	for i, item := range items {
		c := *item
		c.Mappings = append(media.MappingSet(nil), item.Mappings...)
		out[i] = &c
	}
	return out
}

// provItem builds a provider-sourced item with a single mapping.
func provItem(t media.Type, name, itemID string, pt media.ProviderType, instance string) *media.Item {
	item := &media.Item{
		MediaType: t,
		Name:      name,
		Mappings: media.MappingSet{
			{ProviderType: pt, InstanceID: instance, ItemID: itemID},
		},
	}
	item.EnsureSortName()
	return item
}
