package metadata

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/sydlexius/driftwood/internal/media"
	"github.com/sydlexius/driftwood/internal/provider"
)

type recordClient struct {
	typ      media.ProviderType
	instance string
	artists  map[string]*media.Item
	err      error
	calls    int
}

func (c *recordClient) Type() media.ProviderType          { return c.typ }
func (c *recordClient) InstanceID() string                { return c.instance }
func (c *recordClient) SupportsMediaType(media.Type) bool { return true }

func (c *recordClient) Artist(_ context.Context, id string) (*media.Item, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	if a, ok := c.artists[id]; ok {
		return a, nil
	}
	return nil, &provider.ErrItemNotFound{Provider: c.typ, ID: id}
}

func (c *recordClient) Track(_ context.Context, id string) (*media.Item, error) {
	return nil, &provider.ErrItemNotFound{Provider: c.typ, ID: id}
}
func (c *recordClient) TopTracks(context.Context, string) ([]*media.Item, error)    { return nil, nil }
func (c *recordClient) ArtistAlbums(context.Context, string) ([]*media.Item, error) { return nil, nil }
func (c *recordClient) SearchTracks(context.Context, string) ([]*media.Item, error) { return nil, nil }
func (c *recordClient) SearchAlbums(context.Context, string) ([]*media.Item, error) { return nil, nil }

func setupEnricher(clients ...*recordClient) *ProviderEnricher {
	registry := provider.NewRegistry()
	for _, c := range clients {
		registry.Register(c)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewProviderEnricher(registry, provider.NewRateLimiterMap(), logger)
}

func artistItem(name, itemID string, typ media.ProviderType, instance string) *media.Item {
	return &media.Item{
		MediaType: media.TypeArtist,
		Name:      name,
		SortName:  media.SortNameOf(name),
		Mappings: media.MappingSet{
			{ProviderType: typ, InstanceID: instance, ItemID: itemID},
		},
	}
}

func TestEnrichBackfillsGlobalID(t *testing.T) {
	full := artistItem("Slowdive", "qb-1", provider.TypeQobuz, "qobuz-main")
	full.MusicBrainzID = "mbid-slowdive"
	full.Metadata = map[string]string{"genre": "shoegaze"}

	client := &recordClient{
		typ:      provider.TypeQobuz,
		instance: "qobuz-main",
		artists:  map[string]*media.Item{"qb-1": full},
	}
	e := setupEnricher(client)

	item := artistItem("Slowdive", "qb-1", provider.TypeQobuz, "qobuz-main")
	item.Metadata = map[string]string{"genre": "dream pop"}
	if err := e.Enrich(context.Background(), item); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if item.MusicBrainzID != "mbid-slowdive" {
		t.Errorf("musicbrainz id = %q", item.MusicBrainzID)
	}
	// Existing metadata keys are never clobbered by enrichment.
	if item.Metadata["genre"] != "dream pop" {
		t.Errorf("genre = %q", item.Metadata["genre"])
	}
}

func TestEnrichSkipsWhenGlobalIDPresent(t *testing.T) {
	client := &recordClient{typ: provider.TypeQobuz, instance: "qobuz-main"}
	e := setupEnricher(client)

	item := artistItem("Slowdive", "qb-1", provider.TypeQobuz, "qobuz-main")
	item.MusicBrainzID = "already-set"
	if err := e.Enrich(context.Background(), item); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if client.calls != 0 {
		t.Errorf("provider consulted despite present global id: %d calls", client.calls)
	}
}

func TestEnrichAbsenceIsNotFailure(t *testing.T) {
	// Provider has no record for the id (ErrItemNotFound): enrichment
	// finishes without error and without a global id.
	client := &recordClient{typ: provider.TypeQobuz, instance: "qobuz-main"}
	e := setupEnricher(client)

	item := artistItem("Obscure Act", "qb-unknown", provider.TypeQobuz, "qobuz-main")
	if err := e.Enrich(context.Background(), item); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if item.MusicBrainzID != "" {
		t.Errorf("unexpected global id: %q", item.MusicBrainzID)
	}
}

func TestEnrichTransportErrorPropagates(t *testing.T) {
	cause := &provider.ErrProviderUnavailable{Provider: provider.TypeQobuz, Cause: errors.New("timeout")}
	client := &recordClient{typ: provider.TypeQobuz, instance: "qobuz-main", err: cause}
	e := setupEnricher(client)

	item := artistItem("Slowdive", "qb-1", provider.TypeQobuz, "qobuz-main")
	err := e.Enrich(context.Background(), item)
	var unavailable *provider.ErrProviderUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestEnrichSkipsUnregisteredInstance(t *testing.T) {
	e := setupEnricher() // empty registry

	item := artistItem("Slowdive", "qb-1", provider.TypeQobuz, "qobuz-main")
	if err := e.Enrich(context.Background(), item); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
}
