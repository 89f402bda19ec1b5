package provider

import (
	"context"
	"testing"

	"github.com/sydlexius/driftwood/internal/media"
)

// stubClient implements Client with static answers; used only for registry
// behavior here. Library tests carry their own richer fakes.
type stubClient struct {
	typ      media.ProviderType
	instance string
	supports map[media.Type]bool
}

func (s *stubClient) Type() media.ProviderType { return s.typ }
func (s *stubClient) InstanceID() string       { return s.instance }
func (s *stubClient) SupportsMediaType(t media.Type) bool {
	return s.supports == nil || s.supports[t]
}
func (s *stubClient) TopTracks(context.Context, string) ([]*media.Item, error) {
	return nil, nil
}
func (s *stubClient) ArtistAlbums(context.Context, string) ([]*media.Item, error) {
	return nil, nil
}
func (s *stubClient) SearchTracks(context.Context, string) ([]*media.Item, error) {
	return nil, nil
}
func (s *stubClient) SearchAlbums(context.Context, string) ([]*media.Item, error) {
	return nil, nil
}
func (s *stubClient) Artist(context.Context, string) (*media.Item, error) { return nil, nil }
func (s *stubClient) Track(context.Context, string) (*media.Item, error) { return nil, nil }

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubClient{typ: TypeSpotify, instance: "spotify-1"})
	r.Register(&stubClient{typ: TypeQobuz, instance: "qobuz-1"})

	if c := r.Get("spotify-1"); c == nil || c.Type() != TypeSpotify {
		t.Fatalf("expected spotify client, got %v", c)
	}
	if c := r.Get("missing"); c != nil {
		t.Fatalf("expected nil for unknown instance, got %v", c)
	}
}

func TestRegistryAllPreservesOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubClient{typ: TypeSpotify, instance: "spotify-1"})
	r.Register(&stubClient{typ: TypeQobuz, instance: "qobuz-1"})
	r.Register(&stubClient{typ: TypeTidal, instance: "tidal-1"})

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 clients, got %d", len(all))
	}
	want := []string{"spotify-1", "qobuz-1", "tidal-1"}
	for i, id := range want {
		if all[i].InstanceID() != id {
			t.Errorf("All()[%d] = %s, want %s", i, all[i].InstanceID(), id)
		}
	}

	// Re-registering an instance replaces it without duplicating.
	r.Register(&stubClient{typ: TypeSpotify, instance: "spotify-1"})
	if got := len(r.All()); got != 3 {
		t.Errorf("expected 3 clients after re-register, got %d", got)
	}
}

func TestRegistryForMediaType(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubClient{typ: TypeSpotify, instance: "spotify-1",
		supports: map[media.Type]bool{media.TypeArtist: true}})
	r.Register(&stubClient{typ: TypeTidal, instance: "tidal-1",
		supports: map[media.Type]bool{media.TypeTrack: true}})

	got := r.ForMediaType(media.TypeArtist)
	if len(got) != 1 || got[0].InstanceID() != "spotify-1" {
		t.Fatalf("expected only spotify-1 to support artists, got %v", got)
	}
}
