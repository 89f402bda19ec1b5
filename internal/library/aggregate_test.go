package library

import (
	"context"
	"errors"
	"testing"

	"github.com/sydlexius/driftwood/internal/media"
	"github.com/sydlexius/driftwood/internal/provider"
)

// addMappedArtist persists an artist carrying the given provider mappings
// without going through enrichment fixtures.
func addMappedArtist(t *testing.T, h *harness, name string, mappings media.MappingSet) *media.Item {
	t.Helper()
	item := &media.Item{MediaType: media.TypeArtist, Name: name, Mappings: mappings}
	item.EnsureSortName()
	got, err := h.svc.AddArtist(context.Background(), item)
	if err != nil {
		t.Fatalf("AddArtist: %v", err)
	}
	return got
}

func TestTopTracksMergesAcrossProviders(t *testing.T) {
	h := setupService(t)
	ctx := context.Background()

	qobuz := newFakeClient(provider.TypeQobuz, "qobuz-main")
	spotify := newFakeClient(provider.TypeSpotify, "spotify-main")
	h.registry.Register(qobuz)
	h.registry.Register(spotify)

	qobuz.topTracks["qb-art"] = []*media.Item{
		provItem(media.TypeTrack, "Lithium", "qb-t1", provider.TypeQobuz, "qobuz-main"),
		provItem(media.TypeTrack, "In Bloom", "qb-t2", provider.TypeQobuz, "qobuz-main"),
	}
	spotify.topTracks["sp-art"] = []*media.Item{
		provItem(media.TypeTrack, "LITHIUM", "sp-t1", provider.TypeSpotify, "spotify-main"),
		provItem(media.TypeTrack, "Breed", "sp-t3", provider.TypeSpotify, "spotify-main"),
	}

	artist := addMappedArtist(t, h, "Nirvana", media.MappingSet{
		{ProviderType: provider.TypeQobuz, InstanceID: "qobuz-main", ItemID: "qb-art"},
		{ProviderType: provider.TypeSpotify, InstanceID: "spotify-main", ItemID: "sp-art"},
	})

	tracks, err := h.svc.TopTracks(ctx, artist.ID)
	if err != nil {
		t.Fatalf("TopTracks: %v", err)
	}

	// Lithium collapses across providers; dispatch order of the mappings
	// decides the merged order.
	wantNames := []string{"Lithium", "In Bloom", "Breed"}
	if len(tracks) != len(wantNames) {
		t.Fatalf("got %d tracks, want %d: %+v", len(tracks), len(wantNames), tracks)
	}
	for i, want := range wantNames {
		if tracks[i].Name != want {
			t.Errorf("track[%d] = %q, want %q", i, tracks[i].Name, want)
		}
	}

	lithium := tracks[0]
	if len(lithium.Mappings) != 2 {
		t.Fatalf("expected union of both providers on duplicate, got %v", lithium.Mappings)
	}
	if !lithium.Mappings.HasType(provider.TypeSpotify) {
		t.Errorf("duplicate lost spotify provenance: %v", lithium.Mappings)
	}
}

func TestAlbumsLibraryMembershipIsSticky(t *testing.T) {
	h := setupService(t)
	ctx := context.Background()

	qobuz := newFakeClient(provider.TypeQobuz, "qobuz-main")
	spotify := newFakeClient(provider.TypeSpotify, "spotify-main")
	h.registry.Register(qobuz)
	h.registry.Register(spotify)

	qobuz.artistAlbums["qb-art"] = []*media.Item{
		provItem(media.TypeAlbum, "Nevermind", "qb-a1", provider.TypeQobuz, "qobuz-main"),
	}
	inLib := provItem(media.TypeAlbum, "Nevermind", "sp-a1", provider.TypeSpotify, "spotify-main")
	inLib.InLibrary = true
	spotify.artistAlbums["sp-art"] = []*media.Item{inLib}

	artist := addMappedArtist(t, h, "Nirvana", media.MappingSet{
		{ProviderType: provider.TypeQobuz, InstanceID: "qobuz-main", ItemID: "qb-art"},
		{ProviderType: provider.TypeSpotify, InstanceID: "spotify-main", ItemID: "sp-art"},
	})

	albums, err := h.svc.Albums(ctx, artist.ID)
	if err != nil {
		t.Fatalf("Albums: %v", err)
	}
	if len(albums) != 1 {
		t.Fatalf("got %d albums, want 1: %+v", len(albums), albums)
	}
	// The first occurrence was not in the library; the duplicate was. The
	// merged entry must keep the membership.
	if !albums[0].InLibrary {
		t.Error("library membership lost across merge")
	}
}

func TestTopTracksProviderFailureFailsCall(t *testing.T) {
	h := setupService(t)
	ctx := context.Background()

	qobuz := newFakeClient(provider.TypeQobuz, "qobuz-main")
	spotify := newFakeClient(provider.TypeSpotify, "spotify-main")
	h.registry.Register(qobuz)
	h.registry.Register(spotify)

	qobuz.topTracks["qb-art"] = []*media.Item{
		provItem(media.TypeTrack, "Song A", "qb-t1", provider.TypeQobuz, "qobuz-main"),
	}
	cause := &provider.ErrProviderUnavailable{Provider: provider.TypeSpotify, Cause: errors.New("503")}
	spotify.listErr = cause

	artist := addMappedArtist(t, h, "Someone", media.MappingSet{
		{ProviderType: provider.TypeQobuz, InstanceID: "qobuz-main", ItemID: "qb-art"},
		{ProviderType: provider.TypeSpotify, InstanceID: "spotify-main", ItemID: "sp-art"},
	})

	_, err := h.svc.TopTracks(ctx, artist.ID)
	if err == nil {
		t.Fatal("expected aggregation to fail when one provider fails")
	}
	var unavailable *provider.ErrProviderUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("err = %v, want to unwrap to ErrProviderUnavailable", err)
	}
}

func TestTopTracksSkipsUnregisteredInstance(t *testing.T) {
	h := setupService(t)
	ctx := context.Background()

	qobuz := newFakeClient(provider.TypeQobuz, "qobuz-main")
	h.registry.Register(qobuz)
	qobuz.topTracks["qb-art"] = []*media.Item{
		provItem(media.TypeTrack, "Only Song", "qb-t1", provider.TypeQobuz, "qobuz-main"),
	}

	// The tidal mapping survives in stored provenance even though no tidal
	// instance is currently configured.
	artist := addMappedArtist(t, h, "Someone", media.MappingSet{
		{ProviderType: provider.TypeQobuz, InstanceID: "qobuz-main", ItemID: "qb-art"},
		{ProviderType: provider.TypeTidal, InstanceID: "tidal-gone", ItemID: "td-art"},
	})

	tracks, err := h.svc.TopTracks(ctx, artist.ID)
	if err != nil {
		t.Fatalf("TopTracks: %v", err)
	}
	if len(tracks) != 1 || tracks[0].Name != "Only Song" {
		t.Fatalf("unexpected tracks: %+v", tracks)
	}
}

func TestTopTracksUnknownArtist(t *testing.T) {
	h := setupService(t)

	_, err := h.svc.TopTracks(context.Background(), "no-such-id")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
