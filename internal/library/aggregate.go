package library

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sydlexius/driftwood/internal/cache"
	"github.com/sydlexius/driftwood/internal/media"
	"github.com/sydlexius/driftwood/internal/provider"
)

// TopTracks fans out to every provider the artist is mapped on and returns
// the deduplicated union of their top track listings. Any provider failure
// fails the whole call.
func (s *Service) TopTracks(ctx context.Context, artistID string) ([]*media.Item, error) {
	artist, err := s.GetArtist(ctx, artistID)
	if err != nil {
		return nil, err
	}
	results, err := s.fanOut(ctx, artist.Mappings, "artist_toptracks",
		func(ctx context.Context, c provider.Client, itemID string) ([]*media.Item, error) {
			return c.TopTracks(ctx, itemID)
		})
	if err != nil {
		return nil, fmt.Errorf("aggregating top tracks for %q: %w", artist.Name, err)
	}
	return mergeListings(results, false), nil
}

// Albums fans out to every provider the artist is mapped on and returns the
// deduplicated union of their album listings. Library membership is sticky
// across duplicates: if any occurrence of an album is in the library, the
// merged entry is.
func (s *Service) Albums(ctx context.Context, artistID string) ([]*media.Item, error) {
	artist, err := s.GetArtist(ctx, artistID)
	if err != nil {
		return nil, err
	}
	results, err := s.fanOut(ctx, artist.Mappings, "artist_albums",
		func(ctx context.Context, c provider.Client, itemID string) ([]*media.Item, error) {
			return c.ArtistAlbums(ctx, itemID)
		})
	if err != nil {
		return nil, fmt.Errorf("aggregating albums for %q: %w", artist.Name, err)
	}
	return mergeListings(results, true), nil
}

// fanOut queries every mapping concurrently, each goroutine writing into its
// own slot so the collected order follows dispatch order regardless of
// completion order. The first error cancels the group and fails the call.
func (s *Service) fanOut(
	ctx context.Context,
	mappings media.MappingSet,
	operation string,
	call func(context.Context, provider.Client, string) ([]*media.Item, error),
) ([][]*media.Item, error) {
	results := make([][]*media.Item, len(mappings))
	g, ctx := errgroup.WithContext(ctx)
	for i, m := range mappings {
		g.Go(func() error {
			items, err := s.providerListing(ctx, m, operation, call)
			if err != nil {
				return err
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// providerListing serves one mapping's listing through the cache policy. A
// mapping whose provider instance is not currently registered contributes an
// empty result rather than an error.
func (s *Service) providerListing(
	ctx context.Context,
	m media.Mapping,
	operation string,
	call func(context.Context, provider.Client, string) ([]*media.Item, error),
) ([]*media.Item, error) {
	client := s.registry.Get(m.InstanceID)
	if client == nil {
		s.logger.Debug("skipping unregistered provider instance",
			"instance", m.InstanceID, "operation", operation)
		return nil, nil
	}

	key := cache.Key(m.ProviderType, m.InstanceID, operation, m.ItemID)
	return s.cache.FetchItems(ctx, key, func(ctx context.Context) ([]*media.Item, error) {
		if err := s.limiters.Wait(ctx, m.ProviderType); err != nil {
			return nil, err
		}
		return call(ctx, client, m.ItemID)
	})
}

// mergeListings folds per-provider listings into one deduplicated slice.
// Items collapse on their merge key; a collision unions provenance onto the
// first occurrence, which keeps its other fields. With stickyLibrary set,
// library membership survives from any duplicate.
func mergeListings(results [][]*media.Item, stickyLibrary bool) []*media.Item {
	merged := make(map[string]*media.Item)
	var order []string

	for _, listing := range results {
		for _, item := range listing {
			key := item.MergeKey()
			if existing, ok := merged[key]; ok {
				existing.Mappings = existing.Mappings.Union(item.Mappings)
				if stickyLibrary && item.InLibrary {
					existing.InLibrary = true
				}
				continue
			}
			merged[key] = item
			order = append(order, key)
		}
	}

	out := make([]*media.Item, 0, len(order))
	for _, key := range order {
		out = append(out, merged[key])
	}
	return out
}
