package library

import (
	"context"
	"fmt"

	"github.com/sydlexius/driftwood/internal/media"
	"github.com/sydlexius/driftwood/internal/provider"
)

// MatchArtist tries to link a canonical artist on every registered provider
// it has no mapping for yet. Matching is evidence-based: a candidate on the
// target provider is accepted only when one of the artist's known tracks or
// albums is found there under the same credited artist. A provider that
// yields no confirmed candidate is left unlinked; only lookup failures
// surface as errors.
func (s *Service) MatchArtist(ctx context.Context, artist *media.Item) error {
	if !artist.Canonical() {
		return fmt.Errorf("matching artist %q: %w", artist.Name, ErrNotCanonical)
	}

	linked := artist.Mappings.Types()
	for _, client := range s.registry.All() {
		if _, ok := linked[client.Type()]; ok {
			continue
		}
		if !client.SupportsMediaType(media.TypeArtist) {
			continue
		}

		matched, err := s.matchOne(ctx, client, artist)
		if err != nil {
			return fmt.Errorf("matching artist %q on %s: %w", artist.Name, client.Type(), err)
		}
		if matched {
			linked[client.Type()] = struct{}{}
			s.logger.Info("linked artist on provider",
				"artist", artist.Name, "provider", string(client.Type()))
			continue
		}
		s.logger.Debug("no confirmed match for artist on provider",
			"artist", artist.Name, "provider", string(client.Type()))
	}
	return nil
}

// matchOne searches one provider for evidence that it carries this artist.
// Phase one fingerprints by the artist's top tracks, phase two by its
// albums. The first confirmed hit merges the provider's artist record into
// the canonical one and wins.
func (s *Service) matchOne(ctx context.Context, c provider.Client, artist *media.Item) (bool, error) {
	matched, err := s.matchByTracks(ctx, c, artist)
	if err != nil || matched {
		return matched, err
	}
	return s.matchByAlbums(ctx, c, artist)
}

func (s *Service) matchByTracks(ctx context.Context, c provider.Client, artist *media.Item) (bool, error) {
	refTracks, err := s.TopTracks(ctx, artist.ID)
	if err != nil {
		return false, fmt.Errorf("loading reference tracks: %w", err)
	}

	for _, ref := range refTracks {
		queries := []string{
			fmt.Sprintf("%s - %s", artist.Name, ref.Name),
			fmt.Sprintf("%s %s", artist.Name, ref.Name),
			ref.Name,
		}
		results, err := s.searchLadder(ctx, c, queries, c.SearchTracks)
		if err != nil {
			return false, err
		}

		for _, sr := range results {
			// The track name and a credited artist name are the whole
			// fingerprint; release context is ignored since the same
			// recording surfaces on different albums per provider.
			if sr.SortName != ref.SortName {
				continue
			}
			for _, cred := range sr.Artists {
				if cred.SortName != artist.SortName || cred.ItemID == "" {
					continue
				}
				if err := s.confirmMatch(ctx, c, artist, cred.ItemID); err != nil {
					return false, err
				}
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Service) matchByAlbums(ctx context.Context, c provider.Client, artist *media.Item) (bool, error) {
	refAlbums, err := s.Albums(ctx, artist.ID)
	if err != nil {
		return false, fmt.Errorf("loading reference albums: %w", err)
	}

	for _, ref := range refAlbums {
		// Compilations credit many artists and give no usable evidence.
		if ref.AlbumType == media.AlbumTypeCompilation || ref.Artist == nil {
			continue
		}
		queries := []string{
			ref.Name,
			fmt.Sprintf("%s - %s", artist.Name, ref.Name),
			fmt.Sprintf("%s %s", artist.Name, ref.Name),
		}
		results, err := s.searchLadder(ctx, c, queries, c.SearchAlbums)
		if err != nil {
			return false, err
		}

		for _, sr := range results {
			if sr.Artist == nil || sr.Artist.ItemID == "" {
				continue
			}
			if sr.SortName != ref.SortName || sr.Artist.SortName != artist.SortName {
				continue
			}
			if err := s.confirmMatch(ctx, c, artist, sr.Artist.ItemID); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// MatchAlbum tries to link a canonical album on every registered provider it
// has no mapping for yet. A candidate is accepted when its normalized name,
// version and credited artist all agree; the provider record then merges into
// the canonical one. Compilations credit many artists and are skipped.
func (s *Service) MatchAlbum(ctx context.Context, album *media.Item) error {
	if !album.Canonical() {
		return fmt.Errorf("matching album %q: %w", album.Name, ErrNotCanonical)
	}
	if album.AlbumType == media.AlbumTypeCompilation || album.Artist == nil {
		return nil
	}

	linked := album.Mappings.Types()
	for _, client := range s.registry.All() {
		if _, ok := linked[client.Type()]; ok {
			continue
		}
		if !client.SupportsMediaType(media.TypeAlbum) {
			continue
		}

		matched, err := s.matchAlbumOne(ctx, client, album)
		if err != nil {
			return fmt.Errorf("matching album %q on %s: %w", album.Name, client.Type(), err)
		}
		if matched {
			linked[client.Type()] = struct{}{}
			s.logger.Info("linked album on provider",
				"album", album.Name, "provider", string(client.Type()))
			continue
		}
		s.logger.Debug("no confirmed match for album on provider",
			"album", album.Name, "provider", string(client.Type()))
	}
	return nil
}

func (s *Service) matchAlbumOne(ctx context.Context, c provider.Client, album *media.Item) (bool, error) {
	queries := []string{
		album.Name,
		fmt.Sprintf("%s - %s", album.Artist.Name, album.Name),
		fmt.Sprintf("%s %s", album.Artist.Name, album.Name),
	}
	results, err := s.searchLadder(ctx, c, queries, c.SearchAlbums)
	if err != nil {
		return false, err
	}

	for _, sr := range results {
		if sr.SortName != album.SortName || sr.Version != album.Version {
			continue
		}
		if sr.Artist == nil || sr.Artist.SortName != album.Artist.SortName {
			continue
		}
		if len(sr.Mappings) == 0 {
			continue
		}
		if _, err := s.UpdateAlbum(ctx, album.ID, sr, false); err != nil {
			return false, fmt.Errorf("merging matched album: %w", err)
		}
		return true, nil
	}
	return false, nil
}

// searchLadder runs queries in order and returns the first non-empty result
// set. Later, broader queries only run when narrower ones returned nothing.
func (s *Service) searchLadder(
	ctx context.Context,
	c provider.Client,
	queries []string,
	search func(context.Context, string) ([]*media.Item, error),
) ([]*media.Item, error) {
	for _, q := range queries {
		if err := s.limiters.Wait(ctx, c.Type()); err != nil {
			return nil, err
		}
		results, err := search(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("searching %s for %q: %w", c.Type(), q, err)
		}
		if len(results) > 0 {
			return results, nil
		}
	}
	return nil, nil
}

// confirmMatch fetches the provider's full artist record and merges it into
// the canonical one, which unions the new mapping into stored provenance.
func (s *Service) confirmMatch(ctx context.Context, c provider.Client, artist *media.Item, providerArtistID string) error {
	if err := s.limiters.Wait(ctx, c.Type()); err != nil {
		return err
	}
	provArtist, err := c.Artist(ctx, providerArtistID)
	if err != nil {
		return fmt.Errorf("fetching matched artist %s from %s: %w", providerArtistID, c.Type(), err)
	}
	if _, err := s.UpdateArtist(ctx, artist.ID, provArtist, false); err != nil {
		return fmt.Errorf("merging matched artist: %w", err)
	}
	return nil
}
