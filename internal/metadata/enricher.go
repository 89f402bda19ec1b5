package metadata

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sydlexius/driftwood/internal/media"
	"github.com/sydlexius/driftwood/internal/provider"
)

// Enricher populates an item's global identifier and extra metadata before
// its first persistence.
type Enricher interface {
	Enrich(ctx context.Context, item *media.Item) error
}

// EnricherFunc adapts a function to the Enricher interface.
type EnricherFunc func(ctx context.Context, item *media.Item) error

// Enrich calls f.
func (f EnricherFunc) Enrich(ctx context.Context, item *media.Item) error {
	return f(ctx, item)
}

// ProviderEnricher fills a missing MusicBrainz id by asking the item's own
// linked providers for their full record. Absence is not a failure; only
// transport errors propagate.
type ProviderEnricher struct {
	registry *provider.Registry
	limiters *provider.RateLimiterMap
	logger   *slog.Logger
}

// NewProviderEnricher creates a ProviderEnricher.
func NewProviderEnricher(registry *provider.Registry, limiters *provider.RateLimiterMap, logger *slog.Logger) *ProviderEnricher {
	return &ProviderEnricher{
		registry: registry,
		limiters: limiters,
		logger:   logger.With(slog.String("component", "enricher")),
	}
}

// Enrich backfills MusicBrainzID and missing metadata keys from the first
// linked provider that returns a full record carrying them.
func (e *ProviderEnricher) Enrich(ctx context.Context, item *media.Item) error {
	if item.MusicBrainzID != "" {
		return nil
	}

	for _, m := range item.Mappings {
		c := e.registry.Get(m.InstanceID)
		if c == nil {
			continue
		}
		if err := e.limiters.Wait(ctx, m.ProviderType); err != nil {
			return err
		}

		full, err := e.fetch(ctx, c, item.MediaType, m.ItemID)
		if err != nil {
			var notFound *provider.ErrItemNotFound
			if errors.As(err, &notFound) {
				continue
			}
			return err
		}
		if full == nil {
			continue
		}

		if full.MusicBrainzID != "" {
			item.MusicBrainzID = full.MusicBrainzID
		}
		for k, v := range full.Metadata {
			if item.Metadata == nil {
				item.Metadata = make(map[string]string)
			}
			if _, ok := item.Metadata[k]; !ok {
				item.Metadata[k] = v
			}
		}
		if item.MusicBrainzID != "" {
			return nil
		}
	}

	if item.MusicBrainzID == "" {
		e.logger.Debug("no global id found for item", "name", item.Name, "media_type", string(item.MediaType))
	}
	return nil
}

func (e *ProviderEnricher) fetch(ctx context.Context, c provider.Client, t media.Type, itemID string) (*media.Item, error) {
	switch t {
	case media.TypeArtist:
		return c.Artist(ctx, itemID)
	case media.TypeTrack:
		return c.Track(ctx, itemID)
	default:
		// No full-record capability for this kind; nothing to backfill.
		return nil, nil
	}
}
