package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/sydlexius/driftwood/internal/media"
)

// Known provider types.
const (
	TypeSpotify media.ProviderType = "spotify"
	TypeQobuz   media.ProviderType = "qobuz"
	TypeTidal   media.ProviderType = "tidal"
	TypeFile    media.ProviderType = "file"
)

// Client is the capability contract every content provider adapter
// implements. A client is one configured account/instance of a provider
// type; several instances may share a type.
type Client interface {
	// Type returns the provider type this client belongs to.
	Type() media.ProviderType

	// InstanceID uniquely identifies this configured instance.
	InstanceID() string

	// SupportsMediaType reports whether the provider serves this media kind.
	SupportsMediaType(t media.Type) bool

	// TopTracks returns the most popular tracks for an artist, by the
	// provider's own artist id.
	TopTracks(ctx context.Context, artistID string) ([]*media.Item, error)

	// ArtistAlbums returns the albums of an artist, by the provider's own
	// artist id.
	ArtistAlbums(ctx context.Context, artistID string) ([]*media.Item, error)

	// SearchTracks searches the provider's track catalog.
	SearchTracks(ctx context.Context, query string) ([]*media.Item, error)

	// SearchAlbums searches the provider's album catalog.
	SearchAlbums(ctx context.Context, query string) ([]*media.Item, error)

	// Artist fetches the full artist record by the provider's own id.
	Artist(ctx context.Context, artistID string) (*media.Item, error)

	// Track fetches the full track record by the provider's own id.
	Track(ctx context.Context, trackID string) (*media.Item, error)
}

// ErrProviderUnavailable indicates a transient failure (rate-limited,
// timeout, server error).
type ErrProviderUnavailable struct {
	Provider media.ProviderType
	Cause    error
	// RetryAfter is the wait the provider asked for, when known.
	RetryAfter time.Duration
}

func (e *ErrProviderUnavailable) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Cause)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Cause }

// ErrItemNotFound indicates the provider has no data for the requested id.
type ErrItemNotFound struct {
	Provider media.ProviderType
	ID       string
}

func (e *ErrItemNotFound) Error() string {
	return fmt.Sprintf("provider %s: item %s not found", e.Provider, e.ID)
}
