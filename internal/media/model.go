package media

import (
	"errors"
	"fmt"
)

// Type identifies a kind of media item.
type Type string

// Known media types.
const (
	TypeArtist Type = "artist"
	TypeAlbum  Type = "album"
	TypeTrack  Type = "track"
)

// AlbumType classifies an album release.
type AlbumType string

// Known album types.
const (
	AlbumTypeAlbum       AlbumType = "album"
	AlbumTypeSingle      AlbumType = "single"
	AlbumTypeEP          AlbumType = "ep"
	AlbumTypeCompilation AlbumType = "compilation"
	AlbumTypeUnknown     AlbumType = "unknown"
)

// ProviderType identifies a kind of external content provider
// (e.g. "spotify", "qobuz"). Multiple configured instances may share a type.
type ProviderType string

// ErrNoMappings is returned when an item without any provider mapping is
// submitted for persistence. Every item originates from at least one
// provider, so an empty set is a caller bug, not a runtime condition.
var ErrNoMappings = errors.New("media item has no provider mappings")

// ItemRef is a lightweight reference to another item: enough to display it
// and to fetch the full record from a provider, nothing more.
type ItemRef struct {
	ItemID     string       `json:"item_id"`
	Provider   ProviderType `json:"provider,omitempty"`
	InstanceID string       `json:"instance_id,omitempty"`
	Name       string       `json:"name"`
	SortName   string       `json:"sort_name"`
}

// Item is the single shape shared by artists, albums and tracks. An item is
// either canonical (persisted in the library, ID set, InLibrary true) or a
// transient provider result (ID empty, provenance only).
type Item struct {
	ID            string            `json:"id,omitempty"`
	MediaType     Type              `json:"media_type"`
	Name          string            `json:"name"`
	SortName      string            `json:"sort_name"`
	Version       string            `json:"version,omitempty"`
	MusicBrainzID string            `json:"musicbrainz_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Mappings      MappingSet        `json:"provider_mappings"`
	InLibrary     bool              `json:"in_library"`

	// Album only. UPC is the release barcode, a secondary identity key when
	// no MusicBrainz id is known.
	AlbumType AlbumType `json:"album_type,omitempty"`
	Artist    *ItemRef  `json:"artist,omitempty"`
	UPC       string    `json:"upc,omitempty"`

	// Track only. Album carries the full album record when resolved;
	// AlbumRef is the unresolved lightweight form. At most one is set.
	Album    *Item     `json:"album,omitempty"`
	AlbumRef *ItemRef  `json:"album_ref,omitempty"`
	Artists  []ItemRef `json:"artists,omitempty"`
}

// Canonical reports whether the item is a persisted library record.
func (i *Item) Canonical() bool { return i.ID != "" && i.InLibrary }

// URI returns the library address of a canonical item.
func (i *Item) URI() string {
	return fmt.Sprintf("library://%s/%s", i.MediaType, i.ID)
}

// Validate checks the invariants an item must satisfy before persistence.
func (i *Item) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("media item has no name")
	}
	if len(i.Mappings) == 0 {
		return fmt.Errorf("%q: %w", i.Name, ErrNoMappings)
	}
	return nil
}

// MergeKey returns the identity key used to deduplicate results across
// providers within one aggregation: equal normalized name and version means
// the same logical item.
func (i *Item) MergeKey() string {
	return "." + SortNameOf(i.Name) + "." + i.Version
}

// Ref returns a lightweight reference to the item, preferring its first
// provider mapping for addressing when the item is not canonical.
func (i *Item) Ref() ItemRef {
	ref := ItemRef{Name: i.Name, SortName: i.SortName}
	if i.Canonical() {
		ref.ItemID = i.ID
		return ref
	}
	if len(i.Mappings) > 0 {
		m := i.Mappings[0]
		ref.ItemID = m.ItemID
		ref.Provider = m.ProviderType
		ref.InstanceID = m.InstanceID
	}
	return ref
}
