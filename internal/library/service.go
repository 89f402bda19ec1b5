package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/driftwood/internal/cache"
	"github.com/sydlexius/driftwood/internal/event"
	"github.com/sydlexius/driftwood/internal/media"
	"github.com/sydlexius/driftwood/internal/metadata"
	"github.com/sydlexius/driftwood/internal/provider"
)

// ErrNotFound indicates no canonical record exists for the given id.
var ErrNotFound = errors.New("library item not found")

// ErrNotCanonical indicates an operation that requires a persisted library
// record was given a transient provider result. This is a caller bug.
var ErrNotCanonical = errors.New("item is not a canonical library record")

// artistColumns is the ordered list of columns for artist SELECT queries.
const artistColumns = `id, name, sort_name, musicbrainz_id, metadata, provider_mappings, created_at, updated_at`

// albumColumns is the ordered list of columns for album SELECT queries.
const albumColumns = `id, name, sort_name, version, album_type, artist_id, musicbrainz_id, upc, metadata, provider_mappings, created_at, updated_at`

// trackColumns is the ordered list of columns for track SELECT queries.
const trackColumns = `id, name, sort_name, version, album_id, musicbrainz_id, metadata, provider_mappings, created_at, updated_at`

// Deps are the collaborators a Service needs. Everything is passed in
// explicitly; the service owns no process-wide state.
type Deps struct {
	DB       *sql.DB
	Bus      *event.Bus
	Registry *provider.Registry
	Cache    *cache.Policy
	Enricher metadata.Enricher
	Limiters *provider.RateLimiterMap
	Logger   *slog.Logger
}

// Service owns the canonical media library: identity resolution, merge
// semantics, cross-provider matching, and cascading deletes.
type Service struct {
	db       *sql.DB
	bus      *event.Bus
	registry *provider.Registry
	cache    *cache.Policy
	enricher metadata.Enricher
	limiters *provider.RateLimiterMap
	logger   *slog.Logger
}

// NewService creates a library service.
func NewService(d Deps) *Service {
	return &Service{
		db:       d.DB,
		bus:      d.Bus,
		registry: d.Registry,
		cache:    d.Cache,
		enricher: d.Enricher,
		limiters: d.Limiters,
		logger:   d.Logger.With(slog.String("component", "library")),
	}
}

// GetArtist retrieves a canonical artist by id.
func (s *Service) GetArtist(ctx context.Context, id string) (*media.Item, error) {
	return s.getArtist(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Service) getArtist(ctx context.Context, q querier, id string) (*media.Item, error) {
	row := q.QueryRowContext(ctx, `SELECT `+artistColumns+` FROM artists WHERE id = ?`, id)
	item, err := scanArtist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artist %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting artist by id: %w", err)
	}
	return item, nil
}

// ListArtists returns all canonical artists ordered by sort name.
func (s *Service) ListArtists(ctx context.Context) ([]*media.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+artistColumns+` FROM artists ORDER BY sort_name`)
	if err != nil {
		return nil, fmt.Errorf("listing artists: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var items []*media.Item
	for rows.Next() {
		item, err := scanArtist(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning artist row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// AddArtist enriches and persists a first-seen artist, merging into an
// existing record when identity lookup finds one, then attempts to link the
// record on every other registered provider. A failed match never disturbs
// the already-persisted record.
func (s *Service) AddArtist(ctx context.Context, item *media.Item) (*media.Item, error) {
	item.MediaType = media.TypeArtist
	item.EnsureSortName()
	if err := item.Validate(); err != nil {
		return nil, err
	}

	if err := s.enricher.Enrich(ctx, item); err != nil {
		return nil, fmt.Errorf("enriching artist %q: %w", item.Name, err)
	}

	dbItem, err := s.insertOrMergeArtist(ctx, item)
	if err != nil {
		return nil, err
	}

	if err := s.MatchArtist(ctx, dbItem); err != nil {
		s.logger.Warn("matching artist across providers",
			"artist", dbItem.Name, "error", err)
	}

	return s.GetArtist(ctx, dbItem.ID)
}

// insertOrMergeArtist looks up an existing record by MusicBrainz id, falling
// back to a sort-name scan, and merges additively into it; otherwise it
// inserts a new record and emits a creation event.
func (s *Service) insertOrMergeArtist(ctx context.Context, item *media.Item) (*media.Item, error) {
	var cur *media.Item

	if item.MusicBrainzID != "" {
		row := s.db.QueryRowContext(ctx,
			`SELECT `+artistColumns+` FROM artists WHERE musicbrainz_id = ?`, item.MusicBrainzID)
		found, err := scanArtist(row)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("looking up artist by musicbrainz id: %w", err)
		}
		cur = found
	}

	if cur == nil {
		// Name-based fallback. Matching by sort name can theoretically
		// collide, but the chance is small enough that grabbing the global
		// id upfront is not worth the extra provider round trips.
		found, err := s.findArtistBySortName(ctx, item.SortName)
		if err != nil {
			return nil, err
		}
		cur = found
	}

	if cur != nil {
		return s.UpdateArtist(ctx, cur.ID, item, false)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artists (id, name, sort_name, musicbrainz_id, metadata, provider_mappings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id, item.Name, item.SortName, item.MusicBrainzID,
		marshalMetadata(item.Metadata), marshalMappings(item.Mappings),
		now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting artist: %w", err)
	}
	s.logger.Debug("added artist to library", "name", item.Name, "id", id)

	dbItem, err := s.GetArtist(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(event.MediaItemAdded, dbItem)
	return dbItem, nil
}

// findArtistBySortName scans candidates sharing a sort name and returns the
// first exact match, fully draining the result set so the single connection
// is free for the caller's next statement.
func (s *Service) findArtistBySortName(ctx context.Context, sortName string) (*media.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+artistColumns+` FROM artists WHERE sort_name = ?`, sortName)
	if err != nil {
		return nil, fmt.Errorf("looking up artist by sort name: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var found *media.Item
	for rows.Next() {
		candidate, err := scanArtist(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning artist candidate: %w", err)
		}
		if found == nil && candidate.SortName == sortName {
			found = candidate
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating artist candidates: %w", err)
	}
	return found, nil
}

// UpdateArtist updates a canonical artist record. With overwrite false the
// update is additive: metadata merges key-by-key, provenance unions, and
// the stored name and sort name are retained. With overwrite true metadata
// and provenance are replaced wholesale.
func (s *Service) UpdateArtist(ctx context.Context, id string, item *media.Item, overwrite bool) (*media.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	cur, err := s.getArtist(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	name, sortName := cur.Name, cur.SortName
	var meta map[string]string
	var mappings media.MappingSet
	var mbid string

	if overwrite {
		if item.Name != "" {
			name = item.Name
		}
		if item.SortName != "" {
			sortName = item.SortName
		}
		meta = item.Metadata
		mappings = item.Mappings
		mbid = item.MusicBrainzID
		if mbid == "" {
			mbid = cur.MusicBrainzID
		}
	} else {
		meta = mergeMetadata(cur.Metadata, item.Metadata)
		mappings = cur.Mappings.Union(item.Mappings)
		mbid = cur.MusicBrainzID
		if mbid == "" {
			mbid = item.MusicBrainzID
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, `
		UPDATE artists SET name = ?, sort_name = ?, musicbrainz_id = ?,
			metadata = ?, provider_mappings = ?, updated_at = ?
		WHERE id = ?
	`,
		name, sortName, mbid,
		marshalMetadata(meta), marshalMappings(mappings),
		now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating artist: %w", err)
	}

	dbItem, err := s.getArtist(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing artist update: %w", err)
	}

	s.logger.Debug("updated artist in library", "name", dbItem.Name, "id", id)
	s.publish(event.MediaItemUpdated, dbItem)
	return dbItem, nil
}

// DeleteArtist removes a canonical artist and every dependent record:
// tracks crediting the artist or belonging to its albums, then the albums,
// then the artist row, all in one transaction. An unknown id is a not-found
// failure, not a no-op.
func (s *Service) DeleteArtist(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	item, err := s.getArtist(ctx, tx, id)
	if err != nil {
		return err
	}

	// Dependent tracks join through track_artists (credits) or through the
	// artist's albums; both are relational lookups, never matches against
	// serialized provenance.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM tracks WHERE id IN (SELECT track_id FROM track_artists WHERE artist_id = ?)
			OR album_id IN (SELECT id FROM albums WHERE artist_id = ?)
	`, id, id); err != nil {
		return fmt.Errorf("deleting dependent tracks: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM albums WHERE artist_id = ?`, id); err != nil {
		return fmt.Errorf("deleting dependent albums: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM artists WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting artist: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing artist delete: %w", err)
	}

	s.logger.Debug("deleted artist from library", "id", id)
	s.publish(event.MediaItemRemoved, item)
	return nil
}

// publish emits a lifecycle event carrying the item snapshot.
func (s *Service) publish(t event.Type, item *media.Item) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.Event{
		Type:      t,
		ObjectRef: item.URI(),
		Data: map[string]any{
			"id":         item.ID,
			"media_type": string(item.MediaType),
			"name":       item.Name,
			"item":       item,
		},
	})
}

// scanArtist scans a database row into a canonical artist item.
func scanArtist(row interface{ Scan(...any) error }) (*media.Item, error) {
	var item media.Item
	var meta, mappings string
	var createdAt, updatedAt string

	err := row.Scan(
		&item.ID, &item.Name, &item.SortName, &item.MusicBrainzID,
		&meta, &mappings, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.MediaType = media.TypeArtist
	item.Metadata = unmarshalMetadata(meta)
	item.Mappings = unmarshalMappings(mappings)
	item.InLibrary = true
	return &item, nil
}

// mergeMetadata merges incoming keys over existing ones; incoming values win
// on conflict, existing keys survive otherwise.
func mergeMetadata(existing, incoming map[string]string) map[string]string {
	if len(existing) == 0 && len(incoming) == 0 {
		return nil
	}
	out := make(map[string]string, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}

// marshalMetadata encodes a metadata map as a JSON object string.
func marshalMetadata(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	data, _ := json.Marshal(m)
	return string(data)
}

// unmarshalMetadata decodes a JSON object string into a metadata map.
func unmarshalMetadata(data string) map[string]string {
	if data == "" || data == "{}" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil
	}
	return m
}

// marshalMappings encodes a mapping set as a JSON array string.
func marshalMappings(s media.MappingSet) string {
	if len(s) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(s)
	return string(data)
}

// unmarshalMappings decodes a JSON array string into a mapping set.
func unmarshalMappings(data string) media.MappingSet {
	if data == "" || data == "[]" {
		return nil
	}
	var s media.MappingSet
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil
	}
	return s
}
