package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/driftwood/internal/event"
	"github.com/sydlexius/driftwood/internal/media"
)

// GetAlbum retrieves a canonical album by id.
func (s *Service) GetAlbum(ctx context.Context, id string) (*media.Item, error) {
	return s.getAlbum(ctx, s.db, id)
}

func (s *Service) getAlbum(ctx context.Context, q querier, id string) (*media.Item, error) {
	row := q.QueryRowContext(ctx, `SELECT `+albumColumns+` FROM albums WHERE id = ?`, id)
	item, err := s.scanAlbum(ctx, q, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("album %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting album by id: %w", err)
	}
	return item, nil
}

// AlbumsByArtist returns the canonical albums linked to an artist.
func (s *Service) AlbumsByArtist(ctx context.Context, artistID string) ([]*media.Item, error) {
	items, err := s.collectAlbums(ctx, s.db,
		`SELECT `+albumColumns+` FROM albums WHERE artist_id = ? ORDER BY sort_name`, artistID)
	if err != nil {
		return nil, fmt.Errorf("listing albums by artist: %w", err)
	}
	return items, nil
}

// collectAlbums runs an album query, fully draining the result set before
// resolving artist references. The single-connection pool cannot service a
// nested query while a result set is still open.
func (s *Service) collectAlbums(ctx context.Context, q querier, query string, args ...any) ([]*media.Item, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var items []*media.Item
	var artistIDs []string
	for rows.Next() {
		item, artistID, err := scanAlbumRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		artistIDs = append(artistIDs, artistID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close() //nolint:errcheck

	for i, item := range items {
		if err := s.resolveAlbumArtist(ctx, q, item, artistIDs[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// AddAlbum persists a first-seen album, merging into an existing record when
// identity lookup finds one, then attempts to link the record on every other
// registered provider. The album's Artist reference must point at a canonical
// artist. A failed match never disturbs the already-persisted record.
func (s *Service) AddAlbum(ctx context.Context, item *media.Item) (*media.Item, error) {
	item.MediaType = media.TypeAlbum
	item.EnsureSortName()
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if item.Artist == nil || item.Artist.ItemID == "" || item.Artist.Provider != "" {
		return nil, fmt.Errorf("album %q: artist reference must be canonical: %w", item.Name, ErrNotCanonical)
	}

	dbItem, err := s.insertOrMergeAlbum(ctx, item)
	if err != nil {
		return nil, err
	}

	if err := s.MatchAlbum(ctx, dbItem); err != nil {
		s.logger.Warn("matching album across providers",
			"album", dbItem.Name, "error", err)
	}

	return s.GetAlbum(ctx, dbItem.ID)
}

func (s *Service) insertOrMergeAlbum(ctx context.Context, item *media.Item) (*media.Item, error) {
	cur, err := s.findAlbum(ctx, item)
	if err != nil {
		return nil, err
	}
	if cur != nil {
		return s.UpdateAlbum(ctx, cur.ID, item, false)
	}

	if item.AlbumType == "" {
		item.AlbumType = media.AlbumTypeUnknown
	}

	now := time.Now().UTC().Format(time.RFC3339)
	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO albums (id, name, sort_name, version, album_type, artist_id, musicbrainz_id, upc, metadata, provider_mappings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id, item.Name, item.SortName, item.Version, string(item.AlbumType),
		item.Artist.ItemID, item.MusicBrainzID, item.UPC,
		marshalMetadata(item.Metadata), marshalMappings(item.Mappings),
		now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting album: %w", err)
	}
	s.logger.Debug("added album to library", "name", item.Name, "id", id)

	dbItem, err := s.GetAlbum(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(event.MediaItemAdded, dbItem)
	return dbItem, nil
}

// findAlbum resolves an incoming album to an existing record by MusicBrainz
// id, then by UPC, falling back to an exact sort-name and version scan.
func (s *Service) findAlbum(ctx context.Context, item *media.Item) (*media.Item, error) {
	if item.MusicBrainzID != "" {
		row := s.db.QueryRowContext(ctx,
			`SELECT `+albumColumns+` FROM albums WHERE musicbrainz_id = ?`, item.MusicBrainzID)
		found, err := s.scanAlbum(ctx, s.db, row)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("looking up album by musicbrainz id: %w", err)
		}
		if found != nil {
			return found, nil
		}
	}

	if item.UPC != "" {
		row := s.db.QueryRowContext(ctx,
			`SELECT `+albumColumns+` FROM albums WHERE upc = ?`, item.UPC)
		found, err := s.scanAlbum(ctx, s.db, row)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("looking up album by upc: %w", err)
		}
		if found != nil {
			return found, nil
		}
	}

	candidates, err := s.collectAlbums(ctx, s.db,
		`SELECT `+albumColumns+` FROM albums WHERE sort_name = ?`, item.SortName)
	if err != nil {
		return nil, fmt.Errorf("looking up album by sort name: %w", err)
	}
	for _, candidate := range candidates {
		if candidate.SortName == item.SortName && candidate.Version == item.Version {
			return candidate, nil
		}
	}
	return nil, nil
}

// UpdateAlbum applies overwrite or additive-merge semantics to an album
// record, mirroring UpdateArtist.
func (s *Service) UpdateAlbum(ctx context.Context, id string, item *media.Item, overwrite bool) (*media.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	cur, err := s.getAlbum(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	name, sortName, version := cur.Name, cur.SortName, cur.Version
	albumType := cur.AlbumType
	var meta map[string]string
	var mappings media.MappingSet
	var mbid, upc string

	if overwrite {
		if item.Name != "" {
			name = item.Name
		}
		if item.SortName != "" {
			sortName = item.SortName
		}
		version = item.Version
		meta = item.Metadata
		mappings = item.Mappings
		mbid = item.MusicBrainzID
		if mbid == "" {
			mbid = cur.MusicBrainzID
		}
		upc = item.UPC
		if upc == "" {
			upc = cur.UPC
		}
	} else {
		meta = mergeMetadata(cur.Metadata, item.Metadata)
		mappings = cur.Mappings.Union(item.Mappings)
		mbid = cur.MusicBrainzID
		if mbid == "" {
			mbid = item.MusicBrainzID
		}
		upc = cur.UPC
		if upc == "" {
			upc = item.UPC
		}
	}
	if item.AlbumType != "" && item.AlbumType != media.AlbumTypeUnknown {
		albumType = item.AlbumType
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, `
		UPDATE albums SET name = ?, sort_name = ?, version = ?, album_type = ?,
			musicbrainz_id = ?, upc = ?, metadata = ?, provider_mappings = ?, updated_at = ?
		WHERE id = ?
	`,
		name, sortName, version, string(albumType), mbid, upc,
		marshalMetadata(meta), marshalMappings(mappings),
		now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating album: %w", err)
	}

	dbItem, err := s.getAlbum(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing album update: %w", err)
	}

	s.logger.Debug("updated album in library", "name", dbItem.Name, "id", id)
	s.publish(event.MediaItemUpdated, dbItem)
	return dbItem, nil
}

// scanAlbum scans a single database row into a canonical album item and
// resolves its artist back-reference. Safe only after the source result set
// has been released, as with sql.Row.
func (s *Service) scanAlbum(ctx context.Context, q querier, row interface{ Scan(...any) error }) (*media.Item, error) {
	item, artistID, err := scanAlbumRow(row)
	if err != nil {
		return nil, err
	}
	if err := s.resolveAlbumArtist(ctx, q, item, artistID); err != nil {
		return nil, err
	}
	return item, nil
}

func scanAlbumRow(row interface{ Scan(...any) error }) (*media.Item, string, error) {
	var item media.Item
	var version, albumType string
	var artistID sql.NullString
	var meta, mappings string
	var createdAt, updatedAt string

	err := row.Scan(
		&item.ID, &item.Name, &item.SortName, &version, &albumType, &artistID,
		&item.MusicBrainzID, &item.UPC, &meta, &mappings, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, "", err
	}

	item.MediaType = media.TypeAlbum
	item.Version = version
	item.AlbumType = media.AlbumType(albumType)
	item.Metadata = unmarshalMetadata(meta)
	item.Mappings = unmarshalMappings(mappings)
	item.InLibrary = true
	return &item, artistID.String, nil
}

func (s *Service) resolveAlbumArtist(ctx context.Context, q querier, item *media.Item, artistID string) error {
	if artistID == "" {
		return nil
	}
	var name, sortName string
	err := q.QueryRowContext(ctx,
		`SELECT name, sort_name FROM artists WHERE id = ?`, artistID).
		Scan(&name, &sortName)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("resolving album artist: %w", err)
	}
	item.Artist = &media.ItemRef{ItemID: artistID, Name: name, SortName: sortName}
	return nil
}
