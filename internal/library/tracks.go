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

// GetTrack retrieves a canonical track by id, with its album reference and
// credited artists resolved.
func (s *Service) GetTrack(ctx context.Context, id string) (*media.Item, error) {
	return s.getTrack(ctx, s.db, id)
}

func (s *Service) getTrack(ctx context.Context, q querier, id string) (*media.Item, error) {
	row := q.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id)
	item, err := s.scanTrack(ctx, q, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("track %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting track by id: %w", err)
	}
	return item, nil
}

// TracksByArtist returns the canonical tracks crediting an artist.
func (s *Service) TracksByArtist(ctx context.Context, artistID string) ([]*media.Item, error) {
	items, err := s.collectTracks(ctx, s.db, `
		SELECT `+trackColumns+` FROM tracks
		WHERE id IN (SELECT track_id FROM track_artists WHERE artist_id = ?)
		ORDER BY sort_name
	`, artistID)
	if err != nil {
		return nil, fmt.Errorf("listing tracks by artist: %w", err)
	}
	return items, nil
}

// collectTracks runs a track query, fully draining the result set before
// resolving album and artist references. The single-connection pool cannot
// service a nested query while a result set is still open.
func (s *Service) collectTracks(ctx context.Context, q querier, query string, args ...any) ([]*media.Item, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var items []*media.Item
	var albumIDs []string
	for rows.Next() {
		item, albumID, err := scanTrackRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		albumIDs = append(albumIDs, albumID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close() //nolint:errcheck

	for i, item := range items {
		if err := s.resolveTrackRefs(ctx, q, item, albumIDs[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// AddTrack persists a first-seen track, merging into an existing record when
// identity lookup finds one. Credited artists with canonical ids are linked
// through the track_artists join table.
func (s *Service) AddTrack(ctx context.Context, item *media.Item) (*media.Item, error) {
	item.MediaType = media.TypeTrack
	item.EnsureSortName()
	if err := item.Validate(); err != nil {
		return nil, err
	}

	cur, err := s.findTrack(ctx, item)
	if err != nil {
		return nil, err
	}
	if cur != nil {
		return s.UpdateTrack(ctx, cur.ID, item, false)
	}

	var albumID any
	if item.Album != nil && item.Album.ID != "" {
		albumID = item.Album.ID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC().Format(time.RFC3339)
	id := uuid.New().String()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tracks (id, name, sort_name, version, album_id, musicbrainz_id, metadata, provider_mappings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id, item.Name, item.SortName, item.Version, albumID, item.MusicBrainzID,
		marshalMetadata(item.Metadata), marshalMappings(item.Mappings),
		now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting track: %w", err)
	}

	for _, artist := range item.Artists {
		if artist.ItemID == "" || artist.Provider != "" {
			continue
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO track_artists (track_id, artist_id) VALUES (?, ?)`,
			id, artist.ItemID)
		if err != nil {
			return nil, fmt.Errorf("linking track artist: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing track insert: %w", err)
	}
	s.logger.Debug("added track to library", "name", item.Name, "id", id)

	dbItem, err := s.GetTrack(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(event.MediaItemAdded, dbItem)
	return dbItem, nil
}

// findTrack resolves an incoming track to an existing record by MusicBrainz
// id, falling back to an exact sort-name and version scan.
func (s *Service) findTrack(ctx context.Context, item *media.Item) (*media.Item, error) {
	if item.MusicBrainzID != "" {
		row := s.db.QueryRowContext(ctx,
			`SELECT `+trackColumns+` FROM tracks WHERE musicbrainz_id = ?`, item.MusicBrainzID)
		found, err := s.scanTrack(ctx, s.db, row)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("looking up track by musicbrainz id: %w", err)
		}
		if found != nil {
			return found, nil
		}
	}

	candidates, err := s.collectTracks(ctx, s.db,
		`SELECT `+trackColumns+` FROM tracks WHERE sort_name = ?`, item.SortName)
	if err != nil {
		return nil, fmt.Errorf("looking up track by sort name: %w", err)
	}
	for _, candidate := range candidates {
		if candidate.SortName == item.SortName && candidate.Version == item.Version {
			return candidate, nil
		}
	}
	return nil, nil
}

// UpdateTrack applies overwrite or additive-merge semantics to a track
// record. Artist credits are additive in both modes.
func (s *Service) UpdateTrack(ctx context.Context, id string, item *media.Item, overwrite bool) (*media.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	cur, err := s.getTrack(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	name, sortName, version := cur.Name, cur.SortName, cur.Version
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
		version = item.Version
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
		UPDATE tracks SET name = ?, sort_name = ?, version = ?,
			musicbrainz_id = ?, metadata = ?, provider_mappings = ?, updated_at = ?
		WHERE id = ?
	`,
		name, sortName, version, mbid,
		marshalMetadata(meta), marshalMappings(mappings),
		now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating track: %w", err)
	}

	for _, artist := range item.Artists {
		if artist.ItemID == "" || artist.Provider != "" {
			continue
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO track_artists (track_id, artist_id) VALUES (?, ?)`,
			id, artist.ItemID)
		if err != nil {
			return nil, fmt.Errorf("linking track artist: %w", err)
		}
	}

	dbItem, err := s.getTrack(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing track update: %w", err)
	}

	s.logger.Debug("updated track in library", "name", dbItem.Name, "id", id)
	s.publish(event.MediaItemUpdated, dbItem)
	return dbItem, nil
}

// scanTrack scans a single database row into a canonical track item and
// resolves its references. Safe only after the source result set has been
// released, as with sql.Row.
func (s *Service) scanTrack(ctx context.Context, q querier, row interface{ Scan(...any) error }) (*media.Item, error) {
	item, albumID, err := scanTrackRow(row)
	if err != nil {
		return nil, err
	}
	if err := s.resolveTrackRefs(ctx, q, item, albumID); err != nil {
		return nil, err
	}
	return item, nil
}

func scanTrackRow(row interface{ Scan(...any) error }) (*media.Item, string, error) {
	var item media.Item
	var version string
	var albumID sql.NullString
	var meta, mappings string
	var createdAt, updatedAt string

	err := row.Scan(
		&item.ID, &item.Name, &item.SortName, &version, &albumID,
		&item.MusicBrainzID, &meta, &mappings, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, "", err
	}

	item.MediaType = media.TypeTrack
	item.Version = version
	item.Metadata = unmarshalMetadata(meta)
	item.Mappings = unmarshalMappings(mappings)
	item.InLibrary = true
	return &item, albumID.String, nil
}

func (s *Service) resolveTrackRefs(ctx context.Context, q querier, item *media.Item, albumID string) error {
	if albumID != "" {
		var name, sortName string
		err := q.QueryRowContext(ctx,
			`SELECT name, sort_name FROM albums WHERE id = ?`, albumID).
			Scan(&name, &sortName)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("resolving track album: %w", err)
		}
		item.AlbumRef = &media.ItemRef{ItemID: albumID, Name: name, SortName: sortName}
	}

	rows, err := q.QueryContext(ctx, `
		SELECT a.id, a.name, a.sort_name FROM artists a
		JOIN track_artists ta ON ta.artist_id = a.id
		WHERE ta.track_id = ?
		ORDER BY a.sort_name
	`, item.ID)
	if err != nil {
		return fmt.Errorf("resolving track artists: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	for rows.Next() {
		var ref media.ItemRef
		if err := rows.Scan(&ref.ItemID, &ref.Name, &ref.SortName); err != nil {
			return fmt.Errorf("scanning track artist: %w", err)
		}
		item.Artists = append(item.Artists, ref)
	}
	return rows.Err()
}
