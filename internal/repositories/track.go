package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/shared"
)

const trackColumns = `id, sequence, track_id, title, artist_name, artist_id, album_id, album, src, cover, duration, language, year, created_at, updated_at, deleted_at`

// TrackRepository persists resolved [models.Track] values keyed by catalog id.
//
// At most one live row exists per catalog id; deleted rows are kept with deleted_at set.
type TrackRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.PersistedTrack] = (*TrackRepository)(nil)

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Create inserts a new [models.PersistedTrack] with a generated ID and sequence
func (r *TrackRepository) Create(track *models.PersistedTrack) error {
	sequence, err := NextSequence(r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	track.SetID(shared.GenerateID())
	track.SetSequence(sequence)

	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	t := track.Track()
	query := `
		INSERT INTO tracks (id, sequence, track_id, title, artist_name, artist_id, album_id, album, src, cover, duration, language, year, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		track.ID(), sequence, t.ID,
		t.Title, t.ArtistName, t.ArtistID, t.AlbumID, t.Album,
		t.Src, t.Cover, t.Duration, t.Language, t.Year,
		track.CreatedAt(), track.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}

	return nil
}

// Get retrieves a track by row ID, excluding soft-deleted tracks
func (r *TrackRepository) Get(id string) (*models.PersistedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByTrackID retrieves the live row for a catalog id
func (r *TrackRepository) GetByTrackID(trackID string) (*models.PersistedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE track_id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, trackID))
}

// Update rewrites the stored fields of an existing track and bumps updated_at
func (r *TrackRepository) Update(track *models.PersistedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	track.SetUpdatedAt(now)

	t := track.Track()
	query := `
		UPDATE tracks
		SET title = ?, artist_name = ?, artist_id = ?, album_id = ?, album = ?, src = ?, cover = ?,
			duration = ?, language = ?, year = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		t.Title, t.ArtistName, t.ArtistID, t.AlbumID, t.Album, t.Src, t.Cover,
		t.Duration, t.Language, t.Year, now,
		track.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}
	return affected(result, "track", track.ID())
}

// Upsert stores track under its catalog id, merging it over any live row.
func (r *TrackRepository) Upsert(track models.Track) (*models.PersistedTrack, error) {
	existing, err := r.GetByTrackID(track.ID)
	switch {
	case errors.Is(err, ErrTrackNotFound):
		persisted := models.NewPersistedTrack(0, track)
		if err := r.Create(persisted); err != nil {
			return nil, err
		}
		return persisted, nil
	case err != nil:
		return nil, err
	}

	existing.SetTrack(existing.Track().Merge(track))
	if err := r.Update(existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Delete soft-deletes a track by row ID
func (r *TrackRepository) Delete(id string) error {
	query := `UPDATE tracks SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	return affected(result, "track", id)
}

// List retrieves live tracks matching criteria.
//
// Supported keys: "artist_id", "album_id", "language" (exact) and "limit" (int).
func (r *TrackRepository) List(criteria map[string]any) ([]*models.PersistedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE deleted_at IS NULL`
	args := []any{}

	for _, key := range []string{"artist_id", "album_id", "language"} {
		if v, ok := criteria[key].(string); ok && v != "" {
			query += " AND " + key + " = ?"
			args = append(args, v)
		}
	}

	query += " ORDER BY sequence ASC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.PersistedTrack
	for rows.Next() {
		track, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// ErrTrackNotFound is returned when no live row matches a lookup.
var ErrTrackNotFound = fmt.Errorf("%w in cache", shared.ErrTrackNotFound)

func (r *TrackRepository) scanOne(row *sql.Row) (*models.PersistedTrack, error) {
	track, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTrackNotFound
	}
	return track, err
}

func (r *TrackRepository) scan(s scanner) (*models.PersistedTrack, error) {
	var (
		id, trackID          string
		sequence             int
		t                    models.Track
		createdAt, updatedAt time.Time
		deletedAt            sql.NullTime
	)

	err := s.Scan(&id, &sequence, &trackID,
		&t.Title, &t.ArtistName, &t.ArtistID, &t.AlbumID, &t.Album,
		&t.Src, &t.Cover, &t.Duration, &t.Language, &t.Year,
		&createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}
	t.ID = trackID

	track := models.NewPersistedTrack(sequence, t)
	track.SetID(id)
	track.SetCreatedAt(createdAt)
	track.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		track.SetDeletedAt(&deletedAt.Time)
	}
	return track, nil
}
