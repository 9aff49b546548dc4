package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/shared"
)

const downloadColumns = `id, sequence, track_id, name, path, status, tagged, size_bytes, error, created_at, updated_at`

// DownloadRepository persists the export history.
type DownloadRepository struct {
	db *sql.DB
}

var _ models.Log[*models.PersistedDownload] = (*DownloadRepository)(nil)

// NewDownloadRepository creates a new DownloadRepository with the given database connection
func NewDownloadRepository(db *sql.DB) *DownloadRepository {
	return &DownloadRepository{db: db}
}

// Create inserts a history entry with a generated ID and sequence
func (r *DownloadRepository) Create(d *models.PersistedDownload) error {
	sequence, err := NextSequence(r.db, "downloads")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	d.SetID(shared.GenerateID())
	d.SetSequence(sequence)

	if err := d.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO downloads (` + downloadColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		d.ID(), sequence, d.TrackID(), d.Name(), d.Path(), string(d.Status()),
		d.Tagged(), d.SizeBytes(), d.Error(), d.CreatedAt(), d.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert download: %w", err)
	}
	return nil
}

// RecordDownload writes the terminal state of an export job.
func (r *DownloadRepository) RecordDownload(job models.DownloadJob, tagged bool, sizeBytes int64) error {
	if job.Active() {
		return fmt.Errorf("%w: download %s has not finished", shared.ErrInvalidInput, job.ID)
	}
	return r.Create(models.NewPersistedDownload(0, job, tagged, sizeBytes))
}

// Get retrieves a history entry by ID
func (r *DownloadRepository) Get(id string) (*models.PersistedDownload, error) {
	query := `SELECT ` + downloadColumns + ` FROM downloads WHERE id = ?`

	d, err := r.scan(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("download not found: %s", id)
	}
	return d, err
}

// List returns history entries newest first.
//
// Supported keys: "track_id", "status" (exact) and "limit" (int).
func (r *DownloadRepository) List(criteria map[string]any) ([]*models.PersistedDownload, error) {
	query := `SELECT ` + downloadColumns + ` FROM downloads WHERE 1 = 1`
	args := []any{}

	if trackID, ok := criteria["track_id"].(string); ok && trackID != "" {
		query += " AND track_id = ?"
		args = append(args, trackID)
	}

	switch status := criteria["status"].(type) {
	case models.DownloadStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	defer rows.Close()

	var downloads []*models.PersistedDownload
	for rows.Next() {
		d, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		downloads = append(downloads, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return downloads, nil
}

func (r *DownloadRepository) scan(s scanner) (*models.PersistedDownload, error) {
	var (
		id, trackID, name, path, status, errMsg string
		sequence                                int
		tagged                                  bool
		sizeBytes                               int64
		createdAt, updatedAt                    time.Time
	)

	err := s.Scan(&id, &sequence, &trackID, &name, &path, &status, &tagged, &sizeBytes, &errMsg, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan download: %w", err)
	}

	job := models.DownloadJob{
		TrackID: trackID,
		Name:    name,
		Path:    path,
		Error:   errMsg,
		Done:    status == string(models.DownloadDone),
		Failed:  status == string(models.DownloadFailed),
	}

	d := models.NewPersistedDownload(sequence, job, tagged, sizeBytes)
	d.SetID(id)
	d.SetCreatedAt(createdAt)
	d.SetUpdatedAt(updatedAt)
	return d, nil
}
