package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/camtrap/camtrap-agent/internal/analytics"
	"github.com/camtrap/camtrap-agent/internal/sequence"
)

type ObservationFilter struct {
	DeploymentID string
	Species      []string
	From         *time.Time
	To           *time.Time
}

type Repository interface {
	CreateDeployment(ctx context.Context, d *Deployment) error
	GetDeployment(ctx context.Context, id string) (*Deployment, error)
	GetDeploymentByPath(ctx context.Context, path string) (*Deployment, error)
	ListDeployments(ctx context.Context) ([]*Deployment, error)
	DeleteDeployment(ctx context.Context, id string) error
	UpdateDeploymentPresent(ctx context.Context, id string, present bool) error

	UpsertMedia(ctx context.Context, m *Media) error
	GetMedia(ctx context.Context, id string) (*Media, error)
	CountMedia(ctx context.Context) (int, error)
	TimedMedia(ctx context.Context, after *time.Time, afterID string, limit int) ([]sequence.Item, error)
	UntimedMedia(ctx context.Context, offset, limit int) ([]sequence.Item, error)

	CreateObservations(ctx context.Context, obs []Observation) error
	ObservationsFiltered(ctx context.Context, f ObservationFilter) ([]analytics.Observation, error)

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress int) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateDeployment(ctx context.Context, d *Deployment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO deployments (id, name, path, latitude, longitude, location_name, present, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.Name, d.Path, d.Latitude, d.Longitude, nullString(d.LocationName), boolToInt(d.Present), formatTime(d.CreatedAt))
	return err
}

func (r *SQLiteRepository) GetDeployment(ctx context.Context, id string) (*Deployment, error) {
	return r.scanDeployment(r.db.QueryRowContext(ctx, `
		SELECT id, name, path, latitude, longitude, location_name, present, created_at
		FROM deployments WHERE id = ?
	`, id))
}

func (r *SQLiteRepository) GetDeploymentByPath(ctx context.Context, path string) (*Deployment, error) {
	return r.scanDeployment(r.db.QueryRowContext(ctx, `
		SELECT id, name, path, latitude, longitude, location_name, present, created_at
		FROM deployments WHERE path = ?
	`, path))
}

func (r *SQLiteRepository) scanDeployment(row *sql.Row) (*Deployment, error) {
	var d Deployment
	var present int
	var createdAt string
	var locationName sql.NullString

	err := row.Scan(&d.ID, &d.Name, &d.Path, &d.Latitude, &d.Longitude, &locationName, &present, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	d.Present = present == 1
	d.LocationName = locationName.String
	d.CreatedAt = parseTime(createdAt)
	return &d, nil
}

func (r *SQLiteRepository) ListDeployments(ctx context.Context) ([]*Deployment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, path, latitude, longitude, location_name, present, created_at
		FROM deployments ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deployments []*Deployment
	for rows.Next() {
		var d Deployment
		var present int
		var createdAt string
		var locationName sql.NullString

		if err := rows.Scan(&d.ID, &d.Name, &d.Path, &d.Latitude, &d.Longitude, &locationName, &present, &createdAt); err != nil {
			return nil, err
		}
		d.Present = present == 1
		d.LocationName = locationName.String
		d.CreatedAt = parseTime(createdAt)
		deployments = append(deployments, &d)
	}
	return deployments, rows.Err()
}

func (r *SQLiteRepository) DeleteDeployment(ctx context.Context, id string) error {
	// ON DELETE CASCADE removes the deployment's media and observations.
	_, err := r.db.ExecContext(ctx, `DELETE FROM deployments WHERE id = ?`, id)
	return err
}

func (r *SQLiteRepository) UpdateDeploymentPresent(ctx context.Context, id string, present bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE deployments SET present = ? WHERE id = ?`, boolToInt(present), id)
	return err
}

func (r *SQLiteRepository) UpsertMedia(ctx context.Context, m *Media) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO media (id, deployment_id, path, filename, timestamp, media_type, event_id, file_size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			timestamp = excluded.timestamp,
			media_type = excluded.media_type,
			event_id = excluded.event_id,
			file_size = excluded.file_size
	`, m.ID, m.DeploymentID, m.Path, m.Filename, formatTimePtr(m.Timestamp), m.MediaType,
		nullString(m.EventID), m.FileSize, formatTime(m.CreatedAt))
	return err
}

func (r *SQLiteRepository) GetMedia(ctx context.Context, id string) (*Media, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, deployment_id, path, filename, timestamp, media_type, event_id, file_size, created_at
		FROM media WHERE id = ?
	`, id)

	var m Media
	var timestamp, eventID sql.NullString
	var createdAt string
	err := row.Scan(&m.ID, &m.DeploymentID, &m.Path, &m.Filename, &timestamp, &m.MediaType, &eventID, &m.FileSize, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.Timestamp = parseTimePtr(timestamp)
	m.EventID = eventID.String
	m.CreatedAt = parseTime(createdAt)
	return &m, nil
}

func (r *SQLiteRepository) CountMedia(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media`).Scan(&count)
	return count, err
}

// TimedMedia scans timestamped media ascending by (timestamp, id), strictly
// after the given position. Timestamps are stored as UTC RFC3339 text, which
// sorts correctly as a string.
func (r *SQLiteRepository) TimedMedia(ctx context.Context, after *time.Time, afterID string, limit int) ([]sequence.Item, error) {
	query := `
		SELECT id, deployment_id, path, filename, timestamp, media_type, event_id, file_size, created_at
		FROM media WHERE timestamp IS NOT NULL
	`
	var args []any
	if after != nil {
		query += ` AND (timestamp > ? OR (timestamp = ? AND id > ?))`
		pos := formatTime(*after)
		args = append(args, pos, pos, afterID)
	}
	query += ` ORDER BY timestamp ASC, id ASC LIMIT ?`
	args = append(args, limit)

	return r.queryMediaItems(ctx, query, args...)
}

// UntimedMedia scans media without a timestamp in a stable id order.
func (r *SQLiteRepository) UntimedMedia(ctx context.Context, offset, limit int) ([]sequence.Item, error) {
	return r.queryMediaItems(ctx, `
		SELECT id, deployment_id, path, filename, timestamp, media_type, event_id, file_size, created_at
		FROM media WHERE timestamp IS NULL
		ORDER BY id ASC LIMIT ? OFFSET ?
	`, limit, offset)
}

func (r *SQLiteRepository) queryMediaItems(ctx context.Context, query string, args ...any) ([]sequence.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []sequence.Item
	for rows.Next() {
		var m Media
		var timestamp, eventID sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.DeploymentID, &m.Path, &m.Filename, &timestamp, &m.MediaType, &eventID, &m.FileSize, &createdAt); err != nil {
			return nil, err
		}
		m.Timestamp = parseTimePtr(timestamp)
		m.EventID = eventID.String
		m.CreatedAt = parseTime(createdAt)
		items = append(items, m)
	}
	return items, rows.Err()
}

func (r *SQLiteRepository) CreateObservations(ctx context.Context, obs []Observation) error {
	if len(obs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (id, media_id, scientific_name, count, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range obs {
		if _, err := stmt.ExecContext(ctx, o.ID, o.MediaID, nullString(o.ScientificName), o.Count, o.Confidence, formatTime(o.CreatedAt)); err != nil {
			return fmt.Errorf("insert observation %s: %w", o.ID, err)
		}
	}
	return tx.Commit()
}

// ObservationsFiltered joins observations with their media and deployment and
// converts rows into the engine's typed records at this boundary: explicit
// nullable fields, with the hour and week-start fields precomputed from the
// capture timestamp.
func (r *SQLiteRepository) ObservationsFiltered(ctx context.Context, f ObservationFilter) ([]analytics.Observation, error) {
	query := `
		SELECT o.id, m.deployment_id, m.media_type, m.event_id, m.timestamp,
		       o.scientific_name, o.count, d.latitude, d.longitude, d.location_name
		FROM observations o
		JOIN media m ON m.id = o.media_id
		LEFT JOIN deployments d ON d.id = m.deployment_id
		WHERE 1=1
	`
	var args []any
	if f.DeploymentID != "" {
		query += ` AND m.deployment_id = ?`
		args = append(args, f.DeploymentID)
	}
	if len(f.Species) > 0 {
		query += ` AND o.scientific_name IN (?` + strings.Repeat(",?", len(f.Species)-1) + `)`
		for _, s := range f.Species {
			args = append(args, s)
		}
	}
	if f.From != nil {
		query += ` AND m.timestamp >= ?`
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		query += ` AND m.timestamp < ?`
		args = append(args, formatTime(*f.To))
	}
	query += ` ORDER BY m.timestamp ASC, o.id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []analytics.Observation
	for rows.Next() {
		var o analytics.Observation
		var eventID, timestamp, name, locationName sql.NullString
		var count sql.NullInt64

		if err := rows.Scan(&o.ID, &o.DeploymentID, &o.MediaType, &eventID, &timestamp,
			&name, &count, &o.Latitude, &o.Longitude, &locationName); err != nil {
			return nil, err
		}

		o.EventID = eventID.String
		o.ScientificName = name.String
		o.LocationName = locationName.String
		o.Timestamp = parseTimePtr(timestamp)
		if count.Valid {
			c := int(count.Int64)
			o.Count = &c
		}
		if o.Timestamp != nil {
			hour := o.Timestamp.Hour()
			week := analytics.WeekStartOf(*o.Timestamp)
			o.Hour = &hour
			o.WeekStart = &week
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateJob(ctx context.Context, job *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, status, deployment_id, progress, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.Type, job.Status, nullString(job.DeploymentID), job.Progress, nullString(job.Error),
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, type, status, deployment_id, progress, error, created_at, updated_at
		FROM jobs WHERE id = ?
	`, id)

	job, err := scanJob(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	return r.queryJobs(ctx, `
		SELECT id, type, status, deployment_id, progress, error, created_at, updated_at
		FROM jobs ORDER BY created_at DESC LIMIT ?
	`, limit)
}

func (r *SQLiteRepository) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	return r.queryJobs(ctx, `
		SELECT id, type, status, deployment_id, progress, error, created_at, updated_at
		FROM jobs WHERE status = ? ORDER BY created_at ASC
	`, JobStatusPending)
}

func (r *SQLiteRepository) queryJobs(ctx context.Context, query string, args ...any) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(scan func(...any) error) (*Job, error) {
	var j Job
	var deploymentID, errMsg sql.NullString
	var createdAt, updatedAt string

	if err := scan(&j.ID, &j.Type, &j.Status, &deploymentID, &j.Progress, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	j.DeploymentID = deploymentID.String
	j.Error = errMsg.String
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	return &j, nil
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ?
	`, progress, formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}
