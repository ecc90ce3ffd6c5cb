package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// GapSecondsKey is the config row holding the study's sequence gap threshold.
// The value 0 selects event-ID grouping instead of gap grouping.
const GapSecondsKey = "gap_seconds"

// Cameras with an unset clock stamp files with a default date; modification
// times before this are treated as unknown capture times.
var earliestPlausibleCapture = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

type CatalogService interface {
	AddDeployment(ctx context.Context, path, name string, lat, lng *float64, locationName string) (*Deployment, error)
	RemoveDeployment(ctx context.Context, id string) error
	GetDeployments(ctx context.Context) ([]*Deployment, error)
	GetDeployment(ctx context.Context, id string) (*Deployment, error)
	CountMedia(ctx context.Context) (int, error)
	ScanDeployment(ctx context.Context, deploymentID string) (*Job, error)
	ExecuteScan(ctx context.Context, jobID, deploymentID, path string) error
	RecordObservations(ctx context.Context, obs []Observation) error
	GapSeconds(ctx context.Context) (int, error)
	SetGapSeconds(ctx context.Context, secs int) error
}

type Service struct {
	repo       Repository
	defaultGap int
	logger     *slog.Logger
}

func NewService(repo Repository, defaultGapSeconds int, logger *slog.Logger) *Service {
	return &Service{repo: repo, defaultGap: defaultGapSeconds, logger: logger}
}

func (s *Service) AddDeployment(ctx context.Context, path, name string, lat, lng *float64, locationName string) (*Deployment, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory")
	}

	existing, err := s.repo.GetDeploymentByPath(ctx, absPath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if name == "" {
		name = filepath.Base(absPath)
	}

	d := &Deployment{
		ID:           NewID(),
		Name:         name,
		Path:         absPath,
		Latitude:     lat,
		Longitude:    lng,
		LocationName: locationName,
		Present:      true,
		CreatedAt:    time.Now(),
	}

	if err := s.repo.CreateDeployment(ctx, d); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("deployment added", "deployment_id", d.ID, "path", absPath)
	}
	return d, nil
}

func (s *Service) RemoveDeployment(ctx context.Context, id string) error {
	return s.repo.DeleteDeployment(ctx, id)
}

func (s *Service) GetDeployments(ctx context.Context) ([]*Deployment, error) {
	return s.repo.ListDeployments(ctx)
}

func (s *Service) GetDeployment(ctx context.Context, id string) (*Deployment, error) {
	return s.repo.GetDeployment(ctx, id)
}

func (s *Service) CountMedia(ctx context.Context) (int, error) {
	return s.repo.CountMedia(ctx)
}

func (s *Service) ScanDeployment(ctx context.Context, deploymentID string) (*Job, error) {
	d, err := s.repo.GetDeployment(ctx, deploymentID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("deployment not found")
	}

	now := time.Now()
	job := &Job{
		ID:           NewID(),
		Type:         JobTypeScan,
		Status:       JobStatusPending,
		DeploymentID: deploymentID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("scan job created", "job_id", job.ID, "deployment_id", deploymentID)
	}
	return job, nil
}

// ExecuteScan walks a deployment folder and registers every capture file.
// The capture timestamp comes from the file's modification time; implausibly
// old values (a camera with an unset clock) are stored as unknown so the
// record is handled as untimed downstream.
func (s *Service) ExecuteScan(ctx context.Context, jobID, deploymentID, path string) error {
	s.repo.UpdateJobStatus(ctx, jobID, JobStatusRunning, "")
	if s.logger != nil {
		s.logger.Info("starting scan", "job_id", jobID, "path", path)
	}

	var files []string
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if !d.IsDir() && MediaTypeForFile(d.Name()) != "" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		s.repo.UpdateJobStatus(ctx, jobID, JobStatusFailed, err.Error())
		return err
	}

	total := len(files)
	if s.logger != nil {
		s.logger.Info("found capture files", "count", total)
	}

	for i, filePath := range files {
		select {
		case <-ctx.Done():
			s.repo.UpdateJobStatus(ctx, jobID, JobStatusFailed, "cancelled")
			return ctx.Err()
		default:
		}

		if err := s.registerCapture(ctx, deploymentID, filePath); err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to register capture", "path", filePath, "error", err)
			}
		}

		if total > 0 {
			s.repo.UpdateJobProgress(ctx, jobID, (i+1)*100/total)
		}
	}

	s.repo.UpdateJobStatus(ctx, jobID, JobStatusCompleted, "")
	if s.logger != nil {
		s.logger.Info("scan completed", "job_id", jobID, "files_processed", total)
	}
	return nil
}

func (s *Service) registerCapture(ctx context.Context, deploymentID, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	var timestamp *time.Time
	if mtime := info.ModTime(); mtime.After(earliestPlausibleCapture) {
		t := mtime
		timestamp = &t
	}

	m := &Media{
		ID:           NewID(),
		DeploymentID: deploymentID,
		Path:         path,
		Filename:     filepath.Base(path),
		Timestamp:    timestamp,
		MediaType:    MediaTypeForFile(path),
		FileSize:     info.Size(),
		CreatedAt:    time.Now(),
	}
	return s.repo.UpsertMedia(ctx, m)
}

// RecordObservations stores classifier output for already-cataloged media.
func (s *Service) RecordObservations(ctx context.Context, obs []Observation) error {
	now := time.Now()
	for i := range obs {
		if obs[i].MediaID == "" {
			return fmt.Errorf("observation %d: media_id is required", i)
		}
		if obs[i].Count != nil && *obs[i].Count < 0 {
			return fmt.Errorf("observation %d: count must not be negative", i)
		}
		if obs[i].ID == "" {
			obs[i].ID = NewID()
		}
		if obs[i].CreatedAt.IsZero() {
			obs[i].CreatedAt = now
		}
	}
	return s.repo.CreateObservations(ctx, obs)
}

// GapSeconds returns the study's sequence gap threshold, falling back to the
// configured default when unset.
func (s *Service) GapSeconds(ctx context.Context) (int, error) {
	raw, err := s.repo.GetConfig(ctx, GapSecondsKey)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return s.defaultGap, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return s.defaultGap, nil
	}
	return secs, nil
}

func (s *Service) SetGapSeconds(ctx context.Context, secs int) error {
	if secs < 0 {
		return fmt.Errorf("gap seconds must not be negative")
	}
	return s.repo.SetConfig(ctx, GapSecondsKey, strconv.Itoa(secs))
}
