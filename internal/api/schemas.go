package api

import (
	"time"

	"github.com/camtrap/camtrap-agent/internal/analytics"
	"github.com/camtrap/camtrap-agent/internal/catalog"
	"github.com/camtrap/camtrap-agent/internal/sequence"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State            string       `json:"state"`
	LastError        string       `json:"last_error,omitempty"`
	DeploymentsCount int          `json:"deployments_count"`
	MediaCount       int          `json:"media_count"`
	JobsRunning      int          `json:"jobs_running"`
	ActiveJob        *JobResponse `json:"active_job,omitempty"`
}

type AddDeploymentRequest struct {
	Path         string   `json:"path"`
	Name         string   `json:"name,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	LocationName string   `json:"location_name,omitempty"`
}

type AddDeploymentResponse struct {
	DeploymentID string `json:"deployment_id"`
}

type DeploymentResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Path         string   `json:"path"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	LocationName string   `json:"location_name,omitempty"`
	Present      bool     `json:"present"`
	CreatedAt    string   `json:"created_at"`
}

type DeploymentsResponse struct {
	Deployments []DeploymentResponse `json:"deployments"`
}

type ScanRequest struct {
	DeploymentID string `json:"deployment_id,omitempty"`
}

type ScanResponse struct {
	JobID string `json:"job_id"`
}

type JobResponse struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	DeploymentID string `json:"deployment_id,omitempty"`
	Progress     int    `json:"progress"`
	Error        string `json:"error,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type ObservationRequest struct {
	MediaID        string   `json:"media_id"`
	ScientificName string   `json:"scientific_name,omitempty"`
	Count          *int     `json:"count,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
}

type ObservationsRequest struct {
	Observations []ObservationRequest `json:"observations"`
}

type ObservationsResponse struct {
	Created int `json:"created"`
}

type SettingsResponse struct {
	GapSeconds int `json:"gap_seconds"`
}

type SettingsRequest struct {
	GapSeconds *int `json:"gap_seconds"`
}

type SpeciesCountResponse struct {
	ScientificName string `json:"scientific_name"`
	Count          int    `json:"count"`
}

type SpeciesResponse struct {
	Species []SpeciesCountResponse `json:"species"`
}

type TimeseriesPointResponse struct {
	Date   string         `json:"date"`
	Counts map[string]int `json:"counts"`
}

type TimeseriesResponse struct {
	Points     []TimeseriesPointResponse `json:"points"`
	AllSpecies []SpeciesCountResponse    `json:"all_species"`
}

type HeatPointResponse struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Count        int     `json:"count"`
	LocationName string  `json:"location_name,omitempty"`
}

type HeatmapResponse struct {
	Species map[string][]HeatPointResponse `json:"species"`
}

type HourActivityResponse struct {
	Hour   int            `json:"hour"`
	Counts map[string]int `json:"counts"`
}

type ActivityResponse struct {
	Hours []HourActivityResponse `json:"hours"`
}

type MediaItemResponse struct {
	ID           string `json:"id"`
	DeploymentID string `json:"deployment_id,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
	EventID      string `json:"event_id,omitempty"`
	IsVideo      bool   `json:"is_video"`
}

type SequenceResponse struct {
	ID        string              `json:"id"`
	StartTime string              `json:"start_time,omitempty"`
	EndTime   string              `json:"end_time,omitempty"`
	Items     []MediaItemResponse `json:"items"`
}

type GalleryResponse struct {
	Sequences  []SequenceResponse `json:"sequences"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func DeploymentToResponse(d *catalog.Deployment) DeploymentResponse {
	return DeploymentResponse{
		ID:           d.ID,
		Name:         d.Name,
		Path:         d.Path,
		Latitude:     d.Latitude,
		Longitude:    d.Longitude,
		LocationName: d.LocationName,
		Present:      d.Present,
		CreatedAt:    d.CreatedAt.Format(time.RFC3339),
	}
}

func JobToResponse(j *catalog.Job) JobResponse {
	return JobResponse{
		ID:           j.ID,
		Type:         j.Type,
		Status:       j.Status,
		DeploymentID: j.DeploymentID,
		Progress:     j.Progress,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    j.UpdatedAt.Format(time.RFC3339),
	}
}

func SequenceToResponse(s sequence.Sequence) SequenceResponse {
	resp := SequenceResponse{
		ID:    s.ID,
		Items: make([]MediaItemResponse, len(s.Items)),
	}
	if s.StartTime != nil {
		resp.StartTime = s.StartTime.Format(time.RFC3339)
	}
	if s.EndTime != nil {
		resp.EndTime = s.EndTime.Format(time.RFC3339)
	}
	for i, it := range s.Items {
		item := MediaItemResponse{
			ID:           it.ItemID(),
			DeploymentID: it.Deployment(),
			EventID:      it.Event(),
			IsVideo:      it.Video(),
		}
		if t := it.ItemTime(); t != nil {
			item.Timestamp = t.Format(time.RFC3339)
		}
		resp.Items[i] = item
	}
	return resp
}

func SpeciesCountsToResponse(counts []analytics.SpeciesCount) []SpeciesCountResponse {
	out := make([]SpeciesCountResponse, len(counts))
	for i, c := range counts {
		out[i] = SpeciesCountResponse{ScientificName: c.ScientificName, Count: c.Count}
	}
	return out
}
