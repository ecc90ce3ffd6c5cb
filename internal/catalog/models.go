package catalog

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Deployment is one camera placement: a folder of captures plus the study
// metadata (coordinates, display name) shared by everything the camera
// recorded there.
type Deployment struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	LocationName string    `json:"location_name,omitempty"`
	Present      bool      `json:"present"`
	CreatedAt    time.Time `json:"created_at"`
}

// Media is one capture file. Timestamp is nil when the capture time is
// unknown; EventID is set when the camera wrote burst/event markers.
type Media struct {
	ID           string     `json:"id"`
	DeploymentID string     `json:"deployment_id"`
	Path         string     `json:"path"`
	Filename     string     `json:"filename"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	MediaType    string     `json:"media_type"`
	EventID      string     `json:"event_id,omitempty"`
	FileSize     int64      `json:"file_size"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Media records feed the sequence grouper directly.
func (m Media) ItemID() string       { return m.ID }
func (m Media) ItemTime() *time.Time { return m.Timestamp }
func (m Media) Deployment() string   { return m.DeploymentID }
func (m Media) Event() string        { return m.EventID }
func (m Media) Video() bool          { return strings.HasPrefix(m.MediaType, "video/") }

// Observation is a stored machine-generated species observation for one
// capture. Count and Confidence are nil when the classifier did not report
// them.
type Observation struct {
	ID             string    `json:"id"`
	MediaID        string    `json:"media_id"`
	ScientificName string    `json:"scientific_name,omitempty"`
	Count          *int      `json:"count,omitempty"`
	Confidence     *float64  `json:"confidence,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

const (
	JobTypeScan = "scan"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

type Job struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	DeploymentID string    `json:"deployment_id,omitempty"`
	Progress     int       `json:"progress"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewID() string {
	return uuid.NewString()
}

var mediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
}

// MediaTypeForFile maps a capture filename to its MIME type, or "" for files
// the scanner should ignore.
func MediaTypeForFile(filename string) string {
	return mediaTypes[strings.ToLower(filepath.Ext(filename))]
}
