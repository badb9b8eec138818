package store

import "time"

// DownloadStatus represents the lifecycle of a single download.
type DownloadStatus string

const (
	DownloadPending     DownloadStatus = "pending"
	DownloadQueued      DownloadStatus = "queued"
	DownloadDownloading DownloadStatus = "downloading"
	DownloadPaused      DownloadStatus = "paused"
	DownloadCompleted   DownloadStatus = "completed"
	DownloadFailed      DownloadStatus = "failed"
	DownloadCancelled   DownloadStatus = "cancelled"
)

var allDownloadStatuses = []DownloadStatus{
	DownloadPending,
	DownloadQueued,
	DownloadDownloading,
	DownloadPaused,
	DownloadCompleted,
	DownloadFailed,
	DownloadCancelled,
}

var downloadTransitions = map[DownloadStatus][]DownloadStatus{
	DownloadPending:     {DownloadQueued, DownloadFailed, DownloadCancelled},
	DownloadQueued:      {DownloadDownloading, DownloadPaused, DownloadCompleted, DownloadFailed, DownloadCancelled},
	DownloadDownloading: {DownloadPaused, DownloadCompleted, DownloadFailed, DownloadCancelled},
	DownloadPaused:      {DownloadDownloading, DownloadCompleted, DownloadFailed, DownloadCancelled},
	DownloadFailed:      {DownloadQueued},
}

// AllDownloadStatuses returns every download status in lifecycle order.
func AllDownloadStatuses() []DownloadStatus {
	out := make([]DownloadStatus, len(allDownloadStatuses))
	copy(out, allDownloadStatuses)
	return out
}

// ParseDownloadStatus validates a raw status string.
func ParseDownloadStatus(value string) (DownloadStatus, bool) {
	for _, status := range allDownloadStatuses {
		if string(status) == value {
			return status, true
		}
	}
	return "", false
}

// CanTransitionDownload reports whether from -> to is a legal move.
func CanTransitionDownload(from, to DownloadStatus) bool {
	for _, next := range downloadTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s DownloadStatus) IsTerminal() bool {
	return s == DownloadCompleted || s == DownloadCancelled
}

// IsActive reports whether the download still counts as in flight for
// container aggregation.
func (s DownloadStatus) IsActive() bool {
	switch s {
	case DownloadPending, DownloadQueued, DownloadDownloading:
		return true
	default:
		return false
	}
}

// ContainerStatus represents the aggregate lifecycle of a container.
type ContainerStatus string

const (
	ContainerPendingPassword ContainerStatus = "pending_password"
	ContainerPendingCaptcha  ContainerStatus = "pending_captcha"
	ContainerPending         ContainerStatus = "pending"
	ContainerActive          ContainerStatus = "active"
	ContainerCompleted       ContainerStatus = "completed"
	ContainerFailed          ContainerStatus = "failed"
)

var allContainerStatuses = []ContainerStatus{
	ContainerPendingPassword,
	ContainerPendingCaptcha,
	ContainerPending,
	ContainerActive,
	ContainerCompleted,
	ContainerFailed,
}

// ParseContainerStatus validates a raw status string.
func ParseContainerStatus(value string) (ContainerStatus, bool) {
	for _, status := range allContainerStatuses {
		if string(status) == value {
			return status, true
		}
	}
	return "", false
}

// NeedsInput reports whether the container is waiting on a password or
// captcha from the caller.
func (s ContainerStatus) NeedsInput() bool {
	return s == ContainerPendingPassword || s == ContainerPendingCaptcha
}

// Source tags identify which extraction strategy produced a container.
const (
	SourceManual = "manual"
)

// GateKind names the reason link discovery was blocked.
type GateKind string

const (
	GatePassword GateKind = "password"
	GateCaptcha  GateKind = "captcha"
)

// Gate records why a container is waiting for external input.
type Gate struct {
	Kind        GateKind `json:"kind"`
	CaptchaType string   `json:"captcha_type,omitempty"`
	URL         string   `json:"url,omitempty"`
}

// Extraction is the typed extension payload persisted with a container.
type Extraction struct {
	Gate             *Gate  `json:"gate,omitempty"`
	EncryptedPayload bool   `json:"encrypted_payload,omitempty"`
	LinkListURL      string `json:"link_list_url,omitempty"`
	// Populating is set while member downloads are still being submitted.
	Populating bool `json:"populating,omitempty"`
}

// IsZero reports whether the payload carries no information.
func (e Extraction) IsZero() bool {
	return e.Gate == nil && !e.EncryptedPayload && e.LinkListURL == "" && !e.Populating
}

// Download represents one external link tracked through the engine.
type Download struct {
	ID              int64
	EngineHandle    string
	URL             string
	Filename        string
	Status          DownloadStatus
	Progress        float64
	Speed           int64
	TotalBytes      int64
	DownloadedBytes int64
	ETASeconds      int64
	FilePath        string
	ErrorMessage    string
	RetryCount      int
	ContainerID     *int64
	CredentialID    *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// Clone returns a deep copy so callers can diff before and after mutation.
func (d *Download) Clone() *Download {
	if d == nil {
		return nil
	}
	cp := *d
	if d.ContainerID != nil {
		v := *d.ContainerID
		cp.ContainerID = &v
	}
	if d.CredentialID != nil {
		v := *d.CredentialID
		cp.CredentialID = &v
	}
	if d.CompletedAt != nil {
		v := *d.CompletedAt
		cp.CompletedAt = &v
	}
	return &cp
}

// Container is a named group of downloads extracted from one page or created
// from a literal URL list.
type Container struct {
	ID             int64
	Name           string
	URL            string
	Source         string
	FolderName     string
	Status         ContainerStatus
	TotalLinks     int
	CompletedLinks int
	FailedLinks    int
	Password       string
	Description    string
	Extra          Extraction
	CredentialID   *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DownloadFilter narrows ListDownloads results.
type DownloadFilter struct {
	Statuses    []DownloadStatus
	ContainerID *int64
	Limit       int
	Offset      int
}

// ContainerFilter narrows ListContainers results.
type ContainerFilter struct {
	Statuses []ContainerStatus
	Limit    int
	Offset   int
}
