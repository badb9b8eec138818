package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Download describes a download in a transport-friendly format.
type Download struct {
	ID              int64   `json:"id"`
	URL             string  `json:"url"`
	Filename        string  `json:"filename,omitempty"`
	Status          string  `json:"status"`
	Progress        float64 `json:"progress"`
	Speed           int64   `json:"speed"`
	TotalBytes      int64   `json:"totalBytes"`
	DownloadedBytes int64   `json:"downloadedBytes"`
	ETASeconds      int64   `json:"etaSeconds"`
	FilePath        string  `json:"filePath,omitempty"`
	ErrorMessage    string  `json:"errorMessage,omitempty"`
	RetryCount      int     `json:"retryCount"`
	EngineHandle    string  `json:"engineHandle,omitempty"`
	ContainerID     *int64  `json:"containerId,omitempty"`
	CredentialID    *int64  `json:"credentialId,omitempty"`
	CreatedAt       string  `json:"createdAt,omitempty"`
	UpdatedAt       string  `json:"updatedAt,omitempty"`
	CompletedAt     string  `json:"completedAt,omitempty"`
}

// Gate describes why a container is waiting for input.
type Gate struct {
	Kind        string `json:"kind"`
	CaptchaType string `json:"captchaType,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Container describes a container in a transport-friendly format.
type Container struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	URL              string     `json:"url,omitempty"`
	Source           string     `json:"source"`
	FolderName       string     `json:"folderName"`
	Status           string     `json:"status"`
	TotalLinks       int        `json:"totalLinks"`
	CompletedLinks   int        `json:"completedLinks"`
	FailedLinks      int        `json:"failedLinks"`
	HasPassword      bool       `json:"hasPassword"`
	Description      string     `json:"description,omitempty"`
	Gate             *Gate      `json:"gate,omitempty"`
	EncryptedPayload bool       `json:"encryptedPayload,omitempty"`
	LinkListURL      string     `json:"linkListUrl,omitempty"`
	CredentialID     *int64     `json:"credentialId,omitempty"`
	CreatedAt        string     `json:"createdAt,omitempty"`
	UpdatedAt        string     `json:"updatedAt,omitempty"`
	Downloads        []Download `json:"downloads,omitempty"`
}

// Stats merges stored download counts with engine throughput.
type Stats struct {
	Total           int            `json:"total"`
	Counts          map[string]int `json:"counts"`
	DownloadSpeed   int64          `json:"downloadSpeed"`
	NumActive       int            `json:"numActive"`
	NumWaiting      int            `json:"numWaiting"`
	EngineAvailable bool           `json:"engineAvailable"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running         bool   `json:"running"`
	PID             int    `json:"pid"`
	DatabasePath    string `json:"databasePath"`
	LockFilePath    string `json:"lockFilePath"`
	EngineEndpoint  string `json:"engineEndpoint"`
	EngineConnected bool   `json:"engineConnected"`
	EngineVersion   string `json:"engineVersion,omitempty"`
	SweepInterval   string `json:"sweepInterval,omitempty"`
	Stats           Stats  `json:"stats"`
}

// CreateContainerRequest is the body of POST /api/containers.
type CreateContainerRequest struct {
	URL          string `json:"url"`
	Password     string `json:"password,omitempty"`
	Name         string `json:"name,omitempty"`
	Folder       string `json:"folder,omitempty"`
	CredentialID *int64 `json:"credentialId,omitempty"`
}

// ManualContainerRequest is the body of POST /api/containers/manual.
type ManualContainerRequest struct {
	Name         string   `json:"name"`
	URLs         []string `json:"urls"`
	Folder       string   `json:"folder,omitempty"`
	Password     string   `json:"password,omitempty"`
	CredentialID *int64   `json:"credentialId,omitempty"`
}

// SubmitDownloadRequest is the body of POST /api/downloads.
type SubmitDownloadRequest struct {
	URL          string `json:"url"`
	Filename     string `json:"filename,omitempty"`
	ContainerID  *int64 `json:"containerId,omitempty"`
	CredentialID *int64 `json:"credentialId,omitempty"`
}

// DownloadListResponse wraps a collection of downloads.
type DownloadListResponse struct {
	Downloads []Download `json:"downloads"`
}

// DownloadResponse wraps a single download.
type DownloadResponse struct {
	Download Download `json:"download"`
}

// ContainerListResponse wraps a collection of containers.
type ContainerListResponse struct {
	Containers []Container `json:"containers"`
}

// ContainerResponse wraps a single container.
type ContainerResponse struct {
	Container Container `json:"container"`
}

// ActionResponse reports the outcome of a pause, resume or cancel request.
// Applied is false when the download was not in a state the action applies to.
type ActionResponse struct {
	ID       int64    `json:"id"`
	Applied  bool     `json:"applied"`
	Download Download `json:"download"`
}

// ErrorResponse is the body of every non-2xx API reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
