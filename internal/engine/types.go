package engine

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrUnavailable indicates the engine could not be reached: the connection was
// never established, the transport failed, or the endpoint answered with a
// non-200 HTTP status.
var ErrUnavailable = errors.New("download engine unavailable")

// RPCError is a JSON-RPC error object returned by aria2.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("aria2 rpc error %d: %s", e.Code, e.Message)
}

// Engine status values reported by aria2.tellStatus.
const (
	StateActive   = "active"
	StateWaiting  = "waiting"
	StatePaused   = "paused"
	StateError    = "error"
	StateComplete = "complete"
	StateRemoved  = "removed"
)

// Options are per-download aria2 options such as dir or split.
type Options map[string]string

// File is one output file of a download.
type File struct {
	Path            string
	Length          int64
	CompletedLength int64
}

// Status is the engine's view of one download.
type Status struct {
	Handle          string
	State           string
	TotalLength     int64
	CompletedLength int64
	DownloadSpeed   int64
	ErrorCode       string
	ErrorMessage    string
	Files           []File
}

// Progress returns the completed fraction in [0,1].
func (s *Status) Progress() float64 {
	if s == nil || s.TotalLength <= 0 {
		return 0
	}
	p := float64(s.CompletedLength) / float64(s.TotalLength)
	if p > 1 {
		return 1
	}
	return p
}

// ETASeconds returns the remaining seconds at the current speed, or -1 when
// the speed is zero.
func (s *Status) ETASeconds() int64 {
	if s == nil || s.DownloadSpeed <= 0 {
		return -1
	}
	remaining := s.TotalLength - s.CompletedLength
	if remaining < 0 {
		remaining = 0
	}
	return remaining / s.DownloadSpeed
}

// GlobalStats summarises engine-wide activity.
type GlobalStats struct {
	DownloadSpeed int64
	UploadSpeed   int64
	NumActive     int
	NumWaiting    int
	NumStopped    int
}

// Version identifies the connected aria2 build.
type Version struct {
	Version         string
	EnabledFeatures []string
}

// aria2 encodes every number as a decimal string.
type wireFile struct {
	Path            string `json:"path"`
	Length          string `json:"length"`
	CompletedLength string `json:"completedLength"`
}

type wireStatus struct {
	GID             string     `json:"gid"`
	Status          string     `json:"status"`
	TotalLength     string     `json:"totalLength"`
	CompletedLength string     `json:"completedLength"`
	DownloadSpeed   string     `json:"downloadSpeed"`
	ErrorCode       string     `json:"errorCode"`
	ErrorMessage    string     `json:"errorMessage"`
	Files           []wireFile `json:"files"`
}

func (w wireStatus) toStatus() *Status {
	status := &Status{
		Handle:          w.GID,
		State:           w.Status,
		TotalLength:     parseInt(w.TotalLength),
		CompletedLength: parseInt(w.CompletedLength),
		DownloadSpeed:   parseInt(w.DownloadSpeed),
		ErrorCode:       w.ErrorCode,
		ErrorMessage:    w.ErrorMessage,
	}
	for _, f := range w.Files {
		status.Files = append(status.Files, File{
			Path:            f.Path,
			Length:          parseInt(f.Length),
			CompletedLength: parseInt(f.CompletedLength),
		})
	}
	return status
}

type wireGlobalStat struct {
	DownloadSpeed string `json:"downloadSpeed"`
	UploadSpeed   string `json:"uploadSpeed"`
	NumActive     string `json:"numActive"`
	NumWaiting    string `json:"numWaiting"`
	NumStopped    string `json:"numStopped"`
}

func (w wireGlobalStat) toStats() *GlobalStats {
	return &GlobalStats{
		DownloadSpeed: parseInt(w.DownloadSpeed),
		UploadSpeed:   parseInt(w.UploadSpeed),
		NumActive:     int(parseInt(w.NumActive)),
		NumWaiting:    int(parseInt(w.NumWaiting)),
		NumStopped:    int(parseInt(w.NumStopped)),
	}
}

func parseInt(value string) int64 {
	if value == "" {
		return 0
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
