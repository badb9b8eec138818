package api

import (
	"time"

	"linkhaul/internal/downloads"
	"linkhaul/internal/store"
)

// FromDownload converts a download record to its API representation.
func FromDownload(d *store.Download) Download {
	if d == nil {
		return Download{}
	}
	dto := Download{
		ID:              d.ID,
		URL:             d.URL,
		Filename:        d.Filename,
		Status:          string(d.Status),
		Progress:        d.Progress,
		Speed:           d.Speed,
		TotalBytes:      d.TotalBytes,
		DownloadedBytes: d.DownloadedBytes,
		ETASeconds:      d.ETASeconds,
		FilePath:        d.FilePath,
		ErrorMessage:    d.ErrorMessage,
		RetryCount:      d.RetryCount,
		EngineHandle:    d.EngineHandle,
		ContainerID:     d.ContainerID,
		CredentialID:    d.CredentialID,
		CreatedAt:       formatTime(d.CreatedAt),
		UpdatedAt:       formatTime(d.UpdatedAt),
	}
	if d.CompletedAt != nil {
		dto.CompletedAt = formatTime(*d.CompletedAt)
	}
	return dto
}

// FromDownloads converts a slice of download records into API DTOs.
func FromDownloads(rows []*store.Download) []Download {
	out := make([]Download, 0, len(rows))
	for _, d := range rows {
		out = append(out, FromDownload(d))
	}
	return out
}

// FromContainer converts a container record to its API representation.
func FromContainer(c *store.Container) Container {
	if c == nil {
		return Container{}
	}
	dto := Container{
		ID:               c.ID,
		Name:             c.Name,
		URL:              c.URL,
		Source:           c.Source,
		FolderName:       c.FolderName,
		Status:           string(c.Status),
		TotalLinks:       c.TotalLinks,
		CompletedLinks:   c.CompletedLinks,
		FailedLinks:      c.FailedLinks,
		HasPassword:      c.Password != "",
		Description:      c.Description,
		EncryptedPayload: c.Extra.EncryptedPayload,
		LinkListURL:      c.Extra.LinkListURL,
		CredentialID:     c.CredentialID,
		CreatedAt:        formatTime(c.CreatedAt),
		UpdatedAt:        formatTime(c.UpdatedAt),
	}
	if gate := c.Extra.Gate; gate != nil {
		dto.Gate = &Gate{
			Kind:        string(gate.Kind),
			CaptchaType: gate.CaptchaType,
			URL:         gate.URL,
		}
	}
	return dto
}

// FromContainers converts a slice of container records into API DTOs.
func FromContainers(rows []*store.Container) []Container {
	out := make([]Container, 0, len(rows))
	for _, c := range rows {
		out = append(out, FromContainer(c))
	}
	return out
}

// FromStats converts merged download stats to the API payload. Every known
// status is present in Counts, zero or not.
func FromStats(stats downloads.GlobalStats) Stats {
	counts := make(map[string]int, 6)
	counts["pending"] = stats.Pending
	counts["active"] = stats.Active
	counts[string(store.DownloadCompleted)] = stats.Completed
	counts[string(store.DownloadFailed)] = stats.Failed
	counts[string(store.DownloadCancelled)] = stats.Cancelled
	return Stats{
		Total:           stats.Total,
		Counts:          counts,
		DownloadSpeed:   stats.DownloadSpeed,
		NumActive:       stats.NumActive,
		NumWaiting:      stats.NumWaiting,
		EngineAvailable: stats.EngineAvailable,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
