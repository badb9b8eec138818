package api

import (
	"fmt"
	"strings"
	"time"

	"linkhaul/internal/store"
)

// ParseDownloadStatuses validates status filters. Comma-separated values are
// split and blanks ignored.
func ParseDownloadStatuses(values []string) ([]store.DownloadStatus, error) {
	var out []store.DownloadStatus
	for _, value := range splitValues(values) {
		status, ok := store.ParseDownloadStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown download status %q", value)
		}
		out = append(out, status)
	}
	return out, nil
}

// ParseContainerStatuses validates container status filters.
func ParseContainerStatuses(values []string) ([]store.ContainerStatus, error) {
	var out []store.ContainerStatus
	for _, value := range splitValues(values) {
		status, ok := store.ParseContainerStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown container status %q", value)
		}
		out = append(out, status)
	}
	return out, nil
}

func splitValues(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// FormatBytes renders a byte count with binary units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatSpeed renders a bytes-per-second rate, or "-" when idle.
func FormatSpeed(bps int64) string {
	if bps <= 0 {
		return "-"
	}
	return FormatBytes(bps) + "/s"
}

// FormatETA renders remaining seconds, or "-" when unknown.
func FormatETA(seconds int64) string {
	if seconds < 0 {
		return "-"
	}
	return (time.Duration(seconds) * time.Second).String()
}

// FormatProgress renders a 0..1 fraction as a percentage.
func FormatProgress(progress float64) string {
	return fmt.Sprintf("%.1f%%", progress*100)
}

// ContainerProgress renders "completed/total" with failures appended.
func ContainerProgress(c Container) string {
	label := fmt.Sprintf("%d/%d", c.CompletedLinks, c.TotalLinks)
	if c.FailedLinks > 0 {
		label += fmt.Sprintf(" (%d failed)", c.FailedLinks)
	}
	return label
}
