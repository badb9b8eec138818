package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoRows is returned by update and delete calls that matched nothing.
var ErrNoRows = errors.New("no matching row")

// ErrContainerFull is returned by CreateContainerMember when the container
// already holds TotalLinks downloads or does not exist.
var ErrContainerFull = errors.New("container has no free link slot")

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// CreateDownload inserts d and fills in its ID and timestamps.
func (s *Store) CreateDownload(ctx context.Context, d *Download) error {
	return s.insertDownload(ctx, d, false)
}

// CreateContainerMember inserts d only while its container holds fewer than
// TotalLinks downloads. The check and the insert are one statement, so
// concurrent writers cannot overfill a container.
func (s *Store) CreateContainerMember(ctx context.Context, d *Download) error {
	if d != nil && d.ContainerID == nil {
		return errors.New("download has no container")
	}
	return s.insertDownload(ctx, d, true)
}

func (s *Store) insertDownload(ctx context.Context, d *Download, bounded bool) error {
	if d == nil {
		return errors.New("download is nil")
	}
	if strings.TrimSpace(d.URL) == "" {
		return errors.New("download url is empty")
	}
	if d.Status == "" {
		d.Status = DownloadPending
	}
	now := time.Now().UTC()

	query := `INSERT INTO downloads (
            engine_handle, url, filename, status, progress, speed, total_bytes,
            downloaded_bytes, eta_seconds, file_path, error_message, retry_count,
            container_id, credential_id, created_at, updated_at, completed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := []any{
		nullableString(d.EngineHandle),
		d.URL,
		nullableString(d.Filename),
		d.Status,
		d.Progress,
		d.Speed,
		d.TotalBytes,
		d.DownloadedBytes,
		d.ETASeconds,
		nullableString(d.FilePath),
		nullableString(d.ErrorMessage),
		d.RetryCount,
		nullableInt64(d.ContainerID),
		nullableInt64(d.CredentialID),
		formatTime(now),
		formatTime(now),
		nullableTime(d.CompletedAt),
	}
	if bounded {
		query = `INSERT INTO downloads (
            engine_handle, url, filename, status, progress, speed, total_bytes,
            downloaded_bytes, eta_seconds, file_path, error_message, retry_count,
            container_id, credential_id, created_at, updated_at, completed_at
        ) SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
        WHERE (SELECT COUNT(*) FROM downloads WHERE container_id = ?)
            < (SELECT total_links FROM containers WHERE id = ?)`
		args = append(args, *d.ContainerID, *d.ContainerID)
	}

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert download: %w", err)
	}
	if bounded {
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return ErrContainerFull
		}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	d.ID = id
	d.CreatedAt = now
	d.UpdatedAt = now
	return nil
}

// GetDownload fetches a download by identifier. It returns (nil, nil) when
// no row exists.
func (s *Store) GetDownload(ctx context.Context, id int64) (*Download, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+downloadColumns+` FROM downloads WHERE id = ?`, id)
	d, err := scanDownload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get download: %w", err)
	}
	return d, nil
}

// UpdateDownload persists every mutable column of d and refreshes UpdatedAt.
func (s *Store) UpdateDownload(ctx context.Context, d *Download) error {
	if d == nil {
		return errors.New("download is nil")
	}
	d.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE downloads
         SET engine_handle = ?, url = ?, filename = ?, status = ?, progress = ?,
             speed = ?, total_bytes = ?, downloaded_bytes = ?, eta_seconds = ?,
             file_path = ?, error_message = ?, retry_count = ?, container_id = ?,
             credential_id = ?, updated_at = ?, completed_at = ?
         WHERE id = ?`,
		nullableString(d.EngineHandle),
		d.URL,
		nullableString(d.Filename),
		d.Status,
		d.Progress,
		d.Speed,
		d.TotalBytes,
		d.DownloadedBytes,
		d.ETASeconds,
		nullableString(d.FilePath),
		nullableString(d.ErrorMessage),
		d.RetryCount,
		nullableInt64(d.ContainerID),
		nullableInt64(d.CredentialID),
		formatTime(d.UpdatedAt),
		nullableTime(d.CompletedAt),
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("update download: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update download %d: %w", d.ID, ErrNoRows)
	}
	return nil
}

// DeleteDownload removes a download row.
func (s *Store) DeleteDownload(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM downloads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete download: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete download %d: %w", id, ErrNoRows)
	}
	return nil
}

// ListDownloads returns downloads newest first.
func (s *Store) ListDownloads(ctx context.Context, filter DownloadFilter) ([]*Download, error) {
	var (
		clauses []string
		args    []any
	)
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, `status IN (`+makePlaceholders(len(filter.Statuses))+`)`)
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if filter.ContainerID != nil {
		clauses = append(clauses, `container_id = ?`)
		args = append(args, *filter.ContainerID)
	}

	query := `SELECT ` + downloadColumns + ` FROM downloads`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, clampLimit(filter.Limit), offset)

	return s.queryDownloads(ctx, query, args...)
}

// DownloadsByContainer returns every member of a container in insertion order.
func (s *Store) DownloadsByContainer(ctx context.Context, containerID int64) ([]*Download, error) {
	return s.queryDownloads(ctx, `SELECT `+downloadColumns+` FROM downloads WHERE container_id = ? ORDER BY id`, containerID)
}

// DownloadsByStatus returns downloads in any of the given states, oldest first.
func (s *Store) DownloadsByStatus(ctx context.Context, statuses ...DownloadStatus) ([]*Download, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	return s.queryDownloads(
		ctx,
		`SELECT `+downloadColumns+` FROM downloads WHERE status IN (`+makePlaceholders(len(statuses))+`) ORDER BY id`,
		args...,
	)
}

func (s *Store) queryDownloads(ctx context.Context, query string, args ...any) ([]*Download, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query downloads: %w", err)
	}
	defer rows.Close()

	var out []*Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountDownloadsByStatus returns a status -> count map. Statuses with no rows
// are omitted.
func (s *Store) CountDownloadsByStatus(ctx context.Context) (map[DownloadStatus]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(*) FROM downloads GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count downloads: %w", err)
	}
	defer rows.Close()

	counts := make(map[DownloadStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[DownloadStatus(status)] = count
	}
	return counts, rows.Err()
}

// CountContainerDownloads tallies members of a container per status.
func (s *Store) CountContainerDownloads(ctx context.Context, containerID int64) (map[DownloadStatus]int, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT status, COUNT(*) FROM downloads WHERE container_id = ? GROUP BY status`,
		containerID,
	)
	if err != nil {
		return nil, fmt.Errorf("count container downloads: %w", err)
	}
	defer rows.Close()

	counts := make(map[DownloadStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[DownloadStatus(status)] = count
	}
	return counts, rows.Err()
}
