package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Fixed-width so that lexical ORDER BY on the TEXT column matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const downloadColumns = "id, engine_handle, url, filename, status, progress, speed, total_bytes, downloaded_bytes, eta_seconds, file_path, error_message, retry_count, container_id, credential_id, created_at, updated_at, completed_at"

const containerColumns = "id, name, url, source, folder_name, status, total_links, completed_links, failed_links, password, description, extra_json, credential_id, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDownload(scanner rowScanner) (*Download, error) {
	var (
		id           int64
		handle       sql.NullString
		rawURL       string
		filename     sql.NullString
		statusStr    string
		progress     sql.NullFloat64
		speed        sql.NullInt64
		totalBytes   sql.NullInt64
		doneBytes    sql.NullInt64
		eta          sql.NullInt64
		filePath     sql.NullString
		errorMessage sql.NullString
		retryCount   sql.NullInt64
		containerID  sql.NullInt64
		credentialID sql.NullInt64
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		completedRaw sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&handle,
		&rawURL,
		&filename,
		&statusStr,
		&progress,
		&speed,
		&totalBytes,
		&doneBytes,
		&eta,
		&filePath,
		&errorMessage,
		&retryCount,
		&containerID,
		&credentialID,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	d := &Download{
		ID:              id,
		EngineHandle:    handle.String,
		URL:             rawURL,
		Filename:        filename.String,
		Status:          DownloadStatus(statusStr),
		Progress:        progress.Float64,
		Speed:           speed.Int64,
		TotalBytes:      totalBytes.Int64,
		DownloadedBytes: doneBytes.Int64,
		ETASeconds:      -1,
		FilePath:        filePath.String,
		ErrorMessage:    errorMessage.String,
		RetryCount:      int(retryCount.Int64),
		ContainerID:     nullInt64Ptr(containerID),
		CredentialID:    nullInt64Ptr(credentialID),
	}
	if eta.Valid {
		d.ETASeconds = eta.Int64
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		d.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		d.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			d.CompletedAt = &completed
		}
	}
	return d, nil
}

func scanContainer(scanner rowScanner) (*Container, error) {
	var (
		id           int64
		name         string
		rawURL       sql.NullString
		source       string
		folder       string
		statusStr    string
		total        sql.NullInt64
		completed    sql.NullInt64
		failed       sql.NullInt64
		password     sql.NullString
		description  sql.NullString
		extraJSON    sql.NullString
		credentialID sql.NullInt64
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&name,
		&rawURL,
		&source,
		&folder,
		&statusStr,
		&total,
		&completed,
		&failed,
		&password,
		&description,
		&extraJSON,
		&credentialID,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	c := &Container{
		ID:             id,
		Name:           name,
		URL:            rawURL.String,
		Source:         source,
		FolderName:     folder,
		Status:         ContainerStatus(statusStr),
		TotalLinks:     int(total.Int64),
		CompletedLinks: int(completed.Int64),
		FailedLinks:    int(failed.Int64),
		Password:       password.String,
		Description:    description.String,
		CredentialID:   nullInt64Ptr(credentialID),
	}
	if extraJSON.Valid && extraJSON.String != "" {
		if err := json.Unmarshal([]byte(extraJSON.String), &c.Extra); err != nil {
			return nil, err
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		c.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		c.UpdatedAt = updated
	}
	return c, nil
}

func encodeExtra(extra Extraction) (any, error) {
	if extra.IsZero() {
		return nil, nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func nullInt64Ptr(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	v := value.Int64
	return &v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
