package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CreateContainer inserts c and fills in its ID and timestamps. TotalLinks is
// fixed at creation.
func (s *Store) CreateContainer(ctx context.Context, c *Container) error {
	if c == nil {
		return errors.New("container is nil")
	}
	if c.Status == "" {
		c.Status = ContainerPending
	}
	extra, err := encodeExtra(c.Extra)
	if err != nil {
		return fmt.Errorf("encode container extra: %w", err)
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO containers (
            name, url, source, folder_name, status, total_links, completed_links,
            failed_links, password, description, extra_json, credential_id,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name,
		nullableString(c.URL),
		c.Source,
		c.FolderName,
		c.Status,
		c.TotalLinks,
		c.CompletedLinks,
		c.FailedLinks,
		nullableString(c.Password),
		nullableString(c.Description),
		extra,
		nullableInt64(c.CredentialID),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert container: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	return nil
}

// GetContainer fetches a container by identifier. It returns (nil, nil) when
// no row exists.
func (s *Store) GetContainer(ctx context.Context, id int64) (*Container, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+containerColumns+` FROM containers WHERE id = ?`, id)
	c, err := scanContainer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get container: %w", err)
	}
	return c, nil
}

// UpdateContainer persists mutable container columns. total_links is never
// rewritten.
func (s *Store) UpdateContainer(ctx context.Context, c *Container) error {
	if c == nil {
		return errors.New("container is nil")
	}
	extra, err := encodeExtra(c.Extra)
	if err != nil {
		return fmt.Errorf("encode container extra: %w", err)
	}
	c.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE containers
         SET name = ?, status = ?, completed_links = ?, failed_links = ?,
             password = ?, description = ?, extra_json = ?, credential_id = ?,
             updated_at = ?
         WHERE id = ?`,
		c.Name,
		c.Status,
		c.CompletedLinks,
		c.FailedLinks,
		nullableString(c.Password),
		nullableString(c.Description),
		extra,
		nullableInt64(c.CredentialID),
		formatTime(c.UpdatedAt),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("update container: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update container %d: %w", c.ID, ErrNoRows)
	}
	return nil
}

// DeleteContainer removes a container together with its downloads.
func (s *Store) DeleteContainer(ctx context.Context, id int64) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin delete container: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()
		if _, err := tx.ExecContext(ctx, `DELETE FROM downloads WHERE container_id = ?`, id); err != nil {
			return fmt.Errorf("delete container downloads: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM containers WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete container: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("delete container %d: %w", id, ErrNoRows)
		}
		return tx.Commit()
	})
}

// ListContainers returns containers newest first.
func (s *Store) ListContainers(ctx context.Context, filter ContainerFilter) ([]*Container, error) {
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
	query := `SELECT ` + containerColumns + ` FROM containers`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, clampLimit(filter.Limit), offset)

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query containers: %w", err)
	}
	defer rows.Close()

	var out []*Container
	for rows.Next() {
		c, err := scanContainer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan container: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ContainersByStatus returns containers in any of the given states, oldest first.
func (s *Store) ContainersByStatus(ctx context.Context, statuses ...ContainerStatus) ([]*Container, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+containerColumns+` FROM containers WHERE status IN (`+makePlaceholders(len(statuses))+`) ORDER BY id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query containers: %w", err)
	}
	defer rows.Close()

	var out []*Container
	for rows.Next() {
		c, err := scanContainer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan container: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
