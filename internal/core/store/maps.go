package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pinmap/pinmap/internal/core"
)

// ErrMapNotFound is returned when a named map does not exist.
var ErrMapNotFound = errors.New("map not found")

// SavedMap pairs a stored document with its bookkeeping columns.
type SavedMap struct {
	Name      string
	Document  core.MapDocument
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SaveMap stores a map document under a name, replacing any existing
// document with that name.
func (s *Store) SaveMap(ctx context.Context, name string, doc *core.MapDocument) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("map name is required")
	}
	if doc == nil {
		return errors.New("map document is required")
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode map document: %w", err)
	}

	now := time.Now().UTC().Unix()

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO maps (name, document, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			document = excluded.document,
			updated_at = excluded.updated_at
	`, name, string(docJSON), now, now)
	if err != nil {
		return fmt.Errorf("store map: %w", err)
	}

	return nil
}

// GetMap returns the stored map with the given name.
func (s *Store) GetMap(ctx context.Context, name string) (*SavedMap, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("map name is required")
	}

	var (
		docJSON   string
		createdAt int64
		updatedAt int64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT document, created_at, updated_at
		FROM maps
		WHERE name = ?
	`, name)

	if err := row.Scan(&docJSON, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMapNotFound
		}
		return nil, fmt.Errorf("fetch map: %w", err)
	}

	var doc core.MapDocument
	if err := json.Unmarshal([]byte(docJSON), &doc); err != nil {
		return nil, fmt.Errorf("decode map document: %w", err)
	}

	return &SavedMap{
		Name:      name,
		Document:  doc,
		CreatedAt: time.Unix(createdAt, 0).UTC(),
		UpdatedAt: time.Unix(updatedAt, 0).UTC(),
	}, nil
}

// ListMaps returns the names of all stored maps with their timestamps.
func (s *Store) ListMaps(ctx context.Context) ([]SavedMap, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT name, document, created_at, updated_at
		FROM maps
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var maps []SavedMap
	for rows.Next() {
		var (
			name      string
			docJSON   string
			createdAt int64
			updatedAt int64
		)
		if err := rows.Scan(&name, &docJSON, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan map: %w", err)
		}

		var doc core.MapDocument
		if err := json.Unmarshal([]byte(docJSON), &doc); err != nil {
			return nil, fmt.Errorf("decode map document %q: %w", name, err)
		}

		maps = append(maps, SavedMap{
			Name:      name,
			Document:  doc,
			CreatedAt: time.Unix(createdAt, 0).UTC(),
			UpdatedAt: time.Unix(updatedAt, 0).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}

	return maps, nil
}

// DeleteMap removes a stored map by name.
func (s *Store) DeleteMap(ctx context.Context, name string) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("map name is required")
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM maps WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete map: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrMapNotFound
	}

	return nil
}
