// Package automation stores named action lists and executes them against
// connected screens and the bus. An automation is a user-triggered macro:
// run it and every navigate action fans out to its targets.
package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when an automation id does not exist.
	ErrNotFound = errors.New("automation: not found")

	// ErrDisabled is returned when running a disabled automation.
	ErrDisabled = errors.New("automation: disabled")
)

// Action is one step of an automation. Only navigate actions are
// understood; other types are skipped when run.
type Action struct {
	Type   string         `json:"type"`
	PageID string         `json:"page_id,omitempty"`
	Params map[string]any `json:"params,omitempty"`

	// PublishTo holds bus targets (topic names or screen ids).
	PublishTo []string `json:"publish_to,omitempty"`

	// Targets holds screen ids addressed over their direct connection.
	Targets []string `json:"targets,omitempty"`
}

// Automation is a stored, manually triggered action list.
type Automation struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Enabled     bool      `json:"enabled"`
	Actions     []Action  `json:"actions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Repository persists automations.
type Repository interface {
	List(ctx context.Context) ([]Automation, error)
	Get(ctx context.Context, id string) (*Automation, error)
	Create(ctx context.Context, a *Automation) error
	Update(ctx context.Context, a *Automation) error
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository stores automations in the automations table with the
// action list serialized as JSON.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List returns all automations ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Automation, error) {
	const query = `SELECT id, name, description, icon, enabled, actions, created_at, updated_at
		FROM automations ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying automations: %w", err)
	}
	defer rows.Close()

	var autos []Automation
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, err
		}
		autos = append(autos, *a)
	}
	return autos, rows.Err()
}

// Get returns one automation by id.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Automation, error) {
	const query = `SELECT id, name, description, icon, enabled, actions, created_at, updated_at
		FROM automations WHERE id = ?`
	a, err := scanAutomation(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("automation %s: %w", id, ErrNotFound)
	}
	return a, err
}

// Create inserts a new automation.
func (r *SQLiteRepository) Create(ctx context.Context, a *Automation) error {
	actions, err := marshalActions(a.Actions)
	if err != nil {
		return err
	}
	const query = `INSERT INTO automations (id, name, description, icon, enabled, actions)
		VALUES (?, ?, ?, ?, ?, ?)`
	if a.Icon == "" {
		a.Icon = "ti-bolt"
	}
	_, err = r.db.ExecContext(ctx, query,
		a.ID, a.Name, a.Description, a.Icon, a.Enabled, actions)
	if err != nil {
		return fmt.Errorf("inserting automation %s: %w", a.ID, err)
	}
	return nil
}

// Update replaces an automation's fields, including its action list.
func (r *SQLiteRepository) Update(ctx context.Context, a *Automation) error {
	actions, err := marshalActions(a.Actions)
	if err != nil {
		return err
	}
	const query = `UPDATE automations SET name = ?, description = ?, icon = ?,
		enabled = ?, actions = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		a.Name, a.Description, a.Icon, a.Enabled, actions, a.ID)
	if err != nil {
		return fmt.Errorf("updating automation %s: %w", a.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always reports
	if n == 0 {
		return fmt.Errorf("automation %s: %w", a.ID, ErrNotFound)
	}
	return nil
}

// Delete removes an automation.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM automations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting automation %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always reports
	if n == 0 {
		return fmt.Errorf("automation %s: %w", id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAutomation(s scanner) (*Automation, error) {
	var (
		a                    Automation
		actions              string
		createdAt, updatedAt string
	)
	if err := s.Scan(&a.ID, &a.Name, &a.Description, &a.Icon, &a.Enabled,
		&actions, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning automation: %w", err)
	}
	if err := json.Unmarshal([]byte(actions), &a.Actions); err != nil {
		return nil, fmt.Errorf("decoding actions for %s: %w", a.ID, err)
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
	return &a, nil
}

func marshalActions(actions []Action) (string, error) {
	if actions == nil {
		actions = []Action{}
	}
	data, err := json.Marshal(actions)
	if err != nil {
		return "", fmt.Errorf("encoding actions: %w", err)
	}
	return string(data), nil
}
