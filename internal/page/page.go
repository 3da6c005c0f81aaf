package page

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ErrPageNotFound is returned when a page ID does not exist.
var ErrPageNotFound = errors.New("page not found")

// Page is a displayable HTML document registered with the server.
type Page struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	File        string         `json:"file"`
	Icon        string         `json:"icon"`
	Category    string         `json:"category"`
	Params      map[string]any `json:"params,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Repository defines the interface for page persistence operations.
type Repository interface {
	Create(ctx context.Context, page *Page) error
	List(ctx context.Context) ([]Page, error)
	Get(ctx context.Context, id string) (*Page, error)
	Update(ctx context.Context, page *Page) error
	Delete(ctx context.Context, id string) error

	// Scan registers any *.html file in dir that has no page entry yet.
	// Returns the ids of newly registered pages.
	Scan(ctx context.Context, dir string) ([]string, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed page repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new page.
func (r *SQLiteRepository) Create(ctx context.Context, page *Page) error {
	params, err := marshalParams(page.Params)
	if err != nil {
		return err
	}
	if page.Category == "" {
		page.Category = "general"
	}
	const query = `INSERT INTO pages (id, name, description, file, icon, category, params)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query,
		page.ID, page.Name, page.Description, page.File, page.Icon,
		page.Category, params); err != nil {
		return fmt.Errorf("inserting page %s: %w", page.ID, err)
	}
	return nil
}

// List returns all pages ordered by category then name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Page, error) {
	const query = `SELECT id, name, description, file, icon, category, params, created_at
		FROM pages ORDER BY category, name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying pages: %w", err)
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, *p)
	}
	return pages, rows.Err()
}

// Get returns a single page by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Page, error) {
	const query = `SELECT id, name, description, file, icon, category, params, created_at
		FROM pages WHERE id = ?`
	p, err := scanPage(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPageNotFound
	}
	return p, err
}

// Update updates a page's mutable fields.
func (r *SQLiteRepository) Update(ctx context.Context, page *Page) error {
	params, err := marshalParams(page.Params)
	if err != nil {
		return err
	}
	const query = `UPDATE pages SET name = ?, description = ?, file = ?, icon = ?,
		category = ?, params = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		page.Name, page.Description, page.File, page.Icon, page.Category,
		params, page.ID)
	if err != nil {
		return fmt.Errorf("updating page %s: %w", page.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always reports
	if n == 0 {
		return ErrPageNotFound
	}
	return nil
}

// Delete removes a page.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting page %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always reports
	if n == 0 {
		return ErrPageNotFound
	}
	return nil
}

// Scan registers every *.html file in dir whose basename has no page yet.
// The file's basename (without extension) becomes the page id and a
// title-cased variant its name.
func (r *SQLiteRepository) Scan(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading pages directory: %w", err)
	}

	existing, err := r.existingFiles(ctx)
	if err != nil {
		return nil, err
	}

	var added []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".html") {
			continue
		}
		if existing[name] {
			continue
		}

		id := strings.TrimSuffix(name, ".html")
		p := &Page{
			ID:       id,
			Name:     titleFromID(id),
			File:     name,
			Category: "general",
		}
		if err := r.Create(ctx, p); err != nil {
			return added, fmt.Errorf("registering scanned page %s: %w", id, err)
		}
		added = append(added, id)
	}
	return added, nil
}

// existingFiles returns the set of file names already registered.
func (r *SQLiteRepository) existingFiles(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT file FROM pages`)
	if err != nil {
		return nil, fmt.Errorf("querying page files: %w", err)
	}
	defer rows.Close()

	files := make(map[string]bool)
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("scanning page file: %w", err)
		}
		files[f] = true
	}
	return files, rows.Err()
}

// titleFromID turns "departure-board" into "Departure Board".
func titleFromID(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPage(s scanner) (*Page, error) {
	var (
		p         Page
		params    sql.NullString
		createdAt string
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Description, &p.File, &p.Icon,
		&p.Category, &params, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning page: %w", err)
	}
	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &p.Params); err != nil {
			return nil, fmt.Errorf("decoding page params: %w", err)
		}
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	return &p, nil
}

func marshalParams(params map[string]any) (sql.NullString, error) {
	if len(params) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding page params: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
