package page

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/marchog/ops-core/internal/infrastructure/database"
	_ "github.com/marchog/ops-core/migrations" // Register embedded migrations
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestSeededDefaultPage(t *testing.T) {
	repo := openTestRepo(t)

	p, err := repo.Get(context.Background(), "hyperspace")
	if err != nil {
		t.Fatalf("Get(hyperspace) error = %v", err)
	}
	if p.File != "hyperspace.html" {
		t.Errorf("file = %q", p.File)
	}
}

func TestPageCRUD(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	p := &Page{
		ID:     "departures",
		Name:   "Departures",
		File:   "departures.html",
		Params: map[string]any{"refresh": float64(60)},
	}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.Category != "general" {
		t.Errorf("default category = %q", p.Category)
	}

	got, err := repo.Get(ctx, "departures")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Params["refresh"] != float64(60) {
		t.Errorf("params = %v", got.Params)
	}

	got.Name = "Departure Board"
	got.Category = "transport"
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	updated, _ := repo.Get(ctx, "departures")
	if updated.Name != "Departure Board" || updated.Category != "transport" {
		t.Errorf("after update = %+v", updated)
	}

	if err := repo.Delete(ctx, "departures"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, "departures"); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrPageNotFound", err)
	}
	if err := repo.Delete(ctx, "departures"); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("double Delete() error = %v, want ErrPageNotFound", err)
	}
}

func TestList(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &Page{ID: "a", Name: "A", File: "a.html", Category: "zz"}); err != nil {
		t.Fatal(err)
	}
	pages, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	// Seeded hyperspace plus the new one, ordered by category
	if len(pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(pages))
	}
	if pages[0].ID != "hyperspace" || pages[1].ID != "a" {
		t.Errorf("order = %s, %s", pages[0].ID, pages[1].ID)
	}
}

func TestScan(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	dir := t.TempDir()
	for _, name := range []string{"departure-board.html", "hyperspace.html", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("<html></html>"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	added, err := repo.Scan(ctx, dir)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	// hyperspace.html already registered by the seed; notes.txt skipped
	if len(added) != 1 || added[0] != "departure-board" {
		t.Fatalf("added = %v, want [departure-board]", added)
	}

	p, err := repo.Get(ctx, "departure-board")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.Name != "Departure Board" {
		t.Errorf("derived name = %q, want Departure Board", p.Name)
	}
	if p.File != "departure-board.html" {
		t.Errorf("file = %q", p.File)
	}

	// Second scan is a no-op
	added, err = repo.Scan(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(added) != 0 {
		t.Errorf("second scan added = %v, want none", added)
	}
}

func TestTitleFromID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"departure-board", "Departure Board"},
		{"hyperspace", "Hyperspace"},
		{"lobby_welcome", "Lobby Welcome"},
	}
	for _, tt := range tests {
		if got := titleFromID(tt.id); got != tt.want {
			t.Errorf("titleFromID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
