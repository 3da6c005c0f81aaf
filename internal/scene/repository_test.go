package scene

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/marchog/ops-core/internal/infrastructure/database"
	_ "github.com/marchog/ops-core/migrations" // Register embedded migrations
)

// openTestRepo creates a migrated database in a temp dir and returns a
// repository over it.
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

func TestSeededDefaultScene(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	active, err := repo.ActiveScene(ctx)
	if err != nil {
		t.Fatalf("ActiveScene() error = %v", err)
	}
	if active.ID != "default" {
		t.Errorf("active scene = %q, want default", active.ID)
	}
}

func TestSceneCRUD(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	s := &Scene{ID: "evening", Name: "Evening", Description: "After-hours layout"}
	if err := repo.CreateScene(ctx, s); err != nil {
		t.Fatalf("CreateScene() error = %v", err)
	}

	got, err := repo.GetScene(ctx, "evening")
	if err != nil {
		t.Fatalf("GetScene() error = %v", err)
	}
	if got.Name != "Evening" || got.IsActive {
		t.Errorf("GetScene() = %+v", got)
	}

	got.Name = "Evening Shift"
	if err := repo.UpdateScene(ctx, got); err != nil {
		t.Fatalf("UpdateScene() error = %v", err)
	}
	updated, _ := repo.GetScene(ctx, "evening")
	if updated.Name != "Evening Shift" {
		t.Errorf("name after update = %q", updated.Name)
	}

	if err := repo.DeleteScene(ctx, "evening"); err != nil {
		t.Fatalf("DeleteScene() error = %v", err)
	}
	if _, err := repo.GetScene(ctx, "evening"); !errors.Is(err, ErrSceneNotFound) {
		t.Errorf("GetScene() after delete error = %v, want ErrSceneNotFound", err)
	}
	if err := repo.DeleteScene(ctx, "evening"); !errors.Is(err, ErrSceneNotFound) {
		t.Errorf("double DeleteScene() error = %v, want ErrSceneNotFound", err)
	}
}

func TestActivateSceneSingleActive(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateScene(ctx, &Scene{ID: "evening", Name: "Evening"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.ActivateScene(ctx, "evening"); err != nil {
		t.Fatalf("ActivateScene() error = %v", err)
	}

	active, err := repo.ActiveScene(ctx)
	if err != nil {
		t.Fatalf("ActiveScene() error = %v", err)
	}
	if active.ID != "evening" {
		t.Errorf("active scene = %q, want evening", active.ID)
	}

	scenes, err := repo.ListScenes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	activeCount := 0
	for _, s := range scenes {
		if s.IsActive {
			activeCount++
		}
	}
	if activeCount != 1 {
		t.Errorf("active scene count = %d, want 1", activeCount)
	}

	if err := repo.ActivateScene(ctx, "missing"); !errors.Is(err, ErrSceneNotFound) {
		t.Errorf("ActivateScene(missing) error = %v, want ErrSceneNotFound", err)
	}
}

func TestSetScreenConfigStatic(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	cfg := &ScreenConfig{
		ScreenID:   "scr-lobby-1",
		Label:      "Lobby",
		Mode:       ModeStatic,
		StaticPage: "hyperspace",
		ZoneID:     "zone-reception",
		DeviceType: "door-panel",
		ParamsOverride: map[string]any{
			"brightness": float64(80),
		},
	}
	if err := repo.SetScreenConfig(ctx, "default", cfg); err != nil {
		t.Fatalf("SetScreenConfig() error = %v", err)
	}

	got, err := repo.ResolveActiveAssignment(ctx, "scr-lobby-1")
	if err != nil {
		t.Fatalf("ResolveActiveAssignment() error = %v", err)
	}
	if got.Mode != ModeStatic || got.StaticPage != "hyperspace" {
		t.Errorf("assignment = %+v", got)
	}
	if got.ZoneID != "zone-reception" || got.DeviceType != "door-panel" {
		t.Errorf("routing attrs = %+v", got)
	}
	if got.ParamsOverride["brightness"] != float64(80) {
		t.Errorf("params = %v", got.ParamsOverride)
	}
}

func TestSetScreenConfigPlaylistRewrite(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	first := &ScreenConfig{
		ScreenID:     "scr-1",
		Mode:         ModePlaylist,
		PlaylistLoop: true,
		Playlist: []PlaylistEntry{
			{PageID: "hyperspace", Duration: 10},
			{PageID: "weather", Duration: 20, Transition: "cut"},
			{PageID: "news"},
		},
	}
	if err := repo.SetScreenConfig(ctx, "default", first); err != nil {
		t.Fatalf("SetScreenConfig() error = %v", err)
	}

	got, err := repo.ResolveActiveAssignment(ctx, "scr-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Playlist) != 3 {
		t.Fatalf("playlist length = %d, want 3", len(got.Playlist))
	}
	// Defaults filled on validation
	if got.Playlist[2].Duration != DefaultDuration {
		t.Errorf("default duration = %d, want %d", got.Playlist[2].Duration, DefaultDuration)
	}
	if got.Playlist[0].Transition != DefaultTransition {
		t.Errorf("default transition = %q, want %q", got.Playlist[0].Transition, DefaultTransition)
	}
	if got.Playlist[1].Transition != "cut" {
		t.Errorf("transition = %q, want cut", got.Playlist[1].Transition)
	}

	// Upsert replaces the playlist wholesale
	second := &ScreenConfig{
		ScreenID: "scr-1",
		Mode:     ModePlaylist,
		Playlist: []PlaylistEntry{{PageID: "arrivals", Duration: 15}},
	}
	if err := repo.SetScreenConfig(ctx, "default", second); err != nil {
		t.Fatalf("second SetScreenConfig() error = %v", err)
	}
	got, err = repo.ResolveActiveAssignment(ctx, "scr-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Playlist) != 1 || got.Playlist[0].PageID != "arrivals" {
		t.Errorf("playlist after rewrite = %+v", got.Playlist)
	}
}

func TestResolveActiveAssignmentFollowsActiveScene(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateScene(ctx, &Scene{ID: "evening", Name: "Evening"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetScreenConfig(ctx, "default", &ScreenConfig{
		ScreenID: "scr-1", Mode: ModeStatic, StaticPage: "hyperspace",
	}); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetScreenConfig(ctx, "evening", &ScreenConfig{
		ScreenID: "scr-1", Mode: ModeStatic, StaticPage: "night-view",
	}); err != nil {
		t.Fatal(err)
	}

	got, err := repo.ResolveActiveAssignment(ctx, "scr-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.StaticPage != "hyperspace" {
		t.Errorf("assignment before activation = %q", got.StaticPage)
	}

	if err := repo.ActivateScene(ctx, "evening"); err != nil {
		t.Fatal(err)
	}
	got, err = repo.ResolveActiveAssignment(ctx, "scr-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.StaticPage != "night-view" {
		t.Errorf("assignment after activation = %q", got.StaticPage)
	}
}

func TestResolveActiveAssignmentNotFound(t *testing.T) {
	repo := openTestRepo(t)

	_, err := repo.ResolveActiveAssignment(context.Background(), "scr-unknown")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("error = %v, want ErrConfigNotFound", err)
	}
}

func TestResolveSceneConfigs(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	for _, id := range []string{"scr-b", "scr-a"} {
		if err := repo.SetScreenConfig(ctx, "default", &ScreenConfig{
			ScreenID: id, Mode: ModeStatic, StaticPage: "hyperspace",
		}); err != nil {
			t.Fatal(err)
		}
	}

	configs, err := repo.ResolveSceneConfigs(ctx, "default")
	if err != nil {
		t.Fatalf("ResolveSceneConfigs() error = %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("configs length = %d, want 2", len(configs))
	}
	if configs[0].ScreenID != "scr-a" || configs[1].ScreenID != "scr-b" {
		t.Errorf("configs not ordered by screen id: %+v", configs)
	}
}

func TestDeleteScreenConfig(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.SetScreenConfig(ctx, "default", &ScreenConfig{
		ScreenID: "scr-1", Mode: ModeStatic, StaticPage: "hyperspace",
	}); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteScreenConfig(ctx, "default", "scr-1"); err != nil {
		t.Fatalf("DeleteScreenConfig() error = %v", err)
	}
	if _, err := repo.ResolveActiveAssignment(ctx, "scr-1"); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("error = %v, want ErrConfigNotFound", err)
	}
	if err := repo.DeleteScreenConfig(ctx, "default", "scr-1"); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("double delete error = %v, want ErrConfigNotFound", err)
	}
}

func TestSetScreenZone(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	// Creates a minimal config when none exists
	zone := "zone-reception"
	if err := repo.SetScreenZone(ctx, "default", "scr-1", &zone); err != nil {
		t.Fatalf("SetScreenZone() error = %v", err)
	}
	got, err := repo.ResolveActiveAssignment(ctx, "scr-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ZoneID != "zone-reception" {
		t.Errorf("zone = %q", got.ZoneID)
	}
	if got.Mode != ModeStatic || got.StaticPage == "" {
		t.Errorf("minimal config = %+v", got)
	}

	// Clearing
	if err := repo.SetScreenZone(ctx, "default", "scr-1", nil); err != nil {
		t.Fatal(err)
	}
	got, _ = repo.ResolveActiveAssignment(ctx, "scr-1")
	if got.ZoneID != "" {
		t.Errorf("zone after clear = %q", got.ZoneID)
	}
}

func TestSetScreenDeviceTypes(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	secondary := "info-display"
	if err := repo.SetScreenDeviceTypes(ctx, "default", "scr-1", "door-panel", &secondary); err != nil {
		t.Fatalf("SetScreenDeviceTypes() error = %v", err)
	}
	got, err := repo.ResolveActiveAssignment(ctx, "scr-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.DeviceType != "door-panel" || got.DeviceTypeSecondary != "info-display" {
		t.Errorf("device types = %q / %q", got.DeviceType, got.DeviceTypeSecondary)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ScreenConfig
		wantErr bool
	}{
		{"static ok", ScreenConfig{ScreenID: "s", Mode: ModeStatic, StaticPage: "p"}, false},
		{"static missing page", ScreenConfig{ScreenID: "s", Mode: ModeStatic}, true},
		{"playlist ok", ScreenConfig{ScreenID: "s", Mode: ModePlaylist, Playlist: []PlaylistEntry{{PageID: "p"}}}, false},
		{"playlist empty", ScreenConfig{ScreenID: "s", Mode: ModePlaylist}, true},
		{"playlist entry missing page", ScreenConfig{ScreenID: "s", Mode: ModePlaylist, Playlist: []PlaylistEntry{{}}}, true},
		{"missing screen id", ScreenConfig{Mode: ModeStatic, StaticPage: "p"}, true},
		{"unknown mode", ScreenConfig{ScreenID: "s", Mode: "carousel"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error not wrapped in ErrInvalidConfig: %v", err)
			}
		})
	}
}
