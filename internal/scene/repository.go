package scene

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for scene persistence operations.
type Repository interface {
	ListScenes(ctx context.Context) ([]Scene, error)
	GetScene(ctx context.Context, id string) (*Scene, error)
	CreateScene(ctx context.Context, scene *Scene) error
	UpdateScene(ctx context.Context, scene *Scene) error
	DeleteScene(ctx context.Context, id string) error

	// ActivateScene marks the scene active and every other scene inactive
	// in a single transaction. The change is visible to assignment
	// resolution immediately on return.
	ActivateScene(ctx context.Context, id string) error
	ActiveScene(ctx context.Context) (*Scene, error)

	// ResolveActiveAssignment returns the screen's config from whichever
	// scene is active. ErrConfigNotFound when the active scene carries no
	// config for the screen.
	ResolveActiveAssignment(ctx context.Context, screenID string) (*ScreenConfig, error)

	// ResolveSceneConfigs returns every screen config in the scene.
	ResolveSceneConfigs(ctx context.Context, sceneID string) ([]ScreenConfig, error)

	// SetScreenConfig upserts a screen's config within a scene. The
	// playlist is rewritten wholesale: entries not in cfg are gone after
	// the call.
	SetScreenConfig(ctx context.Context, sceneID string, cfg *ScreenConfig) error
	DeleteScreenConfig(ctx context.Context, sceneID, screenID string) error

	// SetScreenZone updates only the zone attribute of a screen's config,
	// creating a minimal config when none exists. A nil zoneID clears it.
	SetScreenZone(ctx context.Context, sceneID, screenID string, zoneID *string) error

	// SetScreenDeviceTypes updates only the device type attributes of a
	// screen's config.
	SetScreenDeviceTypes(ctx context.Context, sceneID, screenID, deviceType string, secondary *string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed scene repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// ListScenes returns all scenes ordered by name.
func (r *SQLiteRepository) ListScenes(ctx context.Context) ([]Scene, error) {
	const query = `SELECT id, name, description, is_active, created_at, updated_at
		FROM scenes ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying scenes: %w", err)
	}
	defer rows.Close()

	var scenes []Scene
	for rows.Next() {
		s, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, *s)
	}
	return scenes, rows.Err()
}

// GetScene returns a single scene by ID.
func (r *SQLiteRepository) GetScene(ctx context.Context, id string) (*Scene, error) {
	const query = `SELECT id, name, description, is_active, created_at, updated_at
		FROM scenes WHERE id = ?`
	s, err := scanScene(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSceneNotFound
	}
	return s, err
}

// ActiveScene returns the scene currently marked active.
func (r *SQLiteRepository) ActiveScene(ctx context.Context) (*Scene, error) {
	const query = `SELECT id, name, description, is_active, created_at, updated_at
		FROM scenes WHERE is_active = 1 LIMIT 1`
	s, err := scanScene(r.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActiveScene
	}
	return s, err
}

// CreateScene inserts a new scene.
func (r *SQLiteRepository) CreateScene(ctx context.Context, scene *Scene) error {
	const query = `INSERT INTO scenes (id, name, description, is_active)
		VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		scene.ID, scene.Name, scene.Description, scene.IsActive)
	if err != nil {
		return fmt.Errorf("inserting scene %s: %w", scene.ID, err)
	}
	return nil
}

// UpdateScene updates a scene's name and description.
func (r *SQLiteRepository) UpdateScene(ctx context.Context, scene *Scene) error {
	const query = `UPDATE scenes SET name = ?, description = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, scene.Name, scene.Description, scene.ID)
	if err != nil {
		return fmt.Errorf("updating scene %s: %w", scene.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always reports
	if n == 0 {
		return ErrSceneNotFound
	}
	return nil
}

// DeleteScene removes a scene and, via cascade, its screen configs.
func (r *SQLiteRepository) DeleteScene(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM scenes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting scene %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always reports
	if n == 0 {
		return ErrSceneNotFound
	}
	return nil
}

// ActivateScene marks the scene active and all others inactive atomically.
func (r *SQLiteRepository) ActivateScene(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	result, err := tx.ExecContext(ctx, `UPDATE scenes SET is_active = 1,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("activating scene %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always reports
	if n == 0 {
		return ErrSceneNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE scenes SET is_active = 0 WHERE id != ?`, id); err != nil {
		return fmt.Errorf("deactivating other scenes: %w", err)
	}
	return tx.Commit()
}

// ResolveActiveAssignment returns the screen's config from the active scene.
func (r *SQLiteRepository) ResolveActiveAssignment(ctx context.Context, screenID string) (*ScreenConfig, error) {
	const query = `SELECT sc.id, sc.screen_id, sc.label, sc.mode, sc.static_page,
		sc.playlist_loop, sc.zone_id, sc.device_type, sc.device_type_secondary,
		sc.params_override
		FROM screen_configs sc
		JOIN scenes s ON s.id = sc.scene_id
		WHERE s.is_active = 1 AND sc.screen_id = ?`
	return r.queryConfig(ctx, query, screenID)
}

// ResolveSceneConfigs returns every screen config in the scene, ordered by
// screen id.
func (r *SQLiteRepository) ResolveSceneConfigs(ctx context.Context, sceneID string) ([]ScreenConfig, error) {
	const query = `SELECT id, screen_id, label, mode, static_page,
		playlist_loop, zone_id, device_type, device_type_secondary, params_override
		FROM screen_configs WHERE scene_id = ? ORDER BY screen_id`
	rows, err := r.db.QueryContext(ctx, query, sceneID)
	if err != nil {
		return nil, fmt.Errorf("querying screen configs: %w", err)
	}
	defer rows.Close()

	type rowConfig struct {
		rowID int64
		cfg   ScreenConfig
	}
	var configs []rowConfig
	for rows.Next() {
		rowID, cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, rowConfig{rowID, *cfg})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]ScreenConfig, 0, len(configs))
	for _, rc := range configs {
		if rc.cfg.Mode == ModePlaylist {
			playlist, err := r.loadPlaylist(ctx, rc.rowID)
			if err != nil {
				return nil, err
			}
			rc.cfg.Playlist = playlist
		}
		out = append(out, rc.cfg)
	}
	return out, nil
}

// SetScreenConfig upserts the screen's config and rewrites its playlist.
func (r *SQLiteRepository) SetScreenConfig(ctx context.Context, sceneID string, cfg *ScreenConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	params, err := marshalParams(cfg.ParamsOverride)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	const upsert = `INSERT INTO screen_configs
		(scene_id, screen_id, label, mode, static_page, playlist_loop,
		 zone_id, device_type, device_type_secondary, params_override)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (scene_id, screen_id) DO UPDATE SET
		 label = excluded.label,
		 mode = excluded.mode,
		 static_page = excluded.static_page,
		 playlist_loop = excluded.playlist_loop,
		 zone_id = excluded.zone_id,
		 device_type = excluded.device_type,
		 device_type_secondary = excluded.device_type_secondary,
		 params_override = excluded.params_override`
	if _, err := tx.ExecContext(ctx, upsert,
		sceneID, cfg.ScreenID, cfg.Label, string(cfg.Mode),
		nullIfEmpty(cfg.StaticPage), cfg.PlaylistLoop,
		nullIfEmpty(cfg.ZoneID), cfg.DeviceType,
		nullIfEmpty(cfg.DeviceTypeSecondary), params,
	); err != nil {
		return fmt.Errorf("upserting screen config %s/%s: %w", sceneID, cfg.ScreenID, err)
	}

	var rowID int64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM screen_configs WHERE scene_id = ? AND screen_id = ?`,
		sceneID, cfg.ScreenID,
	).Scan(&rowID); err != nil {
		return fmt.Errorf("reading screen config row id: %w", err)
	}

	// Full playlist rewrite
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM playlist_entries WHERE screen_config_id = ?`, rowID); err != nil {
		return fmt.Errorf("clearing playlist: %w", err)
	}
	for i, e := range cfg.Playlist {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO playlist_entries (screen_config_id, page_id, duration, sort_order, transition)
			 VALUES (?, ?, ?, ?, ?)`,
			rowID, e.PageID, e.Duration, i, e.Transition,
		); err != nil {
			return fmt.Errorf("inserting playlist entry %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// DeleteScreenConfig removes the screen's config from the scene.
func (r *SQLiteRepository) DeleteScreenConfig(ctx context.Context, sceneID, screenID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM screen_configs WHERE scene_id = ? AND screen_id = ?`,
		sceneID, screenID)
	if err != nil {
		return fmt.Errorf("deleting screen config %s/%s: %w", sceneID, screenID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always reports
	if n == 0 {
		return ErrConfigNotFound
	}
	return nil
}

// SetScreenZone updates the zone attribute only, creating a minimal config
// if the screen has none in the scene.
func (r *SQLiteRepository) SetScreenZone(ctx context.Context, sceneID, screenID string, zoneID *string) error {
	const query = `INSERT INTO screen_configs (scene_id, screen_id, mode, static_page, zone_id)
		VALUES (?, ?, 'static', 'hyperspace', ?)
		ON CONFLICT (scene_id, screen_id) DO UPDATE SET zone_id = excluded.zone_id`
	if _, err := r.db.ExecContext(ctx, query, sceneID, screenID, nullStr(zoneID)); err != nil {
		return fmt.Errorf("setting zone for %s/%s: %w", sceneID, screenID, err)
	}
	return nil
}

// SetScreenDeviceTypes updates the device type attributes only.
func (r *SQLiteRepository) SetScreenDeviceTypes(ctx context.Context, sceneID, screenID, deviceType string, secondary *string) error {
	if deviceType == "" {
		deviceType = DefaultDeviceType
	}
	const query = `INSERT INTO screen_configs (scene_id, screen_id, mode, static_page, device_type, device_type_secondary)
		VALUES (?, ?, 'static', 'hyperspace', ?, ?)
		ON CONFLICT (scene_id, screen_id) DO UPDATE SET
		 device_type = excluded.device_type,
		 device_type_secondary = excluded.device_type_secondary`
	if _, err := r.db.ExecContext(ctx, query, sceneID, screenID, deviceType, nullStr(secondary)); err != nil {
		return fmt.Errorf("setting device types for %s/%s: %w", sceneID, screenID, err)
	}
	return nil
}

// queryConfig runs a single-config query and loads its playlist.
func (r *SQLiteRepository) queryConfig(ctx context.Context, query string, args ...any) (*ScreenConfig, error) {
	rowID, cfg, err := scanConfig(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, err
	}
	if cfg.Mode == ModePlaylist {
		playlist, err := r.loadPlaylist(ctx, rowID)
		if err != nil {
			return nil, err
		}
		cfg.Playlist = playlist
	}
	return cfg, nil
}

// loadPlaylist returns the ordered playlist entries for a config row.
func (r *SQLiteRepository) loadPlaylist(ctx context.Context, configRowID int64) ([]PlaylistEntry, error) {
	const query = `SELECT page_id, duration, transition
		FROM playlist_entries WHERE screen_config_id = ? ORDER BY sort_order`
	rows, err := r.db.QueryContext(ctx, query, configRowID)
	if err != nil {
		return nil, fmt.Errorf("querying playlist: %w", err)
	}
	defer rows.Close()

	var entries []PlaylistEntry
	for rows.Next() {
		var e PlaylistEntry
		if err := rows.Scan(&e.PageID, &e.Duration, &e.Transition); err != nil {
			return nil, fmt.Errorf("scanning playlist entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanScene(s scanner) (*Scene, error) {
	var sc Scene
	var createdAt, updatedAt string
	if err := s.Scan(&sc.ID, &sc.Name, &sc.Description, &sc.IsActive,
		&createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning scene: %w", err)
	}
	sc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	sc.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
	return &sc, nil
}

func scanConfig(s scanner) (int64, *ScreenConfig, error) {
	var (
		rowID      int64
		cfg        ScreenConfig
		mode       string
		staticPage sql.NullString
		zoneID     sql.NullString
		secondary  sql.NullString
		params     sql.NullString
	)
	if err := s.Scan(&rowID, &cfg.ScreenID, &cfg.Label, &mode, &staticPage,
		&cfg.PlaylistLoop, &zoneID, &cfg.DeviceType, &secondary, &params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, err
		}
		return 0, nil, fmt.Errorf("scanning screen config: %w", err)
	}
	cfg.Mode = Mode(mode)
	cfg.StaticPage = staticPage.String
	cfg.ZoneID = zoneID.String
	cfg.DeviceTypeSecondary = secondary.String
	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &cfg.ParamsOverride); err != nil {
			return 0, nil, fmt.Errorf("decoding params_override: %w", err)
		}
	}
	return rowID, &cfg, nil
}

// marshalParams encodes params as JSON, NULL when empty.
func marshalParams(params map[string]any) (sql.NullString, error) {
	if len(params) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding params_override: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// nullIfEmpty converts "" to NULL for optional text columns.
func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStr converts a *string to a sql.NullString for nullable columns.
func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
