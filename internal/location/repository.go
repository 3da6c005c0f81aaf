package location

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for location persistence operations.
type Repository interface {
	CreateRoom(ctx context.Context, room *Room) error
	ListRooms(ctx context.Context) ([]Room, error)
	ListRoomsWithZones(ctx context.Context) ([]RoomWithZones, error)
	GetRoom(ctx context.Context, id string) (*Room, error)
	UpdateRoom(ctx context.Context, room *Room) error
	DeleteRoom(ctx context.Context, id string) error

	CreateZone(ctx context.Context, zone *Zone) error
	ListZones(ctx context.Context) ([]Zone, error)
	ListZonesByRoom(ctx context.Context, roomID string) ([]Zone, error)
	GetZone(ctx context.Context, id string) (*Zone, error)
	UpdateZone(ctx context.Context, zone *Zone) error
	DeleteZone(ctx context.Context, id string) error

	// GetZoneRoom resolves a zone to its room id. ErrZoneNotFound when the
	// zone does not exist.
	GetZoneRoom(ctx context.Context, zoneID string) (string, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed location repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateRoom inserts a new room. A zero SortOrder is allocated past the
// current maximum.
func (r *SQLiteRepository) CreateRoom(ctx context.Context, room *Room) error {
	if room.SortOrder == 0 {
		if err := r.db.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(sort_order), 0) + 1 FROM rooms`,
		).Scan(&room.SortOrder); err != nil {
			return fmt.Errorf("allocating room sort order: %w", err)
		}
	}
	const query = `INSERT INTO rooms (id, name, description, icon, sort_order)
		VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		room.ID, room.Name, room.Description, room.Icon, room.SortOrder)
	if err != nil {
		return fmt.Errorf("inserting room %s: %w", room.ID, err)
	}
	return nil
}

// ListRooms returns all rooms ordered by sort_order then name.
func (r *SQLiteRepository) ListRooms(ctx context.Context) ([]Room, error) {
	const query = `SELECT id, name, description, icon, sort_order, created_at, updated_at
		FROM rooms ORDER BY sort_order, name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *room)
	}
	return rooms, rows.Err()
}

// ListRoomsWithZones returns all rooms with their zones attached.
func (r *SQLiteRepository) ListRoomsWithZones(ctx context.Context) ([]RoomWithZones, error) {
	rooms, err := r.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	zones, err := r.ListZones(ctx)
	if err != nil {
		return nil, err
	}

	byRoom := make(map[string][]Zone, len(rooms))
	for _, z := range zones {
		byRoom[z.RoomID] = append(byRoom[z.RoomID], z)
	}

	out := make([]RoomWithZones, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, RoomWithZones{Room: room, Zones: byRoom[room.ID]})
	}
	return out, nil
}

// GetRoom returns a single room by ID.
func (r *SQLiteRepository) GetRoom(ctx context.Context, id string) (*Room, error) {
	const query = `SELECT id, name, description, icon, sort_order, created_at, updated_at
		FROM rooms WHERE id = ?`
	room, err := scanRoom(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	return room, err
}

// UpdateRoom updates a room's mutable fields.
func (r *SQLiteRepository) UpdateRoom(ctx context.Context, room *Room) error {
	const query = `UPDATE rooms SET name = ?, description = ?, icon = ?, sort_order = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		room.Name, room.Description, room.Icon, room.SortOrder, room.ID)
	if err != nil {
		return fmt.Errorf("updating room %s: %w", room.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always reports
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// DeleteRoom removes a room. Rooms that still have zones are protected.
func (r *SQLiteRepository) DeleteRoom(ctx context.Context, id string) error {
	var zoneCount int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM zones WHERE room_id = ?`, id,
	).Scan(&zoneCount); err != nil {
		return fmt.Errorf("counting zones for room %s: %w", id, err)
	}
	if zoneCount > 0 {
		return ErrRoomHasZones
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting room %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always reports
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// CreateZone inserts a new zone. A zero SortOrder is allocated past the
// current maximum within the room.
func (r *SQLiteRepository) CreateZone(ctx context.Context, zone *Zone) error {
	if zone.SortOrder == 0 {
		if err := r.db.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(sort_order), 0) + 1 FROM zones WHERE room_id = ?`,
			zone.RoomID,
		).Scan(&zone.SortOrder); err != nil {
			return fmt.Errorf("allocating zone sort order: %w", err)
		}
	}
	const query = `INSERT INTO zones (id, room_id, name, description, icon, sort_order)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		zone.ID, zone.RoomID, zone.Name, zone.Description, zone.Icon, zone.SortOrder)
	if err != nil {
		return fmt.Errorf("inserting zone %s: %w", zone.ID, err)
	}
	return nil
}

// ListZones returns all zones ordered by room then sort_order.
func (r *SQLiteRepository) ListZones(ctx context.Context) ([]Zone, error) {
	const query = `SELECT id, room_id, name, description, icon, sort_order, created_at, updated_at
		FROM zones ORDER BY room_id, sort_order, name`
	return r.queryZones(ctx, query)
}

// ListZonesByRoom returns zones for a specific room.
func (r *SQLiteRepository) ListZonesByRoom(ctx context.Context, roomID string) ([]Zone, error) {
	const query = `SELECT id, room_id, name, description, icon, sort_order, created_at, updated_at
		FROM zones WHERE room_id = ? ORDER BY sort_order, name`
	return r.queryZones(ctx, query, roomID)
}

// GetZone returns a single zone by ID.
func (r *SQLiteRepository) GetZone(ctx context.Context, id string) (*Zone, error) {
	const query = `SELECT id, room_id, name, description, icon, sort_order, created_at, updated_at
		FROM zones WHERE id = ?`
	zone, err := scanZone(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrZoneNotFound
	}
	return zone, err
}

// UpdateZone updates a zone's mutable fields, including its room.
func (r *SQLiteRepository) UpdateZone(ctx context.Context, zone *Zone) error {
	const query = `UPDATE zones SET room_id = ?, name = ?, description = ?, icon = ?,
		sort_order = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		zone.RoomID, zone.Name, zone.Description, zone.Icon, zone.SortOrder, zone.ID)
	if err != nil {
		return fmt.Errorf("updating zone %s: %w", zone.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always reports
	if n == 0 {
		return ErrZoneNotFound
	}
	return nil
}

// DeleteZone removes a zone.
func (r *SQLiteRepository) DeleteZone(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM zones WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting zone %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always reports
	if n == 0 {
		return ErrZoneNotFound
	}
	return nil
}

// GetZoneRoom resolves a zone id to its room id.
func (r *SQLiteRepository) GetZoneRoom(ctx context.Context, zoneID string) (string, error) {
	var roomID string
	err := r.db.QueryRowContext(ctx,
		`SELECT room_id FROM zones WHERE id = ?`, zoneID,
	).Scan(&roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrZoneNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolving zone %s: %w", zoneID, err)
	}
	return roomID, nil
}

func (r *SQLiteRepository) queryZones(ctx context.Context, query string, args ...any) ([]Zone, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying zones: %w", err)
	}
	defer rows.Close()

	var zones []Zone
	for rows.Next() {
		zone, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, *zone)
	}
	return zones, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(s scanner) (*Room, error) {
	var room Room
	var createdAt, updatedAt string
	if err := s.Scan(&room.ID, &room.Name, &room.Description, &room.Icon,
		&room.SortOrder, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning room: %w", err)
	}
	room.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	room.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
	return &room, nil
}

func scanZone(s scanner) (*Zone, error) {
	var zone Zone
	var createdAt, updatedAt string
	if err := s.Scan(&zone.ID, &zone.RoomID, &zone.Name, &zone.Description,
		&zone.Icon, &zone.SortOrder, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning zone: %w", err)
	}
	zone.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	zone.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
	return &zone, nil
}
