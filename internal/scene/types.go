package scene

import (
	"fmt"
	"time"
)

// Mode selects how a screen displays its assignment.
type Mode string

const (
	// ModeStatic shows a single page.
	ModeStatic Mode = "static"

	// ModePlaylist cycles through an ordered list of pages.
	ModePlaylist Mode = "playlist"
)

// Scene is a named set of per-screen display configs.
type Scene struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PlaylistEntry is one step of a playlist. Entries have no identity beyond
// their position; replacing a playlist rewrites the full ordered sequence.
type PlaylistEntry struct {
	PageID     string `json:"page_id"`
	Duration   int    `json:"duration"`
	Transition string `json:"transition"`
}

// ScreenConfig is a screen's display assignment within a scene. It also
// carries the screen's routing attributes (zone, device types), which feed
// the topic router's metadata at connection time.
type ScreenConfig struct {
	ScreenID            string          `json:"screen_id"`
	Label               string          `json:"label"`
	Mode                Mode            `json:"mode"`
	StaticPage          string          `json:"static_page,omitempty"`
	Playlist            []PlaylistEntry `json:"playlist,omitempty"`
	PlaylistLoop        bool            `json:"playlist_loop"`
	ZoneID              string          `json:"zone_id,omitempty"`
	DeviceType          string          `json:"device_type"`
	DeviceTypeSecondary string          `json:"device_type_secondary,omitempty"`
	ParamsOverride      map[string]any  `json:"params_override,omitempty"`
}

// Defaults applied when a config omits them.
const (
	DefaultDeviceType = "info-display"
	DefaultDuration   = 30
	DefaultTransition = "fade"
)

// Validate checks a screen config for internal consistency and fills
// playlist entry defaults.
func (c *ScreenConfig) Validate() error {
	if c.ScreenID == "" {
		return fmt.Errorf("%w: screen_id is required", ErrInvalidConfig)
	}
	if c.DeviceType == "" {
		c.DeviceType = DefaultDeviceType
	}

	switch c.Mode {
	case ModeStatic:
		if c.StaticPage == "" {
			return fmt.Errorf("%w: static mode requires static_page", ErrInvalidConfig)
		}
	case ModePlaylist:
		if len(c.Playlist) == 0 {
			return fmt.Errorf("%w: playlist mode requires at least one entry", ErrInvalidConfig)
		}
		for i := range c.Playlist {
			e := &c.Playlist[i]
			if e.PageID == "" {
				return fmt.Errorf("%w: playlist entry %d missing page_id", ErrInvalidConfig, i)
			}
			if e.Duration <= 0 {
				e.Duration = DefaultDuration
			}
			if e.Transition == "" {
				e.Transition = DefaultTransition
			}
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	return nil
}
