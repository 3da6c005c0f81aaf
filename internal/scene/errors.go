package scene

import "errors"

var (
	// ErrSceneNotFound is returned when a scene id does not exist.
	ErrSceneNotFound = errors.New("scene: scene not found")

	// ErrConfigNotFound is returned when a screen has no config in the
	// queried scene.
	ErrConfigNotFound = errors.New("scene: screen config not found")

	// ErrNoActiveScene is returned when no scene is marked active.
	ErrNoActiveScene = errors.New("scene: no active scene")

	// ErrInvalidConfig is returned when a screen config fails validation.
	ErrInvalidConfig = errors.New("scene: invalid screen config")
)
