// Package scene persists scenes and per-screen assignments and coordinates
// scene activation.
//
// A scene maps screen ids to display configs (a static page or a playlist).
// Exactly one scene is active at a time; resolving a screen's current
// assignment always reads through the active scene. The Engine activates a
// scene and pushes the new assignments to every connected screen that has
// one.
package scene
