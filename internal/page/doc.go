// Package page manages the registry of displayable pages.
//
// A page is a named HTML document a screen can show, either as a static
// assignment or as a playlist step. Scan picks up new page files dropped
// into the pages directory and registers them automatically.
package page
