// Package location manages rooms and zones.
//
// A room is a physical space; a zone is a named position within a room
// where screens hang. Screens are tied to zones through their scene
// configs, and the zone's room feeds the topic router's metadata.
package location
