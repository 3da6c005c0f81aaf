// Package routing decides which connected screens a bus message addresses
// and builds the marchog topic namespace used across the codebase.
//
// Matching is a pure function over the topic string and a screen's routing
// metadata, so delivery decisions can be tested without a broker.
package routing
