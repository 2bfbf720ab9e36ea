// Package store keeps a SQLite log of crossing events and door refreshes.
//
// The schema lives in embedded migrations applied with golang-migrate when
// the store is opened. Each stored event carries the number of entries into
// its room during the preceding hour, computed at insert time.
package store
