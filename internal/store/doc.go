// Package store persists projects and their build records in SQLite.
//
// Projects are mutable aggregates updated after each build; build records are
// append-only. Both live in one database file so a deployment needs no
// external service.
package store
