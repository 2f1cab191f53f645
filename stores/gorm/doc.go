// Package gorm provides a GORM-backed UserStore for secretwall, intended
// for Postgres. Find-or-create uses an ON CONFLICT insert so it stays a
// single atomic statement.
package gorm
