// Package repository holds the MySQL data access layer. Sentinel errors
// defined here let handlers map failure scenarios onto HTTP statuses
// without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when a row does not exist or does not
// belong to the caller. Handlers translate this into an HTTP 404.
var ErrNotFound = errors.New("not found")
