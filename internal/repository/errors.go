// Package repository implements MySQL persistence for the booking
// domain. Each table gets its own repository struct; methods suffixed Tx
// run inside a caller-supplied transaction so multi-table sequences can
// commit or roll back as a unit. This file defines sentinel errors
// shared across repositories so that handlers can distinguish failure
// scenarios with errors.Is.
package repository

import (
	"errors"
	"strings"
)

// ErrEmailExists is returned when registering a user whose email is
// already taken. Handlers translate this into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")

// ErrScheduleExists is returned when creating or updating a schedule
// that would collide with an existing (route, date) or
// (route, date, bus) combination. Handlers translate this into an
// HTTP 409 response.
var ErrScheduleExists = errors.New("schedule already exists")

// ErrPlateExists is returned when a bus plate number is already
// registered. Handlers translate this into an HTTP 409 response.
var ErrPlateExists = errors.New("plate number already exists")

// isDuplicateKey reports whether err is a MySQL duplicate-entry error
// (error 1062).
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "1062")
}
