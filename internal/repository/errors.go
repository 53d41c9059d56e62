// Package repository implements transactional persistence for users,
// refresh-token ledger entries, sessions and single-use credentials over a
// relational store. Sentinel errors defined here let the service layer
// distinguish failure scenarios without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row, or when a guarded
// update (rotation, consume) finds its precondition already spent.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert violates the unique email
// constraint.
var ErrEmailExists = errors.New("email already exists")

// ErrUsernameExists is returned when an insert violates the unique username
// constraint.
var ErrUsernameExists = errors.New("username already exists")
