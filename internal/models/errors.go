package models

import "github.com/cockroachdb/errors"

// Storage sentinels shared by every store implementation.
var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
)
