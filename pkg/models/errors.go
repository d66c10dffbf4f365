package models

import "errors"

// ErrNotFound marks lookups and updates whose target row no longer exists.
var ErrNotFound = errors.New("not found")
