package util

import "errors"

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidID        = errors.New("invalid id")
)
