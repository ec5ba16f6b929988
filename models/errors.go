package models

import "errors"

var (
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("not found")
	ErrTransientStore = errors.New("store unavailable")
	ErrConflict       = errors.New("conflict")
)
