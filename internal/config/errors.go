package config

import "errors"

// ErrInvalid indicates that a loaded configuration failed validation.
var ErrInvalid = errors.New("invalid configuration")
