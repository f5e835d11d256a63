package services

import "errors"

// ErrInvalidInput marks a request the service rejects before running anything
var ErrInvalidInput = errors.New("invalid input")
