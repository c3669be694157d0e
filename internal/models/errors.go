package models

import "errors"

var (
	ErrValidation           = errors.New("validation error")
	ErrNotFound             = errors.New("not found")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrIncompleteSubmission = errors.New("incomplete submission")
	ErrAlreadyEvaluated     = errors.New("already evaluated")
	ErrInvalidTransition    = errors.New("invalid state transition")
	ErrJobInUse             = errors.New("job has pending applications")
	ErrUpstreamUnavailable  = errors.New("upstream unavailable")
)
