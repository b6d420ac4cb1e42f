package domain

import "errors"

var (
	ErrActorNotFound = errors.New("actor not found")
	ErrNoContent     = errors.New("no content available")
	ErrNoNewContent  = errors.New("no new content available")
	ErrDrawIgnored   = errors.New("draw ignored")
	ErrInvalidRating = errors.New("rating must be between 0 and 5")
)
