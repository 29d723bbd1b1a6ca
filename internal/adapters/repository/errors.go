package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidLimit = errors.New("invalid ratings limit")
	ErrDuplicateRun = errors.New("audit run already exists")
	ErrCorpusDir    = errors.New("corpus directory unreadable")
)
