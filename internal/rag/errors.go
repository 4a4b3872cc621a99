package rag

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrEmptyDocument    = errors.New("document is empty after extraction")
	ErrDocumentNotFound = errors.New("document not found")
)
