package util

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const runIDLength = 8

// NewRunID returns a short identifier for a board run, used in URLs and
// routing keys.
func NewRunID() (string, error) {
	return gonanoid.New(runIDLength)
}

// NewID returns a standard 21-character nanoid, used for findings and other
// internal records.
func NewID() (string, error) {
	return gonanoid.New()
}

// IsRunID reports whether s looks like an ID produced by NewRunID.
func IsRunID(s string) bool {
	if len(s) != runIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
