package util

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const requestIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewRequestID returns a short, URL-safe identifier for a single ask run.
func NewRequestID() string {
	id, err := gonanoid.Generate(requestIDAlphabet, 16)
	if err != nil {
		// gonanoid only fails when the platform RNG is broken.
		panic(err)
	}
	return "run_" + id
}
