// Package adapter provides clients for the external content and model APIs
// used by the generation pipeline.
package adapter

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of an upstream error body is kept for logs.
const maxErrorBody = 512

var (
	// ErrEmptyContent is returned when a scrape succeeds but yields no text
	ErrEmptyContent = errors.New("scraped content is empty")
	// ErrInvalidRepositoryURL is returned for URLs without an owner/repo path
	ErrInvalidRepositoryURL = errors.New("invalid GitHub URL, must be in format: github.com/owner/repo")
	// ErrRepositoryNotFound is returned when the repository is missing or private
	ErrRepositoryNotFound = errors.New("repository not found, make sure the repository is public")
	// ErrEmptyOutput is returned when a model answers with no text
	ErrEmptyOutput = errors.New("model returned empty output")
)

// StatusError is a non-2xx response from an upstream API
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s request failed with status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s request failed with status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// newStatusError drains resp.Body into a StatusError.
func newStatusError(provider string, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// StatusCode returns the upstream status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
