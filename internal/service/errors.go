package service

import (
	"errors"
	"fmt"

	"alcyxob/video-catalog/internal/domain"
	"alcyxob/video-catalog/internal/repository"
	"alcyxob/video-catalog/internal/stream"
)

// --- Error Definitions ---
var (
	ErrVideoNotFound    = errors.New("video not found")
	ErrVideoExists      = errors.New("video already exists")
	ErrValidationFailed = errors.New("video validation failed")
	ErrAgeRestricted    = errors.New("uploader does not meet the video's age constraint")
	ErrUpstreamFailure  = errors.New("upstream store failure")

	// Media errors, re-exported so callers need only this package.
	ErrInvalidRange    = stream.ErrInvalidRange
	ErrInvalidResource = stream.ErrInvalidResource
	ErrFileNotFound    = stream.ErrFileNotFound
)

// translate maps store errors onto the service taxonomy, keeping the cause.
func translate(op string, err error) error {
	var validation domain.ValidationError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrVideoNotFound
	case errors.Is(err, repository.ErrAlreadyExists):
		return fmt.Errorf("%w: %v", ErrVideoExists, err)
	case errors.As(err, &validation):
		return fmt.Errorf("%w: %s", ErrValidationFailed, validation)
	case errors.Is(err, ErrVideoNotFound), errors.Is(err, ErrVideoExists), errors.Is(err, ErrValidationFailed), errors.Is(err, ErrUpstreamFailure):
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpstreamFailure, err)
}
