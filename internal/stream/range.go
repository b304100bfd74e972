package stream

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Error constants for the streaming layer.
var (
	ErrInvalidRange    = errors.New("invalid byte range")
	ErrInvalidResource = errors.New("invalid media resource")
	ErrFileNotFound    = errors.New("media file not found")
)

// ByteRange is an inclusive [Start, End] window into a resource.
type ByteRange struct {
	Start int64
	End   int64
}

// Length is the number of bytes covered by the range.
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange formats the value of a Content-Range header for a resource of totalSize bytes.
func (r ByteRange) ContentRange(totalSize int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, totalSize)
}

// ResolveRange turns a raw Range header into a validated range over a resource
// of totalSize bytes. An empty header selects the whole resource.
//
// Only a single "bytes=<start>-<end>" spec is accepted. A missing start means 0
// and a missing end means the last byte, so "bytes=-500" reads [0, 500] rather
// than the trailing 500 bytes. Non-numeric bounds are rejected.
func ResolveRange(header string, totalSize int64) (ByteRange, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return validateRange(0, totalSize-1, totalSize)
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return ByteRange{}, fmt.Errorf("%w: unsupported range unit in %q", ErrInvalidRange, header)
	}
	if strings.Contains(spec, ",") {
		return ByteRange{}, fmt.Errorf("%w: multiple ranges are not supported", ErrInvalidRange)
	}

	startStr, endStr, found := strings.Cut(spec, "-")
	if !found {
		return ByteRange{}, fmt.Errorf("%w: malformed range %q", ErrInvalidRange, header)
	}

	start, err := parseBound(startStr, 0)
	if err != nil {
		return ByteRange{}, err
	}
	end, err := parseBound(endStr, totalSize-1)
	if err != nil {
		return ByteRange{}, err
	}

	return validateRange(start, end, totalSize)
}

func parseBound(raw string, fallback int64) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bound %q is not a number", ErrInvalidRange, raw)
	}
	return n, nil
}

// validateRange applies the bound checks in a fixed order so each failure
// reports its own reason.
func validateRange(start, end, totalSize int64) (ByteRange, error) {
	if start < 0 || end < 0 {
		return ByteRange{}, fmt.Errorf("%w: range values cannot be negative", ErrInvalidRange)
	}
	if start >= totalSize {
		return ByteRange{}, fmt.Errorf("%w: start position %d exceeds size %d", ErrInvalidRange, start, totalSize)
	}
	if end >= totalSize {
		return ByteRange{}, fmt.Errorf("%w: end position %d exceeds size %d", ErrInvalidRange, end, totalSize)
	}
	if start > end {
		return ByteRange{}, fmt.Errorf("%w: start position %d is after end position %d", ErrInvalidRange, start, end)
	}
	return ByteRange{Start: start, End: end}, nil
}
