package stream

import (
	"fmt"
	"path"
	"strings"
)

const (
	// DefaultVideoType is served for video files with an unrecognised extension.
	DefaultVideoType = "video/mp4"
	// DefaultFileType is served for generic files with an unrecognised extension.
	DefaultFileType = "application/octet-stream"
)

var videoTypes = map[string]string{
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"ogg":  "video/ogg",
	"ogv":  "video/ogg",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
	"mkv":  "video/x-matroska",
	"flv":  "video/x-flv",
}

var fileTypes = map[string]string{
	// Video
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"ogg":  "video/ogg",

	// Audio
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"flac": "audio/flac",

	// Documents
	"pdf": "application/pdf",
	"txt": "text/plain",

	// Images
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
}

// ContentTyper maps a resource locator to the MIME type it is served with.
type ContentTyper func(locator string) (string, error)

// VideoContentType resolves video container types, defaulting to video/mp4.
func VideoContentType(locator string) (string, error) {
	return lookupType(locator, videoTypes, DefaultVideoType)
}

// FileContentType resolves a broader table for arbitrary assets, defaulting to
// application/octet-stream.
func FileContentType(locator string) (string, error) {
	return lookupType(locator, fileTypes, DefaultFileType)
}

func lookupType(locator string, table map[string]string, fallback string) (string, error) {
	ext := strings.TrimPrefix(path.Ext(strings.ReplaceAll(locator, `\`, "/")), ".")
	if ext == "" {
		return "", fmt.Errorf("%w: %q has no file extension", ErrInvalidResource, path.Base(locator))
	}
	if ct, ok := table[strings.ToLower(ext)]; ok {
		return ct, nil
	}
	return fallback, nil
}
