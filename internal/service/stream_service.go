package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"alcyxob/video-catalog/internal/domain"
	"alcyxob/video-catalog/internal/events"
	"alcyxob/video-catalog/internal/storage"
	"alcyxob/video-catalog/internal/stream"
)

// StreamDescriptor carries everything a transport needs to write the response
// headers for a byte range.
type StreamDescriptor struct {
	Start         int64
	End           int64
	ContentLength int64
	TotalSize     int64
	ContentType   string
	AcceptRanges  bool
	// Partial is set when the caller asked for a range; the response is then
	// 206 with a Content-Range header.
	Partial bool
}

// ContentRange formats the Content-Range header value.
func (d StreamDescriptor) ContentRange() string {
	return stream.ByteRange{Start: d.Start, End: d.End}.ContentRange(d.TotalSize)
}

// StreamResult is a descriptor plus the bounded byte source. The caller must
// Close Body.
type StreamResult struct {
	StreamDescriptor
	Body io.ReadCloser
}

// RangeNotSatisfiableError reports an invalid range along with the resource
// size, which a 416 response needs. It matches ErrInvalidRange.
type RangeNotSatisfiableError struct {
	TotalSize int64
	Err       error
}

func (e *RangeNotSatisfiableError) Error() string {
	return fmt.Sprintf("%v (resource is %d bytes)", e.Err, e.TotalSize)
}

func (e *RangeNotSatisfiableError) Unwrap() error {
	return e.Err
}

// FileMetadata describes the media behind a video record.
type FileMetadata struct {
	Video       *domain.Video `json:"video"`
	Exists      bool          `json:"exists"`
	Size        int64         `json:"size"`
	ContentType string        `json:"contentType"`
	DownloadURL string        `json:"downloadUrl,omitempty"`
}

// VideoLookup resolves a video ID to its record.
type VideoLookup interface {
	FindByID(ctx context.Context, id string) (*domain.Video, error)
}

// StreamService serves byte ranges of stored media.
type StreamService interface {
	StreamVideo(ctx context.Context, videoID, rangeHeader string) (*StreamResult, error)
	// ProbeVideo resolves the same descriptor as StreamVideo without opening
	// the media or counting a view. It answers HEAD requests.
	ProbeVideo(ctx context.Context, videoID, rangeHeader string) (StreamDescriptor, error)
	GetVideoFileMetadata(ctx context.Context, videoID string) (*FileMetadata, error)
	StreamFile(ctx context.Context, locator, rangeHeader string) (*StreamResult, error)
}

// streamService implements the StreamService interface.
type streamService struct {
	lookup VideoLookup
	media  stream.MediaStore
	files  stream.MediaStore
	views  events.ViewSink
}

// NewStreamService creates a stream service. files serves generic assets and
// may be nil; so may views, in which case nothing is recorded.
func NewStreamService(lookup VideoLookup, media stream.MediaStore, files stream.MediaStore, views events.ViewSink) StreamService {
	return &streamService{lookup: lookup, media: media, files: files, views: views}
}

// StreamVideo validates everything before opening the media, then signals one
// view per call.
func (s *streamService) StreamVideo(ctx context.Context, videoID, rangeHeader string) (*StreamResult, error) {
	video, err := s.lookup.FindByID(ctx, videoID)
	if err != nil {
		return nil, err
	}

	result, err := s.open(ctx, s.media, video.StoragePath, rangeHeader)
	if err != nil {
		if !errors.Is(err, ErrInvalidRange) && !errors.Is(err, ErrFileNotFound) {
			log.Printf("ERROR: Failed to stream video %s: %v", videoID, err)
		}
		return nil, err
	}

	if s.views != nil {
		s.views.NotifyViewed(ctx, video.ID)
	}
	return result, nil
}

func (s *streamService) ProbeVideo(ctx context.Context, videoID, rangeHeader string) (StreamDescriptor, error) {
	video, err := s.lookup.FindByID(ctx, videoID)
	if err != nil {
		return StreamDescriptor{}, err
	}
	return s.describe(ctx, s.media, video.StoragePath, rangeHeader)
}

// GetVideoFileMetadata reports whether the video's media exists, and adds a
// direct download link when the store can presign one.
func (s *streamService) GetVideoFileMetadata(ctx context.Context, videoID string) (*FileMetadata, error) {
	video, err := s.lookup.FindByID(ctx, videoID)
	if err != nil {
		return nil, err
	}

	meta, err := s.media.Stat(ctx, video.StoragePath)
	if err != nil {
		if errors.Is(err, ErrInvalidResource) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: stat media: %w", ErrUpstreamFailure, err)
	}

	result := &FileMetadata{Video: video, Exists: meta.Exists, Size: meta.Size, ContentType: meta.ContentType}
	if objects, ok := s.media.(storage.ObjectStorage); ok && meta.Exists {
		url, err := objects.GeneratePresignedDownloadURL(ctx, video.StoragePath, storage.DefaultPresignedURLExpiry)
		if err != nil {
			log.Printf("WARN: No download URL for video %s: %v", videoID, err)
		} else {
			result.DownloadURL = url
		}
	}
	return result, nil
}

// StreamFile serves a generic asset. Assets do not count as views.
func (s *streamService) StreamFile(ctx context.Context, locator, rangeHeader string) (*StreamResult, error) {
	if s.files == nil {
		return nil, ErrFileNotFound
	}
	return s.open(ctx, s.files, locator, rangeHeader)
}

func (s *streamService) describe(ctx context.Context, store stream.MediaStore, locator, rangeHeader string) (StreamDescriptor, error) {
	meta, err := store.Stat(ctx, locator)
	if err != nil {
		if errors.Is(err, ErrInvalidResource) {
			return StreamDescriptor{}, err
		}
		return StreamDescriptor{}, fmt.Errorf("%w: stat media: %w", ErrUpstreamFailure, err)
	}
	if !meta.Exists {
		return StreamDescriptor{}, ErrFileNotFound
	}

	window, err := stream.ResolveRange(rangeHeader, meta.Size)
	if err != nil {
		return StreamDescriptor{}, &RangeNotSatisfiableError{TotalSize: meta.Size, Err: err}
	}

	return StreamDescriptor{
		Start:         window.Start,
		End:           window.End,
		ContentLength: window.Length(),
		TotalSize:     meta.Size,
		ContentType:   meta.ContentType,
		AcceptRanges:  true,
		Partial:       strings.TrimSpace(rangeHeader) != "",
	}, nil
}

func (s *streamService) open(ctx context.Context, store stream.MediaStore, locator, rangeHeader string) (*StreamResult, error) {
	desc, err := s.describe(ctx, store, locator, rangeHeader)
	if err != nil {
		return nil, err
	}

	body, err := store.Open(ctx, locator, desc.Start, desc.End)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) || errors.Is(err, ErrInvalidResource) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: open media: %w", ErrUpstreamFailure, err)
	}
	return &StreamResult{StreamDescriptor: desc, Body: body}, nil
}
