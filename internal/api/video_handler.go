package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"alcyxob/video-catalog/internal/domain"
	"alcyxob/video-catalog/internal/leaderboard"
	"alcyxob/video-catalog/internal/service"

	"github.com/gin-gonic/gin"
)

// VideoHandler serves catalog lookups, writes and media streams.
type VideoHandler struct {
	catalog service.CatalogService
	streams service.StreamService
}

// NewVideoHandler creates a new VideoHandler.
func NewVideoHandler(catalog service.CatalogService, streams service.StreamService) *VideoHandler {
	return &VideoHandler{catalog: catalog, streams: streams}
}

// --- DTOs for API (Data Transfer Objects) ---

// CreateVideoRequest defines the expected JSON for registering a video.
type CreateVideoRequest struct {
	ID            string   `json:"id"` // Optional; generated when empty
	Title         string   `json:"title" binding:"required"`
	Description   string   `json:"description"`
	FilePath      string   `json:"filePath" binding:"required"`
	Owner         string   `json:"owner"` // Defaults to the caller
	Tags          []string `json:"tags"`
	AgeConstraint int      `json:"ageConstraint" binding:"min=0"`
}

// AddCommentRequest is the body of POST /videos/:id/comments.
type AddCommentRequest struct {
	Comment string `json:"comment" binding:"required"`
}

// VideoListResponse wraps every list result.
type VideoListResponse struct {
	Videos []domain.Video `json:"videos"`
}

// --- Handler Methods ---

// ListVideos handles GET /videos
func (h *VideoHandler) ListVideos(c *gin.Context) {
	videos, err := h.catalog.FindAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, VideoListResponse{Videos: videos})
}

// SearchVideos handles GET /videos/search?q=
func (h *VideoHandler) SearchVideos(c *gin.Context) {
	videos, err := h.catalog.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, VideoListResponse{Videos: videos})
}

// GetVideo handles GET /videos/:id
func (h *VideoHandler) GetVideo(c *gin.Context) {
	video, err := h.catalog.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

// GetVideoByTitle handles GET /videos/title/:title
func (h *VideoHandler) GetVideoByTitle(c *gin.Context) {
	video, err := h.catalog.FindByTitle(c.Request.Context(), c.Param("title"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

// GetVideosByOwner handles GET /videos/owner/:ownerId
func (h *VideoHandler) GetVideosByOwner(c *gin.Context) {
	videos, err := h.catalog.FindByOwner(c.Request.Context(), c.Param("ownerId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, VideoListResponse{Videos: videos})
}

// CreateVideo handles POST /videos. The caller's age claim must satisfy the
// video's age constraint.
func (h *VideoHandler) CreateVideo(c *gin.Context) {
	var req CreateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	video, err := h.catalog.Create(c.Request.Context(), domain.Video{
		ID:            req.ID,
		Title:         req.Title,
		Description:   req.Description,
		StoragePath:   req.FilePath,
		OwnerID:       req.Owner,
		Tags:          req.Tags,
		AgeConstraint: req.AgeConstraint,
	}, service.Uploader{ID: userID, Age: getUserAgeFromContext(c)})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, video)
}

// UpdateVideo handles PUT /videos/:id with a partial body.
func (h *VideoHandler) UpdateVideo(c *gin.Context) {
	var patch domain.VideoPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	video, err := h.catalog.UpdateByID(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

// DeleteVideoByTitle handles DELETE /videos/title/:title
func (h *VideoHandler) DeleteVideoByTitle(c *gin.Context) {
	video, err := h.catalog.DeleteByTitle(c.Request.Context(), c.Param("title"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

// AddComment handles POST /videos/:id/comments
func (h *VideoHandler) AddComment(c *gin.Context) {
	var req AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	if err := h.catalog.AddComment(c.Request.Context(), c.Param("id"), req.Comment); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetVideoMetadata handles GET /videos/:id/metadata
func (h *VideoHandler) GetVideoMetadata(c *gin.Context) {
	meta, err := h.streams.GetVideoFileMetadata(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

// StreamVideo handles GET /videos/:id/stream, honouring a single Range header.
func (h *VideoHandler) StreamVideo(c *gin.Context) {
	result, err := h.streams.StreamVideo(c.Request.Context(), c.Param("id"), c.GetHeader("Range"))
	if err != nil {
		respondError(c, err)
		return
	}
	writeStream(c, result)
}

// ProbeVideo handles HEAD /videos/:id/stream
func (h *VideoHandler) ProbeVideo(c *gin.Context) {
	desc, err := h.streams.ProbeVideo(c.Request.Context(), c.Param("id"), c.GetHeader("Range"))
	if err != nil {
		respondError(c, err)
		return
	}
	for k, v := range streamHeaders(desc) {
		c.Header(k, v)
	}
	c.Header("Content-Type", desc.ContentType)
	c.Header("Content-Length", strconv.FormatInt(desc.ContentLength, 10))
	c.Status(streamStatus(desc))
}

// AssetHandler serves generic files from the assets root.
type AssetHandler struct {
	streams service.StreamService
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(streams service.StreamService) *AssetHandler {
	return &AssetHandler{streams: streams}
}

// StreamAsset handles GET /assets/*path
func (h *AssetHandler) StreamAsset(c *gin.Context) {
	result, err := h.streams.StreamFile(c.Request.Context(), c.Param("path"), c.GetHeader("Range"))
	if err != nil {
		respondError(c, err)
		return
	}
	writeStream(c, result)
}

// writeStream copies the bounded body to the client. The copy stops when the
// client goes away, and the body is closed on every path.
func writeStream(c *gin.Context, result *service.StreamResult) {
	defer result.Body.Close()
	c.DataFromReader(streamStatus(result.StreamDescriptor), result.ContentLength, result.ContentType, result.Body, streamHeaders(result.StreamDescriptor))
}

func streamStatus(desc service.StreamDescriptor) int {
	if desc.Partial {
		return http.StatusPartialContent
	}
	return http.StatusOK
}

func streamHeaders(desc service.StreamDescriptor) map[string]string {
	headers := map[string]string{}
	if desc.AcceptRanges {
		headers["Accept-Ranges"] = "bytes"
	}
	if desc.Partial {
		headers["Content-Range"] = desc.ContentRange()
	}
	return headers
}

// respondError maps service errors to HTTP responses. Anything unexpected is
// logged and answered with a generic 500 so internal paths never leak.
func respondError(c *gin.Context, err error) {
	var rangeErr *service.RangeNotSatisfiableError
	switch {
	case errors.Is(err, service.ErrVideoNotFound):
		abortWithError(c, http.StatusNotFound, "Video not found")
	case errors.Is(err, service.ErrVideoExists):
		abortWithError(c, http.StatusConflict, "Video ID already taken")
	case errors.Is(err, service.ErrFileNotFound):
		abortWithError(c, http.StatusNotFound, "File not found")
	case errors.As(err, &rangeErr):
		c.Header("Content-Range", "bytes */"+strconv.FormatInt(rangeErr.TotalSize, 10))
		abortWithError(c, http.StatusRequestedRangeNotSatisfiable, "Requested range not satisfiable")
	case errors.Is(err, service.ErrInvalidRange):
		abortWithError(c, http.StatusRequestedRangeNotSatisfiable, "Requested range not satisfiable")
	case errors.Is(err, service.ErrValidationFailed):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, leaderboard.ErrInvalidWindow):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAgeRestricted):
		abortWithError(c, http.StatusForbidden, "Age constraint not met")
	default:
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		abortWithError(c, http.StatusInternalServerError, "Internal server error")
	}
}
