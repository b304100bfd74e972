// internal/domain/video.go
package domain

import (
	"strings"
	"time"
)

// Video is a catalog entry. The media bytes live in the media store under StoragePath.
type Video struct {
	ID            string    `bson:"_id" json:"id"`
	Title         string    `bson:"title" json:"title"`
	Description   string    `bson:"description,omitempty" json:"description,omitempty"`
	StoragePath   string    `bson:"filePath" json:"filePath"`  // Locator relative to the media root / bucket
	OwnerID       string    `bson:"owner" json:"owner"`        // Reference into the user service, not enforced here
	Tags          []string  `bson:"tags,omitempty" json:"tags,omitempty"`
	AgeConstraint int       `bson:"ageConstraint" json:"ageConstraint"`
	Comments      []string  `bson:"comments,omitempty" json:"comments,omitempty"` // Append-only
	ViewCount     int64     `bson:"viewCount" json:"viewCount"`                   // Only ever incremented
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Validate checks the fields every stored video must carry.
func (v *Video) Validate() error {
	switch {
	case strings.TrimSpace(v.Title) == "":
		return ValidationError("title is required")
	case strings.TrimSpace(v.StoragePath) == "":
		return ValidationError("file path is required")
	case strings.TrimSpace(v.OwnerID) == "":
		return ValidationError("owner is required")
	case v.AgeConstraint < 0:
		return ValidationError("age constraint cannot be negative")
	}
	return nil
}

// VideoPatch carries the mutable fields of an update. Nil fields are left untouched.
// ID, comments and view count change through their own operations only.
type VideoPatch struct {
	Title         *string   `json:"title,omitempty"`
	Description   *string   `json:"description,omitempty"`
	StoragePath   *string   `json:"filePath,omitempty"`
	OwnerID       *string   `json:"owner,omitempty"`
	Tags          *[]string `json:"tags,omitempty"`
	AgeConstraint *int      `json:"ageConstraint,omitempty"`
	// UpdatedAt is stamped by the writer so both stores record the same time.
	UpdatedAt     time.Time `json:"-"`
}

// IsEmpty reports whether the patch changes no user-visible field.
func (p VideoPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.StoragePath == nil &&
		p.OwnerID == nil && p.Tags == nil && p.AgeConstraint == nil
}

// Validate rejects patches that would blank out a required field.
func (p VideoPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ValidationError("title cannot be empty")
	}
	if p.StoragePath != nil && strings.TrimSpace(*p.StoragePath) == "" {
		return ValidationError("file path cannot be empty")
	}
	if p.OwnerID != nil && strings.TrimSpace(*p.OwnerID) == "" {
		return ValidationError("owner cannot be empty")
	}
	if p.AgeConstraint != nil && *p.AgeConstraint < 0 {
		return ValidationError("age constraint cannot be negative")
	}
	return nil
}

// Fields returns the patch as a flat map keyed by stored field name.
// Both stores use the same names, so the map feeds a Mongo $set and an
// Elasticsearch partial document alike.
func (p VideoPatch) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if p.Title != nil {
		fields["title"] = *p.Title
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.StoragePath != nil {
		fields["filePath"] = *p.StoragePath
	}
	if p.OwnerID != nil {
		fields["owner"] = *p.OwnerID
	}
	if p.Tags != nil {
		fields["tags"] = *p.Tags
	}
	if p.AgeConstraint != nil {
		fields["ageConstraint"] = *p.AgeConstraint
	}
	if !p.UpdatedAt.IsZero() {
		fields["updatedAt"] = p.UpdatedAt
	}
	return fields
}

// Apply returns a copy of v with the patch applied.
func (p VideoPatch) Apply(v Video) Video {
	if p.Title != nil {
		v.Title = *p.Title
	}
	if p.Description != nil {
		v.Description = *p.Description
	}
	if p.StoragePath != nil {
		v.StoragePath = *p.StoragePath
	}
	if p.OwnerID != nil {
		v.OwnerID = *p.OwnerID
	}
	if p.Tags != nil {
		v.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.AgeConstraint != nil {
		v.AgeConstraint = *p.AgeConstraint
	}
	if !p.UpdatedAt.IsZero() {
		v.UpdatedAt = p.UpdatedAt
	}
	return v
}

// ValidationError describes a rejected field.
type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}
