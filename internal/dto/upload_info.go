package dto

import (
	"encoding/json"
	"time"
)

// UploadInfo describes one stored upload in the listing.
type UploadInfo struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	TotalObjects int       `json:"totalObjects"`
	Labels       []string  `json:"labels"`
	Stored       bool      `json:"stored"` // false once the file was removed after classification
	UploadedAt   time.Time `json:"uploadedAt"`
}

// MarshalJSON formats the upload time as RFC 3339 in UTC.
func (u UploadInfo) MarshalJSON() ([]byte, error) {
	type Alias UploadInfo
	return json.Marshal(&struct {
		UploadedAt string `json:"uploadedAt"`
		Alias
	}{
		UploadedAt: u.UploadedAt.UTC().Format(time.RFC3339),
		Alias:      (Alias)(u),
	})
}

// UploadsData is a paginated response payload for the uploads listing.
type UploadsData struct {
	Uploads     []UploadInfo `json:"uploads"`
	UploadDir   string       `json:"uploadDir"`
	Size        int64        `json:"size"`
	MaxSize     int64        `json:"maxSize"`
	Length      int          `json:"length"`
	TotalPages  int          `json:"totalPages"`
	CurrentPage int          `json:"currentPage"`
	Limit       int          `json:"pageSize"`
}

// UploadFilters narrow the uploads listing.
type UploadFilters struct {
	Label  string
	Limit  int
	Offset int
}
