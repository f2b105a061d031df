package model

import "time"

// Upload represents a classified upload record.
type Upload struct {
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	FilePath     string    `json:"filepath"`
	FileSize     int64     `json:"filesize"`
	SHA256       string    `json:"sha256"`
	TotalObjects int       `json:"total_objects"`
	Timestamp    time.Time `json:"timestamp"`
}
