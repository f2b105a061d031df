package model

// Detection represents one detected object in an upload.
type Detection struct {
	ID         int64   `json:"id"`
	UploadID   int64   `json:"upload_id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
}
