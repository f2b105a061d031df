package dto

// BBox is an absolute pixel box in x1, y1, x2, y2 order, passed through from the model.
type BBox [4]float64

// DetectedObject is a single labelled detection.
type DetectedObject struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// DetectionResult summarises the detections for one image.
// TotalObjects always equals len(DetectedObjects) and the sum of ClassCounts.
type DetectionResult struct {
	DetectedObjects []DetectedObject `json:"detected_objects"`
	ClassCounts     map[string]int   `json:"class_counts"`
	TotalObjects    int              `json:"total_objects"`
}

// ErrorPayload is the body of every failed request or frame.
type ErrorPayload struct {
	Error string `json:"error"`
}
