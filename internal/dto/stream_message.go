package dto

import "encoding/json"

// Stream event names.
const (
	EventFrame                = "frame"
	EventClassificationResult = "classification_result"
)

// StreamMessage is the envelope of every websocket text frame, in both directions.
type StreamMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// FramePayload is the data of a "frame" event. Image holds raw base64 or a data URL.
type FramePayload struct {
	Image *string `json:"image"`
}
