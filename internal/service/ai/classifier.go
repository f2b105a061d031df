package ai

import (
	"context"
	"time"

	"garbageapi/internal/dto"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrModelNotLoaded is returned when classification is requested without a loaded model.
var ErrModelNotLoaded = errors.New("model not loaded")

// Predictor runs inference over a decoded image.
type Predictor interface {
	Predict(ctx context.Context, img gocv.Mat) ([]Box, error)
}

// Classifier turns raw model boxes into the public detection result.
type Classifier struct {
	predictor Predictor
	labels    Labels
	timeout   time.Duration
}

// NewClassifier creates a Classifier. A nil predictor yields ErrModelNotLoaded on every call.
func NewClassifier(predictor Predictor, labels Labels, timeout time.Duration) *Classifier {
	return &Classifier{
		predictor: predictor,
		labels:    labels,
		timeout:   timeout,
	}
}

// Loaded reports whether a model is available.
func (c *Classifier) Loaded() bool {
	return c.predictor != nil
}

// Classify runs one inference and summarizes it. Either the whole result is returned
// or an error; partial results are never produced.
func (c *Classifier) Classify(ctx context.Context, img gocv.Mat) (*dto.DetectionResult, error) {
	if c.predictor == nil {
		return nil, ErrModelNotLoaded
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	boxes, err := c.predictor.Predict(ctx, img)
	if err != nil {
		return nil, err
	}
	return c.summarize(boxes)
}

func (c *Classifier) summarize(boxes []Box) (*dto.DetectionResult, error) {
	result := &dto.DetectionResult{
		DetectedObjects: make([]dto.DetectedObject, 0, len(boxes)),
		ClassCounts:     make(map[string]int),
	}

	for _, b := range boxes {
		label, err := c.labels.Name(b.ClassID)
		if err != nil {
			return nil, err
		}
		result.DetectedObjects = append(result.DetectedObjects, dto.DetectedObject{
			Class:      label,
			Confidence: b.Confidence,
			BBox:       dto.BBox{b.X1, b.Y1, b.X2, b.Y2},
		})
		result.ClassCounts[label]++
	}

	result.TotalObjects = len(result.DetectedObjects)
	return result, nil
}
