package ai

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Box is one raw detection as produced by a Model, in absolute pixel coordinates.
type Box struct {
	ClassID    int
	Confidence float64
	X1, Y1     float64
	X2, Y2     float64
}

// Model is a loaded detection network. Implementations are not required to be safe
// for concurrent use; the Pool gives every worker its own instance.
type Model interface {
	// Predict runs a single inference over a decoded BGR image.
	Predict(img gocv.Mat) ([]Box, error)

	// Close releases the resources held by the model.
	Close() error
}

// Labels maps class ids to names. A nil table names classes by their numeric id.
type Labels []string

// LoadLabels reads a label table with one class name per line, in class id order.
func LoadLabels(path string) (Labels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open label table")
	}
	defer f.Close()

	var labels Labels
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "could not read label table")
	}

	// trailing blank lines are not classes
	for len(labels) > 0 && labels[len(labels)-1] == "" {
		labels = labels[:len(labels)-1]
	}
	if len(labels) == 0 {
		return nil, errors.Errorf("label table %s is empty", path)
	}
	return labels, nil
}

// Name returns the label of a class id.
func (l Labels) Name(classID int) (string, error) {
	if l == nil {
		return strconv.Itoa(classID), nil
	}
	if classID < 0 || classID >= len(l) {
		return "", errors.Errorf("class id %d not in label table of %d classes", classID, len(l))
	}
	return l[classID], nil
}
