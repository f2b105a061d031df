package ai

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// MockModel is a test implementation of the Model interface.
// It allows tests to control the boxes returned and to observe each call.
type MockModel struct {
	mu       sync.Mutex
	boxes    []Box
	err      error
	panicMsg string
	gate     chan struct{}
	calls    int
	lastSize image.Point
	closed   bool
}

// NewMockModel creates a new MockModel instance.
func NewMockModel() *MockModel {
	return &MockModel{}
}

// SetBoxes sets the boxes that will be returned by Predict.
func (m *MockModel) SetBoxes(boxes []Box) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boxes = boxes
}

// SetError sets the error that will be returned by Predict.
func (m *MockModel) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetPanic makes Predict panic with msg.
func (m *MockModel) SetPanic(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicMsg = msg
}

// Block makes Predict wait until the returned channel is closed.
func (m *MockModel) Block() chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
	return m.gate
}

// Predict records the call and returns the pre-configured boxes or error.
func (m *MockModel) Predict(img gocv.Mat) ([]Box, error) {
	m.mu.Lock()
	m.calls++
	m.lastSize = image.Pt(img.Cols(), img.Rows())
	gate, boxes, err, panicMsg := m.gate, m.boxes, m.err, m.panicMsg
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if panicMsg != "" {
		panic(panicMsg)
	}
	if err != nil {
		return nil, err
	}
	return boxes, nil
}

// Calls returns how many times Predict has been invoked.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastSize returns the width and height of the last image passed to Predict.
func (m *MockModel) LastSize() image.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSize
}

// Closed reports whether Close has been called.
func (m *MockModel) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close marks the mock as closed.
func (m *MockModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
