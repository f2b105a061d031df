package ai

import (
	"math"
	"testing"

	"gocv.io/x/gocv"
)

func newTestDetector() *Detector {
	return &Detector{inputSize: 640, conf: 0.25, iou: 0.7}
}

// newOutput builds a float32 network output of the given shape and lets fill write into it.
func newOutput(t *testing.T, dims []int, fill func(data []float32)) gocv.Mat {
	t.Helper()
	out := gocv.NewMatWithSizes(dims, gocv.MatTypeCV32F)
	data, err := out.DataPtrFloat32()
	if err != nil {
		out.Close()
		t.Fatalf("Failed to access output data: %v", err)
	}
	for i := range data {
		data[i] = 0
	}
	fill(data)
	return out
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-3
}

func TestDetector_Postprocess(t *testing.T) {
	const classes, anchors = 3, 4
	channels := 4 + classes

	// anchor-major layout [1, 4+classes, anchors]
	out := newOutput(t, []int{1, channels, anchors}, func(data []float32) {
		set := func(a int, cx, cy, w, h float32, classID int, score float32) {
			for c, v := range []float32{cx, cy, w, h} {
				data[c*anchors+a] = v
			}
			data[(4+classID)*anchors+a] = score
		}
		set(0, 320, 320, 100, 50, 1, 0.9)
		set(1, 320, 320, 100, 50, 1, 0.8) // same class, same box: suppressed
		set(2, 320, 320, 100, 50, 2, 0.7) // other class: kept
		set(3, 100, 100, 20, 20, 0, 0.1)  // below confidence
	})
	defer out.Close()

	// a 1280x960 image letterboxed into 640x640
	lb := letterboxInfo{scale: 0.5, padX: 0, padY: 80}
	boxes, err := newTestDetector().postprocess(out, lb, 1280, 960)
	if err != nil {
		t.Fatalf("postprocess failed: %v", err)
	}
	if len(boxes) != 2 {
		t.Fatalf("Expected 2 boxes after NMS, got %d: %+v", len(boxes), boxes)
	}

	first, second := boxes[0], boxes[1]
	if first.ClassID != 1 || !approx(first.Confidence, 0.9) {
		t.Errorf("Expected class 1 at 0.9 first, got %+v", first)
	}
	if second.ClassID != 2 || !approx(second.Confidence, 0.7) {
		t.Errorf("Expected class 2 at 0.7 second, got %+v", second)
	}
	if !approx(first.X1, 540) || !approx(first.Y1, 430) || !approx(first.X2, 740) || !approx(first.Y2, 530) {
		t.Errorf("Box not mapped back to image pixels: %+v", first)
	}
}

func TestDetector_PostprocessTransposed(t *testing.T) {
	const classes, anchors = 2, 8
	channels := 4 + classes

	// row-per-anchor layout [1, anchors, 4+classes]
	out := newOutput(t, []int{1, anchors, channels}, func(data []float32) {
		row := data[5*channels : 6*channels]
		copy(row, []float32{600, 100, 100, 40, 0.6, 0.2})
	})
	defer out.Close()

	boxes, err := newTestDetector().postprocess(out, letterboxInfo{scale: 1}, 620, 640)
	if err != nil {
		t.Fatalf("postprocess failed: %v", err)
	}
	if len(boxes) != 1 {
		t.Fatalf("Expected 1 box, got %d: %+v", len(boxes), boxes)
	}

	b := boxes[0]
	if b.ClassID != 0 || !approx(b.Confidence, 0.6) {
		t.Errorf("Unexpected class or confidence: %+v", b)
	}
	// right edge clamped to the image width
	if !approx(b.X1, 550) || !approx(b.Y1, 80) || !approx(b.X2, 620) || !approx(b.Y2, 120) {
		t.Errorf("Unexpected coordinates: %+v", b)
	}
}

func TestDetector_PostprocessCapsDetections(t *testing.T) {
	const anchors = 400

	// one class, a 20x20 grid of disjoint boxes with rising scores
	out := newOutput(t, []int{1, 5, anchors}, func(data []float32) {
		for a := 0; a < anchors; a++ {
			data[0*anchors+a] = float32(a%20*32 + 10)
			data[1*anchors+a] = float32(a/20*32 + 10)
			data[2*anchors+a] = 10
			data[3*anchors+a] = 10
			data[4*anchors+a] = 0.3 + 0.001*float32(a)
		}
	})
	defer out.Close()

	boxes, err := newTestDetector().postprocess(out, letterboxInfo{scale: 1}, 640, 640)
	if err != nil {
		t.Fatalf("postprocess failed: %v", err)
	}
	if len(boxes) != maxDetections {
		t.Fatalf("Expected %d boxes, got %d", maxDetections, len(boxes))
	}
	if !approx(boxes[0].Confidence, 0.699) {
		t.Errorf("Expected the highest score first, got %v", boxes[0].Confidence)
	}
	for i := 1; i < len(boxes); i++ {
		if boxes[i].Confidence > boxes[i-1].Confidence {
			t.Fatalf("Boxes not sorted by confidence at %d", i)
		}
	}
}

func TestDetector_PostprocessEmptyAndBadShape(t *testing.T) {
	d := newTestDetector()

	empty := newOutput(t, []int{1, 7, 4}, func([]float32) {})
	defer empty.Close()
	boxes, err := d.postprocess(empty, letterboxInfo{scale: 1}, 640, 640)
	if err != nil {
		t.Fatalf("postprocess failed: %v", err)
	}
	if boxes == nil || len(boxes) != 0 {
		t.Errorf("Expected an empty, non-nil result, got %#v", boxes)
	}

	flat := gocv.NewMatWithSize(7, 4, gocv.MatTypeCV32F)
	defer flat.Close()
	if _, err := d.postprocess(flat, letterboxInfo{scale: 1}, 640, 640); err == nil {
		t.Error("Expected an error for a 2-D output")
	}
}

func TestDetector_Letterbox(t *testing.T) {
	d := newTestDetector()

	tests := []struct {
		name       string
		rows, cols int
		wantScale  float64
		wantPadX   float64
		wantPadY   float64
	}{
		{name: "landscape", rows: 960, cols: 1280, wantScale: 0.5, wantPadX: 0, wantPadY: 80},
		{name: "square", rows: 320, cols: 320, wantScale: 2, wantPadX: 0, wantPadY: 0},
		{name: "one pixel wide", rows: 2000, cols: 1, wantScale: 0.32, wantPadX: 319, wantPadY: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := gocv.NewMatWithSize(tt.rows, tt.cols, gocv.MatTypeCV8UC3)
			defer img.Close()

			padded, lb, err := d.letterbox(img)
			if err != nil {
				t.Fatalf("letterbox failed: %v", err)
			}
			defer padded.Close()

			if padded.Cols() != 640 || padded.Rows() != 640 {
				t.Errorf("Expected 640x640 input, got %dx%d", padded.Cols(), padded.Rows())
			}
			if !approx(lb.scale, tt.wantScale) || lb.padX != tt.wantPadX || lb.padY != tt.wantPadY {
				t.Errorf("Unexpected letterbox %+v", lb)
			}
		})
	}
}
