package ai

import (
	"image"
	"image/color"
	"math"
	"os"
	"sort"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

const (
	// classOffset separates the boxes of different classes so a single NMS pass stays class-aware.
	classOffset = 7680
	// maxDetections caps the number of boxes kept per image after NMS.
	maxDetections = 300
)

var letterboxFill = color.RGBA{R: 114, G: 114, B: 114, A: 0}

// DetectorOptions configures a YOLO detector.
type DetectorOptions struct {
	ModelPath     string
	Device        string
	InputSize     int
	ConfThreshold float64
	IoUThreshold  float64
}

// Detector runs an Ultralytics-style YOLO network exported to ONNX through the OpenCV DNN module.
type Detector struct {
	net       gocv.Net
	inputSize int
	conf      float32
	iou       float32
}

// NewDetector loads the network and binds it to the requested device.
func NewDetector(opts DetectorOptions) (*Detector, error) {
	if _, err := os.Stat(opts.ModelPath); os.IsNotExist(err) {
		return nil, errors.Errorf("model file not found: %s", opts.ModelPath)
	}

	net := gocv.ReadNet(opts.ModelPath, "")
	if net.Empty() {
		return nil, errors.Errorf("failed to load network from %s", opts.ModelPath)
	}

	backend, target := backendFor(opts.Device)
	errBackend := net.SetPreferableBackend(backend)
	errTarget := net.SetPreferableTarget(target)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, errors.Errorf("failed to set preferable backend or target for %s", opts.Device)
	}

	size := opts.InputSize
	if size <= 0 {
		size = 640
	}

	return &Detector{
		net:       net,
		inputSize: size,
		conf:      float32(opts.ConfThreshold),
		iou:       float32(opts.IoUThreshold),
	}, nil
}

// Predict letterboxes the image, runs the network and returns boxes in original image coordinates.
func (d *Detector) Predict(img gocv.Mat) ([]Box, error) {
	if img.Empty() {
		return nil, errors.New("decoded image is empty")
	}

	padded, lb, err := d.letterbox(img)
	if err != nil {
		return nil, err
	}
	defer padded.Close()

	blob := gocv.BlobFromImage(padded, 1.0/255.0, image.Pt(d.inputSize, d.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	return d.postprocess(output, lb, img.Cols(), img.Rows())
}

// Close releases the network.
func (d *Detector) Close() error {
	if !d.net.Empty() {
		return d.net.Close()
	}
	return nil
}

// letterboxInfo records how an image was scaled and padded into the network input.
type letterboxInfo struct {
	scale      float64
	padX, padY float64
}

func (d *Detector) letterbox(img gocv.Mat) (gocv.Mat, letterboxInfo, error) {
	w, h := img.Cols(), img.Rows()
	scale := math.Min(float64(d.inputSize)/float64(w), float64(d.inputSize)/float64(h))
	// very thin images would otherwise round to a zero-sized side
	newW := max(1, int(math.Round(float64(w)*scale)))
	newH := max(1, int(math.Round(float64(h)*scale)))

	resized := gocv.NewMat()
	defer resized.Close()
	if err := gocv.Resize(img, &resized, image.Pt(newW, newH), 0, 0, gocv.InterpolationLinear); err != nil {
		return gocv.Mat{}, letterboxInfo{}, errors.Wrap(err, "failed to resize image")
	}

	padW, padH := d.inputSize-newW, d.inputSize-newH
	left, top := padW/2, padH/2

	padded := gocv.NewMat()
	if err := gocv.CopyMakeBorder(resized, &padded, top, padH-top, left, padW-left, gocv.BorderConstant, letterboxFill); err != nil {
		padded.Close()
		return gocv.Mat{}, letterboxInfo{}, errors.Wrap(err, "failed to pad image")
	}

	return padded, letterboxInfo{scale: scale, padX: float64(left), padY: float64(top)}, nil
}

// postprocess decodes a [1, 4+classes, anchors] output (or its transpose), filters by
// confidence and applies class-aware NMS.
func (d *Detector) postprocess(output gocv.Mat, lb letterboxInfo, width, height int) ([]Box, error) {
	dims := output.Size()
	if len(dims) != 3 {
		return nil, errors.Errorf("unexpected output shape %v", dims)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read network output")
	}

	channels, anchors := dims[1], dims[2]
	transposed := false
	if channels > anchors {
		channels, anchors = anchors, channels
		transposed = true
	}
	if channels <= 4 {
		return nil, errors.Errorf("output has no class scores: %v", dims)
	}

	at := func(c, a int) float32 {
		if transposed {
			return data[a*channels+c]
		}
		return data[c*anchors+a]
	}

	var (
		candidates []Box
		rects      []image.Rectangle
		scores     []float32
	)
	for a := 0; a < anchors; a++ {
		classID, best := 0, float32(0)
		for c := 4; c < channels; c++ {
			if s := at(c, a); s > best {
				classID, best = c-4, s
			}
		}
		if best < d.conf {
			continue
		}

		cx, cy, bw, bh := float64(at(0, a)), float64(at(1, a)), float64(at(2, a)), float64(at(3, a))
		box := Box{
			ClassID:    classID,
			Confidence: float64(best),
			X1:         clamp((cx-bw/2-lb.padX)/lb.scale, float64(width)),
			Y1:         clamp((cy-bh/2-lb.padY)/lb.scale, float64(height)),
			X2:         clamp((cx+bw/2-lb.padX)/lb.scale, float64(width)),
			Y2:         clamp((cy+bh/2-lb.padY)/lb.scale, float64(height)),
		}
		candidates = append(candidates, box)

		offset := classID * classOffset
		rects = append(rects, image.Rect(
			int(cx-bw/2)+offset, int(cy-bh/2)+offset,
			int(cx+bw/2)+offset, int(cy+bh/2)+offset,
		))
		scores = append(scores, best)
	}

	if len(candidates) == 0 {
		return []Box{}, nil
	}

	keep := gocv.NMSBoxes(rects, scores, d.conf, d.iou)
	boxes := make([]Box, 0, len(keep))
	for _, idx := range keep {
		boxes = append(boxes, candidates[idx])
	}
	sort.SliceStable(boxes, func(i, j int) bool { return boxes[i].Confidence > boxes[j].Confidence })
	if len(boxes) > maxDetections {
		boxes = boxes[:maxDetections]
	}
	return boxes, nil
}

func clamp(v, upper float64) float64 {
	return math.Max(0, math.Min(v, upper))
}
