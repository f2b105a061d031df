// Package imageio turns uploaded files and streamed frames into decoded images.
package imageio

import (
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrUndecodable is returned when bytes or a file do not hold a readable image.
var ErrUndecodable = errors.New("could not decode image")

// ReadFile decodes the image stored at path as a 3-channel BGR image.
// The caller owns the returned Mat.
func ReadFile(path string) (gocv.Mat, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, ErrUndecodable
	}
	return mat, nil
}

// Decode decodes an encoded image held in memory as a 3-channel BGR image.
// The caller owns the returned Mat.
func Decode(buf []byte) (gocv.Mat, error) {
	if len(buf) == 0 {
		return gocv.Mat{}, ErrUndecodable
	}

	mat, err := gocv.IMDecode(buf, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, ErrUndecodable
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, ErrUndecodable
	}
	return mat, nil
}

// DecodeFrame extracts the raw bytes from a streamed frame, which is either plain
// base64 or a data URL such as "data:image/jpeg;base64,<payload>".
func DecodeFrame(frame string) ([]byte, error) {
	if strings.Contains(frame, "data:image") {
		idx := strings.Index(frame, ",")
		if idx < 0 {
			return nil, errors.New("malformed data URL: missing ',' before payload")
		}
		frame = frame[idx+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(frame))
	if err != nil {
		return nil, errors.Wrap(err, "invalid base64 payload")
	}
	return raw, nil
}
