package emotion

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/yoockh/interview-analyzer/internal/utils"
)

type Result struct {
	Label      string
	Confidence float64
}

// Classifier labels the dominant facial emotion in one webcam frame.
// ok is false when no face was found or the confidence is below the
// classifier's threshold.
type Classifier interface {
	Classify(ctx context.Context, frame []byte) (res Result, ok bool, err error)
}

// Disabled is used when no inference service is configured.
type Disabled struct{}

func (Disabled) Classify(context.Context, []byte) (Result, bool, error) {
	return Result{}, false, utils.E(utils.CodeUnavailable, "emotion.Disabled", "emotion classification is disabled", utils.ErrClassificationUnavailable)
}

// DecodeFrame accepts a data URL (data:image/jpeg;base64,...) or bare base64.
func DecodeFrame(imageData string) ([]byte, error) {
	raw := strings.TrimSpace(imageData)
	if i := strings.Index(raw, ","); i >= 0 {
		raw = raw[i+1:] // strip data:...;base64,
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errors.New("empty frame")
	}
	return b, nil
}
