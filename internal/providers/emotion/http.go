package emotion

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yoockh/interview-analyzer/internal/utils"
)

type classifyReq struct {
	Image string `json:"image"`
}

type classifyResp struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// HTTPClassifier calls an external inference service at <BaseURL>/classify.
type HTTPClassifier struct {
	BaseURL   string
	Threshold float64

	c *http.Client
}

func NewHTTPClassifier(baseURL string, threshold float64) *HTTPClassifier {
	return &HTTPClassifier{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Threshold: threshold,
		c:         &http.Client{Timeout: 5 * time.Second},
	}
}

func (h *HTTPClassifier) Classify(ctx context.Context, frame []byte) (Result, bool, error) {
	const op = "HTTPClassifier.Classify"

	b, _ := json.Marshal(classifyReq{Image: base64.StdEncoding.EncodeToString(frame)})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/classify", bytes.NewReader(b))
	if err != nil {
		return Result{}, false, utils.E(utils.CodeInternal, op, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.c.Do(req)
	if err != nil {
		return Result{}, false, utils.E(utils.CodeUnavailable, op, "emotion service unreachable", fmt.Errorf("%w: %v", utils.ErrClassificationUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return Result{}, false, utils.E(utils.CodeUnavailable, op, "emotion service error",
			fmt.Errorf("%w: %s: %s", utils.ErrClassificationUnavailable, resp.Status, string(body)))
	}

	var out classifyResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, false, utils.E(utils.CodeUnavailable, op, "invalid emotion service response", err)
	}

	label := strings.ToLower(strings.TrimSpace(out.Label))
	if label == "" || out.Confidence < h.Threshold {
		return Result{}, false, nil
	}
	return Result{Label: label, Confidence: out.Confidence}, true, nil
}
