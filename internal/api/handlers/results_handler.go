package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/interview-analyzer/internal/models"
	"github.com/yoockh/interview-analyzer/internal/protocol"
	"github.com/yoockh/interview-analyzer/internal/services"
	"github.com/yoockh/interview-analyzer/internal/utils"
)

// LiveResults resolves results for sessions that are still connected.
type LiveResults interface {
	Results(sessionID string) (models.InterviewResults, error)
}

type ResultsHandler struct {
	live    LiveResults
	results services.ResultsService
}

func NewResultsHandler(live LiveResults, results services.ResultsService) *ResultsHandler {
	return &ResultsHandler{live: live, results: results}
}

func (h *ResultsHandler) Get(c *gin.Context) {
	sessionID := c.Param("session_id")

	res, err := h.live.Results(sessionID)
	if err == nil {
		c.JSON(http.StatusOK, protocol.ResultsFrom(res))
		return
	}
	if !errors.Is(err, utils.ErrNotFound) {
		writeError(c, err)
		return
	}

	stored, err := h.results.Lookup(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.ResultsFrom(*stored))
}

type InterviewSummary struct {
	SessionID      string                    `json:"session_id"`
	TotalQuestions int                       `json:"total_questions"`
	StartedAt      time.Time                 `json:"started_at"`
	CompletedAt    time.Time                 `json:"completed_at"`
	Results        protocol.InterviewResults `json:"results"`
}

// ListByBank returns archived interviews for one bank, newest first.
func (h *ResultsHandler) ListByBank(c *gin.Context) {
	bankID := c.Param("bank_id")

	limit := 50
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	rows, err := h.results.History(c.Request.Context(), bankID, int64(limit))
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]InterviewSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, InterviewSummary{
			SessionID:      r.SessionID,
			TotalQuestions: r.TotalQuestions,
			StartedAt:      r.StartedAt,
			CompletedAt:    r.CompletedAt,
			Results:        protocol.ResultsFrom(r.Results),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"bank_id":    bankID,
		"interviews": out,
	})
}
