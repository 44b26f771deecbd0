package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/interview-analyzer/internal/services"
	"github.com/yoockh/interview-analyzer/internal/utils"
)

type BankHandler struct {
	svc      services.BankService
	maxBytes int64
}

func NewBankHandler(svc services.BankService, maxBytes int64) *BankHandler {
	if maxBytes <= 0 {
		maxBytes = 16 << 20
	}
	return &BankHandler{svc: svc, maxBytes: maxBytes}
}

type UploadResponse struct {
	BankID    string   `json:"bank_id"`
	Message   string   `json:"message"`
	Questions []string `json:"questions"`
}

type BankResponse struct {
	BankID    string   `json:"bank_id"`
	Questions []string `json:"questions"`
}

var errTooLarge = errors.New("upload exceeds limit")

func (h *BankHandler) Upload(c *gin.Context) {
	const op = "BankHandler.Upload"

	fh, err := c.FormFile("pdf_file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing multipart field 'pdf_file'", err))
		return
	}
	if fh.Filename == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "no file selected", nil))
		return
	}
	if strings.ToLower(filepath.Ext(fh.Filename)) != ".pdf" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "only .pdf is allowed", nil))
		return
	}
	if fh.Size > h.maxBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("file too large (max %d bytes)", h.maxBytes), nil))
		return
	}

	file, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to open upload", err))
		return
	}
	defer file.Close()

	doc, err := readAllLimited(file, h.maxBytes)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("file too large (max %d bytes)", h.maxBytes), err))
			return
		}
		writeError(c, utils.E(utils.CodeInternal, op, "failed to read upload", err))
		return
	}
	if ct := http.DetectContentType(doc); ct != "application/pdf" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid content type (must be pdf)", nil))
		return
	}

	bank, err := h.svc.Ingest(c.Request.Context(), filepath.Base(fh.Filename), doc)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, UploadResponse{
		BankID:    bank.BankID,
		Message:   fmt.Sprintf("Successfully extracted %d questions", bank.Len()),
		Questions: bank.Questions,
	})
}

func (h *BankHandler) Get(c *gin.Context) {
	bank, err := h.svc.Get(c.Request.Context(), c.Param("bank_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, BankResponse{BankID: bank.BankID, Questions: bank.Questions})
}

func readAllLimited(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, errTooLarge
	}
	return b, nil
}
