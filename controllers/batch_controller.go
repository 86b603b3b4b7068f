package controllers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sefazdae/config"
	"sefazdae/middleware"
	"sefazdae/models"
	"sefazdae/parsers"
	"sefazdae/services"
	"sefazdae/utils"
)

// BatchController exposes the spreadsheet extraction and the batch run over
// HTTP: upload a sheet, review the extracted rows, pick a subset, run.
type BatchController struct {
	cfg    *config.Config
	guard  *middleware.RunGuard
	logger *utils.Logger
}

// NewBatchController wires the controller with the shared run guard.
func NewBatchController(cfg *config.Config, guard *middleware.RunGuard) *BatchController {
	return &BatchController{
		cfg:    cfg,
		guard:  guard,
		logger: utils.NewLogger("batch"),
	}
}

type parseSheetResponse struct {
	FilePath string            `json:"file_path"`
	RefMonth int               `json:"ref_month"`
	RefYear  int               `json:"ref_year"`
	Columns  []string          `json:"columns"`
	IEs      []string          `json:"ies"`
	Items    []models.WorkItem `json:"items"`
}

// ParseSheet receives an uploaded Excel file, stores it for a later run and
// returns the extracted rows so the operator can choose which IEs to process.
func (bc *BatchController) ParseSheet(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		utils.BadRequestError(c, "Spreadsheet file is required", err)
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".xlsx" && ext != ".xlsm" {
		utils.BadRequestError(c, fmt.Sprintf("Unsupported file type %s, expected .xlsx", ext), nil)
		return
	}

	if err := os.MkdirAll(bc.cfg.UploadDir, 0o755); err != nil {
		utils.InternalServerError(c, "Failed to prepare upload directory", err)
		return
	}
	savedPath := filepath.Join(bc.cfg.UploadDir, uuid.NewString()+ext)
	if err := c.SaveUploadedFile(file, savedPath); err != nil {
		utils.InternalServerError(c, "Failed to save uploaded file", err)
		return
	}
	bc.logger.Info("Spreadsheet uploaded", gin.H{"original": file.Filename, "saved": savedPath})

	sheet, err := parsers.ParseSpreadsheet(savedPath)
	if err != nil {
		utils.UnprocessableError(c, "Failed to extract spreadsheet data", err)
		return
	}
	items, err := parsers.BuildWorkItems(sheet)
	if err != nil {
		utils.UnprocessableError(c, "Failed to build batch items", err)
		return
	}

	c.JSON(http.StatusOK, parseSheetResponse{
		FilePath: savedPath,
		RefMonth: sheet.RefMonth,
		RefYear:  sheet.RefYear,
		Columns:  sheet.ColumnOrder,
		IEs:      sheet.IEs(),
		Items:    items,
	})
}

type runBatchRequest struct {
	FilePath string   `json:"file_path" binding:"required"`
	IEs      []string `json:"ies"`
	Headless *bool    `json:"headless"`
}

type runBatchResponse struct {
	RunID     string              `json:"run_id"`
	Processed int                 `json:"processed"`
	Skipped   int                 `json:"skipped"`
	Succeeded []string            `json:"succeeded"`
	Failed    []models.FailedItem `json:"failed"`
}

// RunBatch re-extracts the stored sheet, narrows it to the selected IEs and
// drives the browser through the whole batch. The run is synchronous; the
// response is the final ledger.
func (bc *BatchController) RunBatch(c *gin.Context) {
	var req runBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestError(c, "Invalid request body", err)
		return
	}

	if !bc.guard.TryAcquire() {
		c.JSON(http.StatusConflict, gin.H{"error": "a batch run is already in progress"})
		return
	}
	defer bc.guard.Release()

	sheet, err := parsers.ParseSpreadsheet(req.FilePath)
	if err != nil {
		utils.UnprocessableError(c, "Failed to extract spreadsheet data", err)
		return
	}
	items, err := parsers.BuildWorkItems(sheet)
	if err != nil {
		utils.UnprocessableError(c, "Failed to build batch items", err)
		return
	}
	items = filterItems(items, req.IEs)
	if len(items) == 0 {
		utils.BadRequestError(c, "No work items matched the selection", nil)
		return
	}

	solver, err := services.NewCaptchaSolver(bc.cfg)
	if err != nil {
		utils.InternalServerError(c, "Failed to initialize the captcha solver", err)
		return
	}

	headless := true
	if req.Headless != nil {
		headless = *req.Headless
	}

	runID := uuid.NewString()
	bc.logger.Info("Batch run starting", gin.H{"run_id": runID, "items": len(items), "headless": headless})

	svc := services.NewDAEBatchService(bc.cfg, solver, headless)
	result, err := svc.RunBatch(c.Request.Context(), items)
	if err != nil {
		bc.logger.Error("Batch run aborted", err, gin.H{"run_id": runID})
		utils.InternalServerError(c, "Batch run aborted by a session-level failure", err)
		return
	}

	skipped := len(items) - len(result.Succeeded) - len(result.Failed)
	bc.logger.Info("Batch run finished", gin.H{
		"run_id":    runID,
		"succeeded": len(result.Succeeded),
		"failed":    len(result.Failed),
		"skipped":   skipped,
	})

	c.JSON(http.StatusOK, runBatchResponse{
		RunID:     runID,
		Processed: len(result.Succeeded) + len(result.Failed),
		Skipped:   skipped,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
	})
}

// Health reports service liveness.
func (bc *BatchController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// filterItems narrows the batch to the selected IEs. Selections match
// either the formatted IE or its digits-only form. An empty selection means
// the whole sheet.
func filterItems(items []models.WorkItem, selected []string) []models.WorkItem {
	if len(selected) == 0 {
		return items
	}
	wanted := make(map[string]bool, len(selected)*2)
	for _, ie := range selected {
		ie = strings.TrimSpace(ie)
		if ie == "" {
			continue
		}
		wanted[ie] = true
		wanted[parsers.IEDigitsOnly(ie)] = true
	}
	filtered := make([]models.WorkItem, 0, len(items))
	for _, item := range items {
		if wanted[item.IE] || wanted[item.IEDigits] {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
