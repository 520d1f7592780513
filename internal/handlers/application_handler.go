package handlers

import (
	"fmt"
	"net/http"

	"github.com/SAP-F-2025/assessment-session-service/internal/services"
	"github.com/SAP-F-2025/assessment-session-service/internal/utils"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ApplicationHandler struct {
	BaseHandler
	reviewService services.ReviewService
}

func NewApplicationHandler(reviewService services.ReviewService, logger utils.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		BaseHandler:   NewBaseHandler(logger),
		reviewService: reviewService,
	}
}

func (h *ApplicationHandler) lookup(c *gin.Context) *services.ApplicationLookup {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return nil
	}
	return &services.ApplicationLookup{
		ApplicationID: id,
		JobID:         c.Query("job_id"),
		AssessmentID:  c.Query("assessment_id"),
	}
}

// GetApplication returns a submitted application with per-answer review
// @Summary Get application review
// @Tags applications
// @Produce json
// @Param id path string true "Application ID"
// @Param job_id query string false "Job ID (recruiters)"
// @Param assessment_id query string false "Assessment ID (recruiters)"
// @Success 200 {object} services.ApplicationReview
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /applications/{id} [get]
func (h *ApplicationHandler) GetApplication(c *gin.Context) {
	lookup := h.lookup(c)
	if lookup == nil {
		return
	}

	review, err := h.reviewService.GetApplication(c.Request.Context(), GetToken(c), lookup)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, review)
}

// ExportApplication downloads the review as an Excel workbook
// @Summary Export application review
// @Tags applications
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Application ID"
// @Success 200 {file} file
// @Router /applications/{id}/export [get]
func (h *ApplicationHandler) ExportApplication(c *gin.Context) {
	lookup := h.lookup(c)
	if lookup == nil {
		return
	}

	h.LogRequest(c, "Exporting application", "application_id", lookup.ApplicationID)

	data, filename, err := h.reviewService.ExportApplication(c.Request.Context(), GetToken(c), lookup)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}
