package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/assessment-session-service/internal/services"
	"github.com/SAP-F-2025/assessment-session-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
}

func NewSessionHandler(sessionService services.SessionService, logger utils.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
	}
}

// OpenSession loads an assessment for the caller, or returns the session they already have
// @Summary Open assessment session
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body services.OpenSessionRequest true "Job and assessment"
// @Success 200 {object} services.SessionView
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /sessions [post]
func (h *SessionHandler) OpenSession(c *gin.Context) {
	var req services.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidationFailed, "Invalid request payload", err, err.Error())
		return
	}

	h.LogRequest(c, "Opening session", "job_id", req.JobID, "assessment_id", req.AssessmentID)

	view, err := h.sessionService.Open(c.Request.Context(), GetToken(c), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetSession returns the current view of a session
// @Summary Get session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SessionView
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	view, err := h.sessionService.Get(c.Request.Context(), GetToken(c), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// StartSession starts the countdown and unlocks every question
// @Summary Start session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SessionView
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/start [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Starting session", "session_id", id)

	view, err := h.sessionService.Start(c.Request.Context(), GetToken(c), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// SetAnswer records the typed text or the selected option for one question
// @Summary Set answer
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param question_id path string true "Question ID"
// @Param request body services.SetAnswerRequest true "Answer value"
// @Success 200 {object} services.SessionView
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/answers/{question_id} [put]
func (h *SessionHandler) SetAnswer(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	questionID := ParseStringIDParam(c, "question_id")
	if questionID == "" {
		return
	}

	var req services.SetAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidationFailed, "Invalid request payload", err, err.Error())
		return
	}

	view, err := h.sessionService.SetAnswer(c.Request.Context(), GetToken(c), id, questionID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// SubmitSession sends the answers to the portal
// @Summary Submit session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SessionView
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /sessions/{id}/submit [post]
func (h *SessionHandler) SubmitSession(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Submitting session", "session_id", id)

	view, err := h.sessionService.Submit(c.Request.Context(), GetToken(c), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// CloseSession discards a session and stops its timer
// @Summary Close session
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [delete]
func (h *SessionHandler) CloseSession(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	if err := h.sessionService.Close(c.Request.Context(), GetToken(c), id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListSessions lists the caller's past and current sessions
// @Summary List sessions
// @Tags sessions
// @Produce json
// @Param job_id query string false "Job ID"
// @Param assessment_id query string false "Assessment ID"
// @Param status query string false "not_started, in_progress, submitted or closed"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} services.SessionHistory
// @Router /sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	var req services.SessionHistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidationFailed, "Invalid query parameters", err, err.Error())
		return
	}

	history, err := h.sessionService.History(c.Request.Context(), GetToken(c), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, history)
}

// GetSessionRecord returns the stored record of a session, including ended ones
// @Summary Get session record
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SessionRecord
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/record [get]
func (h *SessionHandler) GetSessionRecord(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	record, err := h.sessionService.GetRecord(c.Request.Context(), GetToken(c), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}
