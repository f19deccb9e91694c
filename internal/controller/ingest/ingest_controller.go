package ingest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tdhoang/Talaria/internal/dto"
	"github.com/tdhoang/Talaria/internal/repository"
	"github.com/tdhoang/Talaria/internal/service"
)

// Version reported by the health endpoint.
const Version = "1.0.0"

type IngestController struct {
	ingestSvc  service.IngestService
	reviewSvc  service.ReviewService
	resultRepo repository.ResultRepository
}

func NewIngestController(ingestSvc service.IngestService, reviewSvc service.ReviewService, resultRepo repository.ResultRepository) *IngestController {
	return &IngestController{
		ingestSvc:  ingestSvc,
		reviewSvc:  reviewSvc,
		resultRepo: resultRepo,
	}
}

func (c *IngestController) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.GET("/health", c.Health)
		api.GET("/events/:code", c.GetEventByCode)
		api.POST("/test-results", c.SubmitTestResult)
		api.POST("/recordings", c.SubmitRecording)
		api.GET("/sync-logs", c.ListSyncLogs)
		api.GET("/test-results/:id/review", c.ReviewTestResult)
	}
}

// Health godoc
// @Summary Connectivity probe
// @Description Always returns 200; used by candidate devices to validate the configured server URL.
// @Tags sync
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Router /health [get]
func (c *IngestController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, dto.HealthResponse{
		Status:    "ok",
		Version:   Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// GetEventByCode godoc
// @Summary Look up an event by access code
// @Description Read-only lookup a candidate device performs before any session exists. Does not write the audit log.
// @Tags sync
// @Produce json
// @Param code path string true "Event access code"
// @Success 200 {object} dto.EventResponse
// @Failure 404 {object} dto.ErrorResponse "No event has this code"
// @Router /events/{code} [get]
func (c *IngestController) GetEventByCode(ctx *gin.Context) {
	code := ctx.Param("code")
	event, err := c.ingestSvc.EventByCode(code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Event not found"})
			return
		}
		log.Error().Err(err).Str("code", code).Msg("GetEventByCode: lookup failed")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to look up event"})
		return
	}
	ctx.JSON(http.StatusOK, event)
}

// SubmitTestResult godoc
// @Summary Ingest a candidate test result
// @Description Persists the submitted answer set and appends an audit row on both success and failure. Duplicate submissions (same checksum) are acknowledged idempotently.
// @Tags sync
// @Accept json
// @Produce json
// @Param payload body dto.TestResultPayload true "Test result payload"
// @Success 200 {object} dto.SubmitResponse
// @Failure 400 {object} dto.ErrorResponse "Malformed payload"
// @Failure 500 {object} dto.ErrorResponse "Persistence failure"
// @Router /test-results [post]
func (c *IngestController) SubmitTestResult(ctx *gin.Context) {
	var payload dto.TestResultPayload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		log.Warn().Err(err).Msg("SubmitTestResult: failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	if len(payload.Answers) == 0 {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Submission must contain at least one answer."})
		return
	}

	log.Info().Str("sessionID", payload.SessionID).Int64("userID", payload.UserID).Int("answerCount", len(payload.Answers)).Msg("Received test result submission")

	resp, err := c.ingestSvc.SubmitTestResult(payload, ctx.ClientIP())
	if err != nil {
		log.Error().Err(err).Str("sessionID", payload.SessionID).Msg("SubmitTestResult: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to save test result", Details: []string{err.Error()}})
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// SubmitRecording godoc
// @Summary Ingest a surveillance recording
// @Description Streams the uploaded binary to per-candidate storage and writes a recording metadata row.
// @Tags sync
// @Accept multipart/form-data
// @Produce json
// @Param session_id formData string true "Client session id"
// @Param recording_type formData string true "camera or screen"
// @Param video formData file true "Recording binary"
// @Success 200 {object} dto.SubmitResponse
// @Failure 400 {object} dto.ErrorResponse "Missing form fields"
// @Failure 500 {object} dto.ErrorResponse "Write failure"
// @Router /recordings [post]
func (c *IngestController) SubmitRecording(ctx *gin.Context) {
	sessionID := ctx.PostForm("session_id")
	recordingType := ctx.PostForm("recording_type")
	if sessionID == "" || recordingType == "" {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "session_id and recording_type are required"})
		return
	}

	fileHeader, err := ctx.FormFile("video")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "video file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to read uploaded file"})
		return
	}
	defer file.Close()

	log.Info().Str("sessionID", sessionID).Str("type", recordingType).Int64("size", fileHeader.Size).Msg("Received recording upload")

	resp, err := c.ingestSvc.SaveRecording(sessionID, recordingType, fileHeader.Filename, file, ctx.ClientIP())
	if err != nil {
		log.Error().Err(err).Str("sessionID", sessionID).Msg("SubmitRecording: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to save recording", Details: []string{err.Error()}})
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// ListSyncLogs godoc
// @Summary List ingestion audit log entries
// @Tags sync
// @Produce json
// @Param user_id query int false "Filter by user id"
// @Param limit query int false "Max rows (default 50)"
// @Success 200 {array} dto.SyncLogResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /sync-logs [get]
func (c *IngestController) ListSyncLogs(ctx *gin.Context) {
	var userID *int64
	if raw := ctx.Query("user_id"); raw != "" {
		val, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid user_id format"})
			return
		}
		userID = &val
	}
	limit := 50
	if raw := ctx.Query("limit"); raw != "" {
		if val, err := strconv.Atoi(raw); err == nil && val > 0 {
			limit = val
		}
	}

	logs, err := c.ingestSvc.SyncLogs(userID, limit)
	if err != nil {
		log.Error().Err(err).Msg("ListSyncLogs: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to list sync logs"})
		return
	}
	ctx.JSON(http.StatusOK, logs)
}

// ReviewTestResult godoc
// @Summary Generate an AI narrative review of a stored test result
// @Tags sync
// @Produce json
// @Param id path int true "Test result id"
// @Success 200 {object} dto.ReviewResponse
// @Failure 404 {object} dto.ErrorResponse "Unknown result id"
// @Failure 503 {object} dto.ErrorResponse "Review service not configured"
// @Router /test-results/{id}/review [get]
func (c *IngestController) ReviewTestResult(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid result id format"})
		return
	}

	result, err := c.resultRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Test result not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to load test result"})
		return
	}

	review, err := c.reviewSvc.ReviewResult(ctx.Request.Context(), result)
	if err != nil {
		if errors.Is(err, service.ErrReviewUnavailable) {
			ctx.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Message: "AI review is not configured"})
			return
		}
		log.Error().Err(err).Int64("resultID", id).Msg("ReviewTestResult: generation failed")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to generate review"})
		return
	}

	ctx.JSON(http.StatusOK, dto.ReviewResponse{ResultID: id, Review: review})
}
