package agent

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"

	"github.com/tdhoang/Talaria/internal/dto"
	"github.com/tdhoang/Talaria/internal/model"
	"github.com/tdhoang/Talaria/internal/repository"
	"github.com/tdhoang/Talaria/internal/service"
	syncpkg "github.com/tdhoang/Talaria/internal/sync"
)

// AgentController is the candidate-device control surface: sync status,
// manual triggers, server URL management, and dead-letter operations. It
// never bypasses the worker's item-selection or outcome logic.
type AgentController struct {
	store      repository.StoreRepository
	sessionSvc service.SessionService
	worker     *syncpkg.Worker
	client     *syncpkg.Client
}

func NewAgentController(store repository.StoreRepository, sessionSvc service.SessionService, worker *syncpkg.Worker, client *syncpkg.Client) *AgentController {
	return &AgentController{store: store, sessionSvc: sessionSvc, worker: worker, client: client}
}

func (c *AgentController) RegisterRoutes(router *gin.Engine) {
	syncAPI := router.Group("/api/sync")
	{
		syncAPI.GET("/status", c.GetStatus)
		syncAPI.POST("/now", c.SyncNow)
		syncAPI.GET("/server-url", c.GetServerURL)
		syncAPI.PUT("/server-url", c.PutServerURL)
		syncAPI.POST("/test-connection", c.TestConnection)
		syncAPI.GET("/dead", c.ListDeadItems)
		syncAPI.POST("/dead/:id/requeue", c.RequeueDeadItem)
	}

	sessionAPI := router.Group("/api/sessions")
	{
		sessionAPI.POST("", c.StartSession)
		sessionAPI.GET("/:session_id", c.GetSession)
		sessionAPI.POST("/:session_id/answers", c.RecordAnswer)
		sessionAPI.POST("/:session_id/complete", c.CompleteSession)
		sessionAPI.POST("/:session_id/recordings", c.AttachRecording)
	}
}

// StartSession begins a local test session for the test-taking UI.
func (c *AgentController) StartSession(ctx *gin.Context) {
	var req dto.StartSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	sessionID, err := c.sessionSvc.StartSession(req.SessionID, req.EventID, req.UserID, req.EventCode)
	if err != nil {
		if errors.Is(err, repository.ErrSessionExists) {
			ctx.JSON(http.StatusConflict, dto.ErrorResponse{Message: "Session id already exists"})
			return
		}
		log.Error().Err(err).Msg("StartSession: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to start session"})
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"session_id": sessionID})
}

func (c *AgentController) GetSession(ctx *gin.Context) {
	session, err := c.store.Session(ctx.Param("session_id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Session not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to load session"})
		return
	}
	ctx.JSON(http.StatusOK, session)
}

// RecordAnswer appends an answer row. Re-answering a question appends a new
// row; the latest one wins at sync time.
func (c *AgentController) RecordAnswer(ctx *gin.Context) {
	var req dto.AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	id, err := c.sessionSvc.RecordAnswer(ctx.Param("session_id"), req.QuestionID, req.Answer)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Session not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to save answer"})
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"answer_id": id})
}

// CompleteSession finishes the session and queues its result for sync.
func (c *AgentController) CompleteSession(ctx *gin.Context) {
	sessionID := ctx.Param("session_id")
	if err := c.sessionSvc.FinishSession(sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Session not found"})
			return
		}
		log.Error().Err(err).Str("sessionID", sessionID).Msg("CompleteSession: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to complete session"})
		return
	}
	c.worker.SyncNow()
	ctx.JSON(http.StatusOK, gin.H{"message": "Session completed and queued for sync"})
}

// AttachRecording registers a finished capture file and queues its upload.
func (c *AgentController) AttachRecording(ctx *gin.Context) {
	var req dto.RecordingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	sessionID := ctx.Param("session_id")
	if err := c.sessionSvc.AttachRecording(sessionID, req.RecordingType, req.FilePath, req.FileSize, req.Duration); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Session not found"})
			return
		}
		log.Error().Err(err).Str("sessionID", sessionID).Msg("AttachRecording: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to register recording"})
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"message": "Recording registered"})
}

// GetStatus reports pending/dead counts and the currently pending items.
// Sync state is observable but never blocks test-taking.
func (c *AgentController) GetStatus(ctx *gin.Context) {
	pending, dead, lastErr := c.worker.Status()

	items, err := c.store.FetchPending(50)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to read sync queue"})
		return
	}

	ctx.JSON(http.StatusOK, dto.QueueStatusDTO{
		PendingCount: int(pending),
		DeadCount:    dead,
		LastError:    lastErr,
		Items:        toQueueItemDTOs(items),
	})
}

// SyncNow triggers an immediate drain cycle on the worker.
func (c *AgentController) SyncNow(ctx *gin.Context) {
	c.worker.SyncNow()
	ctx.JSON(http.StatusAccepted, gin.H{"message": "Sync triggered"})
}

func (c *AgentController) GetServerURL(ctx *gin.Context) {
	url, err := c.store.Setting(model.SettingServerURL)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to read server URL"})
		return
	}
	if url == "" {
		url = c.client.BaseURL()
	}
	ctx.JSON(http.StatusOK, gin.H{"url": url})
}

// PutServerURL persists the sync target and applies it to the transport
// client immediately.
func (c *AgentController) PutServerURL(ctx *gin.Context) {
	var req dto.ServerURLRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	if err := c.store.PutSetting(model.SettingServerURL, req.URL); err != nil {
		log.Error().Err(err).Msg("PutServerURL: failed to persist setting")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to persist server URL"})
		return
	}
	c.client.SetBaseURL(req.URL)
	log.Info().Str("url", req.URL).Msg("Sync server URL updated")
	ctx.JSON(http.StatusOK, gin.H{"url": req.URL})
}

// TestConnection probes the configured server's health endpoint.
func (c *AgentController) TestConnection(ctx *gin.Context) {
	connected, err := c.client.TestConnection(ctx.Request.Context())
	resp := dto.ConnectionTestResponse{Connected: connected}
	if err != nil {
		resp.Error = err.Error()
	}
	ctx.JSON(http.StatusOK, resp)
}

// ListDeadItems exposes queue entries that exhausted their retry budget.
func (c *AgentController) ListDeadItems(ctx *gin.Context) {
	items, err := c.store.DeadItems()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to list dead items"})
		return
	}
	ctx.JSON(http.StatusOK, toQueueItemDTOs(items))
}

// RequeueDeadItem resets a dead item's attempt counter so the worker picks it
// up again on the next cycle.
func (c *AgentController) RequeueDeadItem(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid queue item id"})
		return
	}
	if err := c.store.Requeue(uint(id)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Queue item not found or already synced"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to requeue item"})
		return
	}
	log.Info().Uint64("queueID", id).Msg("Dead item requeued")
	c.worker.SyncNow()
	ctx.JSON(http.StatusOK, gin.H{"message": "Item requeued"})
}

func toQueueItemDTOs(items []model.SyncQueueItem) []dto.QueueItemDTO {
	out := make([]dto.QueueItemDTO, len(items))
	for i, item := range items {
		if err := copier.Copy(&out[i], &item); err != nil {
			log.Error().Err(err).Uint("queueID", item.ID).Msg("Failed to map queue item")
		}
		out[i].CreatedAt = item.CreatedAt.UTC().Format(time.RFC3339)
	}
	return out
}
