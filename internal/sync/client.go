package sync

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	stdsync "sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tdhoang/Talaria/internal/dto"
)

// Client performs the HTTP calls against the admin server. The base URL is an
// operator-supplied setting and may change at runtime; every call carries the
// client's bounded timeout so a hung connection cannot stall the worker.
type Client struct {
	http *http.Client

	mu      stdsync.RWMutex
	baseURL string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

func (c *Client) SetBaseURL(url string) {
	c.mu.Lock()
	c.baseURL = url
	c.mu.Unlock()
}

// TestConnection probes GET /api/health. True only on a 2xx response; any
// network failure or non-2xx status is a plain false outcome, never a panic.
func (c *Client) TestConnection(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL()+"/api/health", nil)
	if err != nil {
		return false, &NetworkError{Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, &NetworkError{Err: err}
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// GetEventByCode looks up an event by its access code. This is the first call
// a candidate device makes, before any session exists.
func (c *Client) GetEventByCode(ctx context.Context, code string) (*dto.EventResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL()+"/api/events/"+code, nil)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ServerError{Status: resp.StatusCode}
	}
	var event dto.EventResponse
	if err := json.NewDecoder(resp.Body).Decode(&event); err != nil {
		return nil, &SerializationError{Err: err}
	}
	return &event, nil
}

// SubmitTestResult POSTs the result payload as JSON and returns the
// server-assigned result id.
func (c *Client) SubmitTestResult(ctx context.Context, payload dto.TestResultPayload) (int64, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, &SerializationError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL()+"/api/test-results", bytes.NewReader(body))
	if err != nil {
		return 0, &NetworkError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &ServerError{Status: resp.StatusCode}
	}

	var submit dto.SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submit); err != nil {
		return 0, &SerializationError{Err: err}
	}
	if submit.ResultID == nil {
		return 0, nil
	}
	return *submit.ResultID, nil
}

// UploadRecording streams a recording file as a multipart form with the
// session_id and recording_type fields the server expects.
func (c *Client) UploadRecording(ctx context.Context, sessionID, recordingType, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return &NetworkError{Err: fmt.Errorf("open recording %s: %w", filePath, err)}
	}
	defer file.Close()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("session_id", sessionID); err != nil {
		return &SerializationError{Err: err}
	}
	if err := form.WriteField("recording_type", recordingType); err != nil {
		return &SerializationError{Err: err}
	}
	part, err := form.CreateFormFile("video", filepath.Base(filePath))
	if err != nil {
		return &SerializationError{Err: err}
	}
	if _, err := io.Copy(part, file); err != nil {
		return &SerializationError{Err: err}
	}
	if err := form.Close(); err != nil {
		return &SerializationError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL()+"/api/recordings", &buf)
	if err != nil {
		return &NetworkError{Err: err}
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ServerError{Status: resp.StatusCode}
	}
	log.Debug().Str("sessionID", sessionID).Str("type", recordingType).Msg("Recording uploaded")
	return nil
}

// PayloadChecksum is the stable idempotency key for a test-result payload:
// the hex sha256 of the session id and the serialized answer snapshot. The
// same session with the same answers always produces the same key, letting
// the server recognize a redelivery.
func PayloadChecksum(sessionID string, answers []dto.AnswerData) string {
	h := sha256.New()
	h.Write([]byte(sessionID))
	if data, err := json.Marshal(answers); err == nil {
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))
}
