package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/walkup/printq/internal/core"
	"github.com/walkup/printq/internal/db"
)

type CreateWebhookRequest struct {
	Name   string   `json:"name" binding:"required"`
	URL    string   `json:"url" binding:"required,url"`
	Secret string   `json:"secret"`
	Events []string `json:"events" binding:"required"`
}

type UpdateWebhookRequest struct {
	Name    string   `json:"name"`
	URL     string   `json:"url" binding:"omitempty,url"`
	Secret  string   `json:"secret"`
	Events  []string `json:"events"`
	Enabled *bool    `json:"enabled"`
}

type WebhookResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

type TestWebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WebhookHandler manages webhook subscriptions. Delivery of real events runs
// through the sender pool; only the one-off test delivery happens inline here.
type WebhookHandler struct {
	httpClient *http.Client
}

func NewWebhookHandler() *WebhookHandler {
	return &WebhookHandler{httpClient: &http.Client{Timeout: 10 * time.Second}}
}

// loadWebhook resolves the :id parameter and writes the error response itself
// when the id is malformed or unknown.
func (h *WebhookHandler) loadWebhook(c *gin.Context) (*db.Webhook, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook id"})
		return nil, false
	}
	w, err := db.Webhooks.GetWebhookByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return w, true
}

func (h *WebhookHandler) ListWebhooks(c *gin.Context) {
	webhooks, err := db.Webhooks.ListWebhooks(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]WebhookResponse, 0, len(webhooks))
	for _, w := range webhooks {
		out = append(out, webhookToResponse(w))
	}
	c.JSON(http.StatusOK, out)
}

func (h *WebhookHandler) CreateWebhook(c *gin.Context) {
	var req CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	eventsJSON, err := marshalEvents(req.Events)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w := &db.Webhook{
		Name:       req.Name,
		URL:        req.URL,
		Secret:     req.Secret,
		EventsJSON: eventsJSON,
		Enabled:    true,
	}
	if err := db.Webhooks.CreateWebhook(c.Request.Context(), w); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, webhookToResponse(w))
}

func (h *WebhookHandler) GetWebhook(c *gin.Context) {
	w, ok := h.loadWebhook(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, webhookToResponse(w))
}

func (h *WebhookHandler) UpdateWebhook(c *gin.Context) {
	w, ok := h.loadWebhook(c)
	if !ok {
		return
	}
	var req UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != "" {
		w.Name = req.Name
	}
	if req.URL != "" {
		w.URL = req.URL
	}
	if req.Secret != "" {
		w.Secret = req.Secret
	}
	if len(req.Events) > 0 {
		eventsJSON, err := marshalEvents(req.Events)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		w.EventsJSON = eventsJSON
	}
	if req.Enabled != nil {
		w.Enabled = *req.Enabled
	}

	if err := db.Webhooks.UpdateWebhook(c.Request.Context(), w); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, webhookToResponse(w))
}

func (h *WebhookHandler) DeleteWebhook(c *gin.Context) {
	w, ok := h.loadWebhook(c)
	if !ok {
		return
	}
	if err := db.Webhooks.DeleteWebhook(c.Request.Context(), w.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TestWebhook delivers a signed test payload synchronously so the operator
// gets an immediate verdict. Delivery failures are reported in the body, not
// as an HTTP error.
func (h *WebhookHandler) TestWebhook(c *gin.Context) {
	w, ok := h.loadWebhook(c)
	if !ok {
		return
	}

	payload, err := json.Marshal(gin.H{
		"test":       true,
		"message":    "Test webhook from printq",
		"timestamp":  time.Now(),
		"webhook_id": w.ID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), "POST", w.URL, bytes.NewReader(payload))
	if err != nil {
		c.JSON(http.StatusOK, TestWebhookResponse{Message: fmt.Sprintf("failed to build request: %v", err)})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", "test")
	req.Header.Set("X-Webhook-Test", "true")
	if w.Secret != "" {
		req.Header.Set("X-Webhook-Signature", computeSignature(payload, w.Secret))
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		c.JSON(http.StatusOK, TestWebhookResponse{Message: fmt.Sprintf("delivery failed: %v", err)})
		return
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		c.JSON(http.StatusOK, TestWebhookResponse{Message: fmt.Sprintf("endpoint returned status %d", resp.StatusCode)})
		return
	}
	c.JSON(http.StatusOK, TestWebhookResponse{
		Success: true,
		Message: fmt.Sprintf("delivered (status %d)", resp.StatusCode),
	})
}

func webhookToResponse(w *db.Webhook) WebhookResponse {
	events := []string{}
	if w.EventsJSON != "" {
		json.Unmarshal([]byte(w.EventsJSON), &events)
	}
	return WebhookResponse{
		ID:        w.ID,
		Name:      w.Name,
		URL:       w.URL,
		Events:    events,
		Enabled:   w.Enabled,
		CreatedAt: w.CreatedAt,
	}
}

// marshalEvents validates the subscription list against the known event names
// and serializes it for storage.
func marshalEvents(events []string) (string, error) {
	if len(events) == 0 {
		return "", fmt.Errorf("at least one event must be specified")
	}
	for _, event := range events {
		switch event {
		case core.EventNewBatchPrintJob, core.EventJobStatusUpdate,
			core.EventBatchStatusUpdate, core.EventShopStatusUpdate:
		default:
			return "", fmt.Errorf("unknown event type %q", event)
		}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func computeSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup, auth gin.HandlerFunc) {
	webhooks := r.Group("/webhooks", auth)
	{
		webhooks.GET("", h.ListWebhooks)
		webhooks.POST("", h.CreateWebhook)
		webhooks.GET("/:id", h.GetWebhook)
		webhooks.PUT("/:id", h.UpdateWebhook)
		webhooks.DELETE("/:id", h.DeleteWebhook)
		webhooks.POST("/:id/test", h.TestWebhook)
	}
}
