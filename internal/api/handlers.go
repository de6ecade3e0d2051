package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chatrelay/internal/agent"
	"chatrelay/internal/history"
	"chatrelay/internal/models"
)

// Engine is the reasoning-engine surface the handlers depend on. The
// concrete implementation is agent.Service; tests substitute a fake.
type Engine interface {
	Run(ctx context.Context, messages []models.Message) (string, error)
	Stream(ctx context.Context, messages []models.Message, onChunk func(string) error) (string, error)
}

// Handler wires the chat routes to the engine and the history store.
type Handler struct {
	engine     Engine
	store      history.Store
	historyMax int
}

// NewHandler constructs a Handler instance. historyMax caps each session
// history; values <= 0 fall back to the default of 10.
func NewHandler(engine Engine, store history.Store, historyMax int) *Handler {
	if historyMax <= 0 {
		historyMax = 10
	}
	return &Handler{engine: engine, store: store, historyMax: historyMax}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(CORS())
	api := router.Group("/api")
	api.POST("/chat", h.chat)
	api.POST("/chat/stream", h.chatStream)
	api.GET("/chat/history", h.chatHistory)
	api.GET("/health", h.health)
}

const defaultSessionID = "default"

type historyEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	InputAsText string         `json:"input_as_text"`
	SessionID   string         `json:"session_id"`
	History     []historyEntry `json:"history"`
}

// parseChatRequest decodes and validates the request body. A missing or
// empty input_as_text is the only validation failure; message content is
// otherwise passed through untouched.
func parseChatRequest(c *gin.Context) (*chatRequest, bool) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return nil, false
	}
	if strings.TrimSpace(req.InputAsText) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "input_as_text is required"})
		return nil, false
	}
	if req.SessionID == "" {
		req.SessionID = defaultSessionID
	}
	return &req, true
}

// mergedInput resolves the context for this turn: a client-supplied
// transcript takes precedence over the stored history (stateless
// deployments resubmit their transcript on every request), then the new
// user turn is appended and the result capped.
func (h *Handler) mergedInput(ctx context.Context, req *chatRequest) ([]models.Message, error) {
	var stored []models.Message
	if len(req.History) > 0 {
		stored = make([]models.Message, 0, len(req.History))
		for _, entry := range req.History {
			stored = append(stored, models.Message{
				Role:    models.Role(entry.Role),
				Content: entry.Content,
			})
		}
	} else {
		var err error
		stored, err = h.store.Get(ctx, req.SessionID)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
	}
	return history.Assemble(stored, req.InputAsText, h.historyMax), nil
}

// persistTurn appends the assistant reply to the merged input and writes
// the capped result back. Last writer wins; concurrent requests for the
// same session may interleave and the later Set silently prevails.
func (h *Handler) persistTurn(ctx context.Context, sessionID string, merged []models.Message, output string) error {
	updated := history.Cap(append(merged, models.AssistantMessage(output)), h.historyMax)
	if err := h.store.Set(ctx, sessionID, updated); err != nil {
		return fmt.Errorf("persist history: %w", err)
	}
	return nil
}

// chat is the non-streaming endpoint: one blocking engine invocation, one
// JSON response.
func (h *Handler) chat(c *gin.Context) {
	req, ok := parseChatRequest(c)
	if !ok {
		return
	}
	ctx := agent.WithToolSession(c.Request.Context(), req.SessionID)

	merged, err := h.mergedInput(ctx, req)
	if err != nil {
		log.Printf("chat %s: %v", req.SessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
		return
	}

	log.Printf("chat %s: invoking engine with %d messages", req.SessionID, len(merged))
	output, err := h.engine.Run(ctx, merged)
	if err != nil {
		log.Printf("chat %s: engine failed: %v", req.SessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
		return
	}

	if err := h.persistTurn(ctx, req.SessionID, merged, output); err != nil {
		log.Printf("chat %s: %v", req.SessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"output_text": output})
}

// Stream event payloads. The wire format is line-delimited SSE:
// "data: <json>\n\n" per event, closed by the literal "data: [DONE]\n\n".
type streamChunkEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type streamFinalEvent struct {
	Type       string `json:"type"`
	OutputText string `json:"output_text"`
}

type streamErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// chatStream is the SSE endpoint. Event order on every exit path: zero or
// more text_chunk events, at most one final, then exactly one [DONE].
func (h *Handler) chatStream(c *gin.Context) {
	req, ok := parseChatRequest(c)
	if !ok {
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": "streaming not supported"})
		return
	}

	ctx := agent.WithToolSession(c.Request.Context(), req.SessionID)

	merged, mergeErr := h.mergedInput(ctx, req)
	if mergeErr != nil {
		log.Printf("stream %s: %v", req.SessionID, mergeErr)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": mergeErr.Error()})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sendEvent := func(payload any) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
	sendDone := func() {
		fmt.Fprint(c.Writer, "data: [DONE]\n\n")
		flusher.Flush()
	}

	log.Printf("stream %s: invoking engine with %d messages", req.SessionID, len(merged))
	final, err := h.engine.Stream(ctx, merged, func(chunk string) error {
		return sendEvent(streamChunkEvent{Type: "text_chunk", Text: chunk})
	})
	if err != nil {
		// The user turn is not persisted on a failed generation; the
		// streaming error path intentionally leaves the store untouched.
		log.Printf("stream %s: engine failed: %v", req.SessionID, err)
		_ = sendEvent(streamErrorEvent{Type: "error", Error: err.Error()})
		sendDone()
		return
	}

	if err := sendEvent(streamFinalEvent{Type: "final", OutputText: final}); err != nil {
		log.Printf("stream %s: client gone before final: %v", req.SessionID, err)
	}

	if err := h.persistTurn(ctx, req.SessionID, merged, final); err != nil {
		// The answer already streamed; an error event here would make the
		// reassembler discard it. Log the write failure and close normally.
		log.Printf("stream %s: %v", req.SessionID, err)
	}

	sendDone()
}

// chatHistory returns the stored history for a session so a reloading
// client can hydrate its transcript.
func (h *Handler) chatHistory(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		sessionID = defaultSessionID
	}
	messages, err := h.store.Get(c.Request.Context(), sessionID)
	if err != nil {
		log.Printf("history %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "messages": messages})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
