package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/parallelhq/parallel/internal/openrouter"
	"github.com/parallelhq/parallel/internal/validation"
	"github.com/parallelhq/parallel/internal/zyla"
)

const analyzeSystemPrompt = `You are a facial aesthetics analyst. Reply with JSON only:
{"summary":"","features":[{"name":"","observation":"","suggestion":""}],"skin":{"type":"","concerns":[]}}`

const analyzeUserPrompt = "Analyze the facial features and skin visible in this photo."

// AIHandler proxies photo analysis to third-party AI providers.
type AIHandler struct {
	openrouter    *openrouter.Client
	zyla          *zyla.Client
	analysisModel string
	isDevelopment bool
}

func NewAIHandler(openrouterClient *openrouter.Client, zylaClient *zyla.Client, analysisModel string, isDevelopment bool) *AIHandler {
	return &AIHandler{
		openrouter:    openrouterClient,
		zyla:          zylaClient,
		analysisModel: analysisModel,
		isDevelopment: isDevelopment,
	}
}

type imageRequest struct {
	ImageURL string `json:"imageUrl"`
}

func (h *AIHandler) readImageRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req imageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	if !validation.IsImageReference(req.ImageURL) {
		writeError(w, http.StatusBadRequest, "imageUrl must be a data:, http:// or https:// URL")
		return "", false
	}
	return req.ImageURL, true
}

// OpenRouterAnalyze runs one vision completion over the photo. Structured
// answers are returned as JSON; anything else comes back as raw text with
// "structured": false.
func (h *AIHandler) OpenRouterAnalyze(w http.ResponseWriter, r *http.Request) {
	imageURL, ok := h.readImageRequest(w, r)
	if !ok {
		return
	}

	content, err := h.openrouter.AnalyzeImage(r.Context(), h.analysisModel, analyzeSystemPrompt, analyzeUserPrompt, imageURL)
	if err != nil {
		h.proxyFailure(w, "openrouter analysis failed", err)
		return
	}

	var parsed any
	if err := openrouter.DecodeJSON(content, &parsed); err != nil {
		slog.Warn("openrouter analysis was not json", "error", err)
		writeJSON(w, http.StatusOK, map[string]any{"analysis": content, "structured": false})
		return
	}
	writeJSON(w, http.StatusOK, parsed)
}

func (h *AIHandler) ZylaAnalyze(w http.ResponseWriter, r *http.Request) {
	imageURL, ok := h.readImageRequest(w, r)
	if !ok {
		return
	}

	result, err := h.zyla.Analyze(r.Context(), imageURL)
	if err != nil {
		h.proxyFailure(w, "zyla analysis failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"skin": result.Skin, "raw": result.Raw})
}

// proxyFailure reports an upstream failure as a 500 envelope carrying the
// provider status and body when there was one.
func (h *AIHandler) proxyFailure(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)

	body := map[string]any{"error": msg}

	var orErr *openrouter.StatusError
	var zyErr *zyla.StatusError
	switch {
	case errors.As(err, &orErr):
		body["status"] = orErr.StatusCode
		body["body"] = orErr.Body
	case errors.As(err, &zyErr):
		body["status"] = zyErr.StatusCode
		body["body"] = zyErr.Body
	}
	if h.isDevelopment {
		body["details"] = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, body)
}
