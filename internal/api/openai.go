package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/brandvoice/internal/composer"
	"github.com/kalambet/brandvoice/internal/proxy"
	"github.com/kalambet/brandvoice/internal/voice"
)

const maxRequestBodySize = 1 << 20 // 1MB

// ProfileSource supplies the voice profile applied to proxied requests.
// Implemented by chat.Service.
type ProfileSource interface {
	Profile() (voice.Profile, error)
}

// Upstream is the chat backend behind the OpenAI-compatible endpoints.
// Implemented by proxy.Client.
type Upstream interface {
	Chat(ctx context.Context, req proxy.ChatRequest) (io.ReadCloser, error)
	ListModels(ctx context.Context) ([]proxy.Model, error)
}

// NewOpenAIHandler returns an http.Handler implementing the OpenAI-compatible
// REST API. When profiles is non-nil, the compiled voice instruction is put
// in front of every chat request before forwarding upstream. Passing nil
// disables composition (passthrough mode).
func NewOpenAIHandler(p Upstream, profiles ProfileSource) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Get("/v1/models", handleModels(p))
	r.Post("/v1/chat/completions", handleChatCompletions(p, profiles, composer.New()))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleModels(p Upstream) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		models, err := p.ListModels(r.Context())
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "failed to list models: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(proxy.ModelList{
			Object: "list",
			Data:   models,
		})
	}
}

func handleChatCompletions(p Upstream, profiles ProfileSource, c *composer.Composer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req proxy.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if !hasMessages(req.Messages) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "messages is required and must not be empty")
			return
		}

		if profiles != nil {
			req = applyVoice(req, profiles, c)
		}

		rc, err := p.Chat(r.Context(), req)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "upstream error: %v", err)
			return
		}
		defer rc.Close()

		if req.Stream {
			streamResponse(w, rc)
		} else {
			body, err := io.ReadAll(rc)
			if err != nil {
				httpError(w, http.StatusBadGateway, "api_error", "reading upstream response: %v", err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write(body)
		}
	}
}

// applyVoice composes req with the current profile. A failure to load the
// profile is not fatal: the request is forwarded unchanged.
func applyVoice(req proxy.ChatRequest, profiles ProfileSource, c *composer.Composer) proxy.ChatRequest {
	p, err := profiles.Profile()
	if err != nil {
		slog.Warn("loading voice profile, forwarding request unchanged", "error", err)
		return req
	}
	composed, err := c.Compose(req, p)
	if err != nil {
		slog.Warn("composing request, forwarding unchanged", "error", err)
		return req
	}
	slog.Debug("request composed",
		"tone_flair", p.ToneFlair.String(),
		"ultra_direct", p.UltraDirect,
		"reference", p.ReferenceText != "",
	)
	return composed
}

func streamResponse(w http.ResponseWriter, rc io.Reader) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	reader := bufio.NewReader(rc)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			w.Write(line)
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				slog.Error("upstream stream read error", "error", err)
				errPayload, marshalErr := json.Marshal(map[string]any{
					"error": map[string]any{
						"message": "upstream read error",
						"type":    "server_error",
					},
				})
				if marshalErr == nil {
					fmt.Fprintf(w, "data: %s\n\n", errPayload)
					flusher.Flush()
				} else {
					slog.Error("marshalling stream error payload", "error", marshalErr)
				}
			}
			break
		}
	}
}

func hasMessages(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return false
	}
	return len(arr) > 0
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
