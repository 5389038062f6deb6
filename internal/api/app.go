package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/brandvoice/internal/chat"
	"github.com/kalambet/brandvoice/internal/composer"
	"github.com/kalambet/brandvoice/internal/export"
	"github.com/kalambet/brandvoice/internal/profile"
	"github.com/kalambet/brandvoice/internal/reference"
	"github.com/kalambet/brandvoice/internal/storage"
	"github.com/kalambet/brandvoice/internal/voice"
)

// multipartOverhead is the allowance for form boundaries and headers on top
// of the uploaded file itself.
const multipartOverhead = 1 << 20

type AppDeps struct {
	Store    *storage.Store
	Settings *profile.Manager
	Chat     *chat.Service
	Token    string
	Now      func() time.Time // optional; defaults to time.Now
}

// NewAppHandler returns the bearer-protected management API.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r := chi.NewRouter()
	r.Use(BearerAuth(deps.Token))

	r.Get("/vocabulary", handleVocabulary)
	r.Get("/profile", handleGetProfile(deps))
	r.Patch("/profile", handlePatchProfile(deps))
	r.Get("/profile/instructions", handleInstructions(deps))
	r.Post("/reference", handleUploadReference(deps))
	r.Delete("/reference", handleDeleteReference(deps))

	r.Route("/conversations", func(r chi.Router) {
		r.Post("/", handleStartConversation(deps))
		r.Get("/", handleListConversations(deps))
		r.Get("/{id}", handleGetConversation(deps))
		r.Delete("/{id}", handleDeleteConversation(deps))
		r.Post("/{id}/messages", handleSendMessage(deps))
		r.Get("/{id}/export", handleExport(deps))
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeChatError maps chat and storage sentinels to HTTP status codes.
func writeChatError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "conversation not found")
	case errors.Is(err, chat.ErrEmptyPrompt):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "prompt is required")
	case errors.Is(err, chat.ErrBusy):
		httpError(w, http.StatusConflict, "conflict", "%v", err)
	case errors.Is(err, chat.ErrNoReply):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "failed to %s: %v", action, err)
	}
}

type vocabularyResponse struct {
	Axes          []voice.Axis `json:"axes"`
	ReferenceHint string       `json:"reference_hint"`
	DefaultSlider int          `json:"default_slider"`
}

func handleVocabulary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, vocabularyResponse{
		Axes:          voice.Vocabulary(),
		ReferenceHint: voice.ReferenceHint,
		DefaultSlider: voice.DefaultSlider,
	})
}

// profileResponse is the stored settings plus the attached document's name.
type profileResponse struct {
	profile.Settings
	ReferenceFilename string `json:"reference_filename,omitempty"`
}

func currentProfile(deps AppDeps) (profileResponse, error) {
	s, err := deps.Settings.GetSettings()
	if err != nil {
		return profileResponse{}, err
	}
	resp := profileResponse{Settings: s}
	if s.ReferenceID != "" {
		doc, err := deps.Store.GetReference(s.ReferenceID)
		switch {
		case err == nil:
			resp.ReferenceFilename = doc.Filename
		case !errors.Is(err, storage.ErrNotFound):
			return profileResponse{}, err
		}
	}
	return resp, nil
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := currentProfile(deps)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handlePatchProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var patch profile.Patch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		// The reference document is attached through /reference only.
		patch.ReferenceID = nil

		if patch.Empty() {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no profile fields given")
			return
		}

		if _, err := deps.Settings.Update(patch); err != nil {
			if errors.Is(err, voice.ErrUnknownValue) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update profile: %v", err)
			return
		}

		resp, err := currentProfile(deps)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type instructionsResponse struct {
	ToneFlair    voice.ToneFlair `json:"tone_flair"`
	Instructions string          `json:"instructions"`
}

func handleInstructions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Chat.Profile()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, instructionsResponse{
			ToneFlair:    p.ToneFlair,
			Instructions: composer.Compile(p),
		})
	}
}

type referenceResponse struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	SizeBytes int       `json:"size_bytes"`
	Chars     int       `json:"chars"`
	CreatedAt time.Time `json:"created_at"`
}

func handleUploadReference(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, reference.MaxUploadBytes+multipartOverhead)
		defer r.Body.Close()

		if err := r.ParseMultipartForm(reference.MaxUploadBytes); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid upload: %v", err)
			return
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "file is required")
			return
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, reference.MaxUploadBytes+1))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading upload: %v", err)
			return
		}
		if len(data) > reference.MaxUploadBytes {
			httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "file exceeds %d bytes", reference.MaxUploadBytes)
			return
		}

		text, err := reference.Extract(header.Filename, data)
		switch {
		case errors.Is(err, reference.ErrUnsupportedType):
			httpError(w, http.StatusUnsupportedMediaType, "invalid_request_error", "%v", err)
			return
		case errors.Is(err, reference.ErrEmptyDocument):
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "%v", err)
			return
		case err != nil:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		previous, err := deps.Settings.GetSettings()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}

		doc := storage.ReferenceDoc{
			ID:        uuid.New().String(),
			Filename:  header.Filename,
			Content:   text,
			SizeBytes: len(data),
			CreatedAt: deps.Now().UTC(),
		}
		if err := deps.Store.SaveReference(doc); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save reference: %v", err)
			return
		}
		if _, err := deps.Settings.Update(profile.Patch{ReferenceID: &doc.ID}); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to attach reference: %v", err)
			return
		}
		if previous.ReferenceID != "" {
			if err := deps.Store.DeleteReference(previous.ReferenceID); err != nil && !errors.Is(err, storage.ErrNotFound) {
				slog.Warn("deleting replaced reference", "id", previous.ReferenceID, "error", err)
			}
		}

		writeJSON(w, http.StatusCreated, referenceResponse{
			ID:        doc.ID,
			Filename:  doc.Filename,
			SizeBytes: doc.SizeBytes,
			Chars:     len([]rune(text)),
			CreatedAt: doc.CreatedAt,
		})
	}
}

func handleDeleteReference(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Settings.GetSettings()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}
		if s.ReferenceID == "" {
			httpError(w, http.StatusNotFound, "not_found", "no reference document attached")
			return
		}

		if _, err := deps.Settings.Update(profile.Patch{ClearReference: true}); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to detach reference: %v", err)
			return
		}
		if err := deps.Store.DeleteReference(s.ReferenceID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete reference: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleStartConversation(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		c, err := deps.Chat.Start(r.Context(), req.Title)
		if err != nil {
			writeChatError(w, err, "start conversation")
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func handleListConversations(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		convs, err := deps.Chat.List(r.Context(), limit, offset)
		if err != nil {
			writeChatError(w, err, "list conversations")
			return
		}
		if convs == nil {
			convs = []storage.Conversation{}
		}
		writeJSON(w, http.StatusOK, convs)
	}
}

type conversationResponse struct {
	storage.Conversation
	Messages []storage.Message `json:"messages"`
}

func handleGetConversation(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		c, err := deps.Chat.Get(r.Context(), id)
		if err != nil {
			writeChatError(w, err, "get conversation")
			return
		}
		msgs, err := deps.Chat.History(r.Context(), id)
		if err != nil {
			writeChatError(w, err, "get conversation")
			return
		}
		if msgs == nil {
			msgs = []storage.Message{}
		}
		writeJSON(w, http.StatusOK, conversationResponse{Conversation: c, Messages: msgs})
	}
}

func handleDeleteConversation(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Chat.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeChatError(w, err, "delete conversation")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleSendMessage(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		reply, err := deps.Chat.Send(r.Context(), chi.URLParam(r, "id"), req.Prompt)
		if err != nil {
			writeChatError(w, err, "send message")
			return
		}
		writeJSON(w, http.StatusOK, reply)
	}
}

func handleExport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := r.URL.Query().Get("format")
		if format == "" {
			format = export.FormatText
		}

		prompt, reply, err := deps.Chat.LatestReply(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeChatError(w, err, "export reply")
			return
		}

		file, err := export.Render(format, prompt, reply.Content, deps.Now())
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		w.Header().Set("Content-Type", file.ContentType)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
		w.Header().Set("Content-Length", strconv.Itoa(len(file.Body)))
		w.Write(file.Body)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
