// Package chat runs conversation turns: it compiles the stored voice profile
// into a system message, sends the history to the chat backend and records
// the reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/brandvoice/internal/composer"
	"github.com/kalambet/brandvoice/internal/profile"
	"github.com/kalambet/brandvoice/internal/proxy"
	"github.com/kalambet/brandvoice/internal/storage"
	"github.com/kalambet/brandvoice/internal/voice"
)

// FailureReply is stored as the assistant turn when the backend call fails.
const FailureReply = "Sorry, there was an error generating a response. Please try again."

const (
	roleUser      = "user"
	roleAssistant = "assistant"

	maxTitleRunes  = 60
	defaultTimeout = 60 * time.Second
)

var (
	// ErrEmptyPrompt is returned by Send for a blank prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrBusy is returned by Send while another turn on the same
	// conversation is still waiting for the backend.
	ErrBusy = errors.New("a response is already being generated for this conversation")
	// ErrNoReply is returned by LatestReply when the conversation has no
	// successful assistant message yet.
	ErrNoReply = errors.New("conversation has no reply yet")
)

// Completer sends a message list to a chat backend and returns the reply text.
// Implemented by proxy.Client.
type Completer interface {
	Complete(ctx context.Context, model string, messages []proxy.Message) (string, error)
}

// Store is the persistence the Service needs. Implemented by storage.Store.
type Store interface {
	CreateConversation(c storage.Conversation) error
	GetConversation(id string) (storage.Conversation, error)
	ListConversations(limit, offset int) ([]storage.Conversation, error)
	SetConversationTitle(id, title string) error
	DeleteConversation(id string) error
	AppendMessage(m storage.Message) error
	ListMessages(conversationID string) ([]storage.Message, error)
	GetReference(id string) (storage.ReferenceDoc, error)
}

// SettingsSource supplies the current voice settings. Implemented by
// profile.Manager.
type SettingsSource interface {
	GetSettings() (profile.Settings, error)
}

// Config holds the tunables of a Service.
type Config struct {
	Model   string
	Timeout time.Duration
}

// Service orchestrates conversation turns.
type Service struct {
	store     Store
	settings  SettingsSource
	completer Completer
	composer  *composer.Composer
	model     string
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewService creates a Service.
func NewService(store Store, settings SettingsSource, completer Completer, cfg Config) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{
		store:     store,
		settings:  settings,
		completer: completer,
		composer:  composer.New(),
		model:     cfg.Model,
		timeout:   timeout,
		logger:    slog.Default(),
		now:       time.Now,
		inFlight:  make(map[string]struct{}),
	}
}

// Start creates an empty conversation.
func (s *Service) Start(ctx context.Context, title string) (storage.Conversation, error) {
	now := s.now().UTC()
	c := storage.Conversation{
		ID:        uuid.New().String(),
		Title:     strings.TrimSpace(title),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateConversation(c); err != nil {
		return storage.Conversation{}, fmt.Errorf("creating conversation: %w", err)
	}
	s.logger.Debug("conversation started", "id", c.ID)
	return c, nil
}

// Send runs one turn: it stores prompt, asks the backend for a reply in the
// current voice and stores the reply. A backend failure is not returned as
// an error; the fixed FailureReply is stored and returned instead.
func (s *Service) Send(ctx context.Context, conversationID, prompt string) (storage.Message, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return storage.Message{}, ErrEmptyPrompt
	}

	if !s.acquire(conversationID) {
		return storage.Message{}, ErrBusy
	}
	defer s.release(conversationID)

	conv, err := s.store.GetConversation(conversationID)
	if err != nil {
		return storage.Message{}, fmt.Errorf("loading conversation %s: %w", conversationID, err)
	}

	// Nothing is stored until the turn's inputs have loaded.
	turn, err := s.loadTurn(ctx, conversationID)
	if err != nil {
		return storage.Message{}, err
	}

	userMsg := storage.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           roleUser,
		Content:        prompt,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.AppendMessage(userMsg); err != nil {
		return storage.Message{}, fmt.Errorf("storing prompt: %w", err)
	}
	if conv.Title == "" {
		if err := s.store.SetConversationTitle(conversationID, titleFrom(prompt)); err != nil {
			s.logger.Warn("setting conversation title", "id", conversationID, "error", err)
		}
	}

	messages := s.composer.Messages(turn.profile, append(turn.history, proxy.Message{Role: roleUser, Content: prompt}))

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	reply, err := s.completer.Complete(callCtx, s.model, messages)
	failed := false
	if err != nil {
		s.logger.Error("generating response", "conversation", conversationID, "model", s.model, "error", err)
		reply, failed = FailureReply, true
	} else {
		s.logger.Debug("response generated", "conversation", conversationID, "duration", s.now().Sub(start))
	}

	assistant := storage.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           roleAssistant,
		Content:        reply,
		Failed:         failed,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.AppendMessage(assistant); err != nil {
		return storage.Message{}, fmt.Errorf("storing reply: %w", err)
	}
	return assistant, nil
}

// turnInput is everything a turn needs besides the prompt.
type turnInput struct {
	profile voice.Profile
	history []proxy.Message
}

// loadTurn reads the voice settings (plus reference text) and the history
// concurrently.
func (s *Service) loadTurn(ctx context.Context, conversationID string) (turnInput, error) {
	var in turnInput
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := s.Profile()
		if err != nil {
			return err
		}
		in.profile = p
		return nil
	})

	g.Go(func() error {
		msgs, err := s.store.ListMessages(conversationID)
		if err != nil {
			return fmt.Errorf("loading history: %w", err)
		}
		in.history = historyFor(msgs)
		return nil
	})

	if err := g.Wait(); err != nil {
		return turnInput{}, err
	}
	return in, nil
}

// Profile returns the voice profile turns are currently compiled from,
// including the text of the attached reference document.
func (s *Service) Profile() (voice.Profile, error) {
	settings, err := s.settings.GetSettings()
	if err != nil {
		return voice.Profile{}, fmt.Errorf("loading voice settings: %w", err)
	}
	return settings.Profile(s.referenceText(settings.ReferenceID)), nil
}

// referenceText returns the attached document's text, or "" if none is
// attached or it can no longer be read.
func (s *Service) referenceText(id string) string {
	if id == "" {
		return ""
	}
	doc, err := s.store.GetReference(id)
	if err != nil {
		s.logger.Warn("loading reference document", "id", id, "error", err)
		return ""
	}
	return doc.Content
}

// historyFor converts stored messages to backend messages. Failed replies
// are the UI's error notice, not model output, and are left out.
func historyFor(msgs []storage.Message) []proxy.Message {
	out := make([]proxy.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Failed {
			continue
		}
		out = append(out, proxy.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// History returns the stored messages of a conversation in order.
func (s *Service) History(ctx context.Context, conversationID string) ([]storage.Message, error) {
	if _, err := s.store.GetConversation(conversationID); err != nil {
		return nil, fmt.Errorf("loading conversation %s: %w", conversationID, err)
	}
	msgs, err := s.store.ListMessages(conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return msgs, nil
}

// List returns conversations, most recently active first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]storage.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	convs, err := s.store.ListConversations(limit, max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	return convs, nil
}

// Get returns a single conversation.
func (s *Service) Get(ctx context.Context, conversationID string) (storage.Conversation, error) {
	c, err := s.store.GetConversation(conversationID)
	if err != nil {
		return storage.Conversation{}, fmt.Errorf("loading conversation %s: %w", conversationID, err)
	}
	return c, nil
}

// Delete removes a conversation. A conversation with a turn in flight cannot
// be deleted.
func (s *Service) Delete(ctx context.Context, conversationID string) error {
	if !s.acquire(conversationID) {
		return ErrBusy
	}
	defer s.release(conversationID)

	if err := s.store.DeleteConversation(conversationID); err != nil {
		return fmt.Errorf("deleting conversation %s: %w", conversationID, err)
	}
	return nil
}

// LatestReply returns the most recent successful assistant message together
// with the prompt that produced it.
func (s *Service) LatestReply(ctx context.Context, conversationID string) (prompt string, reply storage.Message, err error) {
	msgs, err := s.History(ctx, conversationID)
	if err != nil {
		return "", storage.Message{}, err
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role != roleAssistant || m.Failed {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if msgs[j].Role == roleUser {
				return msgs[j].Content, m, nil
			}
		}
		return "", m, nil
	}
	return "", storage.Message{}, ErrNoReply
}

func (s *Service) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Service) release(id string) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

// titleFrom derives a conversation title from its first prompt.
func titleFrom(prompt string) string {
	line, _, _ := strings.Cut(prompt, "\n")
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) <= maxTitleRunes {
		return line
	}
	r := []rune(line)
	return strings.TrimSpace(string(r[:maxTitleRunes])) + "…"
}
