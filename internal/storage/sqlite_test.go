package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestConversation(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.CreateConversation(Conversation{ID: id, Title: "test"}); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(versions) != 2 {
		t.Fatalf("expected 2 applied migrations, got %v", versions)
	}

	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{"idx_conversations_updated", "idx_messages_conversation"}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("002_reference_docs.sql")
	if err != nil || v != 2 {
		t.Errorf("parseMigrationVersion = %d, %v", v, err)
	}
	if _, err := parseMigrationVersion("initial.sql"); err == nil {
		t.Error("expected error for filename without version")
	}
}

func TestCreateAndGetConversation(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	want := Conversation{ID: "conv-1", Title: "Launch email", CreatedAt: now, UpdatedAt: now}
	if err := s.CreateConversation(want); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	got, err := s.GetConversation("conv-1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got.ID != want.ID || got.Title != want.Title {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if !got.CreatedAt.Equal(now) || !got.UpdatedAt.Equal(now) {
		t.Errorf("timestamps = %v/%v, want %v", got.CreatedAt, got.UpdatedAt, now)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetConversation("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListConversations_MostRecentFirst(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		c := Conversation{
			ID:        fmt.Sprintf("conv-%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.CreateConversation(c); err != nil {
			t.Fatalf("CreateConversation: %v", err)
		}
	}

	// A new message makes conv-0 the most recently active.
	if err := s.AppendMessage(Message{ID: "m1", ConversationID: "conv-0", Role: "user", Content: "hi"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	got, err := s.ListConversations(10, 0)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	order := []string{"conv-0", "conv-2", "conv-1"}
	if len(got) != len(order) {
		t.Fatalf("got %d conversations, want %d", len(got), len(order))
	}
	for i, id := range order {
		if got[i].ID != id {
			t.Errorf("got[%d] = %s, want %s", i, got[i].ID, id)
		}
	}

	page, err := s.ListConversations(1, 1)
	if err != nil {
		t.Fatalf("ListConversations page: %v", err)
	}
	if len(page) != 1 || page[0].ID != "conv-2" {
		t.Errorf("page = %+v, want conv-2", page)
	}
}

func TestSetConversationTitle(t *testing.T) {
	s := openTestStore(t)
	createTestConversation(t, s, "c1")

	if err := s.SetConversationTitle("c1", "Renamed"); err != nil {
		t.Fatalf("SetConversationTitle: %v", err)
	}
	c, _ := s.GetConversation("c1")
	if c.Title != "Renamed" {
		t.Errorf("title = %q", c.Title)
	}
	if err := s.SetConversationTitle("nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAppendAndListMessages(t *testing.T) {
	s := openTestStore(t)
	createTestConversation(t, s, "c1")

	msgs := []Message{
		{ID: "m1", ConversationID: "c1", Role: "user", Content: "first"},
		{ID: "m2", ConversationID: "c1", Role: "assistant", Content: "second"},
		{ID: "m3", ConversationID: "c1", Role: "user", Content: "third"},
		{ID: "m4", ConversationID: "c1", Role: "assistant", Content: "sorry", Failed: true},
	}
	for _, m := range msgs {
		if err := s.AppendMessage(m); err != nil {
			t.Fatalf("AppendMessage(%s): %v", m.ID, err)
		}
	}

	got, err := s.ListMessages("c1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(got) != len(msgs) {
		t.Fatalf("got %d messages, want %d", len(got), len(msgs))
	}
	for i, m := range msgs {
		if got[i].ID != m.ID || got[i].Content != m.Content || got[i].Role != m.Role || got[i].Failed != m.Failed {
			t.Errorf("got[%d] = %+v, want %+v", i, got[i], m)
		}
		if got[i].CreatedAt.IsZero() {
			t.Errorf("got[%d] has zero CreatedAt", i)
		}
	}
}

func TestAppendMessage_UnknownConversation(t *testing.T) {
	s := openTestStore(t)

	err := s.AppendMessage(Message{ID: "m1", ConversationID: "ghost", Role: "user", Content: "hi"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	msgs, _ := s.ListMessages("ghost")
	if len(msgs) != 0 {
		t.Errorf("message stored for unknown conversation: %+v", msgs)
	}
}

func TestDeleteConversation_RemovesMessages(t *testing.T) {
	s := openTestStore(t)
	createTestConversation(t, s, "c1")
	createTestConversation(t, s, "c2")
	s.AppendMessage(Message{ID: "m1", ConversationID: "c1", Role: "user", Content: "a"})
	s.AppendMessage(Message{ID: "m2", ConversationID: "c2", Role: "user", Content: "b"})

	if err := s.DeleteConversation("c1"); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if _, err := s.GetConversation("c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("conversation still present: %v", err)
	}
	if msgs, _ := s.ListMessages("c1"); len(msgs) != 0 {
		t.Errorf("messages survived delete: %d", len(msgs))
	}
	if msgs, _ := s.ListMessages("c2"); len(msgs) != 1 {
		t.Errorf("other conversation affected: %d messages", len(msgs))
	}

	if err := s.DeleteConversation("c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

// TestProfileKeyRoundTrip verifies set, get, and overwrite of a profile key.
func TestProfileKeyRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetProfileKey("voice.length", "Short"); err != nil {
		t.Fatalf("SetProfileKey: %v", err)
	}
	v, err := s.GetProfileKey("voice.length")
	if err != nil || v != "Short" {
		t.Fatalf("GetProfileKey = %q, %v", v, err)
	}

	if err := s.SetProfileKey("voice.length", "Long"); err != nil {
		t.Fatalf("SetProfileKey overwrite: %v", err)
	}
	v, _ = s.GetProfileKey("voice.length")
	if v != "Long" {
		t.Errorf("after overwrite = %q, want Long", v)
	}

	if _, err := s.GetProfileKey("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing key err = %v, want ErrNotFound", err)
	}
}

func TestSetProfileKeysAndGetAll(t *testing.T) {
	s := openTestStore(t)

	err := s.SetProfileKeys(map[string]string{
		"voice.communication_style": "Witty",
		"voice.tone_slider":         "70",
	})
	if err != nil {
		t.Fatalf("SetProfileKeys: %v", err)
	}

	all, err := s.GetAllProfileKeys()
	if err != nil {
		t.Fatalf("GetAllProfileKeys: %v", err)
	}
	if len(all) != 2 || all["voice.communication_style"] != "Witty" || all["voice.tone_slider"] != "70" {
		t.Errorf("all = %v", all)
	}

	if err := s.DeleteProfileKey("voice.tone_slider"); err != nil {
		t.Fatalf("DeleteProfileKey: %v", err)
	}
	all, _ = s.GetAllProfileKeys()
	if _, ok := all["voice.tone_slider"]; ok {
		t.Error("deleted key still present")
	}
}

func TestReferenceRoundTrip(t *testing.T) {
	s := openTestStore(t)

	doc := ReferenceDoc{ID: "ref-1", Filename: "brand.pdf", Content: "Our voice is calm.", SizeBytes: 1024}
	if err := s.SaveReference(doc); err != nil {
		t.Fatalf("SaveReference: %v", err)
	}

	got, err := s.GetReference("ref-1")
	if err != nil {
		t.Fatalf("GetReference: %v", err)
	}
	if got.Filename != doc.Filename || got.Content != doc.Content || got.SizeBytes != doc.SizeBytes {
		t.Errorf("got %+v, want %+v", got, doc)
	}

	if err := s.DeleteReference("ref-1"); err != nil {
		t.Fatalf("DeleteReference: %v", err)
	}
	if _, err := s.GetReference("ref-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteReference("ref-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}
