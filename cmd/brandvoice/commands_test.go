package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kalambet/brandvoice/internal/composer"
	"github.com/kalambet/brandvoice/internal/config"
	"github.com/kalambet/brandvoice/internal/voice"
)

type recordedRequest struct {
	Method      string
	Path        string
	Body        string
	Auth        string
	ContentType string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.RequestURI(),
			Body:        body.String(),
			Auth:        r.Header.Get("Authorization"),
			ContentType: r.Header.Get("Content-Type"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"conversation not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestAPIClientAuth(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /profile": `{"communication_style":"Witty"}`,
	})

	resp, err := ts.client().get(ctx, "/profile")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var p map[string]any
	if err := decodeJSON(resp, &p); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if p["communication_style"] != "Witty" {
		t.Errorf("communication_style = %v, want Witty", p["communication_style"])
	}
	if ts.requests[0].Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", ts.requests[0].Auth)
	}
}

func TestProfileSet_SendsTypedValues(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PATCH /profile": `{"tone_slider":80,"tone_flair":"Blaze"}`,
	})

	body, err := profilePatchBody("tone_slider", "80")
	if err != nil {
		t.Fatalf("profilePatchBody: %v", err)
	}
	resp, err := ts.client().patch(ctx, "/profile", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var result map[string]any
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	r := ts.requests[0]
	if r.Method != "PATCH" || r.Path != "/profile" {
		t.Errorf("request = %s %s", r.Method, r.Path)
	}
	if r.ContentType != "application/json" {
		t.Errorf("content type = %q", r.ContentType)
	}
	if r.Body != `{"tone_slider":80}` {
		t.Errorf("body = %q, want numeric tone_slider", r.Body)
	}
}

func TestProfilePatchBody(t *testing.T) {
	tests := []struct {
		field, value string
		want         string
		wantErr      bool
	}{
		{"communication_style", "witty", `{"communication_style":"Witty"}`, false},
		{"content_format", "action list", `{"content_format":"Action List"}`, false},
		{"generation", "Gen Z", `{"generation":"Gen Z (b.1997–2012)"}`, false},
		{"length", "LONG", `{"length":"Long"}`, false},
		{"tone_slider", "25", `{"tone_slider":25}`, false},
		{"ultra_direct", "true", `{"ultra_direct":true}`, false},
		{"communication_style", "Sarcastic", "", true},
		{"tone_slider", "loud", "", true},
		{"ultra_direct", "maybe", "", true},
		{"tone_flair", "Blaze", "", true},
	}
	for _, tt := range tests {
		body, err := profilePatchBody(tt.field, tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("profilePatchBody(%s, %s) error = %v, wantErr %v", tt.field, tt.value, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		got, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(got) != tt.want {
			t.Errorf("profilePatchBody(%s, %s) = %s, want %s", tt.field, tt.value, got, tt.want)
		}
	}

	if _, err := profilePatchBody("length", "Epic"); !errors.Is(err, voice.ErrUnknownValue) {
		t.Errorf("err = %v, want ErrUnknownValue", err)
	}
}

func TestProfileSetCommand_UnknownField(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"profile", "set", "mood", "happy"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if !strings.Contains(err.Error(), "unknown profile field") {
		t.Errorf("error = %q, want it to mention the unknown field", err.Error())
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	resp, err := ts.client().get(ctx, "/conversations/missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var v any
	err = decodeJSON(resp, &v)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "conversation not found") {
		t.Errorf("error = %q, want status and server message", err.Error())
	}
}

func TestServerNotReachable(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	_, err := ts.client().get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestUpload_Multipart(t *testing.T) {
	var gotName, gotContent, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		f, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		gotName, gotContent = header.Filename, string(data)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"ref-1","filename":"brand.md","chars":11}`))
	}))
	defer srv.Close()

	client := &apiClient{baseURL: srv.URL, token: "tok", httpClient: srv.Client()}
	resp, err := client.upload(ctx, "/reference", "brand.md", []byte("Say folks."))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	var result map[string]any
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if gotName != "brand.md" || gotContent != "Say folks." {
		t.Errorf("server got %q = %q", gotName, gotContent)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("auth = %q", gotAuth)
	}
}

func TestExportReply_WritesAttachment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations/c1/export" || r.URL.Query().Get("format") != "txt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="Launch_email_15Oct2026.txt"`)
		w.Write([]byte("Big news."))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "out")
	client := &apiClient{baseURL: srv.URL, token: "tok", httpClient: srv.Client()}

	path, err := exportReply(ctx, client, "c1", "txt", dir)
	if err != nil {
		t.Fatalf("exportReply: %v", err)
	}
	if filepath.Base(path) != "Launch_email_15Oct2026.txt" {
		t.Errorf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	if string(data) != "Big news." {
		t.Errorf("content = %q", data)
	}
}

func TestExportReply_ServerError(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	_, err := exportReply(ctx, ts.client(), "missing", "txt", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("err = %v, want 404", err)
	}
}

func TestDownload_RequiresFilename(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /conversations/c1/export": `{}`,
	})

	if _, _, err := ts.client().download(ctx, "/conversations/c1/export"); err == nil {
		t.Fatal("expected error without Content-Disposition")
	}
}

func TestBuildProfile_FromYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ref.txt"), []byte("We say folks, never guys."), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "voice.yaml")
	yamlDoc := `communication_style: witty
content_format: Quick Summary
generation: Gen X
length: Short
tone_slider: 10
reference: ref.txt
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	pf, err := loadProfileFile(path)
	if err != nil {
		t.Fatalf("loadProfileFile: %v", err)
	}
	pf.Reference = filepath.Join(dir, pf.Reference)

	got, err := buildProfile(pf)
	if err != nil {
		t.Fatalf("buildProfile: %v", err)
	}

	want := voice.Profile{
		CommunicationStyle: voice.Witty,
		ContentFormat:      voice.QuickSummary,
		Generation:         voice.GenX,
		Length:             voice.Short,
		ToneFlair:          voice.Nip,
		ReferenceText:      "We say folks, never guys.",
	}
	if got != want {
		t.Errorf("profile = %+v, want %+v", got, want)
	}
	if composer.Compile(got) != composer.Compile(want) {
		t.Error("compiled instructions differ")
	}
}

func TestBuildProfile_Defaults(t *testing.T) {
	got, err := buildProfile(profileFile{})
	if err != nil {
		t.Fatalf("buildProfile: %v", err)
	}
	if got != voice.DefaultProfile() {
		t.Errorf("profile = %+v, want defaults", got)
	}
}

func TestBuildProfile_Errors(t *testing.T) {
	if _, err := buildProfile(profileFile{Generation: "Gen Q"}); !errors.Is(err, voice.ErrUnknownValue) {
		t.Errorf("err = %v, want ErrUnknownValue", err)
	}
	if _, err := buildProfile(profileFile{Reference: filepath.Join(t.TempDir(), "missing.txt")}); err == nil {
		t.Error("expected error for missing reference file")
	}
}

func TestLoadProfileFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("tone_slider: [1, 2"), 0o644)

	if _, err := loadProfileFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestProbeStatus(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health":        `{"status":"ok"}`,
		"GET /conversations": `[{"id":"a"},{"id":"b"}]`,
	})
	upstream := httptest.NewServer(http.NotFoundHandler())
	upstream.Close()

	r := probeStatus(ctx, ts.server.Client(), ts.server.URL, upstream.URL, "tok", true)

	if !strings.HasPrefix(r.server, "running") {
		t.Errorf("server = %q", r.server)
	}
	if r.conversations != "2" {
		t.Errorf("conversations = %q, want 2", r.conversations)
	}
	if !strings.HasPrefix(r.upstream, "unreachable") {
		t.Errorf("upstream = %q", r.upstream)
	}
}

func TestProbeStatus_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()
	upstream := newTestServer(t, map[string]string{"GET /models": `{"data":[]}`})

	r := probeStatus(ctx, http.DefaultClient, ts.server.URL, upstream.server.URL, "", false)

	if r.server != "stopped" {
		t.Errorf("server = %q, want stopped", r.server)
	}
	if r.conversations != "" {
		t.Errorf("conversations = %q, want empty", r.conversations)
	}
	if !strings.Contains(r.upstream, "HTTP 200") {
		t.Errorf("upstream = %q", r.upstream)
	}
}

func TestNewRouter(t *testing.T) {
	tag := func(name string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(name))
		})
	}
	h := newRouter(tag("openai"), tag("app"))

	tests := map[string]string{
		"/health":                  "openai",
		"/v1/models":               "openai",
		"/v1/chat/completions":     "openai",
		"/profile":                 "app",
		"/conversations/c1/export": "app",
	}
	for path, want := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Body.String() != want {
			t.Errorf("%s served by %q, want %q", path, rec.Body.String(), want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "DEBUG",
		"DEBUG":   "DEBUG",
		"warn":    "WARN",
		"error":   "ERROR",
		"info":    "INFO",
		"verbose": "INFO",
	}
	for in, want := range tests {
		if got := parseLogLevel(in).String(); got != want {
			t.Errorf("parseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestChatTimeout(t *testing.T) {
	if got := chatTimeout("15s"); got.String() != "15s" {
		t.Errorf("chatTimeout(15s) = %v", got)
	}
	if got := chatTimeout("soon"); got != defaultChatTimeout {
		t.Errorf("chatTimeout(soon) = %v, want default", got)
	}
	if got := chatTimeout("-5s"); got != defaultChatTimeout {
		t.Errorf("chatTimeout(-5s) = %v, want default", got)
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4100
	cfg.Proxy.OpenRouterAPIKey = "sk-secret"

	found := false
	for _, k := range config.ShowAll(cfg) {
		if k.Key == "server.port" && k.Value == "4100" {
			found = true
		}
		if strings.Contains(k.Value, "sk-secret") {
			t.Error("secret shown in config output")
		}
	}
	if !found {
		t.Error("expected to find server.port=4100 in ShowAll output")
	}
}

func TestCountLabel(t *testing.T) {
	if got := countLabel(5, 100); got != "5" {
		t.Errorf("countLabel(5) = %q", got)
	}
	if got := countLabel(100, 100); got != "100+" {
		t.Errorf("countLabel(100) = %q", got)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortID = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID = %q", got)
	}
}

func TestReferenceUploadHelp_ListsExtensions(t *testing.T) {
	for _, ext := range []string{".txt", ".md", ".pdf", ".docx", ".html", ".htm"} {
		if !strings.Contains(referenceUploadCmd.Short, ext) {
			t.Errorf("upload help %q does not list %s", referenceUploadCmd.Short, ext)
		}
	}
}
