package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/brandvoice/internal/api"
	"github.com/kalambet/brandvoice/internal/chat"
	"github.com/kalambet/brandvoice/internal/config"
	"github.com/kalambet/brandvoice/internal/profile"
	"github.com/kalambet/brandvoice/internal/proxy"
	"github.com/kalambet/brandvoice/internal/storage"
)

const defaultChatTimeout = 60 * time.Second

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the brandvoice server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running brandvoice server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show brandvoice status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "brandvoice.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func chatTimeout(raw string) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		slog.Warn("invalid chat timeout, using default", "value", raw, "default", defaultChatTimeout)
		return defaultChatTimeout
	}
	return d
}

// newRouter serves the OpenAI-compatible routes next to the bearer-protected
// management API.
func newRouter(openai, app http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Handle("/health", openai)
	r.Handle("/v1/*", openai)
	r.Mount("/", app)
	return r
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "brandvoice version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)})))

	// Ensure API token exists in platform secret store.
	apiToken, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Refuse to start twice.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("brandvoice is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("brandvoice is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	settings := profile.NewManager(store)
	proxyClient := proxy.NewClientWithBaseURL(cfg.Proxy.OpenRouterAPIKey, cfg.Proxy.BaseURL)
	chatSvc := chat.NewService(store, settings, proxyClient, chat.Config{
		Model:   cfg.Proxy.DefaultModel,
		Timeout: chatTimeout(cfg.Chat.Timeout),
	})

	openaiHandler := api.NewOpenAIHandler(proxyClient, chatSvc)
	appHandler := api.NewAppHandler(api.AppDeps{
		Store:    store,
		Settings: settings,
		Chat:     chatSvc,
		Token:    apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: newRouter(openaiHandler, appHandler),
	}

	if cfg.Server.MCPEnabled {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Settings: settings, Chat: chatSvc})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("brandvoice listening", "addr", addr, "model", cfg.Proxy.DefaultModel)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("brandvoice is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop brandvoice (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to brandvoice (PID %d)", pid)
	return nil
}

// statusReport is filled by concurrent probes.
type statusReport struct {
	server        string
	upstream      string
	conversations string
}

func showStatus(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}
	token, tokenErr := config.GetAPIToken(config.NewKeychain())

	report := probeStatus(ctx, client, serverURL, cfg.Proxy.BaseURL, token, tokenErr == nil)

	printStatus("Server", "%s", report.server)
	printStatus("Upstream", "%s", report.upstream)
	if report.conversations != "" {
		printStatus("Conversations", "%s", report.conversations)
	}
	printStatus("Model", "%s", cfg.Proxy.DefaultModel)
	printStatus("MCP", "%s", enabledLabel(cfg.Server.MCPEnabled))
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// probeStatus checks the local server and the upstream endpoint in parallel.
// Probe failures are reported in the result, never returned.
func probeStatus(ctx context.Context, client *http.Client, serverURL, upstreamURL, token string, haveToken bool) statusReport {
	var r statusReport
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		resp, err := apiGet(gctx, client, serverURL+"/health", "")
		if err != nil {
			r.server = "stopped"
			return nil
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			r.server = fmt.Sprintf("error (HTTP %d)", resp.StatusCode)
			return nil
		}
		r.server = "running at " + serverURL

		if !haveToken {
			return nil
		}
		convResp, err := apiGet(gctx, client, serverURL+"/conversations?limit=100", token)
		if err != nil {
			return nil
		}
		defer convResp.Body.Close()
		var convs []json.RawMessage
		if convResp.StatusCode == http.StatusOK && json.NewDecoder(convResp.Body).Decode(&convs) == nil {
			r.conversations = countLabel(len(convs), 100)
		}
		return nil
	})

	g.Go(func() error {
		resp, err := apiGet(gctx, client, upstreamURL+"/models", "")
		if err != nil {
			r.upstream = "unreachable (" + upstreamURL + ")"
			return nil
		}
		resp.Body.Close()
		r.upstream = fmt.Sprintf("reachable at %s (HTTP %d)", upstreamURL, resp.StatusCode)
		return nil
	})

	g.Wait()
	return r
}

func enabledLabel(b bool) string {
	if b {
		return "enabled (stdio)"
	}
	return "disabled"
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}

func apiGet(ctx context.Context, client *http.Client, url, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return client.Do(req)
}
