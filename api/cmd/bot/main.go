package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"sound-predict/api/internal/config"
	"sound-predict/api/internal/httpserver"
	"sound-predict/api/internal/inference"
	"sound-predict/api/internal/logging"
	"sound-predict/api/internal/store"
	"sound-predict/api/internal/telegram"
)

const selectionRetention = 90 * 24 * time.Hour

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stderr, cfg.LogLevel)
	token := config.MustEnv("TELEGRAM_BOT_TOKEN")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Selections: Postgres when configured, memory otherwise ---
	var (
		selections store.Selections = &store.MemorySelections{}
		health     func(context.Context) error
	)
	if dsn := resolveDSN(cfg.DatabaseURL); dsn != "" {
		db, err := openDB(ctx, dsn)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer db.Close()
		logger.Info("db connected", "dsn", safeDSNSummary(dsn))

		repo := store.NewSelectionRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("db schema: %v", err)
		}
		go purgeLoop(ctx, repo, logger)
		selections = repo
		health = db.PingContext
	} else {
		logger.Warn("no database configured, chat selections are kept in memory")
	}

	// --- Telegram bot ---
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Fatal(err)
	}
	bot.Debug = false

	r := &telegram.Router{
		Bot:        bot,
		Predictor:  inference.New(cfg.InferenceURL, cfg.InferenceTimeout),
		Selections: selections,
		ImagesDir:  cfg.ImagesDir,
		Log:        logger,
	}

	go sweepLoop(ctx, r, cfg.SessionTTL, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", httpserver.Healthz(health))
	addr := "0.0.0.0:" + cfg.Port

	// --- Choose mode: Webhook vs Polling ---
	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		err = startWebhookMode(ctx, addr, mux, bot, r, webhookURL, logger)
	} else {
		err = startPollingMode(ctx, addr, mux, bot, r, logger)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(1 * time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

func purgeLoop(ctx context.Context, repo *store.SelectionRepo, logger *slog.Logger) {
	t := time.NewTicker(24 * time.Hour)
	defer t.Stop()
	for {
		n, err := repo.PurgeOlderThan(ctx, selectionRetention)
		if err != nil {
			logger.Warn("purge selections", "error", err)
		} else if n > 0 {
			logger.Info("purged stale selections", "rows", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// sweepLoop drops chat screens idle longer than ttl once a minute.
func sweepLoop(ctx context.Context, r *telegram.Router, ttl time.Duration, logger *slog.Logger) {
	if ttl <= 0 {
		return
	}
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.SweepIdle(ttl); n > 0 {
				logger.Debug("dropped idle chat screens", "count", n)
			}
		}
	}
}

// ---------------- Modes -----------------

func startWebhookMode(ctx context.Context, addr string, mux *http.ServeMux, bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string, logger *slog.Logger) error {
	// secret webhook path
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		return err
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		return err
	}

	mux.HandleFunc("POST "+path, func(w http.ResponseWriter, req *http.Request) {
		upd, err := bot.HandleUpdate(req)
		if err != nil {
			logger.Warn("bad webhook update", "error", err)
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		// Telegram only needs the 200; the prediction may take a while.
		go r.HandleUpdate(ctx, *upd)
	})

	logger.Info("webhook mode", "addr", addr, "path", path)
	return httpserver.Start(ctx, addr, mux)
}

func startPollingMode(ctx context.Context, addr string, mux *http.ServeMux, bot *tgbotapi.BotAPI, r *telegram.Router, logger *slog.Logger) error {
	// health server, not required for polling
	go func() {
		logger.Info("health server", "addr", addr)
		if err := httpserver.Start(ctx, addr, mux); err != nil {
			logger.Error("health server", "error", err)
		}
	}()

	// drop any webhook left over from a previous deployment
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		logger.Warn("delete webhook", "error", err)
	}

	runPolling(ctx, bot, logger, func(upd tgbotapi.Update) {
		go r.HandleUpdate(ctx, upd)
	})
	return nil
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 from Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return 2 * time.Second
		}
	}
	return 1 * time.Second
}

// clampDelay keeps a retry delay within [1s, 15s].
func clampDelay(d time.Duration) time.Duration {
	const (
		baseDelay = 1 * time.Second
		maxDelay  = 15 * time.Second
	)
	return min(max(d, baseDelay), maxDelay)
}

func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, logger *slog.Logger, handle func(tgbotapi.Update)) {
	offset := 0
	for {
		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling timeout (sec)

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := clampDelay(retryDelayFromError(err))
			logger.Warn("polling error", "error", err, "retry_in", d)
			if !sleep(ctx, d) {
				return
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		wait := time.Duration(0)
		if len(updates) == 0 {
			wait = 200 * time.Millisecond
		}
		if !sleep(ctx, wait) {
			return
		}
	}
}

// sleep waits for d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// ---------------- Helpers -----------------

// resolveDSN prefers DATABASE_URL and otherwise builds a DSN from the
// POSTGRES_* / PG* pieces. Without POSTGRES_DB or PGHOST there is no database.
func resolveDSN(databaseURL string) string {
	if v := strings.TrimSpace(databaseURL); v != "" {
		return v
	}
	if getenvDefault("POSTGRES_DB", "") == "" && getenvDefault("PGHOST", "") == "" {
		return ""
	}
	user := getenvDefault("POSTGRES_USER", "soundpredict")
	pass := os.Getenv("POSTGRES_PASSWORD")
	host := getenvDefault("PGHOST", "db")
	port := getenvDefault("PGPORT", "5432")
	db := getenvDefault("POSTGRES_DB", "soundpredict")

	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, pass),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + db,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func getenvDefault(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// shortHash is FNV-1a of the token, used to keep the webhook path secret.
func shortHash(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%016x", h.Sum64())
}

func safeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	user := u.User.Username()
	host := u.Host
	port := ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, user)
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, user)
}
