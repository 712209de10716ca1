// Package app assembles the bot: stores, channel driver, dialogue engine,
// handoff orchestrator, and the HTTP surfaces.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/contessasoft/nyati/common/redact"
	"github.com/contessasoft/nyati/common/trace"
	"github.com/contessasoft/nyati/internal/bot/channel"
	"github.com/contessasoft/nyati/internal/bot/config"
	"github.com/contessasoft/nyati/internal/bot/dialogue"
	"github.com/contessasoft/nyati/internal/bot/handoff"
	"github.com/contessasoft/nyati/internal/bot/history"
	"github.com/contessasoft/nyati/internal/bot/session"
	"github.com/contessasoft/nyati/internal/bot/webhook"
)

// Secrets holds the credentials that never appear in the config file.
type Secrets struct {
	// WhatsAppToken is the Cloud API bearer token.
	WhatsAppToken string
	// WebhookVerifyToken is the token echoed in the Cloud API handshake.
	WebhookVerifyToken string
	// MatrixAccessToken is the Matrix account token.
	MatrixAccessToken string
	// RedisPassword is the Redis AUTH password, empty for none.
	RedisPassword string
}

// App is the assembled bot process.
type App struct {
	cfg     *config.Config
	redis   *redis.Client
	history *history.Store

	sessions      *session.RedisStore
	conversations *handoff.RedisConversations
	orchestrator  *handoff.Orchestrator

	matrix        *channel.Matrix
	webhookServer *http.Server
	healthServer  *HealthServer
	inbound       *webhook.Handler
}

// requesterFunc adapts a closure to dialogue.HandoffRequester, letting the
// engine and the orchestrator reference each other without a construction
// cycle.
type requesterFunc func(ctx context.Context, customer *session.Session) error

func (f requesterFunc) Request(ctx context.Context, customer *session.Session) error {
	return f(ctx, customer)
}

// New wires the application from configuration and secrets.
func New(cfg *config.Config, secrets Secrets) (*App, error) {
	a := &App{cfg: cfg}

	a.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: secrets.RedisPassword,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.redis.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}

	slog.Info("opening history database", "path", cfg.History.Path)
	hist, err := history.New(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}
	a.history = hist

	a.sessions = session.NewRedisStore(a.redis, session.DefaultTTL)
	a.conversations = handoff.NewRedisConversations(a.redis)

	driver, err := a.buildChannel(secrets)
	if err != nil {
		hist.Close()
		return nil, err
	}
	sender := channel.NewSender(driver)

	engine := dialogue.New(dialogue.Config{
		Store:  a.sessions,
		Sender: sender,
		Forms:  hist,
		Handoff: requesterFunc(func(ctx context.Context, customer *session.Session) error {
			return a.orchestrator.Request(ctx, customer)
		}),
		Owner: cfg.Bot.Owner,
	})

	strategy, err := handoff.StrategyByName(cfg.Handoff.Strategy)
	if err != nil {
		hist.Close()
		return nil, err
	}
	a.orchestrator = handoff.New(handoff.Config{
		Sessions:        a.sessions,
		Conversations:   a.conversations,
		Sender:          sender,
		Transcript:      hist,
		Dialogue:        engine,
		Pool:            cfg.Handoff.Agents,
		Owner:           cfg.Bot.Owner,
		Strategy:        strategy,
		DecisionTimeout: cfg.Handoff.DecisionTimeout(),
	})

	inboundCfg := webhook.Config{
		VerifyToken: secrets.WebhookVerifyToken,
		CountryCode: cfg.Bot.CountryCode,
		Sessions:    a.sessions,
		Transcript:  hist,
		Dialogue:    engine,
		Handoff:     a.orchestrator,
	}
	if cfg.Channel.Driver == "matrix" {
		// Matrix addresses are room IDs, not phone numbers.
		inboundCfg.Canonical = func(raw string) string { return raw }
	}
	a.inbound = webhook.NewHandler(inboundCfg)

	a.healthServer = NewHealthServer(cfg.Listen.HealthAddr, a, a)
	return a, nil
}

func (a *App) buildChannel(secrets Secrets) (channel.Channel, error) {
	switch a.cfg.Channel.Driver {
	case "whatsapp":
		return channel.NewWhatsApp(channel.WhatsAppConfig{
			Token:   secrets.WhatsAppToken,
			PhoneID: a.cfg.Channel.WhatsApp.PhoneID,
			BaseURL: a.cfg.Channel.WhatsApp.BaseURL,
		}), nil
	case "matrix":
		m, err := channel.NewMatrix(channel.MatrixConfig{
			Homeserver:  a.cfg.Channel.Matrix.Homeserver,
			UserID:      a.cfg.Channel.Matrix.UserID,
			AccessToken: secrets.MatrixAccessToken,
		})
		if err != nil {
			return nil, err
		}
		a.matrix = m
		return m, nil
	default:
		return nil, fmt.Errorf("unknown channel driver %q", a.cfg.Channel.Driver)
	}
}

// Run starts the listeners and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.healthServer.Start(ctx); err != nil {
		slog.Warn("health server failed to start; continuing without it", "err", err)
	}

	switch a.cfg.Channel.Driver {
	case "whatsapp":
		if err := a.startWebhook(ctx); err != nil {
			return err
		}
	case "matrix":
		slog.Info("starting Matrix sync")
		if err := a.matrix.Start(ctx, func(ctx context.Context, in channel.Inbound) {
			id := trace.GenerateID()
			if err := a.inbound.Process(trace.WithTraceID(ctx, id), in); err != nil {
				slog.Error("failed to process inbound message",
					"from", redact.Phone(in.From), "trace", id, "error", err)
			}
		}); err != nil {
			return fmt.Errorf("failed to start Matrix client: %w", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	return nil
}

// startWebhook serves the Cloud API callback endpoint.  Blocks until the
// listener is established.
func (a *App) startWebhook(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Listen.Addr)
	if err != nil {
		return fmt.Errorf("webhook: listen %s: %w", a.cfg.Listen.Addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/webhook", a.inbound)
	a.webhookServer = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("webhook listening", "addr", ln.Addr().String())
		if err := a.webhookServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("webhook server stopped", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.webhookServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("webhook server shutdown error", "err", err)
		}
	}()

	return nil
}

// Stop releases all resources.
func (a *App) Stop() {
	if a.matrix != nil {
		slog.Info("stopping Matrix client")
		a.matrix.Stop()
	}
	if a.webhookServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.webhookServer.Shutdown(ctx); err != nil {
			slog.Warn("webhook server shutdown error", "err", err)
		}
		cancel()
	}
	if a.healthServer != nil {
		slog.Info("stopping health server")
		a.healthServer.Stop()
	}
	a.orchestrator.Stop()

	slog.Info("closing history database")
	if err := a.history.Close(); err != nil {
		slog.Warn("history close error", "err", err)
	}
	if err := a.redis.Close(); err != nil {
		slog.Warn("redis close error", "err", err)
	}
}

// SessionCount implements statusProvider.
func (a *App) SessionCount(ctx context.Context) (int, error) {
	keys, err := a.sessions.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// HandoffCount implements statusProvider.
func (a *App) HandoffCount(ctx context.Context) (int, error) {
	ids, err := a.conversations.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Handoffs implements adminProvider.
func (a *App) Handoffs(ctx context.Context) ([]*handoff.Conversation, error) {
	ids, err := a.conversations.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*handoff.Conversation, 0, len(ids))
	for _, id := range ids {
		conv, err := a.conversations.Get(ctx, id)
		if err != nil {
			// Expired between listing and reading.
			continue
		}
		out = append(out, conv)
	}
	return out, nil
}

// HandoffByID implements adminProvider.
func (a *App) HandoffByID(ctx context.Context, id string) (*handoff.Conversation, error) {
	return a.conversations.Get(ctx, id)
}

// History implements adminProvider.
func (a *App) History(ctx context.Context, identifier string) ([]history.Message, []history.CompletedForm, error) {
	key := session.Canonical(identifier, a.cfg.Bot.CountryCode)
	msgs, err := a.history.Recent(ctx, key, 0)
	if err != nil {
		return nil, nil, err
	}
	forms, err := a.history.FormsFor(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	return msgs, forms, nil
}
