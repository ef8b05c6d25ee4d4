// Package app wires configuration into stores, notifiers and the engagement service.
package app

import (
	"context"
	"fmt"

	"engagement-service/internal/config"
	"engagement-service/internal/db"
	"engagement-service/internal/dynamo"
	"engagement-service/internal/engagement"
	"engagement-service/internal/logging"
	"engagement-service/internal/memstore"
	"engagement-service/internal/providers"
	"engagement-service/internal/sequence"
	"engagement-service/internal/services"
)

type App struct {
	Service *services.Service
	Hub     *providers.Hub
	closers []func()
}

// New builds the service from cfg. Close releases every connection it opened.
func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	a := &App{}
	policy, err := config.LoadEngagement(cfg.Engagement.ConfigPath)
	if err != nil {
		return nil, err
	}
	logger.Infof("Loaded engagement policy for %v", policy.BusinessTypes())

	stores, err := a.openStores(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	var seq sequence.Sequencer = sequence.NewMemory()
	if cfg.Redis.URL != "" {
		rs, client, err := sequence.Dial(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		seq = rs
		logger.Infof("Using Redis message sequencer")
	}

	svc, err := services.New(stores, seq, policy, engagement.SystemClock{}, logger, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Service = svc

	if err := a.registerNotifiers(cfg, logger); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStores(ctx context.Context, cfg config.Config, logger *logging.Logger) (services.Stores, error) {
	var stores services.Stores

	var pg *db.DB
	if cfg.Storage.Backend == config.BackendPostgres || cfg.Storage.ConversationBackend == config.BackendPostgres {
		conn, err := db.New(cfg.DB.DSN)
		if err != nil {
			return stores, fmt.Errorf("database connection failed: %w", err)
		}
		a.closers = append(a.closers, conn.Close)
		if err := conn.Migrate(ctx); err != nil {
			return stores, err
		}
		pg = conn
	}

	mem := memstore.New()
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		stores.Deals, stores.Leads, stores.Notifications = pg, pg, pg
	default:
		stores.Deals, stores.Leads, stores.Notifications = mem, mem, mem
		if cfg.Storage.SeedPath == "" {
			logger.Warnf("Memory backend has no seed file, follow-up evaluation starts with no deals")
			break
		}
		leads, deals, err := mem.LoadSeed(cfg.Storage.SeedPath)
		if err != nil {
			return stores, err
		}
		logger.Infof("Seeded memory store with %d leads and %d deals", leads, deals)
	}

	switch cfg.Storage.ConversationBackend {
	case config.BackendPostgres:
		stores.Conversations = pg
	case config.BackendDynamoDB:
		conv, err := dynamo.Open(ctx, cfg.Dynamo.Table)
		if err != nil {
			return stores, err
		}
		stores.Conversations = conv
	default:
		stores.Conversations = mem
	}
	logger.Infof("Storage backend %s, conversation backend %s", cfg.Storage.Backend, cfg.Storage.ConversationBackend)
	return stores, nil
}

func (a *App) registerNotifiers(cfg config.Config, logger *logging.Logger) error {
	for _, ch := range cfg.Notification.Channels {
		switch ch {
		case "telegram":
			tg, err := providers.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.RateLimit, logger)
			if err != nil {
				return err
			}
			a.Service.RegisterNotifier(ch, tg)
		case "email":
			em, err := providers.NewEmail(cfg.Email.SMTPServer, cfg.Email.SMTPPort, cfg.Email.Username, cfg.Email.Password, cfg.Email.To)
			if err != nil {
				return err
			}
			a.Service.RegisterNotifier(ch, em)
		case "websocket":
			a.Hub = providers.NewHub(logger)
			a.Service.RegisterNotifier(ch, a.Hub)
		default:
			return fmt.Errorf("unsupported notification channel %q", ch)
		}
		logger.Infof("Registered %s notifier", ch)
	}
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
