package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wisenews_scraper/internal/adapter/boltledger"
	"wisenews_scraper/internal/adapter/browser"
	"wisenews_scraper/internal/adapter/mailer"
	mongoAdapter "wisenews_scraper/internal/adapter/mongo"
	"wisenews_scraper/internal/adapter/publisher"
	"wisenews_scraper/internal/adapter/wisenews"
	"wisenews_scraper/internal/config"
	"wisenews_scraper/internal/logger"
	"wisenews_scraper/internal/repository"
	"wisenews_scraper/internal/usecase"
)

// app holds everything a command needs, plus the cleanup for it.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	pipeline *usecase.Pipeline
	store    *mongoAdapter.ArticleStore

	closers []func(ctx context.Context) error
}

func loadConfig(path string) (*config.Config, logger.Logger, error) {
	envLoaded := config.LoadEnv()

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	if !envLoaded {
		log.DebugObj(".env not found, using process environment", "config", nil)
	}
	return cfg, log, nil
}

// bootstrap connects the optional backends and builds the pipeline.
// Backends that fail to come up are logged and left out, so a run can still
// deliver without, say, MongoDB.
func bootstrap(ctx context.Context, configPath string) (*app, error) {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}

	var opts []usecase.Option

	if cfg.Mongo.Enabled {
		client, err := mongoAdapter.NewClient(ctx, cfg.Mongo.URI)
		if err != nil {
			log.WarnObj("mongodb unavailable, storage disabled", "bootstrap", map[string]any{"error": err.Error()})
		} else {
			a.store = mongoAdapter.NewArticleStore(client.Database(cfg.Mongo.Database), log)
			a.closers = append(a.closers, client.Disconnect)
			opts = append(opts, usecase.WithStore(a.store))
			log.InfoObj("mongodb connected", "bootstrap", map[string]any{"database": cfg.Mongo.Database})
		}
	}

	if cfg.Ledger.Enabled {
		ledger, err := boltledger.Open(cfg.Ledger.Path, cfg.Ledger.TTL)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return ledger.Close() })
		if removed, err := ledger.Prune(); err != nil {
			log.WarnObj("pruning seen ledger failed", "bootstrap", map[string]any{"error": err.Error()})
		} else if removed > 0 {
			log.InfoObj("pruned seen ledger", "bootstrap", map[string]any{"removed": removed})
		}
		opts = append(opts, usecase.WithLedger(ledger))
	}

	if strings.TrimSpace(cfg.Mail.SMTP.Host) != "" {
		m, err := mailer.New(mailer.Config{
			Host:       cfg.Mail.SMTP.Host,
			Port:       cfg.Mail.SMTP.Port,
			Username:   cfg.Mail.SMTP.Username,
			Password:   cfg.Mail.SMTP.Password,
			SenderName: cfg.Mail.SenderName,
			From:       cfg.Mail.From,
			To:         cfg.Mail.To,
		}, log)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("smtp mailer: %w", err)
		}
		opts = append(opts, usecase.WithNotifier(m))
	}

	if path := strings.TrimSpace(cfg.Publishers.File); path != "" {
		cfgs, err := publisher.LoadConfigs(path)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		pubs, err := publisher.BuildAll(ctx, publisher.DefaultRegistry(), cfgs, log)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("build publishers: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return publisher.CloseAll(pubs) })

		ports := make([]repository.Publisher, len(pubs))
		for i, p := range pubs {
			ports[i] = p
		}
		opts = append(opts, usecase.WithPublishers(ports...))
		log.InfoObj("publishers ready", "bootstrap", map[string]any{"count": len(pubs)})
	}

	portals := wisenews.NewFactory(wisenews.Options{
		Browser: browser.Options{
			ExecPath:    cfg.Browser.ExecPath,
			Headless:    cfg.Browser.Headless,
			WaitTimeout: cfg.Browser.WaitTimeout,
		},
		Credentials: cfg.Credentials(),
		SettleDelay: cfg.Browser.SettleDelay,
	}, log)

	a.pipeline = usecase.NewPipeline(portals, usecase.Settings{
		Attempts:    cfg.Retry.Attempts,
		RetryDelay:  cfg.Retry.Delay,
		Credentials: cfg.Credentials(),
		EmailTitle:  cfg.Mail.Title,
	}, log, opts...)

	return a, nil
}

// Close releases backends in reverse order of opening.
func (a *app) Close(ctx context.Context) {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.log.WarnObj("shutdown incomplete", "bootstrap", map[string]any{"error": err.Error()})
	}
	_ = a.log.Sync()
}
