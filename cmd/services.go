package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawl/internal/config"
	"github.com/JakeFAU/sitecrawl/internal/crawler"
	"github.com/JakeFAU/sitecrawl/internal/publisher"
	pubsubpublisher "github.com/JakeFAU/sitecrawl/internal/publisher/pubsub"
	"github.com/JakeFAU/sitecrawl/internal/report"
	"github.com/JakeFAU/sitecrawl/internal/storage"
	"github.com/JakeFAU/sitecrawl/internal/storage/gcs"
	"github.com/JakeFAU/sitecrawl/internal/storage/local"
	"github.com/JakeFAU/sitecrawl/internal/storage/memory"
	"github.com/JakeFAU/sitecrawl/internal/storage/postgres"
	redisstore "github.com/JakeFAU/sitecrawl/internal/storage/redis"
	"github.com/JakeFAU/sitecrawl/internal/storage/sqlite"
)

const deliverTimeout = 2 * time.Minute

// services are the optional backends a crawl reports into. Nil fields are
// skipped.
type services struct {
	status    crawler.StatusStore
	blobs     crawler.BlobStore
	pages     map[string]crawler.PageStore
	publisher crawler.Publisher
	topic     string

	closers []func()
}

// Close releases every backend opened by openServices.
func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openServices connects the backends named in cfg. On error anything already
// opened is closed.
func openServices(ctx context.Context, cfg config.Config, logger *zap.Logger) (svc *services, err error) {
	svc = &services{pages: make(map[string]crawler.PageStore), topic: cfg.PubSub.Topic}
	defer func() {
		if err != nil {
			svc.Close()
			svc = nil
		}
	}()
	closeWith := func(name string, fn func() error) {
		svc.closers = append(svc.closers, func() {
			if cerr := fn(); cerr != nil {
				logger.Warn("close failed", zap.String("backend", name), zap.Error(cerr))
			}
		})
	}

	if cfg.Redis.Addr != "" {
		store, err := redisstore.New(redisstore.Config{
			Addr:   cfg.Redis.Addr,
			Prefix: cfg.Redis.Prefix,
			TTL:    cfg.Redis.TTL,
		})
		if err != nil {
			return nil, err
		}
		closeWith("redis", store.Close)
		if err := store.Ping(ctx); err != nil {
			return nil, err
		}
		svc.status = store
	} else {
		svc.status = memory.NewStatusStore()
	}

	switch cfg.Storage.Backend {
	case config.BackendLocal:
		store, err := local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		svc.blobs = store
	case config.BackendGCS:
		store, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		closeWith("gcs", store.Close)
		svc.blobs = store
	default:
		svc.blobs = storage.NoopBlobStore{}
	}

	if cfg.Postgres.DSN != "" {
		store, err := postgres.NewPageStore(ctx, postgres.Config{
			DSN:      cfg.Postgres.DSN,
			Table:    cfg.Postgres.Table,
			MaxConns: cfg.Postgres.MaxConns,
		})
		if err != nil {
			return nil, err
		}
		closeWith("postgres", func() error { store.Close(); return nil })
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		svc.pages["postgres"] = store
	}
	if cfg.SQLite.Path != "" {
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		closeWith("sqlite", store.Close)
		svc.pages["sqlite"] = store
	}

	if cfg.PubSub.ProjectID != "" {
		pub, err := pubsubpublisher.Open(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, err
		}
		closeWith("pubsub", pub.Close)
		svc.publisher = pub
	}
	return svc, nil
}

// delivery is what deliver produced for one session.
type delivery struct {
	Reports []string
	Objects []string
}

// deliver writes the reports and hands the sealed summary to every configured
// backend. It runs after DONE on a context detached from cancellation so an
// interrupted crawl still reports. Backend failures are joined; the local
// reports are written first and survive them.
func deliver(
	ctx context.Context,
	summary crawler.Summary,
	cfg config.Config,
	svc *services,
	logger *zap.Logger,
) (delivery, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliverTimeout)
	defer cancel()

	formats := make([]report.Format, 0, len(cfg.Report.Formats))
	for _, raw := range cfg.Report.Formats {
		f, err := report.ParseFormat(raw)
		if err != nil {
			return delivery{}, err
		}
		formats = append(formats, f)
	}
	artifacts, err := report.Render(summary, formats)
	if err != nil {
		return delivery{}, fmt.Errorf("render reports: %w", err)
	}

	var out delivery
	out.Reports, err = report.WriteDir(ctx, cfg.Report.Dir, artifacts)
	if err != nil {
		return out, fmt.Errorf("write reports: %w", err)
	}

	var errs []error
	if svc.blobs != nil {
		for _, art := range artifacts {
			objectPath := storage.ObjectPath(cfg.Storage.Prefix, summary.SessionID, art.Name)
			uri, err := svc.blobs.PutObject(ctx, objectPath, art.ContentType, bytes.NewReader(art.Data))
			if err != nil {
				errs = append(errs, fmt.Errorf("upload %s: %w", art.Name, err))
				continue
			}
			out.Objects = append(out.Objects, uri)
		}
	}

	for name, store := range svc.pages {
		if err := store.SavePages(ctx, summary.SessionID, summary.Pages); err != nil {
			errs = append(errs, fmt.Errorf("save pages to %s: %w", name, err))
			continue
		}
		logger.Info("pages saved", zap.String("backend", name), zap.Int("pages", len(summary.Pages)))
	}

	if svc.publisher != nil {
		id, err := svc.publisher.Publish(ctx, svc.topic, publisher.NewCompletion(summary, out.Objects))
		if err != nil {
			errs = append(errs, fmt.Errorf("publish completion: %w", err))
		} else {
			logger.Info("completion published", zap.String("topic", svc.topic), zap.String("message_id", id))
		}
	}
	return out, errors.Join(errs...)
}
