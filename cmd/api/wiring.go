package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geocoder89/estategate/internal/config"
	"github.com/geocoder89/estategate/internal/db"
	"github.com/geocoder89/estategate/internal/http/handlers"
	"github.com/geocoder89/estategate/internal/notifications"
	"github.com/geocoder89/estategate/internal/observability"
	"github.com/geocoder89/estategate/internal/redisclient"
	"github.com/geocoder89/estategate/internal/repo/memory"
	"github.com/geocoder89/estategate/internal/repo/mongodb"
	"github.com/geocoder89/estategate/internal/repo/postgres"
	"github.com/geocoder89/estategate/internal/service"
)

// stores groups the persistence handed to the services, whichever driver backs it.
type stores struct {
	users  service.UserStore
	tokens service.VisitorTokenStore
	ledger service.ClaimLedger
	checks []handlers.ReadyCheck

	closers []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (*stores, error) {
	st := &stores{}

	switch cfg.StoreDriver {
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		st.closers = append(st.closers, pool.Close)

		if err := db.Migrate(ctx, pool); err != nil {
			st.close()
			return nil, err
		}

		st.users = postgres.NewUsersRepo(pool, prom)
		st.tokens = postgres.NewVisitorTokensRepo(pool, prom)
		st.checks = append(st.checks, handlers.ReadyCheck{Name: "db", Ping: pool.Ping})

	case "mongo":
		client, err := mongodb.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func() { _ = client.Disconnect(context.Background()) })

		database := client.Database(cfg.MongoDB)
		if err := mongodb.EnsureIndexes(ctx, database); err != nil {
			st.close()
			return nil, err
		}

		st.users = mongodb.NewUsersRepo(database, prom)
		st.tokens = mongodb.NewVisitorTokensRepo(client, database, prom)
		st.checks = append(st.checks, handlers.ReadyCheck{
			Name: "db",
			Ping: func(ctx context.Context) error { return client.Ping(ctx, nil) },
		})

	case "memory":
		log.Warn("memory store in use, data is lost on restart")
		st.users = memory.NewUsersRepo()
		st.tokens = memory.NewVisitorTokensRepo()

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	if cfg.RedisAddr == "" {
		st.ledger = memory.NewClaimLedger()
		return st, nil
	}

	rdb := redisclient.New(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	st.closers = append(st.closers, func() { _ = rdb.Close() })

	if err := rdb.Ping(ctx); err != nil {
		st.close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	st.ledger = redisclient.NewClaimLedger(rdb)
	st.checks = append(st.checks, handlers.ReadyCheck{Name: "redis", Ping: rdb.Ping})
	return st, nil
}

// buildNotifier picks the mail transport and wraps it with the circuit breaker
// and delivery metrics.
func buildNotifier(cfg config.Config, log *slog.Logger, deliveries *observability.DeliveryMetrics) (notifications.Notifier, error) {
	var inner notifications.Notifier

	switch cfg.MailDriver {
	case "log":
		inner = notifications.NewLogNotifier(log)
	case "smtp":
		inner = notifications.NewSMTPNotifier(notifications.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
		})
	case "mailersend":
		ms, err := notifications.NewMailerSendNotifier(cfg.MailerSendAPIKey, cfg.MailFromName)
		if err != nil {
			return nil, err
		}
		inner = ms
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.MailDriver)
	}

	protected := notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{})
	return notifications.NewInstrumentedNotifier(protected, deliveries), nil
}
