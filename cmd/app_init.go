package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fleetaudit/internal/fulfillment"
	"github.com/sells-group/fleetaudit/internal/kvcache"
	"github.com/sells-group/fleetaudit/internal/notify"
	"github.com/sells-group/fleetaudit/internal/report"
	"github.com/sells-group/fleetaudit/internal/store"
	"github.com/sells-group/fleetaudit/internal/verify"
	"github.com/sells-group/fleetaudit/pkg/fmcsa"
	"github.com/sells-group/fleetaudit/pkg/hunter"
	"github.com/sells-group/fleetaudit/pkg/resend"
)

// appEnv holds the initialized store, clients, and orchestrator shared by
// the serve and fulfill commands.
type appEnv struct {
	Store        store.Store
	Carriers     fmcsa.Client
	Orchestrator *fulfillment.Orchestrator
}

// Close releases resources held by the environment.
func (ae *appEnv) Close() {
	if ae.Store != nil {
		_ = ae.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "fleetaudit.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initApp sets up the store, API clients, and the fulfillment orchestrator.
// Callers should defer env.Close().
func initApp(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	carriers := fmcsa.NewClient(cfg.FMCSA.WebKey, fmcsa.WithBaseURL(cfg.FMCSA.BaseURL))

	// Email verification is optional. Without a Hunter key leads stay
	// pending and fulfillment skips the step.
	var hunterClient hunter.Client
	if cfg.Hunter.APIKey != "" {
		hunterClient = hunter.NewClient(cfg.Hunter.APIKey, hunter.WithBaseURL(cfg.Hunter.BaseURL))
	} else {
		zap.L().Warn("FLEETAUDIT_HUNTER_API_KEY not set, email verification disabled")
	}
	verifier := verify.New(hunterClient, kvcache.NewFileStore(cfg.Hunter.CachePath), st)

	renderer := report.NewHTMLRenderer(cfg.Report.BrandName)

	opts := []fulfillment.Option{
		fulfillment.WithStepTimeout(cfg.Fulfillment.StepTimeout),
	}

	// Delivery prefers Resend; SMTP is the fallback relay. With neither
	// configured the send and subscribe steps are skipped.
	switch {
	case cfg.Resend.APIKey != "":
		client := resend.NewClient(cfg.Resend.APIKey, resend.WithBaseURL(cfg.Resend.BaseURL))
		opts = append(opts, fulfillment.WithSender(notify.NewResendSender(client, cfg.Resend.From)))
		if cfg.Resend.AudienceID != "" {
			opts = append(opts, fulfillment.WithListService(notify.NewResendListService(client, cfg.Resend.AudienceID)))
		}
	case cfg.SMTP.Host != "":
		sender := notify.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From)
		opts = append(opts, fulfillment.WithSender(sender))
	default:
		zap.L().Warn("no email sender configured, reports will not be delivered")
	}

	return &appEnv{
		Store:        st,
		Carriers:     carriers,
		Orchestrator: fulfillment.New(st, verifier, carriers, renderer, opts...),
	}, nil
}
