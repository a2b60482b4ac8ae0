package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/fastprodman/rewardsledger/internal/api"
	"github.com/fastprodman/rewardsledger/internal/infra/clock"
	"github.com/fastprodman/rewardsledger/internal/infra/logging"
	"github.com/fastprodman/rewardsledger/internal/infra/metrics"
	"github.com/fastprodman/rewardsledger/internal/infra/pgutils"
	"github.com/fastprodman/rewardsledger/internal/seed"
	"github.com/fastprodman/rewardsledger/internal/services/audit"
	"github.com/fastprodman/rewardsledger/internal/services/campaign"
	"github.com/fastprodman/rewardsledger/internal/services/ledger"
	"github.com/fastprodman/rewardsledger/internal/services/moderation"
	"github.com/fastprodman/rewardsledger/internal/services/referral"
	"github.com/fastprodman/rewardsledger/pkg/envconf"
	"github.com/fastprodman/rewardsledger/pkg/shutdownqueue"
)

const serviceName = "rewards-api"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	err = cfg.Rewards.Validate()
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logger := logging.SetupJSON(cfg.LogLevel, serviceName)

	sq := shutdownqueue.New(logger)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := sq.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Core ---
	clk := clock.Real{}
	l := ledger.New(clk)
	l.Subscribe(metrics.ObserveLedger)

	svc := api.Services{
		Ledger:     l,
		Moderation: moderation.New(clk),
		Referrals:  referral.New(l, cfg.Rewards.ReferralCommission, clk),
		Campaigns:  campaign.New(clk),
	}

	// --- Audit journal ---
	rec, err := setupJournal(ctx, cfg, l, sq, logger)
	if err != nil {
		return err
	}

	if cfg.Rewards.SeedFile != "" {
		err = applySeed(cfg.Rewards.SeedFile, svc, logger)
		if err != nil {
			return err
		}
	}

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, svc, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("API started", "addr", srv.Addr)

		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	if rec != nil {
		g.Go(func() error { return rec.Run(gctx) })
	}

	return g.Wait()
}

// setupJournal opens Postgres, replays the journal into l and subscribes a
// recorder. It returns nil when journaling is off.
func setupJournal(
	ctx context.Context,
	cfg *apiConfig,
	l *ledger.Ledger,
	sq *shutdownqueue.Queue,
	logger *slog.Logger,
) (*audit.Recorder, error) {
	if !cfg.journalEnabled() {
		logger.Warn("audit journal disabled, ledger state lives in memory only")

		return nil, nil
	}

	db, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sq.Add("postgres", func(context.Context) error { return db.Close() })

	j := audit.NewPostgresJournal(db)

	n, err := audit.Replay(ctx, j, l)
	if err != nil {
		return nil, fmt.Errorf("replay journal: %w", err)
	}

	logger.Info("journal replayed", "transactions", n, "accounts", len(l.Accounts()))

	rec := audit.NewRecorder(j, cfg.Journal.RetryInterval, logger.With("component", "audit"))
	l.Subscribe(rec.Observe)

	// Registered after postgres so it runs first.
	sq.Add("journal flush", rec.Flush)

	return rec, nil
}

func applySeed(path string, svc api.Services, logger *slog.Logger) error {
	f, err := seed.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load seed: %w", err)
	}

	sum, err := seed.Apply(f, seed.Targets{
		Ledger:     svc.Ledger,
		Moderation: svc.Moderation,
		Referrals:  svc.Referrals,
		Campaigns:  svc.Campaigns,
	})
	if err != nil {
		return fmt.Errorf("apply seed: %w", err)
	}

	logger.Info("seed applied",
		"file", path,
		"transactions", sum.Transactions,
		"items", sum.Items,
		"campaigns", sum.Campaigns,
		"referrals", sum.Referrals,
		"ledger_skipped", sum.LedgerSkipped,
	)

	return nil
}
