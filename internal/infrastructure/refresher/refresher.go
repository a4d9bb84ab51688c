// Package refresher re-fetches the token lists of all wallets on a cron schedule.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"currency_status/internal/app/port"
	"currency_status/internal/domain/entity"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// WalletSource lists the wallets to refresh.
type WalletSource interface {
	Wallets(refresh bool) ([]entity.Wallet, error)
}

// Refresher runs FetchTokenList for every wallet on each tick of its schedule.
type Refresher struct {
	cron    *cron.Cron
	tokens  port.TokenListService
	wallets WalletSource
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Refresher for the given cron spec. Ticks that arrive while the
// previous run is still going are skipped.
func New(schedule string, tokens port.TokenListService, wallets WalletSource, timeout time.Duration, logger *zap.Logger) (*Refresher, error) {
	logger = logger.Named("Refresher")
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))

	r := &Refresher{
		cron:    cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		tokens:  tokens,
		wallets: wallets,
		timeout: timeout,
		logger:  logger,
	}
	if _, err := r.cron.AddFunc(schedule, r.tick); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start runs the schedule in the background.
func (r *Refresher) Start() {
	r.cron.Start()
	r.logger.Info("Background refresh started", zap.Int("jobs", len(r.cron.Entries())))
}

// Stop halts the schedule. The returned context is done once a running refresh finished.
func (r *Refresher) Stop() context.Context {
	return r.cron.Stop()
}

func (r *Refresher) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := time.Now()
	if err := r.RefreshAll(ctx); err != nil {
		r.logger.Warn("Background refresh finished with errors", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return
	}
	r.logger.Info("Background refresh finished", zap.Duration("duration", time.Since(start)))
}

// RefreshAll fetches the token list of every wallet. Wallets without currencies
// are skipped; other failures are joined.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	wallets, err := r.wallets.Wallets(true)
	if err != nil {
		return fmt.Errorf("failed to list wallets: %w", err)
	}

	var errs []error
	for _, w := range wallets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := r.tokens.FetchTokenList(ctx, w.ID)
		switch {
		case err == nil:
		case errors.Is(err, entity.ErrEmptyTokens), errors.Is(err, entity.ErrEmptyCurrencies):
			r.logger.Debug("Wallet has no currencies, skipped", zap.String("wallet", string(w.ID)))
		default:
			errs = append(errs, fmt.Errorf("wallet %s: %w", w.ID, err))
		}
	}
	return errors.Join(errs...)
}
