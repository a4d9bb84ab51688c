// Package quotes prices listed currencies from DEX Screener trading pairs.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"currency_status/internal/app/port"
	"currency_status/internal/domain/entity"
	"currency_status/internal/pkg/flow"
	"currency_status/internal/pkg/metrics"
	"currency_status/internal/pkg/notify"
	"currency_status/internal/pkg/utils"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const freshPrefix = "fresh:"

var stablecoinSymbols = map[string]struct{}{
	"USDC": {},
	"USDT": {},
	"DAI":  {},
}

// ErrInvalidRawID is returned for raw ids not in `<chain>:<address>` form.
var ErrInvalidRawID = errors.New("invalid quote raw id")

// Repository implements port.QuoteSource.
type Repository struct {
	client        DEXScreenerClient
	store         *cache.Cache
	ttl           time.Duration
	batchSize     int
	maxConcurrent int
	group         singleflight.Group
	hub           *notify.Hub
	logger        *zap.Logger
}

// NewRepository creates a quote repository. Quotes older than ttl are re-fetched by
// non-refreshing fetches; addresses are requested in batches of batchSize.
func NewRepository(client DEXScreenerClient, ttl time.Duration, batchSize, maxConcurrent int, logger *zap.Logger) *Repository {
	return &Repository{
		client:        client,
		store:         cache.New(cache.NoExpiration, 0),
		ttl:           ttl,
		batchSize:     batchSize,
		maxConcurrent: maxConcurrent,
		hub:           notify.NewHub(),
		logger:        logger.Named("QuoteRepository"),
	}
}

// Subscribe emits the stored quotes of rawIDs now and after every change. A failed
// background fetch is emitted as an error; the next change recovers the stream.
func (r *Repository) Subscribe(ctx context.Context, rawIDs []string, refresh bool) <-chan flow.Result[[]entity.Quote] {
	rawIDs = normalizeRawIDs(rawIDs)
	out := make(chan flow.Result[[]entity.Quote])
	changes := r.hub.Watch(ctx, notify.KeySet(rawIDs...))
	fetchErrs := make(chan error, 1)

	if refresh || !r.allStored(rawIDs) {
		fetchCtx := context.WithoutCancel(ctx)
		go func() {
			if err := r.FetchQuotes(fetchCtx, rawIDs, refresh); err != nil {
				r.logger.Warn("Background quote fetch failed", zap.Int("rawIDs", len(rawIDs)), zap.Error(err))
				fetchErrs <- err
			}
		}()
	}

	go func() {
		defer close(out)
		next := flow.Ok(r.snapshot(rawIDs))
		for {
			select {
			case out <- next:
			case <-ctx.Done():
				return
			}
			select {
			case <-ctx.Done():
				return
			case err := <-fetchErrs:
				next = flow.Fail[[]entity.Quote](err)
			case _, ok := <-changes:
				if !ok {
					return
				}
				next = flow.Ok(r.snapshot(rawIDs))
			}
		}
	}()
	return out
}

// FetchQuotes requests the quotes of rawIDs that are stale, or all with refresh set.
// Tokens without any usable pair are skipped. Failed requests are joined into the error.
func (r *Repository) FetchQuotes(ctx context.Context, rawIDs []string, refresh bool) error {
	rawIDs = normalizeRawIDs(rawIDs)
	byChain := make(map[string][]string)
	var invalid []error
	for _, rawID := range rawIDs {
		if !refresh && r.isFresh(rawID) {
			continue
		}
		chainID, address, err := ParseRawID(rawID)
		if err != nil {
			invalid = append(invalid, err)
			continue
		}
		byChain[chainID] = appendUnique(byChain[chainID], address)
	}
	if len(invalid) > 0 {
		r.logger.Warn("Skipping malformed raw ids", zap.Error(errors.Join(invalid...)))
	}

	g, gCtx := errgroup.WithContext(ctx)
	if r.maxConcurrent > 0 {
		g.SetLimit(r.maxConcurrent)
	}
	errs := make(chan error, len(rawIDs))
	for chainID, addresses := range byChain {
		for _, batch := range utils.BatchStrings(addresses, r.batchSize) {
			chainID, batch := chainID, batch
			g.Go(func() error {
				if err := r.fetchBatch(gCtx, chainID, batch); err != nil {
					errs <- err
				}
				return nil
			})
		}
	}
	_ = g.Wait()
	close(errs)

	var failed []error
	for err := range errs {
		failed = append(failed, err)
	}
	return errors.Join(failed...)
}

func (r *Repository) fetchBatch(ctx context.Context, chainID string, addresses []string) error {
	key := chainID + ":" + strings.Join(addresses, ",")
	_, err, _ := r.group.Do(key, func() (interface{}, error) {
		start := time.Now()
		pairs, err := r.client.GetTokenPairsByAddresses(ctx, chainID, addresses)
		if err != nil {
			metrics.SourceFetchDuration.WithLabelValues("quotes", "error").Observe(time.Since(start).Seconds())
			return nil, fmt.Errorf("quotes for %d tokens on %s: %w", len(addresses), chainID, err)
		}
		metrics.SourceFetchDuration.WithLabelValues("quotes", "ok").Observe(time.Since(start).Seconds())

		changed := make([]string, 0, len(addresses))
		for _, address := range addresses {
			rawID := chainID + ":" + address
			pair := selectBestPair(pairs, address)
			if pair == nil {
				r.logger.Debug("No usable pair for token", zap.String("rawID", rawID))
				continue
			}
			quote, err := quoteFromPair(rawID, pair)
			if err != nil {
				r.logger.Warn("Failed to parse pair price", zap.String("rawID", rawID), zap.String("priceUsd", pair.PriceUsd), zap.Error(err))
				continue
			}
			r.store.Set(rawID, quote, cache.NoExpiration)
			r.store.Set(freshPrefix+rawID, true, r.ttl)
			changed = append(changed, rawID)
		}
		r.logger.Debug("Quotes updated", zap.String("chain", chainID), zap.Int("requested", len(addresses)), zap.Int("priced", len(changed)))
		r.hub.Notify(changed...)
		return nil, nil
	})
	return err
}

// selectBestPair prefers the most liquid stablecoin-quoted pair of address, then the
// most liquid pair of any quote token.
func selectBestPair(pairs []PairData, address string) *PairData {
	var bestOverall, bestStablecoin *PairData
	for i := range pairs {
		pair := &pairs[i]
		if !strings.EqualFold(pair.BaseToken.Address, address) {
			continue
		}
		if pair.PriceUsd == "" || pair.PriceUsd == "0" {
			continue
		}
		if _, ok := stablecoinSymbols[strings.ToUpper(pair.QuoteToken.Symbol)]; ok {
			if bestStablecoin == nil || pair.liquidityUsd() > bestStablecoin.liquidityUsd() {
				bestStablecoin = pair
			}
		}
		if bestOverall == nil || pair.liquidityUsd() > bestOverall.liquidityUsd() {
			bestOverall = pair
		}
	}
	if bestStablecoin != nil {
		return bestStablecoin
	}
	return bestOverall
}

func quoteFromPair(rawID string, pair *PairData) (entity.Quote, error) {
	rate, err := decimal.NewFromString(pair.PriceUsd)
	if err != nil {
		return entity.Quote{}, err
	}
	return entity.Quote{
		RawID:       rawID,
		FiatRate:    rate,
		PriceChange: decimal.NewFromFloat(pair.PriceChange.H24),
	}, nil
}

// ParseRawID splits a raw id into its DEX chain id and lower-cased token address.
func ParseRawID(rawID string) (chainID, address string, err error) {
	chainID, address, ok := strings.Cut(rawID, ":")
	if !ok || chainID == "" || address == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRawID, rawID)
	}
	return chainID, strings.ToLower(address), nil
}

func (r *Repository) snapshot(rawIDs []string) []entity.Quote {
	quotes := make([]entity.Quote, 0, len(rawIDs))
	for _, rawID := range rawIDs {
		if v, ok := r.store.Get(rawID); ok {
			quotes = append(quotes, v.(entity.Quote))
		}
	}
	return quotes
}

func (r *Repository) allStored(rawIDs []string) bool {
	for _, rawID := range rawIDs {
		if _, ok := r.store.Get(rawID); !ok {
			return false
		}
	}
	return true
}

func (r *Repository) isFresh(rawID string) bool {
	_, ok := r.store.Get(freshPrefix + rawID)
	return ok
}

func normalizeRawIDs(rawIDs []string) []string {
	normalized := make([]string, 0, len(rawIDs))
	for _, rawID := range rawIDs {
		normalized = appendUnique(normalized, entity.NormalizeRawID(rawID))
	}
	return normalized
}

func appendUnique(items []string, item string) []string {
	for _, existing := range items {
		if existing == item {
			return items
		}
	}
	return append(items, item)
}

var _ port.QuoteSource = (*Repository)(nil)
