package restapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"currency_status/internal/app/port"
	"currency_status/internal/domain/entity"
	"currency_status/internal/pkg/flow"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errStreamClosed = errors.New("status stream closed before the first emission")

// WalletLister lists the wallets known to the daemon.
type WalletLister interface {
	Wallets(refresh bool) ([]entity.Wallet, error)
}

// WalletSummary is one entry of the wallet listing.
type WalletSummary struct {
	ID         entity.WalletID `json:"id"`
	Name       string          `json:"name"`
	Currencies int             `json:"currencies"`
}

// TokenHandler serves token lists and currency statuses.
type TokenHandler struct {
	tokens        port.TokenListService
	statuses      port.CurrencyStatusService
	wallets       WalletLister
	settleTimeout time.Duration
	logger        *zap.Logger
}

// NewTokenHandler creates a TokenHandler. settleTimeout bounds how long a request
// waits for a list without loading statuses before answering with the latest one.
func NewTokenHandler(
	tokens port.TokenListService,
	statuses port.CurrencyStatusService,
	wallets WalletLister,
	settleTimeout time.Duration,
	logger *zap.Logger,
) *TokenHandler {
	return &TokenHandler{
		tokens:        tokens,
		statuses:      statuses,
		wallets:       wallets,
		settleTimeout: settleTimeout,
		logger:        logger.Named("TokenHandler"),
	}
}

// ListWallets answers GET /wallets.
func (h *TokenHandler) ListWallets(c *gin.Context) {
	wallets, err := h.wallets.Wallets(parseBool(c.Query("refresh"), false))
	if err != nil {
		abortWithError(c, err)
		return
	}
	summaries := make([]WalletSummary, len(wallets))
	for i, w := range wallets {
		summaries[i] = WalletSummary{ID: w.ID, Name: w.Name, Currencies: len(w.Currencies)}
	}
	c.JSON(http.StatusOK, gin.H{"wallets": summaries})
}

// GetTokenList answers GET /wallets/:walletID/tokens. Unless wait=false it holds
// the request until no status is loading or the settle timeout passes.
func (h *TokenHandler) GetTokenList(c *gin.Context) {
	walletID := entity.WalletID(c.Param("walletID"))
	wait := parseBool(c.Query("wait"), true)

	list, err := h.currentList(c.Request.Context(), walletID, wait)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// StreamTokenList answers GET /wallets/:walletID/tokens/stream with server-sent
// events: `tokenList` for every list, `error` for failed emissions.
func (h *TokenHandler) StreamTokenList(c *gin.Context) {
	ctx := c.Request.Context()
	walletID := entity.WalletID(c.Param("walletID"))

	stream, err := h.tokens.GetTokenList(ctx, walletID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	// the stream outlives the server's WriteTimeout
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("Write deadline not cleared", zap.Error(err))
	}
	c.Status(http.StatusOK)

	emitted := 0
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("Token list stream closed by client", zap.String("wallet", string(walletID)), zap.Int("emitted", emitted))
			return
		case res, ok := <-stream:
			if !ok {
				return
			}
			if res.Err != nil {
				c.SSEvent("error", errorBody(res.Err))
			} else {
				c.SSEvent("tokenList", res.Value)
			}
			c.Writer.Flush()
			emitted++
		}
	}
}

// RefreshTokenList answers POST /wallets/:walletID/tokens/refresh.
func (h *TokenHandler) RefreshTokenList(c *gin.Context) {
	walletID := entity.WalletID(c.Param("walletID"))
	if err := h.tokens.FetchTokenList(c.Request.Context(), walletID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleGrouping answers POST /wallets/:walletID/tokens/grouping.
func (h *TokenHandler) ToggleGrouping(c *gin.Context) {
	h.toggle(c, h.tokens.ToggleGrouping)
}

// ToggleSorting answers POST /wallets/:walletID/tokens/sorting.
func (h *TokenHandler) ToggleSorting(c *gin.Context) {
	h.toggle(c, h.tokens.ToggleSorting)
}

func (h *TokenHandler) toggle(c *gin.Context, toggle func(context.Context, entity.TokenList) (entity.TokenList, error)) {
	ctx := c.Request.Context()
	walletID := entity.WalletID(c.Param("walletID"))

	list, err := h.currentList(ctx, walletID, true)
	if err != nil {
		abortWithError(c, err)
		return
	}
	toggled, err := toggle(ctx, list)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.tokens.ApplySorting(ctx, walletID, toggled); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toggled)
}

// GetCurrencyStatus answers GET /wallets/:walletID/currencies/:currencyID/status.
// Currency ids contain slashes: they are sent path-escaped or in the `id` query parameter.
func (h *TokenHandler) GetCurrencyStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.settleTimeout)
	defer cancel()

	walletID := entity.WalletID(c.Param("walletID"))
	currencyID := entity.CurrencyID(c.Param("currencyID"))
	if id := c.Query("id"); id != "" {
		currencyID = entity.CurrencyID(id)
	}

	stream, err := h.statuses.GetCurrencyStatus(ctx, walletID, currencyID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	status, err := awaitSettled(ctx, stream, func(s entity.CryptoCurrencyStatus) bool {
		return !s.Value.IsLoading()
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *TokenHandler) currentList(parent context.Context, walletID entity.WalletID, wait bool) (entity.TokenList, error) {
	ctx, cancel := context.WithTimeout(parent, h.settleTimeout)
	defer cancel()

	stream, err := h.tokens.GetTokenList(ctx, walletID)
	if err != nil {
		return entity.TokenList{}, err
	}
	return awaitSettled(ctx, stream, func(list entity.TokenList) bool {
		return !wait || !listLoading(list)
	})
}

// awaitSettled returns the first emission accepted by settled, the first error, or
// the latest emission once ctx is done.
func awaitSettled[T any](ctx context.Context, stream <-chan flow.Result[T], settled func(T) bool) (T, error) {
	var (
		latest T
		have   bool
	)
	for {
		select {
		case res, ok := <-stream:
			if !ok {
				if have {
					return latest, nil
				}
				return latest, errStreamClosed
			}
			value, err := res.Get()
			if err != nil {
				return latest, err
			}
			latest, have = value, true
			if settled(value) {
				return latest, nil
			}
		case <-ctx.Done():
			if have {
				return latest, nil
			}
			return latest, ctx.Err()
		}
	}
}

func listLoading(list entity.TokenList) bool {
	for _, s := range list.Flatten() {
		if s.Value.IsLoading() {
			return true
		}
	}
	return false
}

func parseBool(value string, fallback bool) bool {
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
