package restapi

import (
	"context"
	"errors"
	"net/http"

	"currency_status/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps an error of the status engine to an HTTP status and a stable code.
func classify(err error) (int, string) {
	var (
		dataErr            *entity.DataError
		currencyNotFound   *entity.CurrencyNotFoundError
		networkNotFound    *entity.NetworkNotFoundError
		amountNotFound     *entity.AmountNotFoundError
		negativeFiatAmount *entity.NegativeFiatAmountError
	)
	switch {
	case errors.Is(err, entity.ErrWalletNotFound):
		return http.StatusNotFound, "wallet_not_found"
	case errors.As(err, &currencyNotFound):
		return http.StatusNotFound, "currency_not_found"
	case errors.Is(err, entity.ErrEmptyTokens), errors.Is(err, entity.ErrEmptyCurrencies):
		return http.StatusConflict, "empty_tokens"
	case errors.Is(err, entity.ErrTokenListIsLoading):
		return http.StatusConflict, "token_list_loading"
	case errors.Is(err, entity.ErrTokenListIsEmpty):
		return http.StatusConflict, "token_list_empty"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.As(err, &dataErr), errors.As(err, &networkNotFound),
		errors.As(err, &amountNotFound), errors.As(err, &negativeFiatAmount):
		return http.StatusBadGateway, "data_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func errorBody(err error) ErrorResponse {
	_, code := classify(err)
	return ErrorResponse{Error: err.Error(), Code: code}
}

func abortWithError(c *gin.Context, err error) {
	status, code := classify(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error(), Code: code})
}
