package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCurrencies is returned when an operation needs at least one currency.
	ErrEmptyCurrencies = errors.New("currencies list is empty")
	// ErrEmptyTokens is returned when a wallet has no tokens to work on.
	ErrEmptyTokens = errors.New("wallet has no tokens")
	// ErrTokenListIsLoading rejects user operations while the list is incomplete.
	ErrTokenListIsLoading = errors.New("token list is loading")
	// ErrTokenListIsEmpty rejects user operations on an empty list.
	ErrTokenListIsEmpty = errors.New("token list is empty")
	// ErrWalletNotFound is returned for an unknown wallet id.
	ErrWalletNotFound = errors.New("wallet not found")
)

// DataError wraps a failure of an underlying data source.
type DataError struct {
	Cause error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error: %v", e.Cause)
}

func (e *DataError) Unwrap() error {
	return e.Cause
}

// NewDataError wraps err unless it already is a DataError.
func NewDataError(err error) error {
	if err == nil {
		return nil
	}
	var de *DataError
	if errors.As(err, &de) {
		return err
	}
	return &DataError{Cause: err}
}

// AmountNotFoundError means a verified network status has no balance entry for a currency.
type AmountNotFoundError struct {
	CurrencyID CurrencyID
}

func (e *AmountNotFoundError) Error() string {
	return fmt.Sprintf("amount not found for currency %s", e.CurrencyID)
}

// NegativeFiatAmountError means the fiat amount computed for a currency is below zero.
type NegativeFiatAmountError struct {
	CurrencyID CurrencyID
}

func (e *NegativeFiatAmountError) Error() string {
	return fmt.Sprintf("negative fiat amount for currency %s", e.CurrencyID)
}

// NetworkNotFoundError means a status references a network that cannot be resolved.
type NetworkNotFoundError struct {
	NetworkID NetworkID
}

func (e *NetworkNotFoundError) Error() string {
	return fmt.Sprintf("network %s not found", e.NetworkID)
}

// CurrencyNotFoundError means the requested currency is not part of the wallet.
type CurrencyNotFoundError struct {
	CurrencyID CurrencyID
}

func (e *CurrencyNotFoundError) Error() string {
	return fmt.Sprintf("currency %s not found", e.CurrencyID)
}
