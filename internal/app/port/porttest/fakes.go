// Package porttest provides in-memory implementations of the source ports for tests.
package porttest

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"currency_status/internal/app/port"
	"currency_status/internal/domain/entity"
	"currency_status/internal/pkg/flow"
	"currency_status/internal/pkg/notify"
)

// Feed fans values pushed with Emit out to every open subscription.
type Feed[T any] struct {
	mu   sync.Mutex
	subs map[chan T]struct{}
}

// Subscribe opens a subscription that closes when ctx is done.
func (f *Feed[T]) Subscribe(ctx context.Context) <-chan T {
	in := make(chan T, 16)
	out := make(chan T)

	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[chan T]struct{})
	}
	f.subs[in] = struct{}{}
	f.mu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			f.mu.Lock()
			delete(f.subs, in)
			f.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-in:
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Emit delivers v to all open subscriptions.
func (f *Feed[T]) Emit(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		ch <- v
	}
}

// Open returns the number of open subscriptions.
func (f *Feed[T]) Open() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// NetworkStatusSource is a scripted port.NetworkStatusSource.
type NetworkStatusSource struct {
	Feed       Feed[flow.Result[[]entity.NetworkStatus]]
	FetchErr   error
	subscribes atomic.Int32
	fetches    atomic.Int32
}

func (s *NetworkStatusSource) Subscribe(ctx context.Context, _ entity.WalletID, _ []entity.Network, _ bool) <-chan flow.Result[[]entity.NetworkStatus] {
	s.subscribes.Add(1)
	return s.Feed.Subscribe(ctx)
}

func (s *NetworkStatusSource) FetchNetworkStatuses(context.Context, entity.WalletID, []entity.Network, bool) error {
	s.fetches.Add(1)
	return s.FetchErr
}

// Subscribes returns how often Subscribe was called.
func (s *NetworkStatusSource) Subscribes() int { return int(s.subscribes.Load()) }

// Fetches returns how often FetchNetworkStatuses was called.
func (s *NetworkStatusSource) Fetches() int { return int(s.fetches.Load()) }

// QuoteSource is a scripted port.QuoteSource.
type QuoteSource struct {
	Feed       Feed[flow.Result[[]entity.Quote]]
	FetchErr   error
	subscribes atomic.Int32
	fetches    atomic.Int32
}

func (s *QuoteSource) Subscribe(ctx context.Context, _ []string, _ bool) <-chan flow.Result[[]entity.Quote] {
	s.subscribes.Add(1)
	return s.Feed.Subscribe(ctx)
}

func (s *QuoteSource) FetchQuotes(context.Context, []string, bool) error {
	s.fetches.Add(1)
	return s.FetchErr
}

// Subscribes returns how often Subscribe was called.
func (s *QuoteSource) Subscribes() int { return int(s.subscribes.Load()) }

// Fetches returns how often FetchQuotes was called.
func (s *QuoteSource) Fetches() int { return int(s.fetches.Load()) }

// StakingSource is a port.StakingSource answering from maps.
// FetchYieldBalances signals watchers of the currencies it is given.
type StakingSource struct {
	mu       sync.Mutex
	Balances map[entity.CurrencyID]entity.YieldBalance
	Errs     map[entity.CurrencyID]error
	FetchErr error
	fetches  atomic.Int32

	hubOnce sync.Once
	hub     *notify.Hub
}

func (s *StakingSource) changes() *notify.Hub {
	s.hubOnce.Do(func() { s.hub = notify.NewHub() })
	return s.hub
}

func (s *StakingSource) FetchSingle(_ context.Context, _ entity.WalletID, currency entity.Currency) (entity.YieldBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.Errs[currency.ID]; ok {
		return entity.YieldBalance{}, err
	}
	return s.Balances[currency.ID], nil
}

func (s *StakingSource) FetchYieldBalances(_ context.Context, _ entity.WalletID, currencies []entity.Currency, _ bool) error {
	s.fetches.Add(1)
	if s.FetchErr != nil {
		return s.FetchErr
	}
	ids := make([]string, len(currencies))
	for i, c := range currencies {
		ids[i] = string(c.ID)
	}
	s.changes().Notify(ids...)
	return nil
}

func (s *StakingSource) Watch(ctx context.Context, _ entity.WalletID, currencies []entity.Currency) <-chan struct{} {
	ids := make([]string, len(currencies))
	for i, c := range currencies {
		ids[i] = string(c.ID)
	}
	return s.changes().Watch(ctx, notify.KeySet(ids...))
}

// SetBalance replaces the balance returned for id.
func (s *StakingSource) SetBalance(id entity.CurrencyID, balance entity.YieldBalance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Balances == nil {
		s.Balances = make(map[entity.CurrencyID]entity.YieldBalance)
	}
	s.Balances[id] = balance
}

// Fetches returns how often FetchYieldBalances was called.
func (s *StakingSource) Fetches() int { return int(s.fetches.Load()) }

// CurrenciesSource is a port.CurrenciesSource backed by a map.
// When Gate is set, Get blocks until it is closed.
type CurrenciesSource struct {
	mu         sync.Mutex
	Currencies map[entity.WalletID][]entity.Currency
	Err        error
	Gate       chan struct{}
	calls      atomic.Int32
	refreshes  atomic.Int32
}

func (s *CurrenciesSource) Get(ctx context.Context, walletID entity.WalletID, refresh bool) ([]entity.Currency, error) {
	s.calls.Add(1)
	if refresh {
		s.refreshes.Add(1)
	}
	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Currencies[walletID], nil
}

// Calls returns how often Get was called.
func (s *CurrenciesSource) Calls() int { return int(s.calls.Load()) }

// Refreshes returns how often Get was called with refresh set.
func (s *CurrenciesSource) Refreshes() int { return int(s.refreshes.Load()) }

// SortingStore is an in-memory port.TokenListSortingStore.
type SortingStore struct {
	mu     sync.Mutex
	values map[entity.WalletID]entity.TokenListSorting
	GetErr error
	SetErr error
}

func (s *SortingStore) Get(_ context.Context, walletID entity.WalletID) (entity.TokenListSorting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return entity.TokenListSorting{}, s.GetErr
	}
	return s.values[walletID], nil
}

func (s *SortingStore) Set(_ context.Context, walletID entity.WalletID, sorting entity.TokenListSorting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SetErr != nil {
		return s.SetErr
	}
	if s.values == nil {
		s.values = make(map[entity.WalletID]entity.TokenListSorting)
	}
	s.values[walletID] = sorting
	return nil
}

// NetworkProvider is a port.NetworkProvider over a fixed list.
type NetworkProvider struct {
	Networks []entity.Network
}

func (p *NetworkProvider) AllNetworks() []entity.Network {
	return p.Networks
}

func (p *NetworkProvider) GetNetwork(id entity.NetworkID) (entity.Network, bool) {
	for _, n := range p.Networks {
		if n.ID == id {
			return n, true
		}
	}
	return entity.Network{}, false
}

// WalletProvider is a port.WalletProvider over a fixed address book.
type WalletProvider struct {
	Addresses map[entity.WalletID]map[entity.NetworkID]string
}

func (p *WalletProvider) Address(walletID entity.WalletID, networkID entity.NetworkID) (string, bool) {
	addr, ok := p.Addresses[walletID][networkID]
	return addr, ok
}

// Account is the on-chain state answered by a BlockchainClient.
type Account struct {
	Nonce        int64
	PendingNonce int64
	Balances     map[entity.CurrencyID]*big.Int
}

// BlockchainClient answers account requests from Accounts keyed by address.
type BlockchainClient struct {
	mu       sync.Mutex
	Net      entity.Network
	Accounts map[string]Account
	Err      error
	calls    atomic.Int32
}

func (c *BlockchainClient) GetAccount(_ context.Context, requests []entity.AccountRequestItem) ([]entity.AccountResultItem, error) {
	c.calls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	results := make([]entity.AccountResultItem, len(requests))
	for i, req := range requests {
		account := c.Accounts[req.WalletAddress]
		results[i] = entity.AccountResultItem{CurrencyID: req.CurrencyID, Type: req.Type, Decimals: req.TokenDecimals}
		switch req.Type {
		case entity.NonceRequest:
			results[i].Value = big.NewInt(account.Nonce)
		case entity.PendingNonceRequest:
			results[i].Value = big.NewInt(account.PendingNonce)
		default:
			if v, ok := account.Balances[req.CurrencyID]; ok {
				results[i].Value = v
			} else {
				results[i].Value = big.NewInt(0)
			}
		}
	}
	return results, nil
}

func (c *BlockchainClient) Network() entity.Network { return c.Net }

// SetErr makes later calls fail with err, or succeed again when err is nil.
func (c *BlockchainClient) SetErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Err = err
}

// Calls returns how often GetAccount was called.
func (c *BlockchainClient) Calls() int { return int(c.calls.Load()) }

// BlockchainClientProvider hands out the configured client per network.
type BlockchainClientProvider struct {
	Clients map[entity.NetworkID]*BlockchainClient
}

func (p *BlockchainClientProvider) GetClient(network entity.Network) (port.BlockchainClient, error) {
	c, ok := p.Clients[network.ID]
	if !ok {
		return nil, fmt.Errorf("no client for %s", network.ID)
	}
	return c, nil
}
