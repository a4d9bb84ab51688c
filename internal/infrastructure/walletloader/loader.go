// Package walletloader reads wallets, their addresses and their currencies from a YAML file.
package walletloader

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"currency_status/internal/app/port"
	"currency_status/internal/domain/entity"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const walletsKey = "wallets"

type walletsFile struct {
	Wallets []walletRecord `yaml:"wallets"`
}

type walletRecord struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	Addresses  map[string]string `yaml:"addresses"`
	Currencies []currencyRecord  `yaml:"currencies"`
}

type currencyRecord struct {
	Network         string `yaml:"network"`
	entity.Currency `yaml:",inline"`
}

// Loader implements port.CurrenciesSource and port.WalletProvider over a wallets file.
type Loader struct {
	filePath string
	networks port.NetworkProvider
	cache    *cache.Cache
	mu       sync.Mutex
	logger   *zap.Logger
}

// NewLoader creates a Loader. The parsed file is kept for ttl; refreshing reads re-parse it.
func NewLoader(filePath string, networks port.NetworkProvider, ttl time.Duration, logger *zap.Logger) *Loader {
	return &Loader{
		filePath: filePath,
		networks: networks,
		cache:    cache.New(ttl, 2*ttl),
		logger:   logger.Named("WalletLoader"),
	}
}

// Get returns the currencies of walletID in file order.
func (l *Loader) Get(ctx context.Context, walletID entity.WalletID, refresh bool) ([]entity.Currency, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wallet, err := l.Wallet(walletID, refresh)
	if err != nil {
		return nil, err
	}
	currencies := make([]entity.Currency, len(wallet.Currencies))
	copy(currencies, wallet.Currencies)
	return currencies, nil
}

// Address returns the address of walletID on networkID.
func (l *Loader) Address(walletID entity.WalletID, networkID entity.NetworkID) (string, bool) {
	wallet, err := l.Wallet(walletID, false)
	if err != nil {
		l.logger.Debug("Address lookup failed", zap.String("wallet", string(walletID)), zap.Error(err))
		return "", false
	}
	address, ok := wallet.Addresses[networkID]
	return address, ok && address != ""
}

// Wallet returns one wallet, or an error wrapping entity.ErrWalletNotFound.
func (l *Loader) Wallet(walletID entity.WalletID, refresh bool) (entity.Wallet, error) {
	wallets, err := l.load(refresh)
	if err != nil {
		return entity.Wallet{}, err
	}
	for _, w := range wallets {
		if w.ID == walletID {
			return w, nil
		}
	}
	return entity.Wallet{}, fmt.Errorf("%w: %s", entity.ErrWalletNotFound, walletID)
}

// Wallets returns all wallets of the file.
func (l *Loader) Wallets(refresh bool) ([]entity.Wallet, error) {
	return l.load(refresh)
}

func (l *Loader) load(refresh bool) ([]entity.Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !refresh {
		if v, ok := l.cache.Get(walletsKey); ok {
			return v.([]entity.Wallet), nil
		}
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet file %s: %w", l.filePath, err)
	}
	var file walletsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse wallet file %s: %w", l.filePath, err)
	}

	wallets := make([]entity.Wallet, 0, len(file.Wallets))
	seen := make(map[entity.WalletID]struct{}, len(file.Wallets))
	for i, record := range file.Wallets {
		if record.ID == "" {
			return nil, fmt.Errorf("wallet #%d in %s has no id", i, l.filePath)
		}
		wallet := l.toWallet(record)
		if _, dup := seen[wallet.ID]; dup {
			return nil, fmt.Errorf("duplicate wallet id %s in %s", wallet.ID, l.filePath)
		}
		seen[wallet.ID] = struct{}{}
		wallets = append(wallets, wallet)
	}

	l.cache.SetDefault(walletsKey, wallets)
	l.logger.Info("Wallets loaded successfully from file", zap.Int("count", len(wallets)), zap.String("path", l.filePath))
	return wallets, nil
}

func (l *Loader) toWallet(record walletRecord) entity.Wallet {
	wallet := entity.Wallet{
		ID:        entity.WalletID(record.ID),
		Name:      record.Name,
		Addresses: make(map[entity.NetworkID]string, len(record.Addresses)),
	}
	for networkID, address := range record.Addresses {
		wallet.Addresses[entity.NetworkID(networkID)] = strings.TrimSpace(address)
	}

	seen := make(map[entity.CurrencyID]struct{}, len(record.Currencies))
	for i, cr := range record.Currencies {
		network, ok := l.networks.GetNetwork(entity.NetworkID(cr.Network))
		if !ok {
			l.logger.Warn("Skipping currency of unknown network",
				zap.String("wallet", record.ID),
				zap.Int("index", i),
				zap.String("network", cr.Network))
			continue
		}
		currency := toCurrency(wallet.ID, network, cr.Currency)
		if _, dup := seen[currency.ID]; dup {
			l.logger.Warn("Skipping duplicate currency", zap.String("wallet", record.ID), zap.String("currency", string(currency.ID)))
			continue
		}
		seen[currency.ID] = struct{}{}
		wallet.Currencies = append(wallet.Currencies, currency)
	}
	return wallet
}

func toCurrency(walletID entity.WalletID, network entity.Network, c entity.Currency) entity.Currency {
	c.Network = network
	c.ContractAddress = strings.TrimSpace(c.ContractAddress)
	c.Kind = entity.CurrencyCoin
	if c.ContractAddress != "" && !strings.EqualFold(c.ContractAddress, entity.ZeroAddress) {
		c.Kind = entity.CurrencyToken
	} else {
		c.ContractAddress = ""
	}
	c.ID = entity.NewCurrencyID(walletID, network.ID, c.ContractAddress)

	if c.Kind == entity.CurrencyCoin {
		if c.Symbol == "" {
			c.Symbol = network.NativeSymbol
		}
		if c.Decimals == 0 {
			c.Decimals = network.Decimals
		}
	}
	if c.Name == "" {
		c.Name = c.Symbol
	}
	// custom tokens are priced only when a market id is given explicitly
	if c.RawID == "" && !c.IsCustom {
		c.RawID = entity.MarketRawID(network, c.ContractAddress)
	}
	c.RawID = entity.NormalizeRawID(c.RawID)
	return c
}

var (
	_ port.CurrenciesSource = (*Loader)(nil)
	_ port.WalletProvider   = (*Loader)(nil)
)
