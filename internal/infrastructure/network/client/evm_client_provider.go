package client

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"currency_status/internal/app/port"
	"currency_status/internal/domain/entity"
	"currency_status/internal/infrastructure/configloader"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// evmClientProvider implements the port.BlockchainClientProvider interface.
type evmClientProvider struct {
	clients           map[entity.NetworkID]port.BlockchainClient
	mu                sync.Mutex
	logger            *zap.Logger
	httpClient        *http.Client
	connectionTimeout time.Duration
	rpcCallTimeout    time.Duration
	rateLimit         rate.Limit
	burst             int
}

// NewEVMClientProvider creates a new EVMClientProvider. Every network gets its own rate limiter.
func NewEVMClientProvider(cfg configloader.RpcClientConfig, logger *zap.Logger) port.BlockchainClientProvider {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.MaxIdleConnsPerHost > 0 {
		transport.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	return &evmClientProvider{
		clients:           make(map[entity.NetworkID]port.BlockchainClient),
		logger:            logger.Named("EVMClientProvider"),
		httpClient:        &http.Client{Transport: transport},
		connectionTimeout: cfg.ConnectTimeout(),
		rpcCallTimeout:    cfg.CallTimeout(),
		rateLimit:         limit,
		burst:             cfg.BurstLimit,
	}
}

// GetClient returns the cached client of network, dialing it on first use.
func (p *evmClientProvider) GetClient(network entity.Network) (port.BlockchainClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, exists := p.clients[network.ID]; exists {
		return client, nil
	}

	p.logger.Info("Creating new EVM client", zap.String("network", string(network.ID)), zap.String("rpc_primary", network.PrimaryRPCURL))
	limiter := rate.NewLimiter(p.rateLimit, max(p.burst, 1))
	newClient, err := NewEVMClient(network, p.httpClient, p.connectionTimeout, p.rpcCallTimeout, limiter)
	if err != nil {
		p.logger.Error("Failed to create EVM client", zap.String("network", string(network.ID)), zap.Error(err))
		return nil, fmt.Errorf("failed to create EVM client for %s: %w", network.Name, err)
	}

	p.clients[network.ID] = newClient
	return newClient, nil
}
