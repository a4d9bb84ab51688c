package client

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"currency_status/internal/app/port"
	"currency_status/internal/domain/entity"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

// EVMClient implements the port.BlockchainClient interface for EVM-compatible chains.
type EVMClient struct {
	ethClient      *ethclient.Client
	network        entity.Network
	rpcCallTimeout time.Duration
	limiter        *rate.Limiter
}

// ERC20 ABI minimal part for balanceOf
const erc20ABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}]`

var (
	parsedERC20ABI  abi.ABI
	parsedERC20Once sync.Once
)

func erc20() abi.ABI {
	parsedERC20Once.Do(func() {
		var err error
		parsedERC20ABI, err = abi.JSON(strings.NewReader(erc20ABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
	})
	return parsedERC20ABI
}

// NewEVMClient dials the primary RPC URL of network, then the fallbacks in order.
// A nil limiter disables rate limiting.
func NewEVMClient(
	network entity.Network,
	httpClient *http.Client,
	connectionTimeout time.Duration,
	rpcCallTimeout time.Duration,
	limiter *rate.Limiter,
) (*EVMClient, error) {
	rpcURLs := append([]string{network.PrimaryRPCURL}, network.FallbackRPCURLs...)
	var lastErr error

	for _, rpcURL := range rpcURLs {
		if rpcURL == "" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
		opts := []rpc.ClientOption{}
		if httpClient != nil {
			opts = append(opts, rpc.WithHTTPClient(httpClient))
		}
		rpcClient, err := rpc.DialOptions(ctx, rpcURL, opts...)
		cancel()

		if err == nil {
			return &EVMClient{
				ethClient:      ethclient.NewClient(rpcClient),
				network:        network,
				rpcCallTimeout: rpcCallTimeout,
				limiter:        limiter,
			}, nil
		}
		lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no RPC URL configured")
	}

	return nil, fmt.Errorf("all RPC connection attempts failed for network %s: %w", network.Name, lastErr)
}

// GetAccount executes all requests in one JSON-RPC batch. Per-item failures are
// reported in the items; the error is set only when the batch itself failed.
func (c *EVMClient) GetAccount(ctx context.Context, requests []entity.AccountRequestItem) ([]entity.AccountResultItem, error) {
	if len(requests) == 0 {
		return []entity.AccountResultItem{}, nil
	}

	batchElems := make([]rpc.BatchElem, len(requests))
	results := make([]entity.AccountResultItem, len(requests))

	for i, req := range requests {
		results[i] = entity.AccountResultItem{
			CurrencyID: req.CurrencyID,
			Type:       req.Type,
			Decimals:   req.TokenDecimals,
		}
		wallet := common.HexToAddress(req.WalletAddress)

		switch req.Type {
		case entity.NativeBalanceRequest:
			batchElems[i] = rpc.BatchElem{
				Method: "eth_getBalance",
				Args:   []interface{}{wallet, "latest"},
				Result: new(hexutil.Big),
			}
		case entity.TokenBalanceRequest:
			callData, err := erc20().Pack("balanceOf", wallet)
			if err != nil {
				results[i].Error = fmt.Errorf("failed to pack balanceOf for %s: %w", req.TokenAddress, err)
				batchElems[i] = nonceElem(wallet, "latest")
				continue
			}
			batchElems[i] = rpc.BatchElem{
				Method: "eth_call",
				Args: []interface{}{map[string]interface{}{
					"to":   common.HexToAddress(req.TokenAddress),
					"data": hexutil.Bytes(callData),
				}, "latest"},
				Result: new(hexutil.Bytes),
			}
		case entity.NonceRequest:
			batchElems[i] = nonceElem(wallet, "latest")
		case entity.PendingNonceRequest:
			batchElems[i] = nonceElem(wallet, "pending")
		default:
			results[i].Error = fmt.Errorf("unknown account request type: %v", req.Type)
			batchElems[i] = nonceElem(wallet, "latest")
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return results, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	rpcCallCtx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()

	if err := c.ethClient.Client().BatchCallContext(rpcCallCtx, batchElems); err != nil {
		return results, fmt.Errorf("RPC batch call failed on %s: %w", c.network.ID, err)
	}

	for i, elem := range batchElems {
		if results[i].Error != nil {
			continue
		}
		if elem.Error != nil {
			results[i].Error = fmt.Errorf("request %d (%s) for %s failed: %w", i, elem.Method, requests[i].WalletAddress, elem.Error)
			continue
		}

		switch result := elem.Result.(type) {
		case *hexutil.Big:
			results[i].Value = (*big.Int)(result)
		case *hexutil.Uint64:
			results[i].Value = new(big.Int).SetUint64(uint64(*result))
		case *hexutil.Bytes:
			value, err := unpackBalance(*result)
			if err != nil {
				results[i].Error = fmt.Errorf("failed to decode balanceOf of %s: %w", requests[i].TokenAddress, err)
				continue
			}
			results[i].Value = value
		}
	}
	return results, nil
}

// Network returns the network this client talks to.
func (c *EVMClient) Network() entity.Network {
	return c.network
}

func nonceElem(wallet common.Address, block string) rpc.BatchElem {
	return rpc.BatchElem{
		Method: "eth_getTransactionCount",
		Args:   []interface{}{wallet, block},
		Result: new(hexutil.Uint64),
	}
}

func unpackBalance(data []byte) (*big.Int, error) {
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	unpacked, err := erc20().Unpack("balanceOf", data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", hexutil.Encode(data), err)
	}
	if len(unpacked) == 0 {
		return nil, fmt.Errorf("balanceOf returned no data")
	}
	balance, ok := unpacked[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf type %T", unpacked[0])
	}
	return balance, nil
}

var _ port.BlockchainClient = (*EVMClient)(nil)
