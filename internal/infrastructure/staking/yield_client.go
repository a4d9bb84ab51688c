package staking

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// BalanceResponse is the staking position answered by the yield API.
type BalanceResponse struct {
	Staked    string `json:"staked"`
	Rewards   string `json:"rewards"`
	Validator string `json:"validator"`
	Active    bool   `json:"active"`
}

// YieldClient defines the interface for interacting with the yield API.
type YieldClient interface {
	GetYieldBalance(ctx context.Context, networkID, address, tokenAddress string) (BalanceResponse, error)
}

type yieldClientImpl struct {
	client  *fasthttp.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewYieldClient creates a yield API client.
func NewYieldClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) YieldClient {
	return &yieldClientImpl{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		logger:  logger.Named("YieldClient"),
	}
}

func (c *yieldClientImpl) GetYieldBalance(ctx context.Context, networkID, address, tokenAddress string) (BalanceResponse, error) {
	query := url.Values{}
	query.Set("network", networkID)
	query.Set("address", address)
	if tokenAddress != "" {
		query.Set("token", tokenAddress)
	}
	requestURL := c.baseURL + "/v1/yields/balances?" + query.Encode()

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		c.logger.Error("Failed to execute request", zap.String("network", networkID), zap.Error(err))
		return BalanceResponse{}, fmt.Errorf("failed to execute yield request for %s: %w", networkID, err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Warn("Yield API request failed",
			zap.String("network", networkID),
			zap.Int("statusCode", resp.StatusCode()),
			zap.ByteString("responseBody", resp.Body()),
		)
		return BalanceResponse{}, fmt.Errorf("yield API request for %s failed with status %d", networkID, resp.StatusCode())
	}

	var balance BalanceResponse
	if err := json.Unmarshal(resp.Body(), &balance); err != nil {
		return BalanceResponse{}, fmt.Errorf("failed to unmarshal yield response for %s: %w", networkID, err)
	}
	return balance, nil
}
