package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	polygonUSDC = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"

	usdcDecimals = 6
)

// Client fetches wallet data from the chain and the Data API.
type Client struct {
	rpcURL  string
	address common.Address
	rest    *resty.Client
	logger  *zap.Logger
}

// Position is an open market position from the Data API.
type Position struct {
	MarketSlug string  `json:"slug"`
	Outcome    string  `json:"outcome"`
	Size       float64 `json:"size"`
	CurPrice   float64 `json:"curPrice"`
	Value      float64 `json:"currentValue"`
	InitialVal float64 `json:"initialValue"`
	CashPnL    float64 `json:"cashPnl"`
	Redeemable bool    `json:"redeemable"`
}

// NewClient creates a wallet client for one address.
func NewClient(rpcURL, dataAPIURL string, address common.Address, logger *zap.Logger) (*Client, error) {
	if rpcURL == "" {
		return nil, errors.New("rpcURL cannot be empty")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	rest := resty.New().
		SetBaseURL(dataAPIURL).
		SetTimeout(10 * time.Second).
		SetHeader("Accept", "application/json")

	return &Client{
		rpcURL:  rpcURL,
		address: address,
		rest:    rest,
		logger:  logger,
	}, nil
}

// USDCBalance fetches the on-chain USDC balance as a decimal USD figure.
func (c *Client) USDCBalance(ctx context.Context) (decimal.Decimal, error) {
	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return decimal.Zero, fmt.Errorf("dial RPC: %w", err)
	}
	defer client.Close()

	raw, err := c.erc20BalanceOf(ctx, client, polygonUSDC)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get USDC balance: %w", err)
	}

	return decimal.NewFromBigInt(raw, -usdcDecimals), nil
}

// PositionsValue sums size x current price over open positions.
func (c *Client) PositionsValue(ctx context.Context) (decimal.Decimal, error) {
	positions, err := c.Positions(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, pos := range positions {
		size := decimal.NewFromFloat(pos.Size)
		price := decimal.NewFromFloat(pos.CurPrice)
		total = total.Add(size.Mul(price))
	}

	return total, nil
}

// Positions fetches open positions from the Data API.
func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	var positions []Position
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"user":          c.address.Hex(),
			"sizeThreshold": "0.01",
		}).
		SetResult(&positions).
		Get("/positions")
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("data API error: status %d", resp.StatusCode())
	}

	out := positions[:0]
	for _, pos := range positions {
		if pos.Size > 0 {
			out = append(out, pos)
		}
	}

	return out, nil
}

// erc20BalanceOf calls balanceOf(address) on an ERC20 token.
func (c *Client) erc20BalanceOf(ctx context.Context, client *ethclient.Client, tokenAddr string) (*big.Int, error) {
	balanceOfABI := `[{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

	parsedABI, err := abi.JSON(strings.NewReader(balanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("parse ABI: %w", err)
	}

	data, err := parsedABI.Pack("balanceOf", c.address)
	if err != nil {
		return nil, fmt.Errorf("pack ABI: %w", err)
	}

	tokenAddress := common.HexToAddress(tokenAddr)
	msg := ethereum.CallMsg{
		To:   &tokenAddress,
		Data: data,
	}

	result, err := client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call contract: %w", err)
	}

	return new(big.Int).SetBytes(result), nil
}

// Address returns the wallet address.
func (c *Client) Address() common.Address {
	return c.address
}
