package cmd

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/polyarb/polyarb/pkg/config"
	"github.com/polyarb/polyarb/pkg/wallet"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Check wallet USDC balance and positions value",
	RunE:  runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func walletAddress(cfg *config.Config) (common.Address, error) {
	if cfg.WalletAddr != "" {
		return common.HexToAddress(cfg.WalletAddr), nil
	}
	if cfg.PrivateKey == "" {
		return common.Address{}, fmt.Errorf("set WALLET_ADDRESS or POLYMARKET_PRIVATE_KEY")
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("parse private key: %w", err)
	}
	publicKey, _ := privateKey.Public().(*ecdsa.PublicKey)
	return crypto.PubkeyToAddress(*publicKey), nil
}

func runBalance(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	addr, err := walletAddress(cfg)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger("warn")
	if err != nil {
		return err
	}

	client, err := wallet.NewClient(cfg.PolygonRPC, cfg.DataAPIURL, addr, logger)
	if err != nil {
		return fmt.Errorf("create wallet client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("Address: %s\n\n", addr.Hex())

	usdc, err := client.USDCBalance(ctx)
	if err != nil {
		return fmt.Errorf("get USDC balance: %w", err)
	}
	fmt.Printf("USDC balance:    $%s\n", usdc.StringFixed(2))

	positionsValue, err := client.PositionsValue(ctx)
	if err != nil {
		fmt.Printf("Positions value: (unavailable: %v)\n", err)
		return nil
	}
	fmt.Printf("Positions value: $%s\n", positionsValue.StringFixed(2))
	fmt.Printf("Total:           $%s\n", usdc.Add(positionsValue).StringFixed(2))

	return nil
}
