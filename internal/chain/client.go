package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/raffle-dev/raffle-tooling/internal/logger"
)

var confirmationPollInterval = time.Second

// Client is a JSON-RPC connection that knows how many confirmations its network requires.
type Client struct {
	*ethclient.Client
	chainID       *big.Int
	confirmations uint64
	logger        *slog.Logger
}

// Dial connects to the network, retrying until the node answers, and checks that it serves
// the configured chain id.
func Dial(ctx context.Context, network configs.Network, opts ...retry.Option) (*Client, error) {
	if network.InProcess() {
		return nil, fmt.Errorf("network with chain id %d has no RPC url", network.ChainID)
	}

	log := logger.Named("chain_client").With("url", network.URL)

	var (
		client   *ethclient.Client
		attempts int
	)
	err := retry.Do(
		func() error {
			attempts++
			c, err := ethclient.DialContext(ctx, network.URL)
			if err != nil {
				return err
			}
			if _, err := c.BlockNumber(ctx); err != nil {
				c.Close()
				return err
			}
			client = c
			return nil
		},
		append([]retry.Option{
			retry.Context(ctx),
			retry.Attempts(30),
			retry.Delay(time.Second),
			retry.DelayType(retry.FixedDelay),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				log.With("attempt", n+1).With("err", err.Error()).Debug("waiting for RPC")
			}),
		}, opts...)...,
	)
	if err != nil {
		return nil, fmt.Errorf("timed out waiting for RPC at %s after %d attempts: %w", network.URL, attempts, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	if network.ChainID != 0 && chainID.Uint64() != network.ChainID {
		client.Close()
		return nil, fmt.Errorf("node at %s serves chain %s, configured chain is %d", network.URL, chainID, network.ChainID)
	}

	log.With("chain_id", chainID).Info("connected to network")

	return &Client{
		Client:        client,
		chainID:       chainID,
		confirmations: max(network.BlockConfirmations, 1),
		logger:        log,
	}, nil
}

func (c *Client) ChainIDValue() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// WaitConfirmed waits for tx to be mined and then for the configured number of confirmations.
func (c *Client) WaitConfirmed(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.Client, tx)
	if err != nil {
		return nil, err
	}

	target := receipt.BlockNumber.Uint64() + c.confirmations - 1
	if c.confirmations > 1 {
		c.logger.
			With("tx_hash", tx.Hash().Hex()).
			With("confirmations", c.confirmations).
			Info("waiting for block confirmations")
	}

	ticker := time.NewTicker(confirmationPollInterval)
	defer ticker.Stop()

	for {
		head, err := c.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get block number: %w", err)
		}
		if head >= target {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
