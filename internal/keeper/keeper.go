// Package keeper plays the part of the automation network: it checks whether the raffle needs
// upkeep, performs it, and on local chains answers the randomness request with the VRF mock.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/raffle-dev/raffle-tooling/internal/logger"
	"github.com/raffle-dev/raffle-tooling/internal/raffle"
)

var checkData = []byte{}

type (
	gasRecorder interface {
		Record(contract raffle.ContractName, method string, receipt *types.Receipt)
	}

	Keeper struct {
		lottery     raffle.Lottery
		coordinator raffle.VRFCoordinator
		chainID     uint64
		metrics     *Metrics
		gas         gasRecorder
		logger      *slog.Logger
	}

	// Outcome describes one keeper round.
	Outcome struct {
		UpkeepNeeded bool
		Players      *big.Int
		RequestID    *big.Int
		Fulfilled    bool
		Winner       common.Address
	}
)

// New creates a keeper. coordinator and gas may be nil; the coordinator is only used on
// the local chain.
func New(lottery raffle.Lottery, coordinator raffle.VRFCoordinator, chainID uint64, metrics *Metrics, gas gasRecorder) *Keeper {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Keeper{
		lottery:     lottery,
		coordinator: coordinator,
		chainID:     chainID,
		metrics:     metrics,
		gas:         gas,
		logger:      logger.Named("keeper").With("raffle", lottery.Address().Hex()),
	}
}

// Run performs a single keeper round.
func (k *Keeper) Run(ctx context.Context) (Outcome, error) {
	var outcome Outcome

	k.metrics.checks.Inc()
	upkeep, err := k.lottery.CheckUpkeep(ctx, checkData)
	if err != nil {
		k.metrics.incError(stageCheckUpkeep)
		return outcome, fmt.Errorf("failed to check upkeep: %w", err)
	}
	outcome.UpkeepNeeded = upkeep.Needed

	players, err := k.lottery.NumberOfPlayers(ctx)
	if err != nil {
		k.metrics.incError(stagePlayers)
		return outcome, fmt.Errorf("failed to read number of players: %w", err)
	}
	outcome.Players = players
	k.metrics.players.Set(float64(players.Int64()))

	k.logger.With("upkeep_needed", upkeep.Needed).With("players", players.String()).Info("upkeep checked")

	if !upkeep.Needed {
		k.logger.Info("No upkeep needed!")
		return outcome, nil
	}
	k.metrics.upkeepsNeeded.Inc()

	receipt, err := k.lottery.PerformUpkeep(ctx, checkData)
	if err != nil {
		k.metrics.incError(stagePerformUpkeep)
		return outcome, fmt.Errorf("failed to perform upkeep: %w", err)
	}
	k.record(raffle.ContractNameRaffle, "performUpkeep", receipt)
	k.metrics.upkeepsPerformed.Inc()

	requestID, err := raffle.RequestIDFromReceipt(receipt)
	if err != nil {
		k.metrics.incError(stagePerformUpkeep)
		return outcome, err
	}
	outcome.RequestID = requestID
	k.logger.With("request_id", requestID.String()).With("tx_hash", receipt.TxHash.Hex()).Info("Performed upkeep")

	if k.chainID != configs.LocalChainID {
		return outcome, nil
	}

	if err := k.mockVRF(ctx, requestID, &outcome); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// mockVRF answers the request the way the oracle network would on a live chain.
func (k *Keeper) mockVRF(ctx context.Context, requestID *big.Int, outcome *Outcome) error {
	if k.coordinator == nil {
		k.metrics.incError(stageFulfill)
		return errors.New("no VRF coordinator mock to fulfil the request on the local chain")
	}

	k.logger.Info("We on a local network? Ok let's pretend...")
	receipt, err := k.coordinator.FulfillRandomWords(ctx, requestID, k.lottery.Address())
	if err != nil {
		k.metrics.incError(stageFulfill)
		return fmt.Errorf("failed to fulfil request %s: %w", requestID, err)
	}
	k.record(raffle.ContractNameVRFCoordinator, "fulfillRandomWords", receipt)
	k.metrics.fulfilments.Inc()
	outcome.Fulfilled = true
	k.logger.Info("Responded!")

	winner, err := k.lottery.RecentWinner(ctx)
	if err != nil {
		k.metrics.incError(stageWinner)
		return fmt.Errorf("failed to read recent winner: %w", err)
	}
	outcome.Winner = winner
	k.logger.With("winner", winner.Hex()).Info("The winner is picked")

	return nil
}

func (k *Keeper) record(contract raffle.ContractName, method string, receipt *types.Receipt) {
	if k.gas != nil {
		k.gas.Record(contract, method, receipt)
	}
}

// Watch runs a round immediately and then every interval until ctx is cancelled. Failed
// rounds are logged and counted; the loop keeps going.
func (k *Keeper) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := k.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			k.logger.With("err", err.Error()).Error("keeper round failed")
		}

		select {
		case <-ctx.Done():
			k.logger.Info("keeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}
