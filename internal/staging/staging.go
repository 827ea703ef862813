// Package staging runs the end-to-end raffle check against a live network, where the
// automation and randomness networks are real and the draw happens on their schedule.
package staging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/raffle-dev/raffle-tooling/internal/logger"
	"github.com/raffle-dev/raffle-tooling/internal/raffle"
	"golang.org/x/sync/errgroup"
)

var (
	ErrAssertion = errors.New("staging assertion failed")
	ErrTimeout   = errors.New("timed out waiting for WinnerPicked")
)

type (
	balanceReader interface {
		BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	}

	Runner struct {
		lottery  raffle.Lottery
		balances balanceReader
		timeout  time.Duration
		logger   *slog.Logger
	}

	// Report is what the staging run observed around the draw it took part in.
	Report struct {
		Raffle            common.Address
		Winner            common.Address
		EntranceFee       *big.Int
		EnterTxHash       common.Hash
		StartingTimestamp *big.Int
		EndingTimestamp   *big.Int
		StartingBalance   *big.Int
		EndingBalance     *big.Int
	}
)

// NewRunner creates a runner that enters the raffle from the lottery's bound account and
// waits at most timeout for the draw.
func NewRunner(lottery raffle.Lottery, balances balanceReader, timeout time.Duration) *Runner {
	return &Runner{
		lottery:  lottery,
		balances: balances,
		timeout:  timeout,
		logger:   logger.Named("staging").With("raffle", lottery.Address().Hex()),
	}
}

// Run enters the raffle once and waits for a winner to be picked. The entrant is expected to
// be the only player, so it must win the whole pot.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	report := Report{Raffle: r.lottery.Address()}
	entrant := r.lottery.Sender()

	r.logger.Info("Setting up test...")
	entranceFee, err := r.lottery.EntranceFee(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to read entrance fee: %w", err)
	}
	report.EntranceFee = entranceFee

	startingTimestamp, err := r.lottery.LatestTimestamp(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to read latest timestamp: %w", err)
	}
	report.StartingTimestamp = startingTimestamp

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	winners := make(chan *raffle.WinnerPickedEvent, 1)
	sub, err := r.lottery.WatchWinnerPicked(ctx, winners)
	if err != nil {
		return report, fmt.Errorf("failed to subscribe to WinnerPicked: %w", err)
	}
	defer sub.Unsubscribe()

	var picked *raffle.WinnerPickedEvent
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case picked = <-winners:
			r.logger.With("winner", picked.Winner.Hex()).Info("WinnerPicked event fired!")
			return nil
		case err := <-sub.Err():
			if err == nil {
				err = errors.New("subscription closed")
			}
			return fmt.Errorf("WinnerPicked subscription failed: %w", err)
		case <-gctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w after %s", ErrTimeout, r.timeout)
			}
			return gctx.Err()
		}
	})

	g.Go(func() error {
		r.logger.Info("Entering Raffle...")
		receipt, err := r.lottery.Enter(gctx, entranceFee)
		if err != nil {
			return fmt.Errorf("failed to enter raffle: %w", err)
		}
		report.EnterTxHash = receipt.TxHash

		r.logger.With("tx_hash", receipt.TxHash.Hex()).Info("Ok, time to wait...")
		balance, err := r.balances.BalanceAt(gctx, entrant, receipt.BlockNumber)
		if err != nil {
			return fmt.Errorf("failed to read starting balance: %w", err)
		}
		report.StartingBalance = balance
		return nil
	})

	if err := g.Wait(); err != nil {
		return report, err
	}
	report.Winner = picked.Winner

	if err := r.verify(ctx, picked, &report); err != nil {
		return report, err
	}

	r.logger.With("winner", report.Winner.Hex()).Info("staging check passed")
	return report, nil
}

// verify reads the post-draw state and checks every expectation, reporting all failures.
func (r *Runner) verify(ctx context.Context, picked *raffle.WinnerPickedEvent, report *Report) error {
	var failures []error

	if _, err := r.lottery.Player(ctx, big.NewInt(0)); err == nil {
		failures = append(failures, errors.New("players were not reset"))
	}

	recentWinner, err := r.lottery.RecentWinner(ctx)
	if err != nil {
		return fmt.Errorf("failed to read recent winner: %w", err)
	}
	if recentWinner != r.lottery.Sender() {
		failures = append(failures, fmt.Errorf("recent winner is %s, expected %s", recentWinner.Hex(), r.lottery.Sender().Hex()))
	}

	state, err := r.lottery.RaffleState(ctx)
	if err != nil {
		return fmt.Errorf("failed to read raffle state: %w", err)
	}
	if state != raffle.StateOpen {
		failures = append(failures, fmt.Errorf("raffle state is %s, expected %s", state, raffle.StateOpen))
	}

	endingTimestamp, err := r.lottery.LatestTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("failed to read latest timestamp: %w", err)
	}
	report.EndingTimestamp = endingTimestamp
	if endingTimestamp.Cmp(report.StartingTimestamp) <= 0 {
		failures = append(failures, fmt.Errorf("latest timestamp %s did not move past %s", endingTimestamp, report.StartingTimestamp))
	}

	endingBalance, err := r.balances.BalanceAt(ctx, recentWinner, new(big.Int).SetUint64(picked.Raw.BlockNumber))
	if err != nil {
		return fmt.Errorf("failed to read ending balance: %w", err)
	}
	report.EndingBalance = endingBalance
	expected := new(big.Int).Add(report.StartingBalance, report.EntranceFee)
	if endingBalance.Cmp(expected) != 0 {
		failures = append(failures, fmt.Errorf("winner balance is %s wei, expected %s wei", endingBalance, expected))
	}

	if len(failures) > 0 {
		return fmt.Errorf("%w: %w", ErrAssertion, errors.Join(failures...))
	}
	return nil
}
