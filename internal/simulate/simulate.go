// Package simulate plays a complete raffle round on the in-process development chain:
// deployment, entries, the interval passing, and the keeper drawing a winner.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/olekukonko/tablewriter"
	"github.com/raffle-dev/raffle-tooling/internal/chain"
	"github.com/raffle-dev/raffle-tooling/internal/deploy"
	"github.com/raffle-dev/raffle-tooling/internal/devnet"
	"github.com/raffle-dev/raffle-tooling/internal/keeper"
	"github.com/raffle-dev/raffle-tooling/internal/logger"
	"github.com/raffle-dev/raffle-tooling/internal/raffle"
)

type (
	deployer interface {
		Deploy(ctx context.Context, tags mapset.Set[deploy.Tag]) (deploy.Result, error)
	}
	gasRecorder interface {
		Record(contract raffle.ContractName, method string, receipt *types.Receipt)
	}

	Simulator struct {
		chain    *devnet.Chain
		deployer deployer
		players  int
		metrics  *keeper.Metrics
		gas      gasRecorder
		logger   *slog.Logger
	}

	// PlayerBalance is one entrant's balance after the draw.
	PlayerBalance struct {
		Address common.Address
		Balance *big.Int
	}

	// Summary describes a simulated round.
	Summary struct {
		Raffle    common.Address
		RequestID *big.Int
		Pot       *big.Int
		Winner    common.Address
		Players   []PlayerBalance
	}
)

// New creates a simulator entering players accounts, starting after the deployer's account.
// metrics and gas may be nil.
func New(chain *devnet.Chain, deployer deployer, players int, metrics *keeper.Metrics, gas gasRecorder) *Simulator {
	return &Simulator{
		chain:    chain,
		deployer: deployer,
		players:  players,
		metrics:  metrics,
		gas:      gas,
		logger:   logger.Named("simulate").With("chain_id", chain.ChainID()),
	}
}

// Run deploys the contracts and plays one round.
func (s *Simulator) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	accounts := s.chain.Accounts()
	if s.players < 1 || s.players >= len(accounts) {
		return summary, fmt.Errorf("players must be between 1 and %d, got %d", len(accounts)-1, s.players)
	}

	result, err := s.deployer.Deploy(ctx, mapset.NewSet(deploy.TagAll))
	if err != nil {
		return summary, err
	}
	hosted, ok := result.Raffle.(*devnet.Raffle)
	if !ok || result.Coordinator == nil {
		return summary, errors.New("deployment did not produce an in-process raffle with a VRF mock")
	}
	summary.Raffle = hosted.Address()

	entranceFee, err := hosted.EntranceFee(ctx)
	if err != nil {
		return summary, err
	}

	entrants := accounts[1 : 1+s.players]
	for _, player := range entrants {
		receipt, err := hosted.Connect(player).Enter(ctx, entranceFee)
		if err != nil {
			return summary, fmt.Errorf("failed to enter %s: %w", player.Hex(), err)
		}
		s.record(raffle.ContractNameRaffle, "enterRaffle", receipt)
	}

	pot, err := hosted.Balance(ctx)
	if err != nil {
		return summary, err
	}
	summary.Pot = pot
	s.logger.With("players", len(entrants)).With("pot", chain.FormatETH(pot)).Info("players entered")

	interval, err := hosted.Interval(ctx)
	if err != nil {
		return summary, err
	}
	s.chain.IncreaseTime(interval.Uint64() + 1)
	s.chain.Mine()

	outcome, err := keeper.New(hosted, result.Coordinator, result.ChainID, s.metrics, s.gas).Run(ctx)
	if err != nil {
		return summary, err
	}
	if !outcome.Fulfilled {
		return summary, errors.New("keeper round finished without a draw")
	}
	summary.RequestID = outcome.RequestID
	summary.Winner = outcome.Winner

	for _, player := range entrants {
		balance, err := s.chain.BalanceAt(ctx, player, nil)
		if err != nil {
			return summary, err
		}
		summary.Players = append(summary.Players, PlayerBalance{Address: player, Balance: balance})
	}

	s.logger.With("winner", summary.Winner.Hex()).With("request_id", summary.RequestID.String()).Info("round simulated")
	return summary, nil
}

func (s *Simulator) record(contract raffle.ContractName, method string, receipt *types.Receipt) {
	if s.gas != nil {
		s.gas.Record(contract, method, receipt)
	}
}

// Render prints the round as a table of entrant balances.
func (s Summary) Render(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Raffle %s · request %s · pot %s\n", s.Raffle.Hex(), s.RequestID, chain.FormatETH(s.Pot)); err != nil {
		return err
	}

	rows := make([][]string, 0, len(s.Players))
	for _, player := range s.Players {
		mark := ""
		if player.Address == s.Winner {
			mark = "winner"
		}
		rows = append(rows, []string{player.Address.Hex(), chain.FormatETH(player.Balance), mark})
	}

	table := tablewriter.NewWriter(w)
	table.Header("Player", "Balance", "")
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("failed to add summary rows: %w", err)
	}
	return table.Render()
}
