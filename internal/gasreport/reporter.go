// Package gasreport aggregates the gas used by contract calls and deployments and writes it
// as a plain text table.
package gasreport

import (
	"bytes"
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/raffle-dev/raffle-tooling/internal/infra/filesystem"
	fsjson "github.com/raffle-dev/raffle-tooling/internal/infra/filesystem/json"
	"github.com/raffle-dev/raffle-tooling/internal/logger"
	"github.com/raffle-dev/raffle-tooling/internal/raffle"
)

// MethodDeployment is the method name recorded for contract creation.
const MethodDeployment = "deployment"

type (
	key struct {
		contract raffle.ContractName
		method   string
	}

	stats struct {
		calls uint64
		min   uint64
		max   uint64
		total uint64
	}

	// Reporter collects gas usage. A disabled reporter ignores every record.
	Reporter struct {
		cfg             configs.GasReporter
		compilerVersion string
		writer          filesystem.Writer
		logger          *slog.Logger

		mu      sync.Mutex
		entries map[key]*stats
	}
)

func NewReporter(cfg configs.GasReporter, compilerVersion string) *Reporter {
	return &Reporter{
		cfg:             cfg,
		compilerVersion: compilerVersion,
		writer:          fsjson.NewWriter(),
		logger:          logger.Named("gas_reporter"),
		entries:         make(map[key]*stats),
	}
}

// Record adds the gas used by a mined transaction.
func (r *Reporter) Record(contract raffle.ContractName, method string, receipt *types.Receipt) {
	if r == nil || !r.cfg.Enabled || receipt == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{contract: contract, method: method}
	s, ok := r.entries[k]
	if !ok {
		s = &stats{min: receipt.GasUsed, max: receipt.GasUsed}
		r.entries[k] = s
	}
	s.calls++
	s.total += receipt.GasUsed
	s.min = min(s.min, receipt.GasUsed)
	s.max = max(s.max, receipt.GasUsed)
}

// Render writes the report table.
func (r *Reporter) Render(w io.Writer) error {
	r.mu.Lock()
	keys := make([]key, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b key) int {
		if c := cmp.Compare(a.contract, b.contract); c != 0 {
			return c
		}
		return cmp.Compare(a.method, b.method)
	})

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		s := r.entries[k]
		rows = append(rows, []string{
			string(k.contract),
			k.method,
			strconv.FormatUint(s.min, 10),
			strconv.FormatUint(s.max, 10),
			strconv.FormatUint(s.total/s.calls, 10),
			strconv.FormatUint(s.calls, 10),
		})
	}
	r.mu.Unlock()

	if _, err := fmt.Fprintf(w, "Solc version: %s · Currency: %s · Token: %s\n", r.compilerVersion, r.cfg.Currency, r.cfg.Token); err != nil {
		return err
	}

	table := tablewriter.NewTable(w, r.tableOptions()...)
	table.Header("Contract", "Method", "Min", "Max", "Avg", "# calls")
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("failed to add report rows: %w", err)
	}
	return table.Render()
}

func (r *Reporter) tableOptions() []tablewriter.Option {
	if r.cfg.NoColors {
		return nil
	}
	return []tablewriter.Option{tablewriter.WithRenderer(renderer.NewColorized())}
}

// Write renders the report to the configured output file. Nothing is written when the
// reporter is disabled.
func (r *Reporter) Write() error {
	if r == nil || !r.cfg.Enabled {
		return nil
	}

	var buf bytes.Buffer
	if err := r.Render(&buf); err != nil {
		return fmt.Errorf("failed to render gas report: %w", err)
	}
	if err := r.writer.WriteBytes(r.cfg.OutputFile, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write gas report: %w", err)
	}

	r.logger.With("path", r.cfg.OutputFile).Info("gas report written")
	return nil
}
