package gasreport

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fatih/color"
	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/raffle-dev/raffle-tooling/internal/raffle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	reporter := NewReporter(configs.GasReporter{Enabled: true, NoColors: true, Currency: "USD", Token: "ETH"}, "0.8.24")
	reporter.Record(raffle.ContractNameRaffle, "enterRaffle", &types.Receipt{GasUsed: 100})
	reporter.Record(raffle.ContractNameRaffle, "enterRaffle", &types.Receipt{GasUsed: 300})
	reporter.Record(raffle.ContractNameRaffle, MethodDeployment, &types.Receipt{GasUsed: 1000})
	reporter.Record(raffle.ContractNameRaffle, "performUpkeep", nil)

	var buf bytes.Buffer
	require.NoError(t, reporter.Render(&buf))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "Solc version: 0.8.24 · Currency: USD · Token: ETH\n"))
	require.Contains(t, out, "enterRaffle")
	assert.Contains(t, out, "200", "average of two calls")
	assert.Less(t, strings.Index(out, MethodDeployment), strings.Index(out, "enterRaffle"), "rows are sorted by method")
	assert.NotContains(t, out, "performUpkeep")
}

func TestRenderColors(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = prev })

	render := func(noColors bool) string {
		reporter := NewReporter(configs.GasReporter{Enabled: true, NoColors: noColors}, "0.8.24")
		reporter.Record(raffle.ContractNameRaffle, "enterRaffle", &types.Receipt{GasUsed: 100})

		var buf bytes.Buffer
		require.NoError(t, reporter.Render(&buf))
		return buf.String()
	}

	assert.NotContains(t, render(true), "\x1b[")
	colored := render(false)
	assert.Contains(t, colored, "\x1b[")
	assert.Contains(t, colored, "enterRaffle")
}

func TestWrite(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gas-report.txt")
		reporter := NewReporter(configs.GasReporter{OutputFile: path}, "0.8.24")
		reporter.Record(raffle.ContractNameRaffle, "enterRaffle", &types.Receipt{GasUsed: 100})

		require.NoError(t, reporter.Write())
		assert.NoFileExists(t, path)
	})

	t.Run("enabled", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gas-report.txt")
		reporter := NewReporter(configs.GasReporter{Enabled: true, OutputFile: path}, "0.8.24")
		reporter.Record(raffle.ContractNameVRFCoordinator, "fulfillRandomWords", &types.Receipt{GasUsed: 100})

		require.NoError(t, reporter.Write())
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "fulfillRandomWords")
	})

	t.Run("nil_reporter", func(t *testing.T) {
		var reporter *Reporter
		reporter.Record(raffle.ContractNameRaffle, "enterRaffle", &types.Receipt{GasUsed: 1})
		assert.NoError(t, reporter.Write())
	})
}
