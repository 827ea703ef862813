// Package frontend keeps the web front end's contract constants in sync with deployments.
package frontend

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/raffle-dev/raffle-tooling/internal/infra/filesystem"
	fsjson "github.com/raffle-dev/raffle-tooling/internal/infra/filesystem/json"
	"github.com/raffle-dev/raffle-tooling/internal/logger"
)

// Addresses maps a chain id to every raffle address deployed on it.
type Addresses map[string][]string

// MarshalJSON writes integer keys in ascending numeric order ahead of any other keys, the
// order in which the front end's JavaScript tooling serialises the same object.
func (a Addresses) MarshalJSON() ([]byte, error) {
	keys := slices.SortedFunc(maps.Keys(a), compareKeys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		list, err := json.Marshal(a[key])
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(list)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

func compareKeys(a, b string) int {
	ai, aIndex := arrayIndex(a)
	bi, bIndex := arrayIndex(b)
	switch {
	case aIndex && bIndex:
		return cmp.Compare(ai, bi)
	case aIndex:
		return -1
	case bIndex:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}

// arrayIndex reports whether key is a canonical unsigned integer below 2^32-1.
func arrayIndex(key string) (uint64, bool) {
	n, err := strconv.ParseUint(key, 10, 32)
	if err != nil || n == math.MaxUint32 || strconv.FormatUint(n, 10) != key {
		return 0, false
	}
	return n, true
}

type Exporter struct {
	addressesFile string
	abiFile       string
	reader        filesystem.Reader
	writer        filesystem.Writer
	logger        *slog.Logger
}

func NewExporter(cfg configs.FrontEnd) *Exporter {
	return &Exporter{
		addressesFile: cfg.AddressesFile,
		abiFile:       cfg.ABIFile,
		reader:        fsjson.NewReader(),
		writer:        fsjson.NewWriter(),
		logger:        logger.Named("frontend_exporter"),
	}
}

// Export writes the raffle ABI and records its address for the chain.
func (e *Exporter) Export(chainID uint64, address common.Address, abi json.RawMessage) error {
	e.logger.Info("Updating front end...")

	if err := e.UpdateContractAddresses(chainID, address); err != nil {
		return err
	}
	if err := e.UpdateABI(abi); err != nil {
		return err
	}

	e.logger.Info("Front end written!")
	return nil
}

// UpdateContractAddresses appends address under the chain id unless it is already listed.
// A missing file starts an empty map; a malformed one is an error and is left untouched.
func (e *Exporter) UpdateContractAddresses(chainID uint64, address common.Address) error {
	addresses := make(Addresses)
	if _, err := e.reader.ReadJSONIfExists(e.addressesFile, &addresses); err != nil {
		return fmt.Errorf("failed to read contract addresses: %w", err)
	}
	if addresses == nil {
		addresses = make(Addresses)
	}

	key := strconv.FormatUint(chainID, 10)
	known := slices.ContainsFunc(addresses[key], func(existing string) bool {
		return common.IsHexAddress(existing) && common.HexToAddress(existing) == address
	})
	if !known {
		addresses[key] = append(addresses[key], address.Hex())
	}

	content, err := json.MarshalIndent(addresses, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode contract addresses: %w", err)
	}
	if err := e.writer.WriteBytes(e.addressesFile, content); err != nil {
		return fmt.Errorf("failed to write contract addresses: %w", err)
	}

	e.logger.With("chain_id", key).With("address", address.Hex()).With("already_listed", known).Debug("contract addresses updated")
	return nil
}

// UpdateABI replaces the ABI file with the compact ABI array.
func (e *Exporter) UpdateABI(abi json.RawMessage) error {
	var entries []json.RawMessage
	if err := json.Unmarshal(abi, &entries); err != nil {
		return fmt.Errorf("ABI is not a JSON array: %w", err)
	}

	compact, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode ABI: %w", err)
	}

	if err := e.writer.WriteBytes(e.abiFile, compact); err != nil {
		return fmt.Errorf("failed to write ABI: %w", err)
	}
	return nil
}
