package deployments

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/raffle-dev/raffle-tooling/internal/infra/filesystem"
	fsjson "github.com/raffle-dev/raffle-tooling/internal/infra/filesystem/json"
	"github.com/raffle-dev/raffle-tooling/internal/raffle"
)

var ErrNotFound = errors.New("deployment not found")

const chainIDFile = ".chainId"

// Deployment is the record kept for a deployed contract.
type Deployment struct {
	Address         common.Address  `json:"address"`
	ABI             json.RawMessage `json:"abi"`
	TransactionHash common.Hash     `json:"transactionHash"`
	BlockNumber     uint64          `json:"blockNumber"`
	GasUsed         uint64          `json:"gasUsed"`
	Args            []string        `json:"args"`
	DeployedAt      time.Time       `json:"deployedAt"`
}

// Store keeps deployment records of one network. Records of the in-process network live in
// memory only; the others are persisted under <root>/<network>/<Contract>.json.
type Store struct {
	dir    string
	reader filesystem.Reader
	writer filesystem.Writer

	mu      sync.RWMutex
	records map[raffle.ContractName]Deployment
	chainID uint64
}

// NewStore opens the file-backed store of a network.
func NewStore(root string, network configs.NetworkName) *Store {
	return &Store{
		dir:     filepath.Join(root, string(network)),
		reader:  fsjson.NewReader(),
		writer:  fsjson.NewWriter(),
		records: make(map[raffle.ContractName]Deployment),
	}
}

// NewMemoryStore creates a store that never touches the filesystem.
func NewMemoryStore() *Store {
	return &Store{records: make(map[raffle.ContractName]Deployment)}
}

// Dir returns the directory records are written to, empty for memory stores.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Save(name raffle.ContractName, deployment Deployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dir != "" {
		if err := s.writer.WriteJSON(s.path(name), deployment); err != nil {
			return fmt.Errorf("failed to save %s deployment: %w", name, err)
		}
	}
	s.records[name] = deployment
	return nil
}

// Get returns the record of a contract, ErrNotFound when it was never deployed on this network.
func (s *Store) Get(name raffle.ContractName) (Deployment, error) {
	s.mu.RLock()
	deployment, ok := s.records[name]
	s.mu.RUnlock()
	if ok {
		return deployment, nil
	}
	if s.dir == "" {
		return Deployment{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	found, err := s.reader.ReadJSONIfExists(s.path(name), &deployment)
	if err != nil {
		return Deployment{}, fmt.Errorf("failed to read %s deployment: %w", name, err)
	}
	if !found {
		return Deployment{}, fmt.Errorf("%w: %s in %s", ErrNotFound, name, s.dir)
	}

	s.mu.Lock()
	s.records[name] = deployment
	s.mu.Unlock()

	return deployment, nil
}

// SaveChainID records the chain the network's deployments belong to.
func (s *Store) SaveChainID(chainID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dir != "" {
		value := []byte(strconv.FormatUint(chainID, 10))
		if err := s.writer.WriteBytes(filepath.Join(s.dir, chainIDFile), value); err != nil {
			return fmt.Errorf("failed to save chain id: %w", err)
		}
	}
	s.chainID = chainID
	return nil
}

// ChainID returns the recorded chain id.
func (s *Store) ChainID() (uint64, error) {
	s.mu.RLock()
	chainID := s.chainID
	s.mu.RUnlock()
	if chainID != 0 {
		return chainID, nil
	}
	if s.dir == "" {
		return 0, fmt.Errorf("%w: chain id", ErrNotFound)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, chainIDFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: chain id in %s", ErrNotFound, s.dir)
		}
		return 0, fmt.Errorf("failed to read chain id: %w", err)
	}

	chainID, err = strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain id file: %w", err)
	}
	return chainID, nil
}

func (s *Store) path(name raffle.ContractName) string {
	return filepath.Join(s.dir, string(name)+".json")
}
