// Package devnet is an in-process development chain hosting the raffle and the VRF mock.
//
// It stands in for the Hardhat network: accounts are pre-funded, every transaction mines its
// own block one second after the previous one, and time can be moved forward explicitly.
// Contract state changes only when a transaction succeeds; reverted transactions are not
// mined.
package devnet

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/raffle-dev/raffle-tooling/internal/logger"
)

const (
	defaultAccounts = 20
	blockTime       = 1
)

// DefaultBalance is the starting balance of every development account.
var DefaultBalance = new(big.Int).Mul(big.NewInt(10000), big.NewInt(1e18))

type (
	Option func(*Chain)

	// Chain holds world state: balances, nonces, blocks and the hosted contracts.
	Chain struct {
		mu sync.Mutex

		chainID     uint64
		accounts    []common.Address
		balances    map[common.Address]*big.Int
		history     map[uint64]map[common.Address]*big.Int
		nonces      map[common.Address]uint64
		blockNumber uint64
		blockHash   common.Hash
		timestamp   uint64
		timeOffset  uint64
		fulfillGas  uint64

		raffles      map[common.Address]*raffleContract
		coordinators map[common.Address]*coordinatorContract

		notifications []func()

		logger *slog.Logger
	}

	// blockContext describes the block a pending transaction executes in.
	blockContext struct {
		number    uint64
		timestamp uint64
		from      common.Address
		value     *big.Int
	}
)

// WithAccounts sets the number of funded accounts.
func WithAccounts(n int) Option {
	return func(c *Chain) {
		if n > 0 {
			c.accounts = make([]common.Address, n)
		}
	}
}

// WithGenesisTime sets the timestamp of block zero.
func WithGenesisTime(t time.Time) Option {
	return func(c *Chain) {
		c.timestamp = uint64(t.Unix())
	}
}

// WithFulfillGas sets the gas the VRF mock charges for when fulfilling a request.
func WithFulfillGas(gas uint64) Option {
	return func(c *Chain) {
		c.fulfillGas = gas
	}
}

// New creates a chain with funded accounts at block zero.
func New(chainID uint64, opts ...Option) *Chain {
	c := &Chain{
		chainID:      chainID,
		accounts:     make([]common.Address, defaultAccounts),
		balances:     make(map[common.Address]*big.Int),
		history:      make(map[uint64]map[common.Address]*big.Int),
		nonces:       make(map[common.Address]uint64),
		timestamp:    uint64(time.Now().Unix()),
		fulfillGas:   100000,
		raffles:      make(map[common.Address]*raffleContract),
		coordinators: make(map[common.Address]*coordinatorContract),
		logger:       logger.Named("devnet"),
	}
	for _, opt := range opts {
		opt(c)
	}

	for i := range c.accounts {
		c.accounts[i] = accountAddress(i)
		c.balances[c.accounts[i]] = new(big.Int).Set(DefaultBalance)
	}
	c.blockHash = blockHash(chainID, 0)
	c.snapshot()

	return c
}

// NewFromConfig creates the chain of an in-process network using the mock settings.
func NewFromConfig(cfg configs.Config, network configs.Network) *Chain {
	return New(network.ChainID, WithFulfillGas(cfg.Mocks.FulfillGasUsage))
}

func accountAddress(i int) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(fmt.Sprintf("devnet account %d", i)))[12:])
}

func blockHash(chainID, number uint64) common.Hash {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], chainID)
	binary.BigEndian.PutUint64(buf[8:], number)
	return crypto.Keccak256Hash([]byte("devnet block"), buf[:])
}

// ChainID returns the chain id.
func (c *Chain) ChainID() uint64 {
	return c.chainID
}

// Accounts returns the funded accounts in a fixed order.
func (c *Chain) Accounts() []common.Address {
	return append([]common.Address(nil), c.accounts...)
}

// Account returns the account at index.
func (c *Chain) Account(index int) (common.Address, error) {
	if index < 0 || index >= len(c.accounts) {
		return common.Address{}, fmt.Errorf("account index %d out of range [0, %d)", index, len(c.accounts))
	}
	return c.accounts[index], nil
}

// BalanceAt returns the balance of an address at the end of a block, or at the latest block
// when block is nil.
func (c *Chain) BalanceAt(ctx context.Context, address common.Address, block *big.Int) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if block == nil {
		return c.balanceOf(address), nil
	}
	if !block.IsUint64() || block.Uint64() > c.blockNumber {
		return nil, fmt.Errorf("block %s not found", block)
	}
	if balance, ok := c.history[block.Uint64()][address]; ok {
		return new(big.Int).Set(balance), nil
	}
	return new(big.Int), nil
}

// BlockNumber returns the latest block number.
func (c *Chain) BlockNumber() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blockNumber
}

// Timestamp returns the latest block timestamp.
func (c *Chain) Timestamp() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timestamp
}

// IncreaseTime moves the timestamp of the next block forward (evm_increaseTime).
func (c *Chain) IncreaseTime(seconds uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeOffset += seconds
}

// pendingTimestamp is the latest timestamp plus any IncreaseTime offset not yet mined.
// Callers must hold c.mu.
func (c *Chain) pendingTimestamp() uint64 {
	return c.timestamp + c.timeOffset
}

// Mine mines an empty block (evm_mine).
func (c *Chain) Mine() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commitBlock(c.nextBlock(common.Address{}, nil))
}

func (c *Chain) balanceOf(address common.Address) *big.Int {
	if balance, ok := c.balances[address]; ok {
		return new(big.Int).Set(balance)
	}
	return new(big.Int)
}

func (c *Chain) nextBlock(from common.Address, value *big.Int) blockContext {
	if value == nil {
		value = new(big.Int)
	}
	return blockContext{
		number:    c.blockNumber + 1,
		timestamp: c.timestamp + blockTime + c.timeOffset,
		from:      from,
		value:     value,
	}
}

func (c *Chain) commitBlock(block blockContext) {
	c.blockNumber = block.number
	c.timestamp = block.timestamp
	c.timeOffset = 0
	c.blockHash = blockHash(c.chainID, block.number)
	c.snapshot()
}

// snapshot records the balances as of the latest block.
func (c *Chain) snapshot() {
	balances := make(map[common.Address]*big.Int, len(c.balances))
	for address, balance := range c.balances {
		balances[address] = new(big.Int).Set(balance)
	}
	c.history[c.blockNumber] = balances
}

// transfer moves wei between accounts; callers check the sender's balance first.
func (c *Chain) transfer(from, to common.Address, amount *big.Int) {
	if amount.Sign() == 0 {
		return
	}
	c.balances[from] = new(big.Int).Sub(c.balanceOf(from), amount)
	c.balances[to] = new(big.Int).Add(c.balanceOf(to), amount)
}

// execution is the body of a transaction. It must check every revert condition before
// mutating state, and returns the logs to attach to the receipt.
type execution func(block blockContext) ([]*types.Log, error)

// send executes a transaction from an account in a freshly mined block. Notifications
// queued by the execution run once the block is committed and the chain is unlocked.
func (c *Chain) send(ctx context.Context, from common.Address, to *common.Address, value *big.Int, gas uint64, exec execution) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	receipt, notifications, err := c.mine(from, to, value, gas, exec)
	if err != nil {
		return nil, err
	}
	for _, notify := range notifications {
		notify()
	}
	return receipt, nil
}

func (c *Chain) mine(from common.Address, to *common.Address, value *big.Int, gas uint64, exec execution) (*types.Receipt, []func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.notifications = nil
	block := c.nextBlock(from, value)
	if c.balanceOf(from).Cmp(block.value) < 0 {
		return nil, nil, fmt.Errorf("sender %s doesn't have enough funds to send tx", from)
	}

	logs, err := exec(block)
	if err != nil {
		c.notifications = nil
		return nil, nil, err
	}

	nonce := c.nonces[from]
	c.nonces[from] = nonce + 1
	c.commitBlock(block)

	txHash := crypto.Keccak256Hash(from.Bytes(), binary.BigEndian.AppendUint64(nil, nonce), new(big.Int).SetUint64(c.chainID).Bytes())
	receipt := &types.Receipt{
		Type:              types.DynamicFeeTxType,
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: gas,
		GasUsed:           gas,
		EffectiveGasPrice: new(big.Int),
		TxHash:            txHash,
		BlockHash:         c.blockHash,
		BlockNumber:       new(big.Int).SetUint64(c.blockNumber),
		TransactionIndex:  0,
		Logs:              logs,
	}
	if to == nil {
		receipt.ContractAddress = crypto.CreateAddress(from, nonce)
	}
	for i, log := range logs {
		log.TxHash = txHash
		log.TxIndex = 0
		log.BlockHash = c.blockHash
		log.BlockNumber = c.blockNumber
		log.Index = uint(i)
	}

	c.logger.With("from", from.Hex(), "block", c.blockNumber, "gas_used", gas).Debug("transaction mined")

	notifications := c.notifications
	c.notifications = nil
	return receipt, notifications, nil
}

// notify queues fn to run after the current transaction is mined.
func (c *Chain) notify(fn func()) {
	c.notifications = append(c.notifications, fn)
}

// nextContractAddress returns the address the next deployment from an account will get.
func (c *Chain) nextContractAddress(from common.Address) common.Address {
	return crypto.CreateAddress(from, c.nonces[from])
}
