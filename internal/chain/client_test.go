package chain

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/raffle-dev/raffle-tooling/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ethService answers the eth_ methods WaitConfirmed uses. Each eth_blockNumber call advances
// the head by one until it reaches maxHead.
type ethService struct {
	mu       sync.Mutex
	head     uint64
	maxHead  uint64
	calls    int
	receipts map[common.Hash]*types.Receipt
}

func (s *ethService) BlockNumber() hexutil.Uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	current := s.head
	if s.head < s.maxHead {
		s.head++
	}
	return hexutil.Uint64(current)
}

func (s *ethService) GetTransactionReceipt(hash common.Hash) *types.Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receipts[hash]
}

func (s *ethService) blockNumberCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestClient(t *testing.T, service *ethService, confirmations uint64) *Client {
	t.Helper()

	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", service))
	rpcClient := rpc.DialInProc(server)
	t.Cleanup(func() {
		rpcClient.Close()
		server.Stop()
	})

	prev := confirmationPollInterval
	confirmationPollInterval = 5 * time.Millisecond
	t.Cleanup(func() { confirmationPollInterval = prev })

	return &Client{
		Client:        ethclient.NewClient(rpcClient),
		chainID:       big.NewInt(31337),
		confirmations: confirmations,
		logger:        logger.Named("chain_client"),
	}
}

func minedTx(service *ethService, block int64) *types.Transaction {
	tx := types.NewTx(&types.LegacyTx{Nonce: uint64(block), GasPrice: big.NewInt(1), Gas: 21000})
	service.receipts[tx.Hash()] = &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(block),
		Logs:        []*types.Log{},
	}
	return tx
}

func TestWaitConfirmed(t *testing.T) {
	t.Run("waits for the configured confirmations", func(t *testing.T) {
		service := &ethService{head: 10, maxHead: 20, receipts: map[common.Hash]*types.Receipt{}}
		client := newTestClient(t, service, 3)
		tx := minedTx(service, 10)

		receipt, err := client.WaitConfirmed(context.Background(), tx)
		require.NoError(t, err)
		assert.Equal(t, tx.Hash(), receipt.TxHash)
		assert.EqualValues(t, 10, receipt.BlockNumber.Uint64())
		assert.Equal(t, 3, service.blockNumberCalls(), "heads 10, 11 and 12 are read before block 12 confirms it")
	})

	t.Run("single confirmation returns once mined", func(t *testing.T) {
		service := &ethService{head: 7, maxHead: 7, receipts: map[common.Hash]*types.Receipt{}}
		client := newTestClient(t, service, 1)
		tx := minedTx(service, 7)

		receipt, err := client.WaitConfirmed(context.Background(), tx)
		require.NoError(t, err)
		assert.Equal(t, tx.Hash(), receipt.TxHash)
		assert.Equal(t, 1, service.blockNumberCalls())
	})

	t.Run("stops when the context ends", func(t *testing.T) {
		service := &ethService{head: 10, maxHead: 10, receipts: map[common.Hash]*types.Receipt{}}
		client := newTestClient(t, service, 6)
		tx := minedTx(service, 10)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := client.WaitConfirmed(ctx, tx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
