package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/raffle-dev/raffle-tooling/configs"
)

// Signer signs transactions for one account on one chain.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

func NewSigner(privateKey string, chainID *big.Int) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: new(big.Int).Set(chainID),
	}, nil
}

func (s *Signer) Address() common.Address {
	return s.address
}

func (s *Signer) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	auth.Context = ctx
	return auth, nil
}

// NamedSigner resolves a named account (deployer, player) to a signer using the network's
// account list.
func NamedSigner(cfg configs.Config, network configs.Network, name configs.AccountName) (*Signer, error) {
	index, err := cfg.AccountIndex(name)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, key := range network.Accounts {
		if strings.TrimSpace(key) != "" {
			keys = append(keys, key)
		}
	}

	if len(keys) == 0 {
		return nil, errors.New("network has no accounts configured")
	}
	if index >= len(keys) {
		return nil, fmt.Errorf("named account '%s' uses index %d but the network has %d accounts", name, index, len(keys))
	}

	return NewSigner(keys[index], new(big.Int).SetUint64(network.ChainID))
}
