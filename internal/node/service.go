// Package node runs a local JSON-RPC development node (anvil) in docker for the localhost
// network.
package node

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/raffle-dev/raffle-tooling/internal/chain"
	"github.com/raffle-dev/raffle-tooling/internal/infra/docker"
	"github.com/raffle-dev/raffle-tooling/internal/logger"
)

const rpcPort = "8545/tcp"

type (
	containerManager interface {
		EnsureImage(ctx context.Context, image string) error
		ContainerRunning(ctx context.Context, name string) (bool, error)
		StartDetached(ctx context.Context, opts docker.DetachedOptions) (string, error)
		Remove(ctx context.Context, name string) error
	}

	// ReadinessFunc blocks until the node answers on the network's RPC url.
	ReadinessFunc func(ctx context.Context, network configs.Network) error

	Service struct {
		docker  containerManager
		cfg     configs.Node
		chainID uint64
		ready   ReadinessFunc
		logger  *slog.Logger
	}
)

func NewService(docker containerManager, cfg configs.Node, chainID uint64) *Service {
	return &Service{
		docker:  docker,
		cfg:     cfg,
		chainID: chainID,
		ready:   dialReady,
		logger:  logger.Named("node").With("container", cfg.ContainerName),
	}
}

// WithReadiness replaces the RPC readiness check.
func (s *Service) WithReadiness(ready ReadinessFunc) *Service {
	s.ready = ready
	return s
}

// URL is the RPC endpoint the node is published on.
func (s *Service) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d/", s.cfg.Port)
}

// Start runs the node unless it is already running, then waits for its RPC.
func (s *Service) Start(ctx context.Context) error {
	running, err := s.docker.ContainerRunning(ctx, s.cfg.ContainerName)
	if err != nil {
		return err
	}

	if running {
		s.logger.Info("node already running")
	} else {
		// A stopped container with the same name blocks creation.
		if err := s.docker.Remove(ctx, s.cfg.ContainerName); err != nil {
			return err
		}
		if err := s.docker.EnsureImage(ctx, s.cfg.Image); err != nil {
			return err
		}

		_, err := s.docker.StartDetached(ctx, docker.DetachedOptions{
			Name:  s.cfg.ContainerName,
			Image: s.cfg.Image,
			Cmd:   []string{fmt.Sprintf("anvil --host 0.0.0.0 --port 8545 --chain-id %d", s.chainID)},
			Ports: map[string]int{rpcPort: s.cfg.Port},
		})
		if err != nil {
			return fmt.Errorf("failed to start node: %w", err)
		}
	}

	network := configs.Network{URL: s.URL(), ChainID: s.chainID, BlockConfirmations: 1}
	if err := s.ready(ctx, network); err != nil {
		return fmt.Errorf("node did not become ready: %w", err)
	}

	s.logger.With("url", s.URL()).With("chain_id", s.chainID).Info("node is ready")
	return nil
}

// Stop removes the node container.
func (s *Service) Stop(ctx context.Context) error {
	if err := s.docker.Remove(ctx, s.cfg.ContainerName); err != nil {
		return err
	}
	s.logger.Info("node stopped")
	return nil
}

func dialReady(ctx context.Context, network configs.Network) error {
	client, err := chain.Dial(ctx, network)
	if err != nil {
		return err
	}
	client.Close()
	return nil
}
