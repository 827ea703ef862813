package node

import (
	"context"
	"errors"
	"testing"

	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/raffle-dev/raffle-tooling/internal/infra/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocker struct {
	running  bool
	pulled   []string
	started  []docker.DetachedOptions
	removed  []string
	startErr error
}

func (f *fakeDocker) EnsureImage(_ context.Context, image string) error {
	f.pulled = append(f.pulled, image)
	return nil
}

func (f *fakeDocker) ContainerRunning(context.Context, string) (bool, error) {
	return f.running, nil
}

func (f *fakeDocker) StartDetached(_ context.Context, opts docker.DetachedOptions) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, opts)
	f.running = true
	return "container-id", nil
}

func (f *fakeDocker) Remove(_ context.Context, name string) error {
	f.removed = append(f.removed, name)
	f.running = false
	return nil
}

var nodeConfig = configs.Node{Image: "ghcr.io/foundry-rs/foundry:latest", ContainerName: "raffle-localnode", Port: 18545}

func TestStartRunsAnvil(t *testing.T) {
	fake := &fakeDocker{}
	var checked configs.Network
	service := NewService(fake, nodeConfig, configs.LocalChainID).WithReadiness(func(_ context.Context, network configs.Network) error {
		checked = network
		return nil
	})

	require.NoError(t, service.Start(context.Background()))

	require.Len(t, fake.started, 1)
	started := fake.started[0]
	assert.Equal(t, "raffle-localnode", started.Name)
	assert.Equal(t, nodeConfig.Image, started.Image)
	assert.Equal(t, []string{"anvil --host 0.0.0.0 --port 8545 --chain-id 31337"}, started.Cmd)
	assert.Equal(t, map[string]int{"8545/tcp": 18545}, started.Ports)
	assert.Equal(t, []string{nodeConfig.Image}, fake.pulled)
	assert.Equal(t, []string{"raffle-localnode"}, fake.removed, "stale container is cleared first")

	assert.Equal(t, "http://127.0.0.1:18545/", checked.URL)
	assert.Equal(t, configs.LocalChainID, checked.ChainID)
}

func TestStartReusesRunningNode(t *testing.T) {
	fake := &fakeDocker{running: true}
	service := NewService(fake, nodeConfig, configs.LocalChainID).WithReadiness(func(context.Context, configs.Network) error {
		return nil
	})

	require.NoError(t, service.Start(context.Background()))
	assert.Empty(t, fake.started)
	assert.Empty(t, fake.pulled)
}

func TestStartFailures(t *testing.T) {
	t.Run("container fails to start", func(t *testing.T) {
		fake := &fakeDocker{startErr: errors.New("port is already allocated")}
		err := NewService(fake, nodeConfig, configs.LocalChainID).Start(context.Background())
		assert.ErrorContains(t, err, "port is already allocated")
	})

	t.Run("rpc never answers", func(t *testing.T) {
		fake := &fakeDocker{}
		service := NewService(fake, nodeConfig, configs.LocalChainID).WithReadiness(func(context.Context, configs.Network) error {
			return context.DeadlineExceeded
		})
		err := service.Start(context.Background())
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestStop(t *testing.T) {
	fake := &fakeDocker{running: true}
	require.NoError(t, NewService(fake, nodeConfig, configs.LocalChainID).Stop(context.Background()))
	assert.Equal(t, []string{"raffle-localnode"}, fake.removed)
	assert.False(t, fake.running)
}
