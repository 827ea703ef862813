package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
)

type (
	RunOptions struct {
		Image      string
		Cmd        []string
		Env        []string
		WorkDir    string
		User       string
		StreamLogs bool
		CaptureOut bool
		// Archive is a tar stream extracted at ArchiveDir before the container starts.
		Archive    io.Reader
		ArchiveDir string
	}

	DetachedOptions struct {
		Name  string
		Image string
		Cmd   []string
		// Ports maps container ports ("8545/tcp") to host ports on 127.0.0.1.
		Ports map[string]int
	}
)

// Run runs a Docker container and waits for it to complete. The container is removed once
// it exits.
func (c *Client) Run(ctx context.Context, opts RunOptions) (output string, err error) {
	config := &container.Config{
		Image:      opts.Image,
		Cmd:        opts.Cmd,
		Env:        opts.Env,
		WorkingDir: opts.WorkDir,
		User:       opts.User,
	}

	resp, err := c.cli.ContainerCreate(ctx, config, &container.HostConfig{}, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	containerID := resp.ID
	defer func() {
		_ = c.cli.ContainerRemove(context.WithoutCancel(ctx), containerID, container.RemoveOptions{Force: true})
	}()

	if opts.Archive != nil {
		if err := c.cli.CopyToContainer(ctx, containerID, opts.ArchiveDir, opts.Archive, container.CopyToContainerOptions{}); err != nil {
			return "", fmt.Errorf("failed to copy files into container: %w", err)
		}
	}

	attachResp, err := c.cli.ContainerAttach(ctx, containerID, container.AttachOptions{
		Stream: true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to attach to container: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	copied := make(chan struct{})
	go func() {
		defer close(copied)
		if opts.StreamLogs {
			_, _ = stdcopy.StdCopy(io.MultiWriter(os.Stdout, &stdout), io.MultiWriter(os.Stderr, &stderr), attachResp.Reader)
		} else {
			_, _ = stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		}
	}()

	if err := c.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	statusCh, errCh := c.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return "", fmt.Errorf("error waiting for container: %w", err)
		}
	case status := <-statusCh:
		<-copied
		if status.StatusCode != 0 {
			if errorOutput := stderr.String() + stdout.String(); errorOutput != "" {
				return "", fmt.Errorf("container exited with code %d: %s", status.StatusCode, errorOutput)
			}
			return "", fmt.Errorf("container exited with code %d", status.StatusCode)
		}
	}

	if opts.CaptureOut {
		return stdout.String(), nil
	}

	return "", nil
}

// StartDetached creates and starts a long running container publishing the given ports.
func (c *Client) StartDetached(ctx context.Context, opts DetachedOptions) (string, error) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for containerPort, hostPort := range opts.Ports {
		port, err := nat.NewPort(nat.SplitProtoPort(containerPort))
		if err != nil {
			return "", fmt.Errorf("invalid container port %s: %w", containerPort, err)
		}
		exposed[port] = struct{}{}
		bindings[port] = []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: fmt.Sprintf("%d", hostPort)}}
	}

	config := &container.Config{
		Image:        opts.Image,
		Cmd:          opts.Cmd,
		ExposedPorts: exposed,
	}
	hostConfig := &container.HostConfig{
		PortBindings:  bindings,
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyDisabled},
	}

	resp, err := c.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, opts.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create container %s: %w", opts.Name, err)
	}

	if err := c.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = c.cli.ContainerRemove(context.WithoutCancel(ctx), resp.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("failed to start container %s: %w", opts.Name, err)
	}

	c.logger.With("name", opts.Name).With("id", resp.ID).Info("container started")
	return resp.ID, nil
}
