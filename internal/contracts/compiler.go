package contracts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/moby/go-archive"
	"github.com/raffle-dev/raffle-tooling/internal/infra/docker"
	fsjson "github.com/raffle-dev/raffle-tooling/internal/infra/filesystem/json"
	"github.com/raffle-dev/raffle-tooling/internal/logger"
	"github.com/raffle-dev/raffle-tooling/internal/raffle"
)

const (
	solcImage      = "ethereum/solc"
	sourcesDir     = "/sources"
	chainlinkPath  = "node_modules/@chainlink"
	chainlinkRemap = "@chainlink/=" + chainlinkPath + "/"
)

type (
	containerRunner interface {
		EnsureImage(ctx context.Context, imageName string) error
		Run(ctx context.Context, opts docker.RunOptions) (string, error)
	}

	// Compiler compiles the Solidity sources with solc running in a container
	Compiler struct {
		rootDir      string
		contractsDir string
		outputDir    string
		version      string
		runner       containerRunner
		logger       *slog.Logger
	}

	combinedOutput struct {
		Contracts map[string]struct {
			ABI json.RawMessage `json:"abi"`
			Bin string          `json:"bin"`
		} `json:"contracts"`
		Version string `json:"version"`
	}
)

// NewCompiler creates a new contract compiler. contractsDir and outputDir are relative to rootDir.
func NewCompiler(runner containerRunner, rootDir, contractsDir, outputDir, version string) *Compiler {
	return &Compiler{
		rootDir:      rootDir,
		contractsDir: contractsDir,
		outputDir:    outputDir,
		version:      version,
		runner:       runner,
		logger:       logger.Named("contracts_compiler"),
	}
}

// Compile compiles every source under the contracts directory and persists the artifacts
// of the deployable contracts.
func (c *Compiler) Compile(ctx context.Context) error {
	c.logger.
		With("contracts_dir", c.contractsDir).
		With("solc_version", c.version).
		Info("starting contract compilation")

	sources, err := c.sources()
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no Solidity sources found in %s", filepath.Join(c.rootDir, c.contractsDir))
	}

	include := []string{c.contractsDir}
	if _, err := os.Stat(filepath.Join(c.rootDir, chainlinkPath)); err == nil {
		include = append(include, chainlinkPath)
	}

	tarball, err := archive.TarWithOptions(c.rootDir, &archive.TarOptions{IncludeFiles: include})
	if err != nil {
		return fmt.Errorf("failed to archive sources: %w", err)
	}
	defer tarball.Close()

	image := fmt.Sprintf("%s:%s", solcImage, c.version)
	if err := c.runner.EnsureImage(ctx, image); err != nil {
		return err
	}

	args := []string{
		chainlinkRemap,
		"--combined-json", "abi,bin",
		"--optimize",
		"--base-path", sourcesDir,
		"--allow-paths", sourcesDir,
	}
	for _, source := range sources {
		args = append(args, sourcesDir+"/"+filepath.ToSlash(source))
	}

	output, err := c.runner.Run(ctx, docker.RunOptions{
		Image:      image,
		Cmd:        args,
		WorkDir:    sourcesDir,
		CaptureOut: true,
		Archive:    tarball,
		ArchiveDir: sourcesDir,
	})
	if err != nil {
		return fmt.Errorf("solc failed: %w", err)
	}

	artifacts, err := parseCombinedJSON([]byte(output))
	if err != nil {
		return err
	}

	outputPath := filepath.Join(c.rootDir, c.outputDir, ArtifactsFileName)
	if err := fsjson.NewWriter().WriteJSON(outputPath, artifacts); err != nil {
		return fmt.Errorf("failed to write %s: %w", ArtifactsFileName, err)
	}

	c.logger.With("path", outputPath).With("contracts", len(artifacts)).Info("contracts compiled successfully")
	return nil
}

// sources lists the .sol files under the contracts directory relative to rootDir.
func (c *Compiler) sources() ([]string, error) {
	var sources []string
	err := filepath.WalkDir(filepath.Join(c.rootDir, c.contractsDir), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".sol" {
			return nil
		}
		rel, err := filepath.Rel(c.rootDir, path)
		if err != nil {
			return err
		}
		sources = append(sources, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return sources, nil
}

// parseCombinedJSON keeps the deployable contracts of solc's --combined-json output.
// Older compilers encode each ABI as a JSON string instead of an array.
func parseCombinedJSON(data []byte) (map[string]artifact, error) {
	var output combinedOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("failed to parse solc output: %w", err)
	}

	artifacts := make(map[string]artifact)
	for key, contract := range output.Contracts {
		name := key[strings.LastIndex(key, ":")+1:]
		if _, ok := Contracts[raffle.ContractName(name)]; !ok {
			continue
		}

		rawABI := contract.ABI
		if trimmed := bytes.TrimSpace(rawABI); len(trimmed) > 0 && trimmed[0] == '"' {
			var encoded string
			if err := json.Unmarshal(trimmed, &encoded); err != nil {
				return nil, fmt.Errorf("failed to decode ABI of %s: %w", name, err)
			}
			rawABI = json.RawMessage(encoded)
		}

		artifacts[name] = artifact{ABI: rawABI, Bytecode: ensureHexPrefix(contract.Bin)}
	}

	if _, err := parseContracts(artifacts); err != nil {
		return nil, err
	}
	return artifacts, nil
}
