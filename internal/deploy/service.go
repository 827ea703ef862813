// Package deploy runs the deployment scripts: the VRF mock on development chains, the raffle
// itself, and the front-end export.
package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/raffle-dev/raffle-tooling/internal/deployments"
	"github.com/raffle-dev/raffle-tooling/internal/gasreport"
	"github.com/raffle-dev/raffle-tooling/internal/logger"
	"github.com/raffle-dev/raffle-tooling/internal/output"
	"github.com/raffle-dev/raffle-tooling/internal/raffle"
)

type Tag string

const (
	TagAll      Tag = "all"
	TagMocks    Tag = "mocks"
	TagRaffle   Tag = "raffle"
	TagFrontend Tag = "frontend"
)

// Tags lists the tags accepted by Deploy.
var Tags = []Tag{TagAll, TagMocks, TagRaffle, TagFrontend}

type (
	// Backend deploys and binds contracts on one network.
	Backend interface {
		ChainID() uint64
		Deployer() common.Address
		DeployVRFCoordinatorMock(ctx context.Context, baseFee, gasPriceLink *big.Int) (raffle.VRFCoordinator, *types.Receipt, error)
		DeployRaffle(ctx context.Context, args raffle.ConstructorArgs) (raffle.Lottery, *types.Receipt, error)
		VRFCoordinatorAt(address common.Address) (raffle.VRFCoordinator, error)
		// ABI is the interface recorded for a deployed contract and exported to the front end.
		ABI(name raffle.ContractName) (json.RawMessage, error)
	}
	store interface {
		Save(name raffle.ContractName, deployment deployments.Deployment) error
		Get(name raffle.ContractName) (deployments.Deployment, error)
		SaveChainID(chainID uint64) error
	}
	frontendExporter interface {
		Export(chainID uint64, address common.Address, abi json.RawMessage) error
	}
	gasRecorder interface {
		Record(contract raffle.ContractName, method string, receipt *types.Receipt)
	}
	outputGenerator interface {
		Generate(model output.Model) error
	}

	// Service runs the deployment scripts selected by tags against one network.
	Service struct {
		cfg      configs.Config
		network  configs.NetworkName
		backend  Backend
		store    store
		exporter frontendExporter
		gas      gasRecorder
		output   outputGenerator
		logger   *slog.Logger
	}

	// Result is what a deployment run produced. Coordinator is nil on live networks.
	Result struct {
		ChainID        uint64
		Raffle         raffle.Lottery
		Coordinator    raffle.VRFCoordinator
		SubscriptionID uint64
	}
)

// NewService creates a deployment service. exporter, gas and output are optional.
func NewService(
	cfg configs.Config,
	network configs.NetworkName,
	backend Backend,
	store store,
	exporter frontendExporter,
	gas gasRecorder,
	output outputGenerator) *Service {
	return &Service{
		cfg:      cfg,
		network:  network,
		backend:  backend,
		store:    store,
		exporter: exporter,
		gas:      gas,
		output:   output,
		logger:   logger.Named("deploy_service").With("network", network),
	}
}

// ParseTags validates tag names; no names selects every script.
func ParseTags(names []string) (mapset.Set[Tag], error) {
	valid := mapset.NewSet(Tags...)
	selected := mapset.NewSet[Tag]()
	for _, name := range names {
		tag := Tag(name)
		if !valid.Contains(tag) {
			return nil, fmt.Errorf("unknown deploy tag '%s' (valid: %v)", name, Tags)
		}
		selected.Add(tag)
	}
	if selected.IsEmpty() {
		selected.Add(TagAll)
	}
	return selected, nil
}

// Deploy runs the scripts selected by tags in order: mocks, raffle, frontend.
func (s *Service) Deploy(ctx context.Context, tags mapset.Set[Tag]) (Result, error) {
	runs := func(tag Tag) bool { return tags.Contains(TagAll) || tags.Contains(tag) }
	result := Result{ChainID: s.backend.ChainID()}
	development := s.cfg.IsDevelopment(s.network)

	s.logger.With("chain_id", result.ChainID).With("tags", tags.ToSlice()).Info("starting deployment")

	if err := s.store.SaveChainID(result.ChainID); err != nil {
		return Result{}, err
	}

	if runs(TagMocks) && development {
		coordinator, err := s.deployMocks(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("mocks deployment failed: %w", err)
		}
		result.Coordinator = coordinator
	}

	if runs(TagRaffle) {
		if err := s.deployRaffle(ctx, development, &result); err != nil {
			return Result{}, fmt.Errorf("raffle deployment failed: %w", err)
		}
	}

	if runs(TagFrontend) && bool(s.cfg.FrontEnd.Update) {
		if err := s.exportFrontend(); err != nil {
			return Result{}, fmt.Errorf("front end export failed: %w", err)
		}
	}

	if s.output != nil && result.Raffle != nil {
		if err := s.generateOutput(result); err != nil {
			return Result{}, fmt.Errorf("failed to generate output file: %w", err)
		}
	}

	s.logger.Info("deployment completed successfully")
	return result, nil
}

func (s *Service) deployMocks(ctx context.Context) (raffle.VRFCoordinator, error) {
	s.logger.Info("Local network detected! Deploying mocks...")

	baseFee, err := s.cfg.Mocks.BaseFeeWei()
	if err != nil {
		return nil, err
	}
	gasPriceLink, err := s.cfg.Mocks.GasPriceLinkWei()
	if err != nil {
		return nil, err
	}

	coordinator, receipt, err := s.backend.DeployVRFCoordinatorMock(ctx, baseFee, gasPriceLink)
	if err != nil {
		return nil, err
	}
	s.record(raffle.ContractNameVRFCoordinator, gasreport.MethodDeployment, receipt)

	if err := s.save(raffle.ContractNameVRFCoordinator, coordinator.Address(), receipt, baseFee, gasPriceLink); err != nil {
		return nil, err
	}

	s.logger.With("address", coordinator.Address().Hex()).Info("Mocks Deployed!")
	return coordinator, nil
}

func (s *Service) deployRaffle(ctx context.Context, development bool, result *Result) error {
	params, err := s.cfg.RaffleFor(result.ChainID)
	if err != nil {
		return err
	}
	entranceFee, err := params.EntranceFeeWei()
	if err != nil {
		return err
	}
	gasLane, err := params.GasLaneHash()
	if err != nil {
		return err
	}

	args := raffle.ConstructorArgs{
		EntranceFee:      entranceFee,
		GasLane:          gasLane,
		CallbackGasLimit: params.CallbackGasLimit,
		Interval:         new(big.Int).SetUint64(params.Interval),
	}

	if development {
		coordinator, err := s.localCoordinator(result.Coordinator)
		if err != nil {
			return err
		}
		result.Coordinator = coordinator

		subID, err := s.createSubscription(ctx, coordinator)
		if err != nil {
			return err
		}
		args.VRFCoordinator = coordinator.Address()
		args.SubscriptionID = subID
	} else {
		if !common.IsHexAddress(params.VRFCoordinator) {
			return fmt.Errorf("no VRF coordinator configured for chain %d", result.ChainID)
		}
		args.VRFCoordinator = common.HexToAddress(params.VRFCoordinator)
		args.SubscriptionID = params.SubscriptionID
	}
	result.SubscriptionID = args.SubscriptionID

	s.logger.
		With("vrf_coordinator", args.VRFCoordinator.Hex()).
		With("subscription_id", args.SubscriptionID).
		With("entrance_fee", args.EntranceFee.String()).
		With("interval", args.Interval.String()).
		Info("deploying raffle")

	lottery, receipt, err := s.backend.DeployRaffle(ctx, args)
	if err != nil {
		return err
	}
	s.record(raffle.ContractNameRaffle, gasreport.MethodDeployment, receipt)
	result.Raffle = lottery

	if development {
		receipt, err := result.Coordinator.AddConsumer(ctx, args.SubscriptionID, lottery.Address())
		if err != nil {
			return fmt.Errorf("failed to add raffle as consumer: %w", err)
		}
		s.record(raffle.ContractNameVRFCoordinator, "addConsumer", receipt)
	}

	if err := s.save(raffle.ContractNameRaffle, lottery.Address(), receipt, args.Values()...); err != nil {
		return err
	}

	s.logger.With("address", lottery.Address().Hex()).Info("raffle deployed")
	return nil
}

// localCoordinator returns the mock deployed in this run or, when only the raffle script
// runs, the one recorded by an earlier run.
func (s *Service) localCoordinator(deployed raffle.VRFCoordinator) (raffle.VRFCoordinator, error) {
	if deployed != nil {
		return deployed, nil
	}

	record, err := s.store.Get(raffle.ContractNameVRFCoordinator)
	if err != nil {
		if errors.Is(err, deployments.ErrNotFound) {
			return nil, fmt.Errorf("%w: run the '%s' tag first", err, TagMocks)
		}
		return nil, err
	}
	return s.backend.VRFCoordinatorAt(record.Address)
}

func (s *Service) createSubscription(ctx context.Context, coordinator raffle.VRFCoordinator) (uint64, error) {
	subID, receipt, err := coordinator.CreateSubscription(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to create subscription: %w", err)
	}
	s.record(raffle.ContractNameVRFCoordinator, "createSubscription", receipt)

	amount, err := s.cfg.Mocks.SubFundAmountWei()
	if err != nil {
		return 0, err
	}
	receipt, err = coordinator.FundSubscription(ctx, subID, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to fund subscription %d: %w", subID, err)
	}
	s.record(raffle.ContractNameVRFCoordinator, "fundSubscription", receipt)

	s.logger.With("subscription_id", subID).With("amount", amount.String()).Info("subscription created and funded")
	return subID, nil
}

func (s *Service) exportFrontend() error {
	if s.exporter == nil {
		return errors.New("front end exporter is not configured")
	}

	record, err := s.store.Get(raffle.ContractNameRaffle)
	if err != nil {
		return err
	}
	chainID := s.backend.ChainID()
	return s.exporter.Export(chainID, record.Address, record.ABI)
}

func (s *Service) save(name raffle.ContractName, address common.Address, receipt *types.Receipt, args ...any) error {
	rawABI, err := s.backend.ABI(name)
	if err != nil {
		return err
	}

	deployment := deployments.Deployment{
		Address:    address,
		ABI:        rawABI,
		Args:       formatArgs(args),
		DeployedAt: time.Now().UTC(),
	}
	if receipt != nil {
		deployment.TransactionHash = receipt.TxHash
		deployment.GasUsed = receipt.GasUsed
		if receipt.BlockNumber != nil {
			deployment.BlockNumber = receipt.BlockNumber.Uint64()
		}
	}

	return s.store.Save(name, deployment)
}

func (s *Service) record(name raffle.ContractName, method string, receipt *types.Receipt) {
	if s.gas != nil {
		s.gas.Record(name, method, receipt)
	}
}

func (s *Service) generateOutput(result Result) error {
	params, err := s.cfg.RaffleFor(result.ChainID)
	if err != nil {
		return err
	}
	network, err := s.cfg.Network(s.network)
	if err != nil {
		return err
	}

	model := output.Model{
		Network: string(s.network),
		ChainID: result.ChainID,
		RPCURL:  network.URL,
		Raffle: output.RaffleConfig{
			EntranceFee:      params.EntranceFee,
			Interval:         params.Interval,
			SubscriptionID:   result.SubscriptionID,
			CallbackGasLimit: params.CallbackGasLimit,
			GasLane:          params.GasLane,
		},
		Contracts: make(map[string]output.ContractConfig),
	}

	for _, name := range []raffle.ContractName{raffle.ContractNameRaffle, raffle.ContractNameVRFCoordinator} {
		record, err := s.store.Get(name)
		if errors.Is(err, deployments.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		model.Contracts[string(name)] = output.ContractConfig{
			Address:         record.Address,
			TransactionHash: record.TransactionHash.Hex(),
			BlockNumber:     record.BlockNumber,
			ABI:             output.SingleQuotedString(record.ABI),
		}
	}

	return s.output.Generate(model)
}

func formatArgs(args []any) []string {
	formatted := make([]string, 0, len(args))
	for _, arg := range args {
		switch v := arg.(type) {
		case common.Address:
			formatted = append(formatted, v.Hex())
		case [32]byte:
			formatted = append(formatted, common.Hash(v).Hex())
		default:
			formatted = append(formatted, fmt.Sprint(v))
		}
	}
	return formatted
}
