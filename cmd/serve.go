package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	spyv1 "github.com/certusone/wormhole/node/pkg/proto/spy/v1"
	"github.com/spf13/cobra"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wormhole-demo/corebridge/internal"
	"github.com/wormhole-demo/corebridge/internal/api"
	"github.com/wormhole-demo/corebridge/internal/clients"
	"github.com/wormhole-demo/corebridge/internal/config"
	"github.com/wormhole-demo/corebridge/internal/corebridge"
	"github.com/wormhole-demo/corebridge/internal/governance"
	"github.com/wormhole-demo/corebridge/internal/ledger"
	"github.com/wormhole-demo/corebridge/internal/message"
	"github.com/wormhole-demo/corebridge/internal/observation"
	"github.com/wormhole-demo/corebridge/internal/submitter"
)

// serveCmd runs the bridge node
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a core bridge node",
	Long: `Opens the ledger, initializes it from the genesis file on first start and
serves the HTTP API.

With --spy-rpc-host the node also subscribes to the Wormhole spy and posts every
signed VAA it receives, executing governance decrees on the way.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		printBanner()
	},
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.Uint16("chain", uint16(vaaLib.ChainIDSolana), "Wormhole chain ID of this bridge")
	flags.String("api-addr", ":8080", "HTTP API listen address")
	flags.String("genesis-file", "", "YAML genesis file applied on first start")
	flags.Uint32("max-payload-length", 30*1024, "Maximum message payload length")
	flags.Duration("shutdown-timeout", v.GetDuration("shutdown_timeout"), "Graceful shutdown timeout")
	flags.String("store-backend", config.BackendMemory, "Ledger backend: memory, goleveldb or postgres")
	flags.String("store-dir", "data", "Ledger directory for the goleveldb backend")
	flags.String("store-name", "corebridge", "Ledger database name for the goleveldb backend")
	flags.String("store-postgres-url", "", "Postgres URL for the postgres backend")
	flags.String("nats-url", "", "NATS server receiving published messages (empty = disabled)")
	flags.String("nats-subject-prefix", observation.DefaultSubjectPrefix, "NATS subject prefix")
	flags.Uint16("governance-chain", uint16(vaaLib.GovernanceChain), "Chain of the governance emitter")
	flags.String("governance-emitter", vaaLib.GovernanceEmitter.String(), "Governance emitter address (hex)")
	bindFlags(flags)

	// Relaying, not part of the node configuration.
	flags.String("spy-rpc-host", "", "Wormhole spy service endpoint (empty = no relaying)")
	flags.IntSlice("chain-ids", nil, "Emitter chain IDs to relay (empty = all)")
	flags.String("emitter-address", "", "Emitter address to relay (hex, empty = all)")
}

// node is an assembled bridge.
type node struct {
	store      ledger.Store
	bridge     *corebridge.Bridge
	fees       *corebridge.LedgerFeeCollector
	governance *governance.Processor
	publisher  *message.Publisher
	closers    []func()
}

func (n *node) Close() {
	for i := len(n.closers) - 1; i >= 0; i-- {
		n.closers[i]()
	}
}

func newNode(ctx context.Context, logger *zap.Logger, cfg *config.Config) (*node, error) {
	store, err := cfg.OpenStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", cfg.Store.Backend, err)
	}
	n := &node{store: store}
	n.closers = append(n.closers, func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close ledger", zap.Error(err))
		}
	})

	n.bridge = corebridge.New(store, logger)
	if cfg.GenesisFile != "" {
		genesis, err := config.LoadGenesis(cfg.GenesisFile)
		if err != nil {
			n.Close()
			return nil, err
		}
		params, err := genesis.InitParams()
		if err != nil {
			n.Close()
			return nil, err
		}
		err = n.bridge.Initialize(ctx, params)
		switch {
		case errors.Is(err, corebridge.ErrAlreadyInitialized):
			logger.Info("Ledger already initialized, genesis file ignored")
		case err != nil:
			n.Close()
			return nil, err
		}
	}

	emitter, err := cfg.GovernanceEmitter()
	if err != nil {
		n.Close()
		return nil, err
	}
	chain := vaaLib.ChainID(cfg.Chain)
	n.fees = corebridge.NewLedgerFeeCollector(store)
	n.governance = governance.NewProcessor(n.bridge, n.fees, chain, logger,
		governance.WithGovernanceEmitter(vaaLib.ChainID(cfg.Governance.Chain), emitter))

	opts := []message.Option{message.WithMaxPayloadLength(cfg.MaxPayloadLength)}
	if cfg.NATS.URL != "" {
		pub, closeFn, err := observation.Dial(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			n.Close()
			return nil, err
		}
		n.closers = append(n.closers, closeFn)
		opts = append(opts, message.WithNotifier(pub))
	}
	n.publisher = message.NewPublisher(store, n.bridge, n.fees, chain, logger, opts...)

	return n, nil
}

func spyFilters(cmd *cobra.Command) ([]uint16, []*spyv1.FilterEntry, string) {
	chainIDsInt, _ := cmd.Flags().GetIntSlice("chain-ids")
	emitterAddress, _ := cmd.Flags().GetString("emitter-address")

	chainIDs := make([]uint16, len(chainIDsInt))
	for i, id := range chainIDsInt {
		chainIDs[i] = uint16(id)
	}

	var filters []*spyv1.FilterEntry
	if emitterAddress != "" {
		for _, id := range chainIDs {
			filters = append(filters, clients.EmitterFilter(id, emitterAddress))
		}
	}
	return chainIDs, filters, emitterAddress
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logger.Info("Configuration",
		zap.Uint16("chain", cfg.Chain),
		zap.String("apiAddr", cfg.APIAddr),
		zap.String("store", cfg.Store.Backend),
		zap.String("genesis", cfg.GenesisFile),
		zap.Bool("nats", cfg.NATS.URL != ""))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := newNode(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer n.Close()

	server := api.NewServer(logger, n.bridge, n.governance, n.publisher, n.fees)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(gctx, cfg.APIAddr, cfg.ShutdownTimeout)
	})

	if spyHost, _ := cmd.Flags().GetString("spy-rpc-host"); spyHost != "" {
		chainIDs, filters, emitterAddress := spyFilters(cmd)

		spyClient, err := clients.NewSpyClient(logger, spyHost, filters...)
		if err != nil {
			return fmt.Errorf("failed to create spy client: %w", err)
		}

		vaaProcessor := internal.NewDefaultVAAProcessor(logger,
			internal.VAAProcessorConfig{ChainIDs: chainIDs, EmitterAddress: emitterAddress},
			submitter.NewLocalSubmitter(logger, n.bridge, n.governance))

		relayer, err := internal.NewRelayer(logger, spyClient, vaaProcessor)
		if err != nil {
			return fmt.Errorf("failed to initialize relayer: %w", err)
		}
		g.Go(func() error {
			defer relayer.Close()
			return relayer.Start(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}
