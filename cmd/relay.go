package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wormhole-demo/corebridge/internal"
	"github.com/wormhole-demo/corebridge/internal/clients"
	"github.com/wormhole-demo/corebridge/internal/submitter"
)

// relayCmd represents the command to relay VAAs to a remote bridge node
var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay Wormhole VAAs from the spy to a core bridge node",
	Long: `Listens for signed VAAs on the Wormhole spy and posts them to the core bridge
at --bridge-url through its HTTP API.

With --apply-governance every posted VAA is also offered to the governance
endpoint, so guardian set updates and fee changes take effect as they arrive.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		printBanner()
	},
	RunE: runRelay,
}

func init() {
	rootCmd.AddCommand(relayCmd)

	relayCmd.Flags().String(
		"spy-rpc-host",
		"localhost:7073",
		"Wormhole spy service endpoint")

	relayCmd.Flags().IntSlice(
		"chain-ids",
		nil,
		"Emitter chain IDs to relay (empty = all)")

	relayCmd.Flags().String(
		"emitter-address",
		"",
		"Emitter address to relay (hex, empty = all)")

	relayCmd.Flags().Bool(
		"apply-governance",
		true,
		"Apply governance decrees after posting them")
}

type RelayConfig struct {
	SpyRPCHost      string   // Wormhole spy service endpoint
	BridgeURL       string   // Core bridge HTTP API
	ChainIDs        []uint16 // Emitter chains to relay
	EmitterAddress  string   // Emitter address to relay
	ApplyGovernance bool     // Offer posted VAAs to the governance endpoint
}

func runRelay(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)
	logger.Info("Starting core bridge relayer")

	// Get flags directly from command (viper bindings conflict across commands)
	chainIDs, filters, emitterAddress := spyFilters(cmd)
	spyHost, _ := cmd.Flags().GetString("spy-rpc-host")
	bridgeURL, _ := cmd.Flags().GetString("bridge-url")
	applyGovernance, _ := cmd.Flags().GetBool("apply-governance")

	config := RelayConfig{
		SpyRPCHost:      spyHost,
		BridgeURL:       bridgeURL,
		ChainIDs:        chainIDs,
		EmitterAddress:  emitterAddress,
		ApplyGovernance: applyGovernance,
	}

	logger.Info("Configuration",
		zap.String("spyRPC", config.SpyRPCHost),
		zap.String("bridgeURL", config.BridgeURL),
		zap.Any("chainIds", config.ChainIDs),
		zap.String("emitterFilter", config.EmitterAddress),
		zap.Bool("applyGovernance", config.ApplyGovernance))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bridgeClient := clients.NewBridgeAPIClient(logger, config.BridgeURL)
	if err := bridgeClient.CheckHealth(ctx); err != nil {
		return err
	}

	spyClient, err := clients.NewSpyClient(logger, config.SpyRPCHost, filters...)
	if err != nil {
		return fmt.Errorf("failed to create spy client: %w", err)
	}

	vaaProcessor := internal.NewDefaultVAAProcessor(logger,
		internal.VAAProcessorConfig{
			ChainIDs:       config.ChainIDs,
			EmitterAddress: config.EmitterAddress,
		},
		submitter.NewRemoteSubmitter(logger, bridgeClient, config.ApplyGovernance))

	relayer, err := internal.NewRelayer(logger, spyClient, vaaProcessor)
	if err != nil {
		return fmt.Errorf("failed to initialize relayer: %w", err)
	}
	defer relayer.Close()

	if err := relayer.Start(ctx); err != nil {
		return fmt.Errorf("relayer stopped with error: %w", err)
	}

	return nil
}
