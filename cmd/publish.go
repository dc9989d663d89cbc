package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/wormhole-demo/corebridge/internal/api"
	"github.com/wormhole-demo/corebridge/internal/clients"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a message through a core bridge node",
	RunE:  runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().String("emitter", "", "Emitter authority address (hex, required)")
	publishCmd.Flags().String("payload", "", "Payload as 0x-prefixed hex")
	publishCmd.Flags().String("text", "", "Payload as UTF-8 text")
	publishCmd.Flags().Uint32("nonce", 0, "Message nonce")
	publishCmd.Flags().Uint8("consistency-level", 1, "Requested consistency level")

	publishCmd.MarkFlagRequired("emitter")
	publishCmd.MarkFlagsMutuallyExclusive("payload", "text")
}

func runPublish(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)

	bridgeURL, _ := cmd.Flags().GetString("bridge-url")
	emitter, _ := cmd.Flags().GetString("emitter")
	payload, _ := cmd.Flags().GetString("payload")
	text, _ := cmd.Flags().GetString("text")
	nonce, _ := cmd.Flags().GetUint32("nonce")
	consistencyLevel, _ := cmd.Flags().GetUint8("consistency-level")

	if text != "" {
		payload = hexutil.Encode([]byte(text))
	}
	if payload == "" {
		return fmt.Errorf("--payload or --text is required")
	}

	res, err := clients.NewBridgeAPIClient(logger, bridgeURL).Publish(cmd.Context(), api.PublishRequest{
		EmitterAuthority: emitter,
		Payload:          payload,
		Nonce:            nonce,
		ConsistencyLevel: consistencyLevel,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
