package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/wormhole-demo/corebridge/internal/clients"
	"github.com/wormhole-demo/corebridge/internal/governance"
	"github.com/wormhole-demo/corebridge/internal/guardian"
	"github.com/wormhole-demo/corebridge/internal/quorum"
	"github.com/wormhole-demo/corebridge/internal/vaa"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [vaa-hex]",
	Short: "Decode a VAA and optionally check its signatures against a bridge",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().String("file", "", "Read the VAA from a file (raw bytes or hex)")
	inspectCmd.Flags().Bool("verify", false, "Verify the signatures against the guardian set served by --bridge-url")
}

type signatureReport struct {
	GuardianIndex uint8  `json:"guardianIndex"`
	Signer        string `json:"signer,omitempty"`
	Valid         *bool  `json:"valid,omitempty"`
}

type inspectReport struct {
	Version          uint8             `json:"version"`
	GuardianSetIndex uint32            `json:"guardianSetIndex"`
	MessageHash      string            `json:"messageHash"`
	Digest           string            `json:"digest"`
	MessageID        string            `json:"messageId"`
	Timestamp        uint32            `json:"timestamp"`
	Nonce            uint32            `json:"nonce"`
	ConsistencyLevel uint8             `json:"consistencyLevel"`
	Payload          string            `json:"payload"`
	Decree           map[string]string `json:"decree,omitempty"`
	Signatures       []signatureReport `json:"signatures"`
	Quorum           *int              `json:"quorum,omitempty"`
	Verified         *bool             `json:"verified,omitempty"`
	VerifyError      string            `json:"verifyError,omitempty"`
}

func readVAAInput(cmd *cobra.Command, args []string) ([]byte, error) {
	file, _ := cmd.Flags().GetString("file")
	var input []byte
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read VAA file: %w", err)
		}
		if len(data) > 0 && data[0] == vaa.SupportedVersion {
			return data, nil
		}
		input = data
	case len(args) == 1:
		input = []byte(args[0])
	default:
		return nil, fmt.Errorf("a VAA argument or --file is required")
	}

	s := strings.TrimSpace(string(input))
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode VAA hex: %w", err)
	}
	return raw, nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	raw, err := readVAAInput(cmd, args)
	if err != nil {
		return err
	}
	v, err := vaa.Parse(raw)
	if err != nil {
		return err
	}

	report := inspectReport{
		Version:          v.Version,
		GuardianSetIndex: v.GuardianSetIndex,
		MessageHash:      v.MessageHash().Hex(),
		Digest:           v.Digest().Hex(),
		MessageID:        v.MessageID(),
		Timestamp:        v.Timestamp,
		Nonce:            v.Nonce,
		ConsistencyLevel: v.ConsistencyLevel,
		Payload:          hexutil.Encode(v.Payload),
	}
	if d, err := governance.ParseDecree(v.Payload); err == nil {
		report.Decree = map[string]string{
			"module":      d.Module.String(),
			"action":      d.ActionName(),
			"targetChain": fmt.Sprint(uint16(d.TargetChain)),
		}
	}
	for _, sig := range v.Signatures {
		r := signatureReport{GuardianIndex: sig.GuardianIndex}
		if signer, err := quorum.RecoverSigner(v.Digest(), sig.Signature); err == nil {
			r.Signer = signer.Hex()
		}
		report.Signatures = append(report.Signatures, r)
	}

	if verify, _ := cmd.Flags().GetBool("verify"); verify {
		if err := verifyReport(cmd, v, &report); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func verifyReport(cmd *cobra.Command, v *vaa.VAA, report *inspectReport) error {
	bridgeURL, _ := cmd.Flags().GetString("bridge-url")
	logger := configureLogging(cmd, nil)
	res, err := clients.NewBridgeAPIClient(logger, bridgeURL).GuardianSet(cmd.Context(), v.GuardianSetIndex)
	if err != nil {
		return err
	}

	set := &guardian.Set{Index: res.Index, CreationTime: res.CreationTime, ExpirationTime: res.ExpirationTime}
	for _, k := range res.Keys {
		set.Keys = append(set.Keys, common.HexToAddress(k))
	}

	verified, err := quorum.Check(v.Digest(), set, v.Signatures)
	if err == nil {
		err = quorum.Require(set, verified, uint32(time.Now().Unix()))
	}
	if verified != nil {
		for i, sig := range v.Signatures {
			valid := verified[sig.GuardianIndex]
			report.Signatures[i].Valid = &valid
		}
	}

	q := set.Quorum()
	ok := err == nil
	report.Quorum = &q
	report.Verified = &ok
	if err != nil {
		report.VerifyError = err.Error()
	}
	return nil
}
