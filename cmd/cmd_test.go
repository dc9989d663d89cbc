package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/corebridge/internal/guardiantest"
	"github.com/wormhole-demo/corebridge/internal/vaa"
)

func TestInspect(t *testing.T) {
	g := guardiantest.New(t, 0, 2)
	body := vaa.Body{EmitterChain: vaaLib.ChainIDEthereum, EmitterAddress: guardiantest.Emitter(1), Sequence: 3, Payload: []byte("x")}
	raw := g.SignBytes(t, body, g.All())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"inspect", hexutil.Encode(raw)})
	require.NoError(t, rootCmd.Execute())

	var report inspectReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Equal(t, body.MessageHash().Hex(), report.MessageHash)
	require.Equal(t, body.MessageID(), report.MessageID)
	require.Len(t, report.Signatures, 2)
	require.Equal(t, g.Addresses()[1].Hex(), report.Signatures[1].Signer)
	require.Nil(t, report.Verified)
}

func TestBindFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("store-postgres-url", "", "")
	flags.String("not-a-config-key", "", "")
	bindFlags(flags)

	require.NoError(t, flags.Parse([]string{"--store-postgres-url=postgres://x"}))
	require.Equal(t, "postgres://x", v.GetString("store.postgres_url"))
	require.False(t, v.IsSet("not_a_config_key"))
}
