package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/wormhole-demo/corebridge/internal/corebridge"
	"github.com/wormhole-demo/corebridge/internal/guardian"
)

// Genesis is the initial state of a bridge.
//
//	guardianSet:
//	  index: 0
//	  keys: ["0xbeFA429d57cD18b7F8A4d91A2da9AB4AF05d0FBe"]
//	guardianSetTtl: 86400
//	messageFee: 0
type Genesis struct {
	GuardianSet struct {
		Index uint32   `yaml:"index"`
		Keys  []string `yaml:"keys"`
	} `yaml:"guardianSet"`
	GuardianSetTTL uint32 `yaml:"guardianSetTtl"`
	MessageFee     uint64 `yaml:"messageFee"`
}

// ParseGenesis decodes a genesis document, rejecting unknown fields.
func ParseGenesis(data []byte) (*Genesis, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var g Genesis
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	return &g, nil
}

func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis file: %w", err)
	}
	return ParseGenesis(data)
}

// InitParams converts the genesis document into bridge initialization parameters.
func (g *Genesis) InitParams() (corebridge.InitParams, error) {
	keys := make([]common.Address, len(g.GuardianSet.Keys))
	for i, k := range g.GuardianSet.Keys {
		if !common.IsHexAddress(k) {
			return corebridge.InitParams{}, fmt.Errorf("guardian key %d: invalid address %q", i, k)
		}
		keys[i] = common.HexToAddress(k)
	}

	set := guardian.Set{Index: g.GuardianSet.Index, Keys: keys}
	if err := set.Validate(); err != nil {
		return corebridge.InitParams{}, err
	}

	return corebridge.InitParams{
		GuardianSet: set,
		Config: corebridge.Config{
			GuardianSetTTL: g.GuardianSetTTL,
			MessageFee:     g.MessageFee,
		},
	}, nil
}
