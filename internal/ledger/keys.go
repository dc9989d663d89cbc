package ledger

import (
	"encoding/binary"
)

var (
	guardianSetPrefix       = []byte("GuardianSet/")
	currentGuardianSetKey   = []byte("GuardianSet/current")
	configKey               = []byte("Bridge/config")
	postedVAAPrefix         = []byte("PostedVAA/")
	signatureSetPrefix      = []byte("SignatureSet/")
	claimPrefix             = []byte("Claim/")
	sequencePrefix          = []byte("Sequence/")
	messagePrefix           = []byte("Message/")
	registeredEmitterPrefix = []byte("RegisteredEmitter/")
	feeCollectorKey         = []byte("FeeCollector/balance")
	feeRecipientPrefix      = []byte("FeeCollector/paid/")
)

func key(prefix []byte, parts ...[]byte) []byte {
	n := len(prefix)
	for _, p := range parts {
		n += len(p)
	}
	k := make([]byte, 0, n)
	k = append(k, prefix...)
	for _, p := range parts {
		k = append(k, p...)
	}
	return k
}

func u16(v uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, v)
}

func u32(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}

func u64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func GuardianSetKey(index uint32) []byte {
	return key(guardianSetPrefix, u32(index))
}

// CurrentGuardianSetKey holds the index of the set new VAAs must be signed by.
func CurrentGuardianSetKey() []byte {
	return key(currentGuardianSetKey)
}

func ConfigKey() []byte {
	return key(configKey)
}

func PostedVAAKey(messageHash [32]byte) []byte {
	return key(postedVAAPrefix, messageHash[:])
}

func SignatureSetKey(messageHash [32]byte, guardianSetIndex uint32) []byte {
	return key(signatureSetPrefix, messageHash[:], u32(guardianSetIndex))
}

// ClaimKey is derived from the emitter address, emitter chain and sequence of a VAA.
func ClaimKey(emitter [32]byte, chain uint16, sequence uint64) []byte {
	return key(claimPrefix, emitter[:], u16(chain), u64(sequence))
}

func SequenceKey(emitter [32]byte) []byte {
	return key(sequencePrefix, emitter[:])
}

func MessageKey(id [16]byte) []byte {
	return key(messagePrefix, id[:])
}

func RegisteredEmitterKey(chain uint16) []byte {
	return key(registeredEmitterPrefix, u16(chain))
}

// LegacyRegisteredEmitterKey is the (chain, contract) keyed registration record
// kept alongside the chain keyed one.
func LegacyRegisteredEmitterKey(chain uint16, contract [32]byte) []byte {
	return key(registeredEmitterPrefix, u16(chain), contract[:])
}

func FeeCollectorKey() []byte {
	return key(feeCollectorKey)
}

// FeeRecipientKey holds the total amount transferred out to recipient.
func FeeRecipientKey(recipient [32]byte) []byte {
	return key(feeRecipientPrefix, recipient[:])
}
