package api

// PostVAARequest carries a signed VAA as 0x-prefixed hex.
type PostVAARequest struct {
	VAABytes string `json:"vaaBytes"`
}

// PostVAAResponse mirrors ErrorResponse so clients can decode either.
type PostVAAResponse struct {
	Success       bool   `json:"success"`
	MessageHash   string `json:"messageHash,omitempty"`
	AlreadyPosted bool   `json:"alreadyPosted,omitempty"`
	Error         string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type PostedVAAResult struct {
	MessageHash      string `json:"messageHash"`
	MessageID        string `json:"messageId"`
	GuardianSetIndex uint32 `json:"guardianSetIndex"`
	Timestamp        uint32 `json:"timestamp"`
	Nonce            uint32 `json:"nonce"`
	EmitterChain     uint16 `json:"emitterChain"`
	EmitterAddress   string `json:"emitterAddress"`
	Sequence         uint64 `json:"sequence"`
	ConsistencyLevel uint8  `json:"consistencyLevel"`
	Payload          string `json:"payload"`
}

type GovernanceResult struct {
	Success     bool   `json:"success"`
	MessageHash string `json:"messageHash"`
	Module      string `json:"module"`
	Action      string `json:"action"`
	TargetChain uint16 `json:"targetChain"`
}

type GuardianSetResult struct {
	Index          uint32   `json:"index"`
	Keys           []string `json:"keys"`
	CreationTime   uint32   `json:"creationTime"`
	ExpirationTime uint32   `json:"expirationTime"`
	Quorum         int      `json:"quorum"`
	Active         bool     `json:"active"`
}

type ClaimResult struct {
	EmitterChain   uint16 `json:"emitterChain"`
	EmitterAddress string `json:"emitterAddress"`
	Sequence       uint64 `json:"sequence"`
	IsComplete     bool   `json:"isComplete"`
}

type EmitterResult struct {
	Chain    uint16 `json:"chain"`
	Contract string `json:"contract"`
}

type ConfigResult struct {
	GuardianSetIndex uint32 `json:"guardianSetIndex"`
	GuardianSetTTL   uint32 `json:"guardianSetTtl"`
	MessageFee       uint64 `json:"messageFee"`
	FeeBalance       uint64 `json:"feeBalance"`
}

type PublishRequest struct {
	EmitterAuthority string `json:"emitterAuthority"`
	Payload          string `json:"payload"`
	Nonce            uint32 `json:"nonce"`
	ConsistencyLevel uint8  `json:"consistencyLevel"`
}

type PublishResult struct {
	ID          string `json:"id"`
	MessageHash string `json:"messageHash"`
	MessageID   string `json:"messageId"`
	Sequence    uint64 `json:"sequence"`
}

type DraftRequest struct {
	EmitterAuthority string `json:"emitterAuthority"`
	PayloadLength    uint32 `json:"payloadLength,omitempty"`
	Offset           uint32 `json:"offset,omitempty"`
	Data             string `json:"data,omitempty"`
	Nonce            uint32 `json:"nonce,omitempty"`
	ConsistencyLevel uint8  `json:"consistencyLevel,omitempty"`
}

type MessageResult struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	EmitterAuthority string `json:"emitterAuthority"`
	PayloadLength    uint32 `json:"payloadLength"`
	Payload          string `json:"payload"`
	Sequence         uint64 `json:"sequence"`
	Unreliable       bool   `json:"unreliable"`
}

type SequenceResult struct {
	Emitter string `json:"emitter"`
	Next    uint64 `json:"next"`
}
