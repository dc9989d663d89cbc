package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/corebridge/internal/claim"
	"github.com/wormhole-demo/corebridge/internal/corebridge"
	"github.com/wormhole-demo/corebridge/internal/governance"
	"github.com/wormhole-demo/corebridge/internal/guardian"
	"github.com/wormhole-demo/corebridge/internal/message"
	"github.com/wormhole-demo/corebridge/internal/vaa"
)

const maxBodyBytes = 1 << 20

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

func decodeHex(field, s string) ([]byte, error) {
	if len(s) < 2 || s[:2] != "0x" {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, badRequest("%s: %v", field, err)
	}
	return b, nil
}

// parseAddress accepts up to 32 bytes of hex and left-pads them.
func parseAddress(field, s string) (vaaLib.Address, error) {
	var addr vaaLib.Address
	if len(s) >= 2 && s[:2] == "0x" {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := decodeHex(field, s)
	if err != nil {
		return addr, err
	}
	if len(b) > len(addr) {
		return addr, badRequest("%s: address longer than 32 bytes", field)
	}
	copy(addr[len(addr)-len(b):], b)
	return addr, nil
}

func parseUint(r *http.Request, name string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, bits)
	if err != nil {
		return 0, badRequest("%s: %v", name, err)
	}
	return v, nil
}

func parseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, badRequest("id: %v", err)
	}
	return id, nil
}

func hashParam(r *http.Request) common.Hash {
	return common.HexToHash(chi.URLParam(r, "hash"))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if _, err := s.bridge.Config(r.Context()); err != nil {
		JSON(w, r, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}
	JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) postVAA(w http.ResponseWriter, r *http.Request) {
	var req PostVAARequest
	if err := decode(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	raw, err := decodeHex("vaaBytes", req.VAABytes)
	if err != nil {
		Error(w, r, err)
		return
	}

	posted, err := s.bridge.VerifyAndPost(r.Context(), raw)
	if errors.Is(err, corebridge.ErrAlreadyPosted) {
		v, parseErr := vaa.Parse(raw)
		if parseErr != nil {
			Error(w, r, parseErr)
			return
		}
		JSON(w, r, http.StatusOK, PostVAAResponse{Success: true, AlreadyPosted: true, MessageHash: v.MessageHash().Hex()})
		return
	}
	if err != nil {
		JSON(w, r, StatusCode(err), PostVAAResponse{Success: false, Error: err.Error()})
		return
	}

	JSON(w, r, http.StatusCreated, PostVAAResponse{Success: true, MessageHash: posted.MessageHash.Hex()})
}

func postedResult(p *corebridge.PostedVAA) PostedVAAResult {
	return PostedVAAResult{
		MessageHash:      p.MessageHash.Hex(),
		MessageID:        p.Body.MessageID(),
		GuardianSetIndex: p.GuardianSetIndex,
		Timestamp:        p.Body.Timestamp,
		Nonce:            p.Body.Nonce,
		EmitterChain:     uint16(p.Body.EmitterChain),
		EmitterAddress:   p.Body.EmitterAddress.String(),
		Sequence:         p.Body.Sequence,
		ConsistencyLevel: p.Body.ConsistencyLevel,
		Payload:          hexutil.Encode(p.Body.Payload),
	}
}

func (s *Server) getPostedVAA(w http.ResponseWriter, r *http.Request) {
	posted, err := s.bridge.PostedVAA(r.Context(), hashParam(r))
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, postedResult(posted))
}

func (s *Server) closePostedVAA(w http.ResponseWriter, r *http.Request) {
	if err := s.bridge.ClosePostedVAA(r.Context(), hashParam(r)); err != nil {
		Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) applyGovernance(w http.ResponseWriter, r *http.Request) {
	applied, err := s.governance.Apply(r.Context(), hashParam(r))
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, GovernanceResult{
		Success:     true,
		MessageHash: applied.MessageHash.Hex(),
		Module:      applied.Decree.Module.String(),
		Action:      applied.Decree.ActionName(),
		TargetChain: uint16(applied.Decree.TargetChain),
	})
}

func (s *Server) guardianSetResult(set *guardian.Set) GuardianSetResult {
	keys := make([]string, len(set.Keys))
	for i, k := range set.Keys {
		keys[i] = k.Hex()
	}
	return GuardianSetResult{
		Index:          set.Index,
		Keys:           keys,
		CreationTime:   set.CreationTime,
		ExpirationTime: set.ExpirationTime,
		Quorum:         set.Quorum(),
		Active:         set.IsActive(s.bridge.Now()),
	}
}

func (s *Server) getCurrentGuardianSet(w http.ResponseWriter, r *http.Request) {
	set, err := s.bridge.Guardians().Current(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, s.guardianSetResult(set))
}

func (s *Server) getGuardianSet(w http.ResponseWriter, r *http.Request) {
	index, err := parseUint(r, "index", 32)
	if err != nil {
		Error(w, r, err)
		return
	}
	set, err := s.bridge.Guardians().Get(r.Context(), uint32(index))
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, s.guardianSetResult(set))
}

func claimKey(r *http.Request) (claim.Key, error) {
	chain, err := parseUint(r, "chain", 16)
	if err != nil {
		return claim.Key{}, err
	}
	emitter, err := parseAddress("emitter", chi.URLParam(r, "emitter"))
	if err != nil {
		return claim.Key{}, err
	}
	sequence, err := parseUint(r, "sequence", 64)
	if err != nil {
		return claim.Key{}, err
	}
	return claim.Key{EmitterChain: vaaLib.ChainID(chain), EmitterAddress: emitter, Sequence: sequence}, nil
}

func claimResult(c *claim.Claim) ClaimResult {
	return ClaimResult{
		EmitterChain:   uint16(c.Key.EmitterChain),
		EmitterAddress: c.Key.EmitterAddress.String(),
		Sequence:       c.Key.Sequence,
		IsComplete:     c.IsComplete,
	}
}

func (s *Server) getClaim(w http.ResponseWriter, r *http.Request) {
	key, err := claimKey(r)
	if err != nil {
		Error(w, r, err)
		return
	}
	c, err := s.claims.Get(r.Context(), key)
	if err != nil {
		Error(w, r, fmt.Errorf("claim %s: %w", key, err))
		return
	}
	JSON(w, r, http.StatusOK, claimResult(c))
}

func (s *Server) claimOnce(w http.ResponseWriter, r *http.Request) {
	key, err := claimKey(r)
	if err != nil {
		Error(w, r, err)
		return
	}
	c, err := s.claims.Claim(r.Context(), key)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusCreated, claimResult(c))
}

func (s *Server) getRegisteredEmitter(w http.ResponseWriter, r *http.Request) {
	chain, err := parseUint(r, "chain", 16)
	if err != nil {
		Error(w, r, err)
		return
	}
	e, err := governance.RegisteredEmitterOf(r.Context(), s.bridge.Store(), vaaLib.ChainID(chain))
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, EmitterResult{Chain: uint16(e.Chain), Contract: e.Contract.String()})
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg, err := s.bridge.Config(ctx)
	if err != nil {
		Error(w, r, err)
		return
	}
	index, err := s.bridge.Guardians().CurrentIndex(ctx)
	if err != nil {
		Error(w, r, err)
		return
	}
	balance, err := s.fees.Balance(ctx)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, ConfigResult{
		GuardianSetIndex: index,
		GuardianSetTTL:   cfg.GuardianSetTTL,
		MessageFee:       cfg.MessageFee,
		FeeBalance:       balance,
	})
}

func publishResult(p *message.Posted) PublishResult {
	return PublishResult{
		ID:          p.ID.String(),
		MessageHash: p.MessageHash.Hex(),
		MessageID:   p.Body.MessageID(),
		Sequence:    p.Body.Sequence,
	}
}

func (s *Server) publish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := decode(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	authority, err := parseAddress("emitterAuthority", req.EmitterAuthority)
	if err != nil {
		Error(w, r, err)
		return
	}
	payload, err := decodeHex("payload", req.Payload)
	if err != nil {
		Error(w, r, err)
		return
	}

	posted, err := s.publisher.Publish(r.Context(), authority, payload, req.Nonce, req.ConsistencyLevel)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusCreated, publishResult(posted))
}

func (s *Server) publishUnreliable(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		Error(w, r, err)
		return
	}
	var req PublishRequest
	if err = decode(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	authority, err := parseAddress("emitterAuthority", req.EmitterAuthority)
	if err != nil {
		Error(w, r, err)
		return
	}
	payload, err := decodeHex("payload", req.Payload)
	if err != nil {
		Error(w, r, err)
		return
	}

	posted, err := s.publisher.PublishUnreliable(r.Context(), id, authority, payload, req.Nonce, req.ConsistencyLevel)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, publishResult(posted))
}

func messageResult(m *message.Message) MessageResult {
	return MessageResult{
		ID:               m.ID.String(),
		Status:           m.Status.String(),
		EmitterAuthority: m.EmitterAuthority.String(),
		PayloadLength:    m.PayloadLength,
		Payload:          hexutil.Encode(m.Payload),
		Sequence:         m.Sequence,
		Unreliable:       m.Unreliable,
	}
}

// draftRequest decodes the body shared by the draft routes.
func draftRequest(w http.ResponseWriter, r *http.Request) (*DraftRequest, vaaLib.Address, error) {
	var req DraftRequest
	if err := decode(w, r, &req); err != nil {
		return nil, vaaLib.Address{}, err
	}
	authority, err := parseAddress("emitterAuthority", req.EmitterAuthority)
	if err != nil {
		return nil, vaaLib.Address{}, err
	}
	return &req, authority, nil
}

func (s *Server) initDraft(w http.ResponseWriter, r *http.Request) {
	req, authority, err := draftRequest(w, r)
	if err != nil {
		Error(w, r, err)
		return
	}
	msg, err := s.publisher.Init(r.Context(), authority, req.PayloadLength)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusCreated, messageResult(msg))
}

func (s *Server) getMessage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		Error(w, r, err)
		return
	}
	msg, err := s.publisher.Get(r.Context(), id)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, messageResult(msg))
}

func (s *Server) writeDraft(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		Error(w, r, err)
		return
	}
	req, authority, err := draftRequest(w, r)
	if err != nil {
		Error(w, r, err)
		return
	}
	data, err := decodeHex("data", req.Data)
	if err != nil {
		Error(w, r, err)
		return
	}
	msg, err := s.publisher.Write(r.Context(), id, authority, req.Offset, data)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, messageResult(msg))
}

func (s *Server) finalizeDraft(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		Error(w, r, err)
		return
	}
	_, authority, err := draftRequest(w, r)
	if err != nil {
		Error(w, r, err)
		return
	}
	msg, err := s.publisher.Finalize(r.Context(), id, authority)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, messageResult(msg))
}

func (s *Server) postDraft(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		Error(w, r, err)
		return
	}
	req, authority, err := draftRequest(w, r)
	if err != nil {
		Error(w, r, err)
		return
	}
	posted, err := s.publisher.Post(r.Context(), id, authority, req.Nonce, req.ConsistencyLevel)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, publishResult(posted))
}

func (s *Server) closeMessage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		Error(w, r, err)
		return
	}
	_, authority, err := draftRequest(w, r)
	if err != nil {
		Error(w, r, err)
		return
	}
	if err = s.publisher.Close(r.Context(), id, authority); err != nil {
		Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getSequence(w http.ResponseWriter, r *http.Request) {
	emitter, err := parseAddress("emitter", chi.URLParam(r, "emitter"))
	if err != nil {
		Error(w, r, err)
		return
	}
	next, err := s.publisher.Sequence(r.Context(), emitter)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, SequenceResult{Emitter: emitter.String(), Next: next})
}
