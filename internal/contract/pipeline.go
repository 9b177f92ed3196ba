package contract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	"camrent/internal/config"
	"camrent/internal/domain"
	"camrent/internal/models"

	"github.com/rs/zerolog"
)

// Pipeline runs create -> preview -> sign. Each step is gated on the previous
// one and none is retried automatically.
type Pipeline struct {
	gw        domain.Gateway
	endpoints config.EndpointsConfig
	blobs     *Registry
	store     domain.BookingSource
	logger    *zerolog.Logger
}

// NewPipeline wires the pipeline. store may be nil; when set it is refreshed
// after a successful signature.
func NewPipeline(gw domain.Gateway, endpoints config.EndpointsConfig, blobs *Registry, store domain.BookingSource, logger *zerolog.Logger) *Pipeline {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if blobs == nil {
		blobs = NewRegistry()
	}
	return &Pipeline{gw: gw, endpoints: endpoints, blobs: blobs, store: store, logger: logger}
}

func (p *Pipeline) Blobs() *Registry { return p.blobs }

// NewSession starts one preview/sign cycle, normally one per open dialog.
func (p *Pipeline) NewSession() *Session {
	return &Session{p: p}
}

// Session holds the contract reference and the preview blob of one dialog.
type Session struct {
	p *Pipeline

	mu       sync.Mutex
	contract *models.Contract
	preview  *Preview
	closed   bool
}

// SessionState is a read-only view of a session.
type SessionState struct {
	Contract   *models.Contract `json:"contract,omitempty"`
	PreviewURL string           `json:"preview_url,omitempty"`
	Filename   string           `json:"filename,omitempty"`
	Closed     bool             `json:"closed"`
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := SessionState{Closed: s.closed}
	if s.contract != nil {
		c := *s.contract
		st.Contract = &c
	}
	if s.preview != nil {
		st.PreviewURL = s.preview.URL()
		st.Filename = s.preview.Filename()
	}
	return st
}

// Create requests a new contract for ownerID. Any previous contract and its
// preview are dropped first. On failure no contract reference is kept.
func (s *Session) Create(ctx context.Context, cred domain.Credential, scope models.ContractScope, ownerID string) (*models.Contract, error) {
	const op = "contract.create"

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, domain.E(domain.KindDialogClosed, op, "dialog already closed")
	}
	s.dropLocked()
	s.mu.Unlock()

	var path string
	switch scope {
	case models.ScopeVerification:
		path = config.ExpandPath(s.p.endpoints.ContractVerification, ownerID)
	case models.ScopeBooking, "":
		scope = models.ScopeBooking
		path = config.ExpandPath(s.p.endpoints.ContractBooking, ownerID)
	default:
		return nil, domain.E(domain.KindContractCreateFailed, op, "unknown contract scope "+string(scope))
	}

	var resp struct {
		ID         json.RawMessage `json:"id"`
		ContractID json.RawMessage `json:"contractId"`
	}
	err := s.p.gw.DoJSON(domain.WithOp(ctx, op), cred, http.MethodPost, path, nil, nil, &resp)
	if err != nil {
		if domain.KindOf(err) == domain.KindUnauthenticated {
			return nil, err
		}
		return nil, &domain.Error{Kind: domain.KindContractCreateFailed, Op: op, Message: domain.MessageOf(err), Err: err}
	}

	id := rawID(resp.ID)
	if id == "" {
		id = rawID(resp.ContractID)
	}
	if id == "" {
		return nil, domain.E(domain.KindContractCreateFailed, op, "backend returned no contract id")
	}

	c := &models.Contract{ID: id, Scope: scope, OwnerID: ownerID, Stage: models.StageCreated}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, domain.E(domain.KindDialogClosed, op, "dialog closed before contract was created")
	}
	s.contract = c
	s.p.logger.Info().Str("contract_id", id).Str("scope", string(scope)).Str("owner_id", ownerID).Msg("contract created")
	out := *c
	return &out, nil
}

// Preview downloads the contract PDF and exposes it as a blob. A previous
// preview of this session is released when replaced.
func (s *Session) Preview(ctx context.Context, cred domain.Credential) (*Preview, error) {
	const op = "contract.preview"

	contractID, err := s.contractID(op, models.StageCreated, models.StagePreviewed)
	if err != nil {
		return nil, err
	}

	resp, err := s.p.gw.GetBinary(domain.WithOp(ctx, op), cred, config.ExpandPath(s.p.endpoints.ContractPreview, contractID))
	if err != nil {
		return nil, err
	}

	ctype := resp.ContentType
	if ctype == "" {
		ctype = "application/pdf"
	}
	name := FilenameFromDisposition(resp.ContentDisposition, contractID)
	preview := &Preview{blob: s.p.blobs.Allocate(resp.Data, name, ctype), reg: s.p.blobs}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.contract == nil || s.contract.ID != contractID || s.contract.Stage == models.StageSigned {
		// orphaned response: the dialog moved on while we were downloading
		preview.Release()
		return nil, domain.E(domain.KindDialogClosed, op, "preview no longer wanted")
	}
	if s.preview != nil {
		s.preview.Release()
	}
	s.preview = preview
	s.contract.Stage = models.StagePreviewed
	return preview, nil
}

// Sign submits the signature image for a previewed contract. On failure the
// preview stays valid so signing can be retried without repeating create and
// preview. A session closed while the request ran skips the store refresh.
func (s *Session) Sign(ctx context.Context, cred domain.Credential, dataURI string) error {
	const op = "contract.sign"

	payload, err := SignaturePayload(dataURI)
	if err != nil {
		return err
	}
	contractID, err := s.contractID(op, models.StagePreviewed)
	if err != nil {
		return err
	}

	body := map[string]string{"signatureBase64": payload}
	if err := s.p.gw.DoJSON(domain.WithOp(ctx, op), cred, http.MethodPost, config.ExpandPath(s.p.endpoints.ContractSign, contractID), nil, body, nil); err != nil {
		return err
	}

	s.mu.Lock()
	if s.preview != nil {
		s.preview.Release()
		s.preview = nil
	}
	if s.contract != nil && s.contract.ID == contractID {
		s.contract.Stage = models.StageSigned
	}
	closed := s.closed
	s.mu.Unlock()

	s.p.logger.Info().Str("contract_id", contractID).Msg("contract signed")

	if s.p.store != nil && !closed {
		if err := s.p.store.Refresh(ctx, cred); err != nil {
			s.p.logger.Warn().Err(err).Msg("refresh after signing failed")
		}
	}
	return nil
}

// Close releases everything the session owns. Responses still in flight are
// discarded when they arrive.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.dropLocked()
}

func (s *Session) dropLocked() {
	if s.preview != nil {
		s.preview.Release()
		s.preview = nil
	}
	s.contract = nil
}

// contractID returns the current contract id when its stage is one of allowed.
func (s *Session) contractID(op string, allowed ...models.ContractStage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", domain.E(domain.KindDialogClosed, op, "dialog already closed")
	}
	if s.contract == nil {
		return "", domain.E(domain.KindNotFound, op, "no contract has been created")
	}
	if !slices.Contains(allowed, s.contract.Stage) {
		return "", domain.E(domain.KindInvalidTransition, op,
			fmt.Sprintf("contract %s is %s", s.contract.ID, s.contract.Stage))
	}
	return s.contract.ID, nil
}

func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	return string(raw)
}
