package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"agent-funding-engine/internal/allocation"
	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/observability"
	"agent-funding-engine/internal/storage"
	"agent-funding-engine/internal/tradegate"
)

// routes builds the HTTP surface of the engine.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/onboard", s.handleOnboard)
	mux.HandleFunc("POST /v1/agents/{id}/authorize", s.handleAuthorize)
	mux.HandleFunc("POST /v1/agents/{id}/trades", s.handleRecordTrade)
	mux.HandleFunc("POST /v1/agents/{id}/fills", s.handleApplyFill)
	mux.HandleFunc("GET /v1/agents", s.handleListAgents)
	mux.HandleFunc("GET /v1/agents/{id}", s.handleGetAgent)
	mux.HandleFunc("GET /v1/agents/{id}/fills", s.handleFillHistory)
	mux.HandleFunc("GET /v1/pool", s.handlePool)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	return mux
}

// agentResponse is the outward shape of an agent. The bound account's
// credential never leaves the engine.
type agentResponse struct {
	ID                    string  `json:"id"`
	ExternalAddress       string  `json:"external_address"`
	AssignedAccount       string  `json:"assigned_account"`
	InitialCapital        float64 `json:"initial_capital"`
	CumulativeRealizedPnl float64 `json:"cumulative_realized_pnl"`
	AgentShareAccrued     float64 `json:"agent_share_accrued"`
	FirmShareAccrued      float64 `json:"firm_share_accrued"`
	TradeCount            int     `json:"trade_count"`
	Status                string  `json:"status"`
	CreatedAt             int64   `json:"created_at"`
}

func toAgentResponse(a *domain.Agent) *agentResponse {
	return &agentResponse{
		ID:                    a.ID,
		ExternalAddress:       a.ExternalAddress,
		AssignedAccount:       a.AssignedAccount,
		InitialCapital:        a.InitialCapital,
		CumulativeRealizedPnl: a.CumulativeRealizedPnl,
		AgentShareAccrued:     a.AgentShareAccrued,
		FirmShareAccrued:      a.FirmShareAccrued,
		TradeCount:            a.TradeCount,
		Status:                string(a.Status),
		CreatedAt:             a.CreatedAt,
	}
}

// onboardRequest carries the proof of address control. Message and signature
// are base64; the address is the base58 public key.
type onboardRequest struct {
	Address   string `json:"address"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

type onboardResponse struct {
	Outcome    string                   `json:"outcome"`
	Agent      *agentResponse           `json:"agent,omitempty"`
	Evaluation *domain.EvaluationResult `json:"evaluation,omitempty"`
}

// handleOnboard verifies the caller's signature, pulls the address's fill
// history from the exchange, and runs the onboarding pipeline.
func (s *Server) handleOnboard(w http.ResponseWriter, r *http.Request) {
	var req onboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	message, err := base64.StdEncoding.DecodeString(req.Message)
	if err != nil {
		writeError(w, http.StatusBadRequest, "message must be base64")
		return
	}
	sig, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, "signature must be base64")
		return
	}

	verified := s.verifier.Verify(req.Address, message, sig)

	// Fill history is only needed past the signature gate.
	var fills []domain.Fill
	if verified {
		start := time.Now()
		fills, err = s.exchange.FetchFills(r.Context(), req.Address)
		observability.RecordExchangeCall("fetch_fills", time.Since(start).Seconds(), err)
		if err != nil {
			s.logger.Printf("fill history fetch failed: address=%s err=%v", req.Address, err)
			writeError(w, http.StatusBadGateway, "exchange unavailable, retry later")
			return
		}
	}

	result, err := s.engine.Onboard(r.Context(), req.Address, verified, fills)
	if err != nil {
		s.logger.Printf("onboarding failed: address=%s err=%v", req.Address, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := onboardResponse{Outcome: string(result.Outcome), Evaluation: result.Evaluation}
	if result.Agent != nil {
		resp.Agent = toAgentResponse(result.Agent)
	}
	writeJSON(w, onboardStatus(result.Outcome), resp)
}

// onboardStatus maps an onboarding outcome to an HTTP status.
func onboardStatus(outcome allocation.Outcome) int {
	switch outcome {
	case allocation.OutcomeApproved, allocation.OutcomeApprovedBypass:
		return http.StatusCreated
	case allocation.OutcomeAlreadyRegistered:
		return http.StatusOK
	case allocation.OutcomeUnauthorized:
		return http.StatusUnauthorized
	case allocation.OutcomeRejected:
		return http.StatusForbidden
	case allocation.OutcomeNoCapacity:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type authorizeRequest struct {
	IntendedOrderCount int `json:"intended_order_count"`
}

type authorizeResponse struct {
	Decision string   `json:"decision"`
	Drawdown *float64 `json:"drawdown,omitempty"`
}

// handleAuthorize runs the trade gate for one intended submission.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")

	req := authorizeRequest{IntendedOrderCount: 1}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	verdict, err := s.gate.Authorize(r.Context(), agentID, req.IntendedOrderCount)
	if err != nil {
		s.logger.Printf("authorization failed: agent=%s err=%v", agentID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := authorizeResponse{Decision: string(verdict.Decision)}
	if verdict.DrawdownKnown {
		d := verdict.Drawdown
		resp.Drawdown = &d
	}

	status := http.StatusOK
	switch verdict.Decision {
	case tradegate.DecisionNotFound:
		status = http.StatusNotFound
	case tradegate.DecisionForbidden:
		status = http.StatusForbidden
	case tradegate.DecisionRateLimited:
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, resp)
}

// handleRecordTrade counts one submitted order against the agent's quota.
func (s *Server) handleRecordTrade(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")

	agent, err := s.gate.RecordSubmission(r.Context(), agentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "agent not found")
			return
		}
		s.logger.Printf("trade record failed: agent=%s err=%v", agentID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toAgentResponse(agent))
}

type applyFillRequest struct {
	FillID    string  `json:"fill_id"`
	ClosedPnl float64 `json:"closed_pnl"`
}

type applyFillResponse struct {
	Result     string         `json:"result"`
	AgentShare float64        `json:"agent_share"`
	FirmShare  float64        `json:"firm_share"`
	Agent      *agentResponse `json:"agent"`
}

// handleApplyFill applies one settled fill to the agent's ledger.
func (s *Server) handleApplyFill(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")

	var req applyFillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.FillID == "" {
		writeError(w, http.StatusBadRequest, "fill_id is required")
		return
	}

	app, err := s.ledger.ApplyFill(r.Context(), agentID, req.FillID, req.ClosedPnl)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "agent not found")
			return
		}
		s.logger.Printf("fill application failed: agent=%s fill=%s err=%v", agentID, req.FillID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, applyFillResponse{
		Result:     string(app.Result),
		AgentShare: app.AgentShare,
		FirmShare:  app.FirmShare,
		Agent:      toAgentResponse(app.Agent),
	})
}

// handleListAgents returns agents, optionally filtered by ?status=.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	var status *domain.AgentStatus
	if v := r.URL.Query().Get("status"); v != "" {
		st := domain.AgentStatus(v)
		if st != domain.AgentStatusActive && st != domain.AgentStatusRevoked {
			writeError(w, http.StatusBadRequest, "status must be ACTIVE or REVOKED")
			return
		}
		status = &st
	}

	agents, err := s.registry.ListAgents(r.Context(), status)
	if err != nil {
		s.logger.Printf("agent list failed: err=%v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := make([]*agentResponse, len(agents))
	for i, a := range agents {
		resp[i] = toAgentResponse(a)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetAgent returns one agent by ID.
func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.registry.GetAgent(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "agent not found")
			return
		}
		s.logger.Printf("agent read failed: err=%v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toAgentResponse(agent))
}

type appliedFillResponse struct {
	FillID     string  `json:"fill_id"`
	ClosedPnl  float64 `json:"closed_pnl"`
	AgentShare float64 `json:"agent_share"`
	FirmShare  float64 `json:"firm_share"`
	AppliedAt  int64   `json:"applied_at"`
}

// handleFillHistory returns the fills applied for an agent.
func (s *Server) handleFillHistory(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")

	if _, err := s.registry.GetAgent(r.Context(), agentID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "agent not found")
			return
		}
		s.logger.Printf("agent read failed: err=%v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	fills, err := s.ledger.History(r.Context(), agentID)
	if err != nil {
		s.logger.Printf("fill history read failed: agent=%s err=%v", agentID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := make([]*appliedFillResponse, len(fills))
	for i, f := range fills {
		resp[i] = &appliedFillResponse{
			FillID:     f.FillID,
			ClosedPnl:  f.ClosedPnl,
			AgentShare: f.AgentShare,
			FirmShare:  f.FirmShare,
			AppliedAt:  f.AppliedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type poolResponse struct {
	Total    int `json:"total"`
	Free     int `json:"free"`
	Assigned int `json:"assigned"`
}

// handlePool returns pool occupancy.
func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	util, err := s.pool.Utilization(r.Context())
	if err != nil {
		s.logger.Printf("pool read failed: err=%v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, poolResponse{
		Total:    util.Total,
		Free:     util.Free,
		Assigned: util.Assigned,
	})
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, StatusResponse{
		Status: "running",
		Uptime: time.Since(started).String(),
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
