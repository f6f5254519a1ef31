package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lazypower/trustledger/internal/trust"
)

const defaultTreeDepth = 3

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string         `json:"user_id"`
		InviterID string         `json:"inviter_id"`
		Metadata  map[string]any `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" {
		writeMessage(w, http.StatusBadRequest, "user_id required")
		return
	}

	p, err := s.ledger.RegisterUser(req.UserID, req.InviterID, req.Metadata)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	p, ok := s.ledger.GetTrustProfile(userID)
	if !ok {
		writeError(w, &trust.Error{Code: trust.CodeNotFound, Message: "user " + strconv.Quote(userID) + " not found"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetScore(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	score, err := s.ledger.GetTrustScore(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":     userID,
		"trust_score": score,
	})
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		Amount             float64 `json:"amount"`
		Reason             string  `json:"reason"`
		GovernanceApproved bool    `json:"governance_approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}

	p, err := s.ledger.BurnTrust(userID, req.Amount, req.Reason, req.GovernanceApproved)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		Amount          float64 `json:"amount"`
		Reason          string  `json:"reason"`
		ValidationProof string  `json:"validation_proof"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}

	p, err := s.ledger.RecoverTrust(userID, req.Amount, req.Reason, req.ValidationProof)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	depth := defaultTreeDepth
	if d := r.URL.Query().Get("depth"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "depth must be an integer")
			return
		}
		depth = n
	}

	tree, err := s.ledger.GetInviteTree(userID, depth)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleInviteHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	history, err := s.ledger.GetInviteHistory(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"count":   len(history),
		"invites": history,
	})
}

func (s *Server) handleUserEvents(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeMessage(w, http.StatusServiceUnavailable, "audit log not configured")
		return
	}
	userID := chi.URLParam(r, "userID")

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.audit.ListByUser(userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"count":   len(entries),
		"events":  entries,
	})
}

func (s *Server) handleGetGovernance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.GovernanceParameters())
}

func (s *Server) handleUpdateGovernance(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req struct {
		Value              *float64 `json:"value"`
		GovernanceApproved bool     `json:"governance_approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Value == nil {
		writeMessage(w, http.StatusBadRequest, "value required")
		return
	}

	res, err := s.ledger.UpdateGovernanceParameter(name, *req.Value, req.GovernanceApproved)
	writeUpdateResult(w, res, err)
}

func (s *Server) handleProposeGovernance(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req struct {
		Value     *float64 `json:"value"`
		Signature string   `json:"signature"`
		Quorum    float64  `json:"quorum"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Value == nil {
		writeMessage(w, http.StatusBadRequest, "value required")
		return
	}

	res, err := s.ledger.ProposeGovernanceParameter(name, *req.Value,
		trust.VoteProof{Signature: req.Signature, Quorum: req.Quorum})
	writeUpdateResult(w, res, err)
}

func writeUpdateResult(w http.ResponseWriter, res trust.UpdateResult, err error) {
	status := http.StatusOK
	if err != nil {
		status = trust.CodeOf(err).HTTPStatus()
	}
	writeJSON(w, status, res)
}

func (s *Server) handleTrustMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.GenerateTrustMetrics())
}
