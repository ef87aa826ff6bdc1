package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ChainSnap/internal/amount"
	"ChainSnap/internal/attest"
	"ChainSnap/internal/identity"
	"ChainSnap/internal/logger"
	"ChainSnap/internal/modules"
	"ChainSnap/internal/snapshot"
)

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleListModules handles GET /v1/modules.
func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	list, err := s.modules.List(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// handleGetModule handles GET /v1/modules/{id}.
func (s *Server) handleGetModule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid module id")
		return
	}

	module, err := s.modules.Get(r.Context(), id)
	if errors.Is(err, modules.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Module Not Found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, module)
}

// handleAuthorizedModule handles GET /v1/modules/authorized.
func (s *Server) handleAuthorizedModule(w http.ResponseWriter, r *http.Request) {
	id, err := s.modules.AuthorizedModule(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]uint64{"id": id})
}

// handleVerify handles POST /v1/verify.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	scheme, err := attest.ParseScheme(req.Server.Scheme)
	if err != nil {
		s.metrics.ObserveVerify(req.Server.Scheme, "malformed")
		writeJSON(w, http.StatusBadRequest, VerifyResponse{Error: err.Error()})
		return
	}

	valid, err := s.verifier.VerifyAttestation(req.attestation(scheme))
	if err != nil {
		var verr *attest.VerificationError
		if !errors.As(err, &verr) {
			s.internalError(w, r, err)
			return
		}

		s.metrics.ObserveVerify(string(scheme), "malformed")
		writeJSON(w, http.StatusBadRequest, VerifyResponse{
			Scheme:  scheme,
			Address: req.Server.Address,
			Error:   err.Error(),
		})
		return
	}

	outcome := "invalid"
	if valid {
		outcome = "valid"
	}
	s.metrics.ObserveVerify(string(scheme), outcome)

	writeJSON(w, http.StatusOK, VerifyResponse{
		Valid:   valid,
		Scheme:  scheme,
		Address: req.Server.Address,
	})
}

// handleBalance handles GET /v1/balances/{address}.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	id, err := identity.Parse(address)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	totals, ok := s.loadBalances(w, r)
	if !ok {
		return
	}

	total, found := totals[id]
	if !found {
		writeError(w, http.StatusNotFound, "Address Not Found")
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{
		Address: identity.Encode(id, s.opts.Report.Prefix),
		Total:   total,
	})
}

// handleStats handles GET /v1/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	totals, ok := s.loadBalances(w, r)
	if !ok {
		return
	}

	report, err := balanceReport(totals, s.opts.Report)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// loadBalances reads the totals snapshot, answering 503 when there is none yet.
func (s *Server) loadBalances(w http.ResponseWriter, r *http.Request) (map[identity.Identity]amount.Amount, bool) {
	totals, err := snapshot.LoadBalances(s.store)
	if err == nil {
		return totals, true
	}

	if snapshot.IsMissing(err) {
		writeError(w, http.StatusServiceUnavailable, "balances not aggregated yet")
		return nil, false
	}

	s.internalError(w, r, err)

	return nil, false
}

// internalError logs err and answers 500 with its message.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	logger.Warn("request failed",
		"path", r.URL.Path,
		"request_id", RequestID(r.Context()),
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, err.Error())
}
