package api

import (
	"errors"
	"net/http"

	"github.com/finsight/finsight/internal/company"
	"github.com/finsight/finsight/internal/finance"
)

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.companies.List(r.Context())
	if err != nil {
		s.logger.Error("listing companies", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "could not list companies", s.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"companies": companies,
		"count":     len(companies),
	}, s.logger)
}

type companyResponse struct {
	company.Company
	Financials *finance.Snapshot `json:"financials,omitempty"`
}

// handleGetCompany returns one company with its latest headline figures.
// A company without loaded statements still returns its catalog entry.
func (s *Server) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	ticker := r.PathValue("ticker")

	c, err := s.companies.Get(r.Context(), ticker)
	if errors.Is(err, company.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown_ticker", "no such NASDAQ-100 company", s.logger)
		return
	}
	if err != nil {
		s.logger.Error("getting company", "ticker", ticker, "error", err)
		writeError(w, http.StatusInternalServerError, "get_failed", "could not load company", s.logger)
		return
	}

	resp := companyResponse{Company: c}
	if s.snapshots != nil {
		snap, err := s.snapshots(r.Context(), c.Ticker)
		if err != nil && !errors.Is(err, finance.ErrNoFinancials) {
			s.logger.Warn("loading financial snapshot", "ticker", c.Ticker, "error", err)
		}
		resp.Financials = snap
	}

	writeJSON(w, http.StatusOK, resp, s.logger)
}
