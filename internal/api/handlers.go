package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"granel_dashboard/internal/filter"
	"granel_dashboard/internal/records"
)

// ErrorResponse is the error body shape shared by all endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

// parseDateParam reads a YYYY-MM-DD query parameter.
func parseDateParam(r *http.Request, key string) (*time.Time, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, true
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return nil, false
	}
	return &t, true
}

// Filter criteria arrive as query parameters. Presenting criteria updates
// the dashboard's current filters (the setter in the state contract); a
// bare GET returns the snapshot under whatever filters are current.

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	if len(r.URL.Query()) > 0 {
		start, okS := parseDateParam(r, "start")
		end, okE := parseDateParam(r, "end")
		if !okS || !okE {
			writeError(w, http.StatusBadRequest, "invalid_date", "Dates must be YYYY-MM-DD")
			return
		}
		s.transfers.SetFilters(filter.TransferCriteria{
			StartDate:    start,
			EndDate:      end,
			ClientSearch: r.URL.Query().Get("client"),
			OrderSearch:  r.URL.Query().Get("order"),
		})
	}
	writeJSON(w, http.StatusOK, s.transfers.Snapshot())
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	if len(r.URL.Query()) > 0 {
		start, okS := parseDateParam(r, "start")
		end, okE := parseDateParam(r, "end")
		if !okS || !okE {
			writeError(w, http.StatusBadRequest, "invalid_date", "Dates must be YYYY-MM-DD")
			return
		}
		s.incidents.SetFilters(filter.IncidentCriteria{
			StartDate:    start,
			EndDate:      end,
			ClientSearch: r.URL.Query().Get("client"),
			OrderSearch:  r.URL.Query().Get("order"),
			SourceFilter: r.URL.Query().Get("source"),
			TypeFilter:   r.URL.Query().Get("type"),
			StatusFilter: r.URL.Query().Get("status"),
		})
	}
	writeJSON(w, http.StatusOK, s.incidents.Snapshot())
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if len(r.URL.Query()) > 0 {
		start, okS := parseDateParam(r, "start")
		end, okE := parseDateParam(r, "end")
		if !okS || !okE {
			writeError(w, http.StatusBadRequest, "invalid_date", "Dates must be YYYY-MM-DD")
			return
		}
		s.whatsapp.SetFilters(filter.MessageCriteria{
			StartDate:  start,
			EndDate:    end,
			SearchTerm: r.URL.Query().Get("search"),
		})
	}
	writeJSON(w, http.StatusOK, s.whatsapp.Snapshot())
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")
	conv, ok := s.whatsapp.Conversation(phone)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "No conversation for that phone")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleTransferViewed(w http.ResponseWriter, r *http.Request) {
	var t records.TransferReceipt
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Expected a transfer record")
		return
	}
	nowViewed, err := s.transfers.ToggleViewed(t)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"viewed": nowViewed})
}

func (s *Server) handleIncidentViewed(w http.ResponseWriter, r *http.Request) {
	var inc records.Incident
	if err := json.NewDecoder(r.Body).Decode(&inc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Expected an incident record")
		return
	}
	nowViewed, err := s.incidents.ToggleViewed(inc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"viewed": nowViewed})
}

type statusRequest struct {
	Status string `json:"status"`
}

type statusResponse struct {
	Status string `json:"status"`
	// Written means the request to the remote endpoint completed; the
	// endpoint's opaque response cannot confirm the row actually changed.
	Written bool `json:"written"`
}

func (s *Server) handleIncidentStatus(w http.ResponseWriter, r *http.Request) {
	rowIndex, err := strconv.Atoi(chi.URLParam(r, "rowIndex"))
	if err != nil || rowIndex < 0 {
		writeError(w, http.StatusBadRequest, "invalid_row", "Row index must be a non-negative integer")
		return
	}

	var req statusRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // empty body means toggle
	}

	if req.Status != "" {
		ok := s.incidents.SetStatus(r.Context(), rowIndex, req.Status)
		writeJSON(w, http.StatusOK, statusResponse{Status: req.Status, Written: ok})
		return
	}

	next, ok := s.incidents.ToggleStatus(r.Context(), rowIndex)
	if next == "" {
		writeError(w, http.StatusNotFound, "not_found", "No incident at that row index")
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: next, Written: ok})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.transfers.Refresh(ctx)
	s.incidents.Refresh(ctx)
	s.whatsapp.Refresh(ctx)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transfers": s.transfers.Snapshot().Error,
		"incidents": s.incidents.Snapshot().Error,
		"messages":  s.whatsapp.Snapshot().Error,
	})
}
