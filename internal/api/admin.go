package api

import (
	"io"
	"net/http"
	"strconv"

	apperrors "cakeshop-notifier/internal/common/errors"
	"cakeshop-notifier/internal/models"
)

func readBody(w http.ResponseWriter, r *http.Request) (string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return "", apperrors.NewInvalidNotificationInputError("unreadable body")
	}
	return string(body), nil
}

func (s *Server) handleOrderAssigned(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	input, err := s.deps.OrderAssignment.ParseInput(body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.OrderAssignment.Execute(r.Context(), input))
}

func (s *Server) handleOrderUpdated(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	input, err := s.deps.OrderUpdate.ParseInput(body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.OrderUpdate.Execute(r.Context(), input))
}

func (s *Server) handleNewOrder(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	input, err := s.deps.NewOrder.ParseInput(body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.NewOrder.Execute(r.Context(), input))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"delivery": map[string]int{"online": s.deps.Registry.Delivery().ActiveCount()},
		"admin":    map[string]int{"online": s.deps.Registry.Admin().ActiveCount()},
		"push":     map[string]bool{"enabled": s.deps.Push.Enabled()},
	})
}

// handleRecent lists audit records, optionally for one actor.
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var actorID int64
	if v := q.Get("actorId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, apperrors.NewInvalidNotificationInputError("actorId must be a positive integer"))
			return
		}
		actorID = id
	}
	limit := 20
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			writeError(w, apperrors.NewInvalidNotificationInputError("limit must be between 1 and 200"))
			return
		}
		limit = n
	}

	records, err := s.deps.Audit.Recent(r.Context(), actorID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []models.DispatchRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}
