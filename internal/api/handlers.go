package api

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"camrent/internal/dialog"
	"camrent/internal/export"
	"camrent/internal/filter"
	"camrent/internal/models"
	"camrent/internal/status"
)

type openDialogRequest struct {
	Kind      string `json:"kind" validate:"required,oneof=status assign contract"`
	BookingID string `json:"booking_id" validate:"required"`
}

type transitionRequest struct {
	Action string `json:"action" validate:"required,oneof=confirm cancel set"`
	Target string `json:"target" validate:"required_if=Action set"`
}

type assignRequest struct {
	StaffID  string `json:"staff_id"`
	TaskType string `json:"task_type" validate:"omitempty,oneof=delivery verification"`
}

type contractStepRequest struct {
	Scope     string `json:"scope" validate:"omitempty,oneof=booking verification"`
	OwnerID   string `json:"owner_id"`
	Signature string `json:"signature"`
}

type transitionResponse struct {
	BookingID     string `json:"booking_id"`
	From          string `json:"from"`
	To            string `json:"to"`
	ExpectedLabel string `json:"expected_label,omitempty"`
}

func criteriaFromQuery(r *http.Request) filter.Criteria {
	q := r.URL.Query()
	c := filter.Criteria{
		Query: q.Get("q"),
		Sort:  filter.SortOrder(q.Get("sort")),
	}
	if tab, err := strconv.Atoi(q.Get("tab")); err == nil {
		c.Tab = tab
	}
	return c.Normalize()
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	c := criteriaFromQuery(r)
	bookings := s.deps.Console.ApplyFilters(c)
	resp := map[string]any{
		"bookings":   bookings,
		"count":      len(bookings),
		"tab":        c.Tab,
		"sort":       c.Sort,
		"tab_counts": s.deps.Console.TabCounts(c.Query),
	}
	if s.deps.Store != nil {
		resp["refreshed_at"] = s.deps.Store.RefreshedAt()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.Refresh(r.Context(), credential(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bookings":     len(s.deps.Store.Bookings()),
		"staff":        len(s.deps.Store.Staff()),
		"refreshed_at": s.deps.Store.RefreshedAt(),
	})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	bookings := s.deps.Console.ApplyFilters(criteriaFromQuery(r))

	var buf bytes.Buffer
	if err := export.Bookings(&buf, bookings, s.deps.Location); err != nil {
		s.logger.Error().Err(err).Msg("export failed")
		writeError(w, http.StatusInternalServerError, "", "export failed")
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(time.Now().In(s.deps.Location))))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) handleOpenDialog(w http.ResponseWriter, r *http.Request) {
	var req openDialogRequest
	if !s.decode(w, r, &req) {
		return
	}
	st, err := s.deps.Console.Open(r.Context(), models.DialogKind(req.Kind), strings.TrimSpace(req.BookingID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *HTTPServer) handleGetDialog(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Console.Dialog(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *HTTPServer) handleCloseDialog(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Console.Close(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !s.decode(w, r, &req) {
		return
	}

	var t status.Transition
	switch status.Action(req.Action) {
	case status.ActionConfirm:
		t = status.Confirm()
	case status.ActionCancel:
		t = status.Cancel()
	default:
		t = status.SetStatus(models.StatusFromWire(req.Target))
	}

	res, err := s.deps.Console.RequestTransition(r.Context(), credential(r), r.PathValue("id"), t)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{
		BookingID:     res.BookingID,
		From:          res.From.String(),
		To:            res.To.String(),
		ExpectedLabel: res.ExpectedLabel,
	})
}

func (s *HTTPServer) handleWorkload(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Console.ComputeWorkload(r.Context(), credential(r), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !s.decode(w, r, &req) {
		return
	}
	a, err := s.deps.Console.AssignStaff(r.Context(), credential(r), r.PathValue("id"), strings.TrimSpace(req.StaffID), models.TaskType(req.TaskType))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *HTTPServer) handleContractStep(w http.ResponseWriter, r *http.Request) {
	step := dialog.ContractStep(r.PathValue("step"))
	switch step {
	case dialog.StepCreate, dialog.StepPreview, dialog.StepSign:
	default:
		writeError(w, http.StatusNotFound, "", "unknown contract step")
		return
	}

	var req contractStepRequest
	if r.ContentLength != 0 {
		if !s.decode(w, r, &req) {
			return
		}
	}
	res, err := s.deps.Console.RunContractStep(r.Context(), credential(r), r.PathValue("id"), step, dialog.StepInput{
		Scope:     models.ContractScope(req.Scope),
		OwnerID:   strings.TrimSpace(req.OwnerID),
		Signature: req.Signature,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleBlob(w http.ResponseWriter, r *http.Request) {
	handle := r.PathValue("handle")
	if !strings.HasPrefix(handle, "blob:") {
		handle = "blob:" + handle
	}
	b, ok := s.deps.Blobs.Get(handle)
	if !ok {
		writeError(w, http.StatusNotFound, "", "preview has been released")
		return
	}
	w.Header().Set("Content-Type", b.ContentType)
	disposition := mime.FormatMediaType("inline", map[string]string{"filename": b.Filename})
	if disposition == "" {
		disposition = "inline"
	}
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b.Data)
}

func (s *HTTPServer) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if s.deps.Inbox == nil {
		writeJSON(w, http.StatusOK, map[string]any{"notifications": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": s.deps.Inbox.Drain()})
}
