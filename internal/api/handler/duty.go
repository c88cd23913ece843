package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nutricomm/kebun-gizi/internal/api/respond"
	"github.com/nutricomm/kebun-gizi/internal/cache"
	"github.com/nutricomm/kebun-gizi/internal/export"
	"github.com/nutricomm/kebun-gizi/internal/maintenance"
	"github.com/nutricomm/kebun-gizi/internal/rotation"
)

const maxScheduleDays = 366

// assignmentView is the wire shape of a duty assignment.
type assignmentView struct {
	Date          string          `json:"date"`
	ParticipantID string          `json:"participant_id"`
	DisplayName   string          `json:"display_name"`
	Slot          int             `json:"slot"`
	Status        rotation.Status `json:"status"`
}

func viewOf(a rotation.Assignment) assignmentView {
	return assignmentView{
		Date:          a.DateString(),
		ParticipantID: a.ParticipantID,
		DisplayName:   a.DisplayName,
		Slot:          a.Slot,
		Status:        a.Status,
	}
}

func viewsOf(as []rotation.Assignment) []assignmentView {
	out := make([]assignmentView, len(as))
	for i, a := range as {
		out[i] = viewOf(a)
	}
	return out
}

// referenceDate reads ?date=YYYY-MM-DD, defaulting to today.
func (h *Handler) referenceDate(r *http.Request) (time.Time, error) {
	s := r.URL.Query().Get("date")
	if s == "" {
		return h.Now(), nil
	}
	return time.Parse(time.DateOnly, s)
}

// windowDays reads ?days=N, defaulting to the configured window.
func (h *Handler) windowDays(r *http.Request) (int, error) {
	s := r.URL.Query().Get("days")
	if s == "" {
		return h.Config.ScheduleDays, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > maxScheduleDays {
		return 0, fmt.Errorf("days must be an integer between 0 and %d", maxScheduleDays)
	}
	return n, nil
}

func writeRosterError(w http.ResponseWriter, err error) {
	if errors.Is(err, rotation.ErrInvalidRoster) {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "INVALID_ROSTER", "Roster is invalid", err.Error())
		return
	}
	respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
}

// GetDutyToday returns who is on duty on the reference date.
// @Summary Today's duty assignment
// @Description Returns the participant on duty. With user_id, also reports whether that participant is on duty.
// @Tags duty
// @Produce json
// @Param date query string false "Reference date (YYYY-MM-DD), defaults to today"
// @Param user_id query string false "Participant to check"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /duty/today [get]
func (h *Handler) GetDutyToday(w http.ResponseWriter, r *http.Request) {
	ref, err := h.referenceDate(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_DATE", "date must be YYYY-MM-DD")
		return
	}

	roster := h.Roster.Roster()
	today, err := rotation.DutyEntryForToday(ref, roster)
	if err != nil {
		writeRosterError(w, err)
		return
	}

	resp := map[string]any{"assignment": viewOf(today)}
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		onDuty, err := rotation.IsOnDutyToday(userID, ref, roster)
		if err != nil {
			writeRosterError(w, err)
			return
		}
		resp["user_id"] = userID
		resp["on_duty"] = onDuty
	}
	respond.WriteJSONObject(w, http.StatusOK, resp)
}

// GetSchedule returns the rotation calendar starting at the reference date.
// @Summary Duty schedule
// @Description Returns consecutive duty assignments; the first is today, the rest future.
// @Tags duty
// @Produce json
// @Param date query string false "Reference date (YYYY-MM-DD), defaults to today"
// @Param days query int false "Number of days (default 30, max 366)"
// @Success 200 {array} handler.assignmentView
// @Success 304 "Not modified"
// @Failure 400 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /duty/schedule [get]
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	ref, err := h.referenceDate(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_DATE", "date must be YYYY-MM-DD")
		return
	}
	days, err := h.windowDays(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_DAYS", err.Error())
		return
	}

	cacheKey := fmt.Sprintf("%s%s:%d", maintenance.SchedulePrefix, ref.Format(time.DateOnly), days)
	ttl := untilMidnight(h.Now())

	if data, etag, ok := h.Cache.Get(cacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, ttl, true)
		return
	}

	window, err := rotation.ScheduleWindow(ref, h.Roster.Roster(), days)
	if err != nil {
		writeRosterError(w, err)
		return
	}
	data, err := json.Marshal(viewsOf(window))
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "encode schedule")
		return
	}

	etag := h.Cache.Set(cacheKey, data, ttl)
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag, ttl, false)
}

// GetParticipantSchedule returns one participant's days within the window.
// @Summary Participant duty days
// @Description Returns the days in the window assigned to one participant.
// @Tags duty
// @Produce json
// @Param participantID path string true "Participant ID"
// @Param date query string false "Reference date (YYYY-MM-DD), defaults to today"
// @Param days query int false "Number of days (default 30, max 366)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /duty/{participantID} [get]
func (h *Handler) GetParticipantSchedule(w http.ResponseWriter, r *http.Request) {
	participantID := chi.URLParam(r, "participantID")

	ref, err := h.referenceDate(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_DATE", "date must be YYYY-MM-DD")
		return
	}
	days, err := h.windowDays(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_DAYS", err.Error())
		return
	}

	roster := h.Roster.Roster()
	entry, ok := roster.Lookup(participantID)
	if !ok {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Participant "+participantID+" is not in the roster")
		return
	}
	mine, err := rotation.ScheduleFor(participantID, ref, roster, days)
	if err != nil {
		writeRosterError(w, err)
		return
	}
	onDuty, _ := rotation.IsOnDutyToday(participantID, ref, roster)

	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"participant": entry,
		"on_duty":     onDuty,
		"days":        viewsOf(mine),
	})
}

// ReloadRoster re-reads the roster file now.
// @Summary Reload roster
// @Description Re-reads the roster file. An invalid file is rejected and the previous roster stays active.
// @Tags duty
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 422 {object} respond.ErrorResponse
// @Router /duty/reload [post]
func (h *Handler) ReloadRoster(w http.ResponseWriter, r *http.Request) {
	changed, err := maintenance.ReloadRoster(h.Roster, h.Cache, h.Logger)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusUnprocessableEntity, "RELOAD_FAILED", "Roster reload failed", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"changed":      changed,
		"source":       h.Roster.Path(),
		"participants": len(h.Roster.Roster()),
	})
}

// untilMidnight is the time left in now's civil day.
func untilMidnight(now time.Time) time.Duration {
	y, m, d := now.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
	return next.Sub(now)
}

// ExportSchedule renders the duty calendar as a file download.
// @Summary Export duty calendar
// @Description Renders the schedule window as xlsx or pdf.
// @Tags duty
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param format query string false "xlsx or pdf (default pdf)"
// @Param date query string false "Reference date (YYYY-MM-DD), defaults to today"
// @Param days query int false "Number of days (default 30, max 366)"
// @Success 200 {file} file
// @Failure 400 {object} respond.ErrorResponse
// @Router /duty/export [get]
func (h *Handler) ExportSchedule(w http.ResponseWriter, r *http.Request) {
	format := export.FormatPDF
	if s := r.URL.Query().Get("format"); s != "" {
		f, err := export.ParseFormat(s)
		if err != nil {
			respond.WriteError(w, http.StatusBadRequest, "INVALID_FORMAT", err.Error())
			return
		}
		format = f
	}
	ref, err := h.referenceDate(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_DATE", "date must be YYYY-MM-DD")
		return
	}
	days, err := h.windowDays(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_DAYS", err.Error())
		return
	}

	window, err := rotation.ScheduleWindow(ref, h.Roster.Roster(), days)
	if err != nil {
		writeRosterError(w, err)
		return
	}
	cal := export.Calendar{GardenID: h.Config.GardenID, GeneratedAt: h.Now(), Days: window}
	data, err := export.Render(format, cal)
	if err != nil {
		h.Logger.Error("Calendar export failed", "format", format, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "EXPORT_FAILED", "Could not render calendar")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(format, cal)))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
