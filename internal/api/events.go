package api

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/arbiterhq/gatehouse/internal/chread"
)

func (d *Dependencies) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}

	params := listEventsParams(r.URL.Query())

	events, total, err := d.Reader.ListEvents(r.Context(), params)
	if err != nil {
		d.Logger.Error("failed to list audit events", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list audit events"})
		return
	}

	resp := EventListResp{
		Events:   make([]AuditEventResp, 0, len(events)),
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}
	for _, e := range events {
		resp.Events = append(resp.Events, eventRowToResp(e))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}

	decisionID := r.PathValue("decision_id")

	events, err := d.Reader.GetDecision(r.Context(), decisionID)
	if err != nil {
		d.Logger.Error("failed to get decision trail", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get decision trail"})
		return
	}
	if len(events) == 0 {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Decision not found."})
		return
	}

	resp := DecisionTrailResp{
		DecisionID: decisionID,
		Events:     make([]AuditEventResp, 0, len(events)),
	}
	for _, e := range events {
		resp.Events = append(resp.Events, eventRowToResp(e))
	}

	writeJSON(w, http.StatusOK, resp)
}

// eventRowToResp converts a ClickHouse EventRow to the API response.
func eventRowToResp(e chread.EventRow) AuditEventResp {
	return AuditEventResp{
		DecisionID: e.DecisionID,
		Sequence:   e.Sequence,
		EventType:  e.EventType,
		Timestamp:  e.Timestamp,
		Payload:    e.PayloadJSON,
	}
}

// listEventsParams parses pagination and filter query parameters, clamping
// page_size to [1, 200] so a negative value cannot wrap through the uint32
// LIMIT parameter.
func listEventsParams(q url.Values) chread.ListEventsParams {
	params := chread.ListEventsParams{
		Page:     queryInt(q, "page", 1),
		PageSize: queryInt(q, "page_size", 50),
	}
	if params.PageSize > 200 {
		params.PageSize = 200
	}
	if params.PageSize < 1 {
		params.PageSize = 50
	}
	if params.Page < 1 {
		params.Page = 1
	}

	if v := q.Get("event_type"); v != "" {
		params.EventType = &v
	}
	if v := q.Get("start_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.StartTime = &t
		}
	}
	if v := q.Get("end_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.EndTime = &t
		}
	}
	return params
}

func queryInt(q interface{ Get(string) string }, key string, defaultVal int) int {
	v := q.Get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}
