package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/linnemanlabs/breezecue/internal/alert"
	"github.com/linnemanlabs/breezecue/internal/alertfeed"
	"github.com/linnemanlabs/breezecue/internal/playbook"
)

type alertsResponse struct {
	Region   string        `json:"region"`
	Event    string        `json:"event"`
	Alerts   []alert.Alert `json:"alerts"`
	Total    int           `json:"total"`
	Error    string        `json:"error,omitempty"`
	Loading  bool          `json:"loading"`
	LoadedAt time.Time     `json:"loadedAt"`
}

func (a *API) handleRegions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"regions": alert.Regions()})
}

func (a *API) handleBusinessTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"businessTypes": playbook.BusinessTypes()})
}

// handleAlerts returns the held list filtered by the optional event query
// parameter.
func (a *API) handleAlerts(w http.ResponseWriter, r *http.Request) {
	event := r.URL.Query().Get("event")
	if event == "" {
		event = alert.AllEvents
	}
	writeJSON(w, http.StatusOK, filtered(a.Alerts.Snapshot(), event))
}

func (a *API) handleEventTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"eventTypes": alert.EventTypes(a.Alerts.Alerts())})
}

type refreshRequest struct {
	Region string `json:"region"`
}

// handleRefresh fetches the feed for a region (empty = current region) and
// replaces the held list.
func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	snap, err := a.Alerts.Refresh(r.Context(), req.Region)
	switch {
	case errors.Is(err, alertfeed.ErrUnknownRegion):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		// the feed error is logged by the holder
		writeJSON(w, http.StatusBadGateway, filtered(snap, alert.AllEvents))
	default:
		writeJSON(w, http.StatusOK, filtered(snap, alert.AllEvents))
	}
}

// handleAlertStream pushes the held list as server-sent events after every
// applied refresh.
func (a *API) handleAlertStream(w http.ResponseWriter, r *http.Request) {
	updates := make(chan alertfeed.Snapshot, 1)
	unsubscribe := a.Alerts.Subscribe(func(s alertfeed.Snapshot) {
		latest(updates, s)
	})
	defer unsubscribe()

	latest(updates, a.Alerts.Snapshot())
	stream(w, r, "alerts", updates, func(s alertfeed.Snapshot) any {
		return filtered(s, alert.AllEvents)
	})
}

func filtered(s alertfeed.Snapshot, event string) alertsResponse {
	return alertsResponse{
		Region:   s.Region,
		Event:    event,
		Alerts:   alert.FilterByEvent(s.Alerts, event),
		Total:    len(s.Alerts),
		Error:    s.Error,
		Loading:  s.Loading,
		LoadedAt: s.LoadedAt,
	}
}
