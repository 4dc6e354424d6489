package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/breezecue/internal/campaign"
)

func (a *API) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	list, err := a.Campaigns.List(r.Context(), uid(r))
	if err != nil {
		a.fail(r.Context(), w, err, "list campaigns")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": list})
}

// handleCampaignStream pushes the caller's campaign list as server-sent
// events after every change, until the client disconnects.
func (a *API) handleCampaignStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	updates := make(chan []*campaign.Campaign, 1)
	stop, err := a.Campaigns.Watch(ctx, uid(r), func(cs []*campaign.Campaign) {
		latest(updates, cs)
	})
	if err != nil {
		a.fail(ctx, w, err, "watch campaigns")
		return
	}
	defer stop()

	stream(w, r, "campaigns", updates, func(cs []*campaign.Campaign) any {
		return map[string]any{"campaigns": cs}
	})
}

func (a *API) handleLaunch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("breezecue.campaign.id", id))

	c, err := a.Campaigns.Launch(r.Context(), uid(r), id)
	if err != nil {
		a.fail(r.Context(), w, err, "launch campaign")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("breezecue.campaign.id", id))

	if err := a.Campaigns.Delete(r.Context(), uid(r), id); err != nil {
		a.fail(r.Context(), w, err, "delete campaign")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
