package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/breezecue/internal/playbook"
)

func (a *API) handlePlaybooks(w http.ResponseWriter, r *http.Request) {
	list, err := a.Playbooks.List(r.Context(), uid(r))
	if err != nil {
		a.fail(r.Context(), w, err, "list playbooks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"playbooks": list})
}

func (a *API) handlePlaybookStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	updates := make(chan []playbook.Playbook, 1)
	stop, err := a.Playbooks.Watch(ctx, uid(r), func(pbs []playbook.Playbook) {
		latest(updates, pbs)
	})
	if err != nil {
		a.fail(ctx, w, err, "watch playbooks")
		return
	}
	defer stop()

	stream(w, r, "playbooks", updates, func(pbs []playbook.Playbook) any {
		return map[string]any{"playbooks": pbs}
	})
}

// handleDefaultPlaybooks lists the defaults for ?businessType=, falling back
// to the caller's own business type.
func (a *API) handleDefaultPlaybooks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bt := r.URL.Query().Get("businessType")
	if bt == "" {
		p, _, err := a.Accounts.Get(ctx, uid(r))
		if err != nil {
			a.fail(ctx, w, err, "load profile")
			return
		}
		bt = p.BusinessType
	}
	list, err := a.Playbooks.Defaults(ctx, bt)
	if err != nil {
		a.fail(ctx, w, err, "list default playbooks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"businessType": bt, "playbooks": list})
}

func (a *API) handleUpdatePlaybook(w http.ResponseWriter, r *http.Request) {
	var p playbook.Patch
	if !decode(w, r, &p) {
		return
	}
	pb, err := a.Playbooks.Update(r.Context(), uid(r), chi.URLParam(r, "id"), p)
	if err != nil {
		a.fail(r.Context(), w, err, "update playbook")
		return
	}
	writeJSON(w, http.StatusOK, pb)
}

func (a *API) handleDeletePlaybook(w http.ResponseWriter, r *http.Request) {
	if err := a.Playbooks.Delete(r.Context(), uid(r), chi.URLParam(r, "id")); err != nil {
		a.fail(r.Context(), w, err, "delete playbook")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSeed(w http.ResponseWriter, r *http.Request) {
	if err := a.Playbooks.Seed(r.Context()); err != nil {
		a.fail(r.Context(), w, err, "seed default playbooks")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
