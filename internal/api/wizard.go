package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/breezecue/internal/account"
	"github.com/linnemanlabs/breezecue/internal/adgen"
	"github.com/linnemanlabs/breezecue/internal/wizard"
)

type wizardResponse struct {
	wizard.Session
	Error string `json:"error,omitempty"`
}

type startRequest struct {
	AlertID string `json:"alertId"`
}

// handleWizardStart opens a session. An unknown alert is not an error: the
// session comes back in the not_found state with an exit target.
func (a *API) handleWizardStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decode(w, r, &req) {
		return
	}
	if req.AlertID == "" {
		writeError(w, http.StatusBadRequest, "alertId is required")
		return
	}

	s := a.Wizard.Start(r.Context(), uid(r), req.AlertID)
	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("breezecue.wizard.id", s.ID),
		attribute.String("breezecue.wizard.state", string(s.State)),
	)
	code := http.StatusCreated
	if s.State == wizard.StateNotFound {
		code = http.StatusOK
	}
	writeJSON(w, code, wizardResponse{Session: s})
}

func (a *API) handleWizardGet(w http.ResponseWriter, r *http.Request) {
	s, err := a.Wizard.Get(uid(r), chi.URLParam(r, "id"))
	a.wizardReply(w, r, s, err)
}

func (a *API) handleWizardNext(w http.ResponseWriter, r *http.Request) {
	s, err := a.Wizard.Next(uid(r), chi.URLParam(r, "id"))
	a.wizardReply(w, r, s, err)
}

func (a *API) handleWizardBack(w http.ResponseWriter, r *http.Request) {
	s, err := a.Wizard.Back(uid(r), chi.URLParam(r, "id"))
	a.wizardReply(w, r, s, err)
}

func (a *API) handleWizardRevert(w http.ResponseWriter, r *http.Request) {
	s, err := a.Wizard.Revert(uid(r), chi.URLParam(r, "id"))
	a.wizardReply(w, r, s, err)
}

func (a *API) handleWizardContent(w http.ResponseWriter, r *http.Request) {
	var p wizard.ContentPatch
	if !decode(w, r, &p) {
		return
	}
	s, err := a.Wizard.Edit(uid(r), chi.URLParam(r, "id"), p)
	a.wizardReply(w, r, s, err)
}

type radiusRequest struct {
	Radius int `json:"radius"`
}

func (a *API) handleWizardRadius(w http.ResponseWriter, r *http.Request) {
	var req radiusRequest
	if !decode(w, r, &req) {
		return
	}
	s, err := a.Wizard.SetRadius(uid(r), chi.URLParam(r, "id"), req.Radius)
	a.wizardReply(w, r, s, err)
}

type wizardGenerateRequest struct {
	Provider string `json:"provider,omitempty"`
}

// handleWizardGenerate generates content with the caller's company settings.
// Placeholder content from a failed generation is part of the returned
// session.
func (a *API) handleWizardGenerate(w http.ResponseWriter, r *http.Request) {
	var req wizardGenerateRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	profile, _, err := a.Accounts.Get(ctx, uid(r))
	if err != nil {
		a.fail(ctx, w, err, "load profile for generation")
		return
	}

	s, err := a.Wizard.Generate(ctx, uid(r), chi.URLParam(r, "id"), settingsFor(profile), req.Provider)
	var ge *adgen.GenerationError
	if errors.As(err, &ge) {
		a.logger.Error(ctx, err, "wizard generation failed", "session_id", s.ID)
		writeJSON(w, http.StatusBadGateway, wizardResponse{Session: s, Error: adgen.GenericFailure})
		return
	}
	a.wizardReply(w, r, s, err)
}

func (a *API) handleWizardSave(w http.ResponseWriter, r *http.Request) {
	s, err := a.Wizard.Save(r.Context(), uid(r), chi.URLParam(r, "id"))
	if err == nil {
		trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("breezecue.campaign.id", s.CampaignID))
	}
	a.wizardReply(w, r, s, err)
}

func (a *API) wizardReply(w http.ResponseWriter, r *http.Request, s wizard.Session, err error) {
	if err != nil {
		a.fail(r.Context(), w, err, "wizard operation failed")
		return
	}
	writeJSON(w, http.StatusOK, wizardResponse{Session: s})
}

func settingsFor(p account.Profile) adgen.UserSettings {
	return adgen.UserSettings{
		CompanyName:    p.CompanyName,
		BusinessType:   p.BusinessType,
		ContactPhone:   p.ContactPhone,
		CompanyWebsite: p.CompanyWebsite,
	}
}
