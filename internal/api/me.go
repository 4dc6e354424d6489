package api

import (
	"net/http"

	"github.com/linnemanlabs/breezecue/internal/account"
)

type meResponse struct {
	Profile        account.Profile `json:"profile"`
	OnboardingStep int             `json:"onboardingStep"`
	Changed        *bool           `json:"changed,omitempty"`
}

func profileReply(p account.Profile) meResponse {
	return meResponse{Profile: p, OnboardingStep: account.OnboardingStep(p)}
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok, err := a.Accounts.Get(r.Context(), uid(r))
	if err != nil {
		a.fail(r.Context(), w, err, "get profile")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, profileReply(p))
}

// handleMeStream pushes the caller's profile as server-sent events after
// every change.
func (a *API) handleMeStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	updates := make(chan meResponse, 1)
	stop, err := a.Accounts.Watch(ctx, uid(r), func(p account.Profile, ok bool) {
		if ok {
			latest(updates, profileReply(p))
		}
	})
	if err != nil {
		a.fail(ctx, w, err, "watch profile")
		return
	}
	defer stop()

	stream(w, r, "profile", updates, func(m meResponse) any { return m })
}

type onboardingRequest struct {
	HomeRegion   string `json:"homeRegion"`
	BusinessType string `json:"businessType"`
}

func (a *API) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	var req onboardingRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := a.Accounts.CompleteOnboarding(r.Context(), uid(r), req.HomeRegion, req.BusinessType)
	a.profileResult(w, r, p, err)
}

func (a *API) handleCompany(w http.ResponseWriter, r *http.Request) {
	var req account.Company
	if !decode(w, r, &req) {
		return
	}
	p, err := a.Accounts.UpdateCompany(r.Context(), uid(r), req)
	a.profileResult(w, r, p, err)
}

func (a *API) handleBranding(w http.ResponseWriter, r *http.Request) {
	var req account.Branding
	if !decode(w, r, &req) {
		return
	}
	p, err := a.Accounts.UpdateBranding(r.Context(), uid(r), req)
	a.profileResult(w, r, p, err)
}

func (a *API) handleAdSettings(w http.ResponseWriter, r *http.Request) {
	var req account.AdSettings
	if !decode(w, r, &req) {
		return
	}
	p, err := a.Accounts.UpdateAdSettings(r.Context(), uid(r), req)
	a.profileResult(w, r, p, err)
}

type businessTypeRequest struct {
	BusinessType string `json:"businessType"`
}

// handleBusinessType swaps the caller's playbooks for the defaults of the
// new business type. Choosing the current type reports changed=false.
func (a *API) handleBusinessType(w http.ResponseWriter, r *http.Request) {
	var req businessTypeRequest
	if !decode(w, r, &req) {
		return
	}
	p, changed, err := a.Accounts.ChangeBusinessType(r.Context(), uid(r), req.BusinessType)
	if err != nil {
		a.fail(r.Context(), w, err, "change business type")
		return
	}
	resp := profileReply(p)
	resp.Changed = &changed
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) profileResult(w http.ResponseWriter, r *http.Request, p account.Profile, err error) {
	if err != nil {
		a.fail(r.Context(), w, err, "update profile")
		return
	}
	writeJSON(w, http.StatusOK, profileReply(p))
}
