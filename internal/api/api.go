// Package api exposes the dashboard, ad generation, campaign wizard, campaign
// list, settings and playbook operations as a JSON HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/breezecue/internal/account"
	"github.com/linnemanlabs/breezecue/internal/adgen"
	"github.com/linnemanlabs/breezecue/internal/alertfeed"
	"github.com/linnemanlabs/breezecue/internal/authmw"
	"github.com/linnemanlabs/breezecue/internal/campaign"
	"github.com/linnemanlabs/breezecue/internal/docstore"
	"github.com/linnemanlabs/breezecue/internal/playbook"
	"github.com/linnemanlabs/breezecue/internal/wizard"
)

// Middleware wraps a handler.
type Middleware = func(http.Handler) http.Handler

// Deps are the services behind the API. Admin is optional; without it the
// admin routes are not registered.
type Deps struct {
	Alerts    *alertfeed.Holder
	Generator wizard.Generator
	Wizard    *wizard.Manager
	Campaigns *campaign.Service
	Accounts  *account.Service
	Playbooks *playbook.Service
	Session   Middleware
	Admin     Middleware
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	Deps
}

// New creates a new API handler. It panics if a required dependency is nil.
func New(logger log.Logger, d Deps) *API {
	if logger == nil {
		logger = log.Nop()
	}
	switch {
	case d.Alerts == nil:
		panic(xerrors.New("alert holder is required"))
	case d.Generator == nil:
		panic(xerrors.New("ad generator is required"))
	case d.Wizard == nil:
		panic(xerrors.New("wizard manager is required"))
	case d.Campaigns == nil:
		panic(xerrors.New("campaign service is required"))
	case d.Accounts == nil:
		panic(xerrors.New("account service is required"))
	case d.Playbooks == nil:
		panic(xerrors.New("playbook service is required"))
	case d.Session == nil:
		panic(xerrors.New("session middleware is required"))
	}
	return &API{logger: logger, Deps: d}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/regions", a.handleRegions)
		r.Get("/business-types", a.handleBusinessTypes)

		r.Group(func(r chi.Router) {
			r.Use(a.Session)

			r.Get("/alerts", a.handleAlerts)
			r.Get("/alerts/stream", a.handleAlertStream)
			r.Get("/alerts/event-types", a.handleEventTypes)
			r.Post("/alerts/refresh", a.handleRefresh)

			r.Post("/generate", a.handleGenerate)

			r.Post("/wizard", a.handleWizardStart)
			r.Route("/wizard/{id}", func(r chi.Router) {
				r.Get("/", a.handleWizardGet)
				r.Post("/next", a.handleWizardNext)
				r.Post("/back", a.handleWizardBack)
				r.Post("/generate", a.handleWizardGenerate)
				r.Post("/revert", a.handleWizardRevert)
				r.Post("/save", a.handleWizardSave)
				r.Patch("/content", a.handleWizardContent)
				r.Put("/radius", a.handleWizardRadius)
			})

			r.Get("/campaigns", a.handleCampaigns)
			r.Get("/campaigns/stream", a.handleCampaignStream)
			r.Post("/campaigns/{id}/launch", a.handleLaunch)
			r.Delete("/campaigns/{id}", a.handleDeleteCampaign)

			r.Get("/me", a.handleMe)
			r.Get("/me/stream", a.handleMeStream)
			r.Post("/me/onboarding", a.handleOnboarding)
			r.Put("/me/company", a.handleCompany)
			r.Put("/me/branding", a.handleBranding)
			r.Put("/me/ad-settings", a.handleAdSettings)
			r.Put("/me/business-type", a.handleBusinessType)

			r.Get("/playbooks", a.handlePlaybooks)
			r.Get("/playbooks/stream", a.handlePlaybookStream)
			r.Get("/playbooks/defaults", a.handleDefaultPlaybooks)
			r.Patch("/playbooks/{id}", a.handleUpdatePlaybook)
			r.Delete("/playbooks/{id}", a.handleDeletePlaybook)
		})

		if a.Admin != nil {
			r.With(a.Admin).Post("/admin/playbooks/seed", a.handleSeed)
		}
	})
}

// uid returns the signed-in user. Session guarantees it is set.
func uid(r *http.Request) string {
	id, _ := authmw.FromContext(r.Context())
	return id.UID
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return false
	}
	return true
}

// fail maps service errors onto status codes. Validation errors carry their
// message to the client; anything unexpected is logged and answered with a
// generic message.
func (a *API) fail(ctx context.Context, w http.ResponseWriter, err error, what string) {
	var ge *adgen.GenerationError
	switch {
	case errors.Is(err, adgen.ErrInvalidRequest),
		errors.Is(err, account.ErrInvalidProfile),
		errors.Is(err, campaign.ErrInvalidCampaign),
		errors.Is(err, playbook.ErrInvalidPlaybook),
		errors.Is(err, playbook.ErrInvalidBusinessType),
		errors.Is(err, wizard.ErrInvalidInput),
		errors.Is(err, alertfeed.ErrUnknownRegion):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, docstore.ErrNotFound),
		errors.Is(err, campaign.ErrForbidden),
		errors.Is(err, wizard.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, wizard.ErrInvalidStep),
		errors.Is(err, wizard.ErrInactive),
		errors.Is(err, wizard.ErrNoContent),
		errors.Is(err, wizard.ErrSuperseded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &ge):
		a.logger.Error(ctx, err, what)
		writeError(w, http.StatusBadGateway, adgen.GenericFailure)
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		a.logger.Error(ctx, err, what)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}
