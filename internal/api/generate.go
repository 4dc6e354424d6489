package api

import (
	"errors"
	"net/http"

	"github.com/linnemanlabs/breezecue/internal/adgen"
)

type generateFailure struct {
	Error string `json:"error"`
	*adgen.Result
}

// handleGenerate is the callable ad generator. A provider failure answers 502
// with the generic message and the placeholder content so the client can
// still show something.
func (a *API) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req adgen.Request
	if !decode(w, r, &req) {
		return
	}

	res, err := a.Generator.Generate(r.Context(), &req)
	var ge *adgen.GenerationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.As(err, &ge) && res != nil:
		a.logger.Error(r.Context(), err, "ad generation failed", "uid", uid(r))
		writeJSON(w, http.StatusBadGateway, generateFailure{Error: adgen.GenericFailure, Result: res})
	default:
		a.fail(r.Context(), w, err, "ad generation failed")
	}
}
