package response

import (
	"encoding/json"
	"net/http"

	"studioops/internal/models"
	"studioops/internal/rfq"
)

// JSON writes a successful API response with the given data.
func JSON(w http.ResponseWriter, data interface{}) {
	json.NewEncoder(w).Encode(models.APIResponse{Data: data})
}

// JSONMeta writes a successful API response with pagination metadata.
func JSONMeta(w http.ResponseWriter, data interface{}, total, page, limit int) {
	json.NewEncoder(w).Encode(models.APIResponse{
		Data: data,
		Meta: &models.Meta{Total: total, Page: page, Limit: limit},
	})
}

// Err writes a JSON error response with the given message and HTTP status
// code.
func Err(w http.ResponseWriter, msg string, code int) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(models.APIResponse{Error: msg})
}

// DomainErr maps a domain error to its HTTP status and writes the
// envelope with a machine-readable kind. Errors outside the taxonomy are
// reported as 500 plumbing failures.
func DomainErr(w http.ResponseWriter, err error) {
	kind := rfq.ErrorKind(err)
	code := http.StatusInternalServerError
	switch kind {
	case rfq.KindValidation:
		code = http.StatusBadRequest
	case rfq.KindInvalidTransition, rfq.KindNoAcceptedQuotes:
		code = http.StatusConflict
	case rfq.KindStaleState:
		code = http.StatusPreconditionFailed
	case rfq.KindNotFound:
		code = http.StatusNotFound
	}
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(models.APIResponse{Error: err.Error(), Kind: kind})
}

// DecodeBody decodes a JSON request body into the given value.
func DecodeBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
