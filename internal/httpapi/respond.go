package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"notifymanager/internal/manager"
	"notifymanager/internal/templates"
)

const maxBody = 1 << 20

type errorBody struct {
	Error  string               `json:"error"`
	Fields []manager.FieldError `json:"fields,omitempty"`
	Known  []string             `json:"known,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps validation errors to 400, unknown templates to 404 and
// everything else to 500.
func writeError(w http.ResponseWriter, err error) {
	var ve *manager.ValidationError
	var ute *templates.UnknownTemplateError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Error(), Fields: ve.Fields})
	case errors.As(err, &ute):
		writeJSON(w, http.StatusNotFound, errorBody{Error: ute.Error(), Known: ute.Known})
	case errors.Is(err, errBadBody):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	}
}

var errBadBody = errors.New("bad request body")

// decode reads one JSON object. Unknown fields are rejected; an empty body
// decodes to the zero value.
func decode(r *http.Request, v any) error {
	return decodeBody(r, v, true)
}

// decodeLoose accepts any fields; raw events are passed through as given.
func decodeLoose(r *http.Request, v any) error {
	return decodeBody(r, v, false)
}

func decodeBody(r *http.Request, v any, strict bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errBadBody)
	}
	return nil
}
