package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"accountservice/internal/domain"
)

const maxBodyBytes = 1 << 20

// normalizer is implemented by request bodies that trim or fold their
// fields before validation.
type normalizer interface {
	normalize()
}

// bindJSON decodes exactly one JSON object into dst, normalizes it and runs
// tag validation. On failure the error response is already written.
func bindJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		writeDecodeError(w, err)
		return false
	}
	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}
	if err := validateRequest(dst); err != nil {
		WriteDomainError(w, err)
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("multiple json values")
		}
		return err
	}
	return nil
}

// writeDecodeError reports field-level problems as validation errors and
// everything else as malformed JSON.
func writeDecodeError(w http.ResponseWriter, err error) {
	var (
		tooLarge *http.MaxBytesError
		typeErr  *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &tooLarge):
		WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
	case errors.Is(err, io.EOF):
		WriteError(w, http.StatusBadRequest, "bad_json", "request body required")
	case errors.As(err, &typeErr) && typeErr.Field != "":
		WriteDomainError(w, domain.NewValidationError(map[string]string{typeErr.Field: "has the wrong type"}))
	default:
		if field, ok := unknownField(err); ok {
			WriteDomainError(w, domain.NewValidationError(map[string]string{field: "unknown field"}))
			return
		}
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
	}
}

// unknownField extracts the name from encoding/json's unknown field error,
// which has no exported type.
func unknownField(err error) (string, bool) {
	rest, ok := strings.CutPrefix(err.Error(), `json: unknown field "`)
	if !ok {
		return "", false
	}
	return strings.TrimSuffix(rest, `"`), true
}
