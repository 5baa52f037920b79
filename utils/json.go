package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"beatspace/apperr"
)

const maxBodyBytes = 1 << 20

// ParseJSON decodes the request body into v. Unknown fields, trailing data
// and malformed JSON are rejected as validation failures.
func ParseJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.New(apperr.KindValidation, "request body is required")
		}
		return apperr.Wrap(apperr.KindValidation, fmt.Sprintf("invalid request body: %v", err), err)
	}
	if dec.More() {
		return apperr.New(apperr.KindValidation, "invalid request body: unexpected trailing data")
	}
	return nil
}
