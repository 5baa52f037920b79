// utils/utils.go
package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"beatspace/apperr"
)

// PasswordCost is the bcrypt work factor for new hashes.
var PasswordCost = 12

func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]string{"detail": message})
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("encode response failed", "event", "response_encode_failed", "error", err)
		code = http.StatusInternalServerError
		response = []byte(`{"detail":"Internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// RespondWithAppError writes err using its domain kind. Internal errors are
// logged and hidden from the client.
func RespondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		slog.Error("request failed", "event", "request_failed", "method", r.Method, "path", r.URL.Path, "status", code, "error", err)
	}
	RespondWithError(w, code, apperr.Detail(err))
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

var dummyHash = sync.OnceValue(func() string {
	hash, _ := HashPassword("beatspace-absent-account")
	return hash
})

// CheckMissingAccount does the bcrypt work of a password check for an email
// with no account, so both login failures take the same time.
func CheckMissingAccount(password string) {
	_ = CheckPasswordHash(password, dummyHash())
}
