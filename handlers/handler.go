// Package handlers adapts HTTP requests onto the mediation service. Each
// handler decodes its payload, resolves the caller and writes the service
// result or its domain error.
package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"beatspace/apperr"
	"beatspace/media"
	"beatspace/mediation"
	"beatspace/middleware"
	"beatspace/models"
	"beatspace/utils"
)

// ChannelCounter reports how many push channels are open.
type ChannelCounter interface {
	Count() int
}

type Handler struct {
	svc      *mediation.Service
	uploader media.Uploader
	channels ChannelCounter
	started  time.Time
}

func New(svc *mediation.Service, uploader media.Uploader, channels ChannelCounter) *Handler {
	return &Handler{svc: svc, uploader: uploader, channels: channels, started: time.Now()}
}

// principal returns the caller stored by the auth gate. Routes mounted
// outside the gate have none and are answered with 401.
func principal(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		utils.RespondWithAppError(w, r, apperr.ErrUnauthorized)
		return models.Principal{}, false
	}
	return p, true
}

func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

// queryList collects a query parameter given either repeatedly or as a
// comma separated list.
func queryList(r *http.Request, name string) []string {
	var out []string
	for _, raw := range r.URL.Query()[name] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func queryInt(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.New(apperr.KindValidation, name+" must be an integer")
	}
	return n, nil
}

func respond(w http.ResponseWriter, r *http.Request, payload interface{}, err error) {
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, payload)
}

func deleted(w http.ResponseWriter, r *http.Request, message string, err error) {
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": message})
}
