package routes

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"beatspace/handlers"
	"beatspace/middleware"
	"beatspace/models"
	"beatspace/utils"
)

// HTTP method sets. OPTIONS is kept on every route so CORS preflights match.
var (
	MethodsGetOnly    = []string{"GET", "OPTIONS"}
	MethodsPostOnly   = []string{"POST", "OPTIONS"}
	MethodsPutOnly    = []string{"PUT", "OPTIONS"}
	MethodsPatchOnly  = []string{"PATCH", "OPTIONS"}
	MethodsDeleteOnly = []string{"DELETE", "OPTIONS"}
)

// Route grouping constants
const (
	PathAPI    = "/api"
	PathAdmin  = "/admin"
	PathHealth = "/health"
)

// RegisterRoutes mounts every endpoint on r. Public routes are registered
// first; everything else under /api goes through the bearer gate, and /api/admin
// additionally requires the admin role.
func RegisterRoutes(r *mux.Router, h *handlers.Handler, ws http.Handler, users middleware.UserLookup) {
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		utils.RespondWithError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	// ====================
	// HEALTH CHECK (Public)
	// ====================
	r.HandleFunc(PathHealth, h.HealthCheck).Methods(MethodsGetOnly...)

	// ====================
	// PUBLIC ROUTES (No auth required)
	// ====================
	r.HandleFunc("/api/auth/register", h.Register).Methods(MethodsPostOnly...)
	r.HandleFunc("/api/auth/login", h.Login).Methods(MethodsPostOnly...)
	r.HandleFunc("/api/assets/public", h.PublicAssets).Methods(MethodsGetOnly...)
	r.HandleFunc("/api/stats/public", h.PublicStats).Methods(MethodsGetOnly...)

	// ====================
	// REAL-TIME (token checked on the socket)
	// ====================
	r.Handle("/api/ws/{user_id}", ws).Methods("GET")
	r.Handle("/ws/{user_id}", ws).Methods("GET")

	// ====================
	// PROTECTED API ROUTES (Require authentication)
	// ====================
	apiRouter := r.PathPrefix(PathAPI).Subrouter()
	apiRouter.Use(middleware.Authenticator(users))

	apiRouter.HandleFunc("/auth/me", h.Me).Methods(MethodsGetOnly...)

	// ====================
	// OFFER REQUESTS
	// ====================
	apiRouter.HandleFunc("/offers/request", h.SubmitRequest).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/offers/requests", h.ListRequests).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/offers/requests/{id}", h.GetRequest).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/offers/requests/{id}", h.UpdateRequest).Methods(MethodsPutOnly...)
	apiRouter.HandleFunc("/offers/requests/{id}", h.DeleteRequest).Methods(MethodsDeleteOnly...)
	apiRouter.HandleFunc("/offers/{id}/respond", h.RespondToQuote).Methods(MethodsPutOnly...)

	// ====================
	// ASSETS
	// ====================
	apiRouter.HandleFunc("/assets", h.ListAssets).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/assets", h.CreateAsset).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/assets/live", h.LiveAssets).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/assets/{id}", h.GetAsset).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/assets/{id}", h.UpdateAsset).Methods(MethodsPutOnly...)
	apiRouter.HandleFunc("/assets/{id}", h.DeleteAsset).Methods(MethodsDeleteOnly...)
	apiRouter.HandleFunc("/assets/{id}/creative", h.UpdateCreative).Methods(MethodsPatchOnly...)

	// ====================
	// CAMPAIGNS
	// ====================
	apiRouter.HandleFunc("/campaigns", h.ListCampaigns).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/campaigns", h.CreateCampaign).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/campaigns/{id}", h.GetCampaign).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/campaigns/{id}", h.UpdateCampaign).Methods(MethodsPutOnly...)
	apiRouter.HandleFunc("/campaigns/{id}", h.DeleteCampaign).Methods(MethodsDeleteOnly...)
	apiRouter.HandleFunc("/campaigns/{id}/status", h.SetCampaignStatus).Methods(MethodsPutOnly...)

	// ====================
	// UPLOADS
	// ====================
	apiRouter.HandleFunc("/upload/image", h.UploadImage).Methods(MethodsPostOnly...)

	// ====================
	// ADMIN ROUTES (Admin role required)
	// ====================
	adminRouter := apiRouter.PathPrefix(PathAdmin).Subrouter()
	adminRouter.Use(middleware.RequireRole(models.RoleAdmin))

	adminRouter.HandleFunc("/offer-requests", h.AdminQueue).Methods(MethodsGetOnly...)
	adminRouter.HandleFunc("/offer-requests/{id}/status", h.SetRequestStatus).Methods(MethodsPatchOnly...)
	adminRouter.HandleFunc("/offers/{id}/quote", h.Quote).Methods(MethodsPutOnly...)

	adminRouter.HandleFunc("/assets/{id}/status", h.SetAssetStatus).Methods(MethodsPatchOnly...)

	adminRouter.HandleFunc("/campaigns", h.ListCampaigns).Methods(MethodsGetOnly...)
	adminRouter.HandleFunc("/campaigns", h.CreateCampaign).Methods(MethodsPostOnly...)
	adminRouter.HandleFunc("/campaigns/{id}", h.GetCampaign).Methods(MethodsGetOnly...)
	adminRouter.HandleFunc("/campaigns/{id}", h.UpdateCampaign).Methods(MethodsPutOnly...)
	adminRouter.HandleFunc("/campaigns/{id}", h.DeleteCampaign).Methods(MethodsDeleteOnly...)
	adminRouter.HandleFunc("/campaigns/{id}/status", h.SetCampaignStatus).Methods(MethodsPutOnly...)

	adminRouter.HandleFunc("/users", h.ListUsers).Methods(MethodsGetOnly...)
	adminRouter.HandleFunc("/users/{id}/status", h.SetUserStatus).Methods(MethodsPatchOnly...)

	adminRouter.HandleFunc("/audit", h.ListAudit).Methods(MethodsGetOnly...)

	r.Walk(func(route *mux.Route, router *mux.Router, ancestors []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, _ := route.GetMethods()
		slog.Debug("route registered", "module", "routes", "path", path, "methods", strings.Join(methods, ","))
		return nil
	})
}
