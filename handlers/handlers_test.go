package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"beatspace/apperr"
	"beatspace/config"
	"beatspace/media"
	"beatspace/mediation"
	"beatspace/middleware"
	"beatspace/models"
	"beatspace/store"
	"beatspace/utils"
)

func init() {
	config.JWTKey = []byte("handlers-test")
	config.JWTExpiration = time.Hour
	utils.PasswordCost = bcrypt.MinCost
}

type openChannels int

func (n openChannels) Count() int { return int(n) }

type fakeUploader struct {
	filename string
	body     []byte
	err      error
}

func (u *fakeUploader) Upload(_ context.Context, filename string, r io.Reader) (*media.Result, error) {
	if u.err != nil {
		return nil, u.err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	u.filename, u.body = filename, body
	return &media.Result{URL: "https://cdn.example.com/" + filename, PublicID: "beatspace/assets/abc"}, nil
}

type env struct {
	t        *testing.T
	st       *store.Store
	h        *Handler
	uploader *fakeUploader
	admin    models.Principal
	buyer    models.Principal
	seller   models.Principal
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := store.NewMemory()
	e := &env{t: t, st: st, uploader: &fakeUploader{}}
	e.h = New(mediation.NewService(st, nil), e.uploader, openChannels(2))
	e.admin = e.seed("adm", "admin@beatspace.test", models.RoleAdmin)
	e.buyer = e.seed("b1", "buyer@example.com", models.RoleBuyer)
	e.seller = e.seed("s1", "seller@example.com", models.RoleSeller)
	return e
}

func (e *env) seed(id, email string, role models.Role) models.Principal {
	e.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	if err != nil {
		e.t.Fatalf("hash: %v", err)
	}
	user := &models.User{
		ID:           id,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Status:       models.UserApproved,
		CompanyName:  "Company " + id,
		ContactName:  "Contact " + id,
	}
	if err := e.st.Users.Insert(context.Background(), user); err != nil {
		e.t.Fatalf("seed user: %v", err)
	}
	return models.PrincipalFor(*user)
}

// call invokes fn as p (or anonymously when p is nil) with the given path
// variables and JSON body.
func (e *env) call(fn http.HandlerFunc, method, target string, p *models.Principal, vars map[string]string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			encoded, err := json.Marshal(body)
			if err != nil {
				e.t.Fatalf("encode body: %v", err)
			}
			raw = string(encoded)
		}
		reader = bytes.NewBufferString(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if p != nil {
		req = req.WithContext(middleware.WithPrincipal(req.Context(), *p))
	}
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	rec := httptest.NewRecorder()
	fn(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("status %d, want %d: %s", rec.Code, code, rec.Body.String())
	}
}

func (e *env) createAsset() models.Asset {
	e.t.Helper()
	rec := e.call(e.h.CreateAsset, http.MethodPost, "/api/assets", &e.admin, nil, map[string]interface{}{
		"seller_id": e.seller.ID,
		"name":      "Banani Billboard",
		"type":      "Billboard",
		"address":   "Road 11, Banani",
		"pricing":   map[string]float64{"3_months": 150000},
	})
	expect(e.t, rec, http.StatusOK)
	var asset models.Asset
	decode(e.t, rec, &asset)
	return asset
}

func TestMissingPrincipalIsUnauthorized(t *testing.T) {
	e := newEnv(t)
	rec := e.call(e.h.Me, http.MethodGet, "/api/auth/me", nil, nil, nil)
	expect(t, rec, http.StatusUnauthorized)

	var body map[string]string
	decode(t, rec, &body)
	if body["detail"] != "Could not validate credentials" {
		t.Fatalf("unexpected detail %q", body["detail"])
	}
}

func TestRegisterApproveLogin(t *testing.T) {
	e := newEnv(t)
	register := map[string]interface{}{
		"email":        "newbuyer@example.com",
		"password":     "hunter22",
		"role":         "buyer",
		"company_name": "Fresh Foods",
		"contact_name": "Rahim",
	}
	rec := e.call(e.h.Register, http.MethodPost, "/api/auth/register", nil, nil, register)
	expect(t, rec, http.StatusOK)
	var user models.User
	decode(t, rec, &user)
	if user.Status != models.UserPending {
		t.Fatalf("expected pending user, got %s", user.Status)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("password")) {
		t.Fatalf("password hash leaked: %s", rec.Body.String())
	}

	login := map[string]string{"email": "newbuyer@example.com", "password": "hunter22"}
	expect(t, e.call(e.h.Login, http.MethodPost, "/api/auth/login", nil, nil, login), http.StatusUnauthorized)

	rec = e.call(e.h.SetUserStatus, http.MethodPatch, "/api/admin/users/"+user.ID+"/status", &e.admin,
		map[string]string{"id": user.ID}, map[string]string{"status": "approved"})
	expect(t, rec, http.StatusOK)

	rec = e.call(e.h.Login, http.MethodPost, "/api/auth/login", nil, nil, login)
	expect(t, rec, http.StatusOK)
	var result mediation.LoginResult
	decode(t, rec, &result)
	if result.AccessToken == "" || result.TokenType != "bearer" || result.User.ID != user.ID {
		t.Fatalf("unexpected login result %+v", result)
	}
}

func TestPayloadShapeErrors(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"email":`},
		{"unknown field", `{"email":"a@b.c","password":"x","is_admin":true}`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			e.h.Login(rec, req)
			expect(t, rec, http.StatusUnprocessableEntity)
		})
	}
}

func TestOfferFlowOverHTTP(t *testing.T) {
	e := newEnv(t)
	asset := e.createAsset()
	if asset.Status != models.AssetAvailable {
		t.Fatalf("admin listing should be available, got %s", asset.Status)
	}

	rec := e.call(e.h.SubmitRequest, http.MethodPost, "/api/offers/request", &e.buyer, nil, map[string]interface{}{
		"asset_id":          asset.ID,
		"campaign_name":     "Spring Sale",
		"campaign_type":     "new",
		"contract_duration": "3_months",
	})
	expect(t, rec, http.StatusOK)
	var offer models.OfferRequest
	decode(t, rec, &offer)
	if offer.Status != models.OfferPending {
		t.Fatalf("expected Pending, got %s", offer.Status)
	}

	vars := map[string]string{"id": offer.ID}
	rec = e.call(e.h.Quote, http.MethodPut, "/api/admin/offers/"+offer.ID+"/quote", &e.admin, vars,
		map[string]interface{}{"quoted_price": 140000, "admin_notes": "includes printing"})
	expect(t, rec, http.StatusOK)
	decode(t, rec, &offer)
	if offer.Status != models.OfferQuoted || offer.QuoteCount != 1 {
		t.Fatalf("unexpected quoted offer %+v", offer)
	}

	// a second submission against the held asset is refused
	rec = e.call(e.h.SubmitRequest, http.MethodPost, "/api/offers/request", &e.buyer, nil, map[string]interface{}{
		"asset_id":          asset.ID,
		"campaign_name":     "Again",
		"campaign_type":     "new",
		"contract_duration": "1_month",
	})
	expect(t, rec, http.StatusBadRequest)

	rec = e.call(e.h.RespondToQuote, http.MethodPut, "/api/offers/"+offer.ID+"/respond", &e.buyer, vars,
		map[string]string{"action": "accept"})
	expect(t, rec, http.StatusOK)
	decode(t, rec, &offer)
	if offer.Status != models.OfferAccepted {
		t.Fatalf("expected Accepted, got %s", offer.Status)
	}

	rec = e.call(e.h.GetAsset, http.MethodGet, "/api/assets/"+asset.ID, &e.buyer, map[string]string{"id": asset.ID}, nil)
	expect(t, rec, http.StatusOK)
	var booked models.Asset
	decode(t, rec, &booked)
	if booked.Status != models.AssetLive || booked.BuyerID == nil || *booked.BuyerID != e.buyer.ID {
		t.Fatalf("asset not booked to buyer: %+v", booked)
	}

	rec = e.call(e.h.LiveAssets, http.MethodGet, "/api/assets/live", &e.buyer, nil, nil)
	expect(t, rec, http.StatusOK)
	var live []mediation.LiveAsset
	decode(t, rec, &live)
	if len(live) != 1 || live[0].OfferID != offer.ID {
		t.Fatalf("unexpected live assets %+v", live)
	}

	// deleting a booked request is not allowed
	rec = e.call(e.h.DeleteRequest, http.MethodDelete, "/api/offers/requests/"+offer.ID, &e.buyer, vars, nil)
	expect(t, rec, http.StatusBadRequest)
}

func TestAdminQueueStatusFilter(t *testing.T) {
	e := newEnv(t)
	first := e.createAsset()
	second := e.createAsset()
	for _, asset := range []models.Asset{first, second} {
		rec := e.call(e.h.SubmitRequest, http.MethodPost, "/api/offers/request", &e.buyer, nil, map[string]interface{}{
			"asset_id":          asset.ID,
			"campaign_name":     "Queue",
			"campaign_type":     "new",
			"contract_duration": "1_month",
		})
		expect(t, rec, http.StatusOK)
		if asset.ID == second.ID {
			var offer models.OfferRequest
			decode(t, rec, &offer)
			rec = e.call(e.h.Quote, http.MethodPut, "/api/admin/offers/"+offer.ID+"/quote", &e.admin,
				map[string]string{"id": offer.ID}, map[string]interface{}{"quoted_price": 1000})
			expect(t, rec, http.StatusOK)
		}
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 2},
		{"?status=Pending", 1},
		{"?status=Pending,Quoted", 2},
		{"?status=Pending&status=Quoted", 2},
		{"?status=Rejected", 0},
	}
	for _, tt := range tests {
		rec := e.call(e.h.AdminQueue, http.MethodGet, "/api/admin/offer-requests"+tt.query, &e.admin, nil, nil)
		expect(t, rec, http.StatusOK)
		var queue []mediation.QueueEntry
		decode(t, rec, &queue)
		if len(queue) != tt.want {
			t.Fatalf("%q: got %d entries, want %d", tt.query, len(queue), tt.want)
		}
		for _, entry := range queue {
			if entry.Buyer == nil || entry.Asset == nil {
				t.Fatalf("%q: missing joined identity in %+v", tt.query, entry)
			}
		}
	}

	rec := e.call(e.h.AdminQueue, http.MethodGet, "/api/admin/offer-requests", &e.buyer, nil, nil)
	expect(t, rec, http.StatusForbidden)
}

func TestCampaignLifecycleOverHTTP(t *testing.T) {
	e := newEnv(t)
	rec := e.call(e.h.CreateCampaign, http.MethodPost, "/api/campaigns", &e.buyer, nil,
		map[string]interface{}{"name": "Monsoon", "budget": 500000})
	expect(t, rec, http.StatusOK)
	var campaign models.Campaign
	decode(t, rec, &campaign)
	if campaign.Status != models.CampaignDraft || campaign.BuyerID != e.buyer.ID {
		t.Fatalf("unexpected campaign %+v", campaign)
	}

	vars := map[string]string{"id": campaign.ID}
	rec = e.call(e.h.SetCampaignStatus, http.MethodPut, "/api/campaigns/"+campaign.ID+"/status", &e.buyer, vars,
		map[string]string{"status": "Live"})
	expect(t, rec, http.StatusBadRequest)

	rec = e.call(e.h.SetCampaignStatus, http.MethodPut, "/api/campaigns/"+campaign.ID+"/status", &e.buyer, vars,
		map[string]string{"status": "Negotiation"})
	expect(t, rec, http.StatusOK)

	rec = e.call(e.h.ListCampaigns, http.MethodGet, "/api/admin/campaigns?buyer_id="+e.buyer.ID, &e.admin, nil, nil)
	expect(t, rec, http.StatusOK)
	var campaigns []models.Campaign
	decode(t, rec, &campaigns)
	if len(campaigns) != 1 || campaigns[0].Status != models.CampaignNegotiation {
		t.Fatalf("unexpected admin listing %+v", campaigns)
	}

	rec = e.call(e.h.ListCampaigns, http.MethodGet, "/api/campaigns", &e.seller, nil, nil)
	expect(t, rec, http.StatusForbidden)

	rec = e.call(e.h.DeleteCampaign, http.MethodDelete, "/api/campaigns/"+campaign.ID, &e.buyer, vars, nil)
	expect(t, rec, http.StatusBadRequest)
}

func pngUpload(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	part.Write(content)
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	return &body, form.FormDataContentType()
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestUploadImage(t *testing.T) {
	tests := []struct {
		name      string
		principal func(e *env) models.Principal
		field     string
		content   []byte
		uploadErr error
		code      int
	}{
		{"seller uploads png", func(e *env) models.Principal { return e.seller }, "file", pngHeader, nil, http.StatusOK},
		{"admin uploads png", func(e *env) models.Principal { return e.admin }, "file", pngHeader, nil, http.StatusOK},
		{"buyer refused", func(e *env) models.Principal { return e.buyer }, "file", pngHeader, nil, http.StatusForbidden},
		{"wrong field", func(e *env) models.Principal { return e.seller }, "image", pngHeader, nil, http.StatusUnprocessableEntity},
		{"not an image", func(e *env) models.Principal { return e.seller }, "file", []byte("plain text body"), nil, http.StatusUnprocessableEntity},
		{"cdn failure", func(e *env) models.Principal { return e.seller }, "file", pngHeader,
			apperr.New(apperr.KindUpstream, "image upload failed"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.uploader.err = tt.uploadErr
			body, contentType := pngUpload(t, tt.field, "front.png", tt.content)
			req := httptest.NewRequest(http.MethodPost, "/api/upload/image", body)
			req.Header.Set("Content-Type", contentType)
			req = req.WithContext(middleware.WithPrincipal(req.Context(), tt.principal(e)))
			rec := httptest.NewRecorder()
			e.h.UploadImage(rec, req)
			expect(t, rec, tt.code)

			if tt.code != http.StatusOK {
				return
			}
			var result media.Result
			decode(t, rec, &result)
			if result.URL != "https://cdn.example.com/front.png" || result.PublicID == "" {
				t.Fatalf("unexpected result %+v", result)
			}
			if !bytes.Equal(e.uploader.body, tt.content) {
				t.Fatalf("uploader received %q", e.uploader.body)
			}
		})
	}
}

func TestHealthCheck(t *testing.T) {
	e := newEnv(t)
	rec := e.call(e.h.HealthCheck, http.MethodGet, "/health", nil, nil, nil)
	expect(t, rec, http.StatusOK)
	var health HealthCheckResponse
	decode(t, rec, &health)
	if health.Status != "healthy" || health.Database != "connected" || health.Version == "" {
		t.Fatalf("unexpected health %+v", health)
	}
	if health.Channels != 2 {
		t.Fatalf("expected 2 open channels, got %d", health.Channels)
	}
}

func TestPublicSurfacesHideOwnership(t *testing.T) {
	e := newEnv(t)
	e.createAsset()

	rec := e.call(e.h.PublicAssets, http.MethodGet, "/api/assets/public", nil, nil, nil)
	expect(t, rec, http.StatusOK)
	if bytes.Contains(rec.Body.Bytes(), []byte("seller_id")) || bytes.Contains(rec.Body.Bytes(), []byte("buyer_id")) {
		t.Fatalf("public catalog leaked ownership: %s", rec.Body.String())
	}
	var catalog []models.PublicAsset
	decode(t, rec, &catalog)
	if len(catalog) != 1 {
		t.Fatalf("expected 1 public asset, got %d", len(catalog))
	}

	rec = e.call(e.h.PublicStats, http.MethodGet, "/api/stats/public", nil, nil, nil)
	expect(t, rec, http.StatusOK)
	var stats mediation.PublicStats
	decode(t, rec, &stats)
	if stats.TotalAssets != 1 || stats.AvailableAssets != 1 || stats.TotalSellers != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestListAuditQuery(t *testing.T) {
	e := newEnv(t)
	asset := e.createAsset()

	rec := e.call(e.h.ListAudit, http.MethodGet, "/api/admin/audit?limit=abc", &e.admin, nil, nil)
	expect(t, rec, http.StatusUnprocessableEntity)

	rec = e.call(e.h.ListAudit, http.MethodGet, "/api/admin/audit?entity_id="+asset.ID, &e.admin, nil, nil)
	expect(t, rec, http.StatusOK)
	var logs []models.AuditLog
	decode(t, rec, &logs)
	if len(logs) != 1 || logs[0].EntityID != asset.ID || logs[0].Action != "asset_created" {
		t.Fatalf("unexpected audit trail %+v", logs)
	}

	rec = e.call(e.h.ListAudit, http.MethodGet, "/api/admin/audit", &e.seller, nil, nil)
	expect(t, rec, http.StatusForbidden)
}

func TestQueryList(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?status=On%20Hold,%20Quoted&status=&status=Pending", nil)
	got := queryList(req, "status")
	want := []string{"On Hold", "Quoted", "Pending"}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %q, want %q", got, want)
		}
	}

	if _, err := queryInt(httptest.NewRequest(http.MethodGet, "/x?limit=ten", nil), "limit"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
