package handlers_test

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhortlabs/zhort/internal/access"
	"github.com/zhortlabs/zhort/internal/cache"
	"github.com/zhortlabs/zhort/internal/clicks"
	"github.com/zhortlabs/zhort/internal/config"
	"github.com/zhortlabs/zhort/internal/db"
	"github.com/zhortlabs/zhort/internal/geo"
	"github.com/zhortlabs/zhort/internal/handlers"
	"github.com/zhortlabs/zhort/internal/models"
	"github.com/zhortlabs/zhort/internal/ratelimit"
	"github.com/zhortlabs/zhort/internal/resolver"
	"github.com/zhortlabs/zhort/internal/safety"
	"github.com/zhortlabs/zhort/internal/smartrules"
	"github.com/zhortlabs/zhort/internal/variants"
	"github.com/zhortlabs/zhort/internal/webhooks"
)

const (
	testAPIKey = "test-secret"
	mobileUA   = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

type fixture struct {
	router *chi.Mux
	db     *sql.DB
}

func setup(t *testing.T) *fixture {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}

	log := zap.NewNop()
	cfg := &config.Config{
		APIKey:         testAPIKey,
		BaseURL:        "http://zho.rt",
		AllowAnonymous: true,
	}

	// Seed the blocklist before constructing the checker so it comes up
	// initialized.
	if err := models.ReplaceBlockedDomains(database, []string{"evil.example"}); err != nil {
		t.Fatal(err)
	}

	linkCache := cache.NewLinkCache(128, time.Minute)
	configCache := cache.NewConfigCache(128, time.Minute)
	geoReader, _ := geo.Open("")
	limiter := ratelimit.New(database, log)
	checker := safety.NewChecker(database, log, "", "")
	recorder := clicks.NewRecorder(database, geoReader, log, 1000, time.Hour)
	hooks := webhooks.NewDispatcher(database, log, 16, time.Second)
	selector := variants.New(database, log)

	t.Cleanup(func() {
		hooks.Shutdown()
		recorder.Shutdown()
		checker.Shutdown()
		database.Close()
	})

	pipeline := resolver.New(
		database, linkCache, configCache,
		access.NewController(database, limiter, log),
		selector, smartrules.New(), geoReader, recorder, hooks, log,
	)

	linkHandler := &handlers.LinkHandler{
		DB: database, Cfg: cfg, Links: linkCache, Configs: configCache,
		Safety: checker, Limiter: limiter, Hooks: hooks,
	}
	variantHandler := &handlers.VariantHandler{DB: database, Selector: selector}
	ruleHandler := &handlers.RuleHandler{DB: database, Configs: configCache}
	webhookHandler := &handlers.WebhookHandler{DB: database}
	qrHandler := &handlers.QRHandler{DB: database, Cfg: cfg}
	redirectHandler := &handlers.RedirectHandler{Pipeline: pipeline}

	r := chi.NewRouter()
	r.Post("/shorten", linkHandler.CreateAnonymous)
	r.Route("/api", func(r chi.Router) {
		r.Use(handlers.AuthMiddleware(cfg.APIKey))
		r.Post("/links", linkHandler.Create)
		r.Get("/links", linkHandler.List)
		r.Get("/links/{id}", linkHandler.Get)
		r.Patch("/links/{id}", linkHandler.Update)
		r.Delete("/links/{id}", linkHandler.Archive)
		r.Get("/links/{id}/stats", linkHandler.Stats)
		r.Get("/links/{id}/qr", qrHandler.ServeHTTP)
		r.Post("/links/{id}/variants", variantHandler.Create)
		r.Get("/links/{id}/variants", variantHandler.List)
		r.Post("/links/{id}/winner", variantHandler.Winner)
		r.Post("/variants/{id}/convert", variantHandler.Convert)
		r.Post("/links/{id}/rules", ruleHandler.CreateRule)
		r.Get("/links/{id}/rules", ruleHandler.ListRules)
		r.Post("/links/{id}/schedules", ruleHandler.CreateSchedule)
		r.Post("/webhooks", webhookHandler.Create)
		r.Get("/webhooks", webhookHandler.List)
	})
	r.NotFound(redirectHandler.ServeHTTP)

	return &fixture{router: r, db: database}
}

func authReq(method, path, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-API-Key", testAPIKey)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) createLink(t *testing.T, body string) models.Link {
	t.Helper()
	rr := f.do(authReq("POST", "/api/links", body))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create link: status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var link models.Link
	if err := json.NewDecoder(rr.Body).Decode(&link); err != nil {
		t.Fatal(err)
	}
	return link
}

func TestAuth_MissingAPIKey(t *testing.T) {
	f := setup(t)
	rr := f.do(httptest.NewRequest("GET", "/api/links", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestAuth_WrongAPIKey(t *testing.T) {
	f := setup(t)
	req := httptest.NewRequest("GET", "/api/links", nil)
	req.Header.Set("X-API-Key", "wrong")
	if rr := f.do(req); rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestCreateLink_GeneratesCode(t *testing.T) {
	f := setup(t)
	link := f.createLink(t, `{"destination":"https://example.com"}`)
	if len(link.Code) != 6 {
		t.Errorf("code = %q, want 6 chars", link.Code)
	}
	if link.ShortURL != "http://zho.rt/"+link.Code {
		t.Errorf("short_url = %q", link.ShortURL)
	}
}

func TestCreateLink_CustomCodeConflict(t *testing.T) {
	f := setup(t)
	f.createLink(t, `{"code":"launch","destination":"https://example.com"}`)
	rr := f.do(authReq("POST", "/api/links", `{"code":"launch","destination":"https://other.example"}`))
	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}
}

func TestCreateLink_InvalidDestination(t *testing.T) {
	f := setup(t)
	for _, dest := range []string{"", "not-a-url", "ftp://example.com/file"} {
		rr := f.do(authReq("POST", "/api/links", fmt.Sprintf(`{"destination":%q}`, dest)))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("destination %q: status = %d, want 400", dest, rr.Code)
		}
	}
}

func TestCreateLink_BlockedDestination(t *testing.T) {
	f := setup(t)
	rr := f.do(authReq("POST", "/api/links", `{"destination":"https://evil.example/login"}`))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rr.Code)
	}
}

func TestRedirect_Found(t *testing.T) {
	f := setup(t)
	link := f.createLink(t, `{"destination":"https://example.com/page"}`)

	rr := f.do(httptest.NewRequest("GET", "/"+link.Code, nil))
	if rr.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "https://example.com/page" {
		t.Errorf("Location = %q", loc)
	}
}

func TestRedirect_UnknownCode(t *testing.T) {
	f := setup(t)
	if rr := f.do(httptest.NewRequest("GET", "/nosuch", nil)); rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestRedirect_ArchivedLinkGone(t *testing.T) {
	f := setup(t)
	link := f.createLink(t, `{"destination":"https://example.com"}`)

	if rr := f.do(authReq("DELETE", fmt.Sprintf("/api/links/%d", link.ID), "")); rr.Code != http.StatusNoContent {
		t.Fatalf("archive: status = %d", rr.Code)
	}
	if rr := f.do(httptest.NewRequest("GET", "/"+link.Code, nil)); rr.Code != http.StatusGone {
		t.Errorf("status = %d, want 410", rr.Code)
	}
}

func TestRedirect_PasswordProtected(t *testing.T) {
	f := setup(t)
	link := f.createLink(t, `{"destination":"https://example.com","password":"s3cret"}`)

	if rr := f.do(httptest.NewRequest("GET", "/"+link.Code, nil)); rr.Code != http.StatusUnauthorized {
		t.Errorf("no password: status = %d, want 401", rr.Code)
	}
	rr := f.do(httptest.NewRequest("GET", "/"+link.Code+"?password=s3cret", nil))
	if rr.Code != http.StatusFound {
		t.Errorf("with password: status = %d, want 302", rr.Code)
	}
}

func TestUpdateLink_InvalidatesCache(t *testing.T) {
	f := setup(t)
	link := f.createLink(t, `{"destination":"https://old.example"}`)

	// Warm the cache.
	if rr := f.do(httptest.NewRequest("GET", "/"+link.Code, nil)); rr.Code != http.StatusFound {
		t.Fatalf("warm: status = %d", rr.Code)
	}

	rr := f.do(authReq("PATCH", fmt.Sprintf("/api/links/%d", link.ID), `{"destination":"https://new.example"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("update: status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = f.do(httptest.NewRequest("GET", "/"+link.Code, nil))
	if loc := rr.Header().Get("Location"); loc != "https://new.example" {
		t.Errorf("Location = %q, want updated destination", loc)
	}
}

func TestUpdateLink_KeepsMaskingWhenOmitted(t *testing.T) {
	f := setup(t)
	link := f.createLink(t, `{"destination":"https://example.com","enable_splash":true,"splash_duration_ms":2000,"splash_html":"<h1>One moment</h1>"}`)

	rr := f.do(authReq("PATCH", fmt.Sprintf("/api/links/%d", link.ID), `{"destination":"https://new.example"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("update: status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var updated models.Link
	if err := json.NewDecoder(rr.Body).Decode(&updated); err != nil {
		t.Fatal(err)
	}
	if !updated.Masking.EnableSplash || updated.Masking.SplashDurationMs != 2000 {
		t.Errorf("masking = %+v, want splash config untouched", updated.Masking)
	}

	rr = f.do(httptest.NewRequest("GET", "/"+link.Code, nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "https://new.example") {
		t.Errorf("status = %d, want splash page for new destination", rr.Code)
	}

	// Explicitly disabling still works.
	rr = f.do(authReq("PATCH", fmt.Sprintf("/api/links/%d", link.ID), `{"enable_splash":false}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("disable splash: status = %d", rr.Code)
	}
	rr = f.do(httptest.NewRequest("GET", "/"+link.Code, nil))
	if rr.Code != http.StatusFound {
		t.Errorf("status = %d, want 302 after splash disabled", rr.Code)
	}
}

func TestRuleWrite_AffectsRedirect(t *testing.T) {
	f := setup(t)
	link := f.createLink(t, `{"destination":"https://example.com"}`)

	// Warm the config cache with the empty rule set.
	f.do(httptest.NewRequest("GET", "/"+link.Code, nil))

	body := `{"rule_type":"device","condition":"mobile","target_url":"https://m.example"}`
	if rr := f.do(authReq("POST", fmt.Sprintf("/api/links/%d/rules", link.ID), body)); rr.Code != http.StatusCreated {
		t.Fatalf("create rule: status = %d, body = %s", rr.Code, rr.Body.String())
	}

	req := httptest.NewRequest("GET", "/"+link.Code, nil)
	req.Header.Set("User-Agent", mobileUA)
	rr := f.do(req)
	if loc := rr.Header().Get("Location"); loc != "https://m.example" {
		t.Errorf("Location = %q, want rule target after cache invalidation", loc)
	}
}

func TestCreateRule_InvalidCondition(t *testing.T) {
	f := setup(t)
	link := f.createLink(t, `{"destination":"https://example.com"}`)

	body := `{"rule_type":"device","condition":"smartwatch","target_url":"https://m.example"}`
	rr := f.do(authReq("POST", fmt.Sprintf("/api/links/%d/rules", link.ID), body))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestScheduleWrite_AffectsRedirect(t *testing.T) {
	f := setup(t)
	link := f.createLink(t, `{"destination":"https://example.com"}`)

	until := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	body := fmt.Sprintf(`{"active_until":%q,"fallback_url":"https://closed.example"}`, until)
	if rr := f.do(authReq("POST", fmt.Sprintf("/api/links/%d/schedules", link.ID), body)); rr.Code != http.StatusCreated {
		t.Fatalf("create schedule: status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr := f.do(httptest.NewRequest("GET", "/"+link.Code, nil))
	if loc := rr.Header().Get("Location"); loc != "https://closed.example" {
		t.Errorf("Location = %q, want fallback", loc)
	}
}

func TestVariants_CreateAndRedirect(t *testing.T) {
	f := setup(t)
	link := f.createLink(t, `{"destination":"https://example.com"}`)

	body := `{"target_url":"https://v.example","percentage":100}`
	if rr := f.do(authReq("POST", fmt.Sprintf("/api/links/%d/variants", link.ID), body)); rr.Code != http.StatusCreated {
		t.Fatalf("create variant: status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr := f.do(httptest.NewRequest("GET", "/"+link.Code, nil))
	if loc := rr.Header().Get("Location"); loc != "https://v.example" {
		t.Errorf("Location = %q, want variant target", loc)
	}
}

func TestConvert_UnknownVariant(t *testing.T) {
	f := setup(t)
	if rr := f.do(authReq("POST", "/api/variants/999/convert", "")); rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestWinner_PinRoutesAllTraffic(t *testing.T) {
	f := setup(t)
	link := f.createLink(t, `{"destination":"https://example.com"}`)

	rr := f.do(authReq("POST", fmt.Sprintf("/api/links/%d/variants", link.ID), `{"target_url":"https://a.example","percentage":10}`))
	var a models.Variant
	if err := json.NewDecoder(rr.Body).Decode(&a); err != nil {
		t.Fatal(err)
	}
	f.do(authReq("POST", fmt.Sprintf("/api/links/%d/variants", link.ID), `{"target_url":"https://b.example","percentage":90}`))

	body := fmt.Sprintf(`{"variant_id":%d}`, a.ID)
	if rr := f.do(authReq("POST", fmt.Sprintf("/api/links/%d/winner", link.ID), body)); rr.Code != http.StatusOK {
		t.Fatalf("pin winner: status = %d, body = %s", rr.Code, rr.Body.String())
	}

	for i := 0; i < 5; i++ {
		rr := f.do(httptest.NewRequest("GET", "/"+link.Code, nil))
		if loc := rr.Header().Get("Location"); loc != "https://a.example" {
			t.Fatalf("Location = %q, want pinned winner", loc)
		}
	}
}

func TestWebhooks_CreateAndList(t *testing.T) {
	f := setup(t)

	body := `{"owner_id":1,"url":"https://hooks.example/in","secret":"whsec","events":["link.created","link.clicked"]}`
	if rr := f.do(authReq("POST", "/api/webhooks", body)); rr.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr := f.do(authReq("GET", "/api/webhooks?owner_id=1", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rr.Code)
	}
	var hooks []models.Webhook
	if err := json.NewDecoder(rr.Body).Decode(&hooks); err != nil {
		t.Fatal(err)
	}
	if len(hooks) != 1 || len(hooks[0].Events) != 2 {
		t.Errorf("hooks = %+v, want one hook with two events", hooks)
	}
}

func TestWebhooks_UnknownEvent(t *testing.T) {
	f := setup(t)
	body := `{"owner_id":1,"url":"https://hooks.example/in","secret":"whsec","events":["link.teleported"]}`
	if rr := f.do(authReq("POST", "/api/webhooks", body)); rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestAnonymousCreate_RateLimited(t *testing.T) {
	f := setup(t)

	last := 0
	for i := 0; i < 11; i++ {
		req := httptest.NewRequest("POST", "/shorten", strings.NewReader(`{"destination":"https://example.com"}`))
		req.RemoteAddr = "203.0.113.50:1234"
		last = f.do(req).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("11th anonymous create: status = %d, want 429", last)
	}
}

func TestStats_Endpoint(t *testing.T) {
	f := setup(t)
	link := f.createLink(t, `{"destination":"https://example.com"}`)

	rr := f.do(authReq("GET", fmt.Sprintf("/api/links/%d/stats", link.ID), ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var stats models.LinkStats
	if err := json.NewDecoder(rr.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalClicks != 0 {
		t.Errorf("total clicks = %d, want 0", stats.TotalClicks)
	}
}

func TestRedirect_SplashPage(t *testing.T) {
	f := setup(t)
	link := f.createLink(t, `{"destination":"https://example.com","enable_splash":true,"splash_duration_ms":2000,"splash_html":"<h1>One moment</h1>"}`)

	rr := f.do(httptest.NewRequest("GET", "/"+link.Code, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "<h1>One moment</h1>") {
		t.Error("splash body missing configured HTML")
	}
	if !strings.Contains(body, "https://example.com") {
		t.Error("splash body missing target URL")
	}
}

func TestQR_ReturnsPNG(t *testing.T) {
	f := setup(t)
	link := f.createLink(t, `{"destination":"https://example.com"}`)

	rr := f.do(authReq("GET", fmt.Sprintf("/api/links/%d/qr", link.ID), ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
}
