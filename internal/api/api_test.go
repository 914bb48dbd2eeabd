package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rybaukrainy/portal/internal/analytics"
	"github.com/rybaukrainy/portal/internal/auth"
	"github.com/rybaukrainy/portal/internal/cache"
	"github.com/rybaukrainy/portal/internal/config"
	"github.com/rybaukrainy/portal/internal/draft"
	"github.com/rybaukrainy/portal/internal/editor"
	"github.com/rybaukrainy/portal/internal/ingest"
	"github.com/rybaukrainy/portal/internal/metrics"
	"github.com/rybaukrainy/portal/internal/objectstore"
	"github.com/rybaukrainy/portal/internal/register"
	"github.com/rybaukrainy/portal/internal/storage"
)

type testEnv struct {
	app      *fiber.App
	provider *auth.Provider
	objects  *objectstore.MemoryStore
	roles    *cache.MockRedisClient
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		SessionTTL:       time.Hour,
		RoleCacheTTL:     time.Minute,
		MaxFileSize:      10 << 20,
		ResizeThreshold:  500 << 10,
		ResizeMaxKB:      500,
		UploadAttempts:   3,
		FetchTimeout:     5 * time.Second,
		AutosaveInterval: time.Hour,
		HTTPTimeout:      30 * time.Second,
	}

	db, err := storage.NewStore(filepath.Join(dir, "portal.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}

	profiles := storage.NewProfileRepository(db)
	memberRepo := storage.NewMemberRepository(db)
	paymentRepo := storage.NewPaymentRepository(db)
	provider := auth.NewProvider(profiles, memberRepo)
	roles := cache.NewMockRedisClient()
	gate := auth.NewGate(profiles, roles, cfg.RoleCacheTTL)
	gate.Watch(provider)
	m := metrics.New()

	articles, err := register.NewArticleRegister(storage.NewArticleRepository(db), m)
	if err != nil {
		t.Fatal(err)
	}
	objects := objectstore.NewMemoryStore()
	uploader := ingest.NewUploader(gate, objects, cfg, m)

	scratch, err := draft.OpenBuffer(filepath.Join(dir, "scratch.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { scratch.Close() })
	registry := editor.NewRegistry(articles, scratch, uploader, cfg.AutosaveInterval, m)
	t.Cleanup(registry.Shutdown)

	h := NewHandlers(Deps{
		Config:    cfg,
		Provider:  provider,
		Gate:      gate,
		Sessions:  auth.NewSessions(cfg),
		Articles:  articles,
		Members:   register.NewMemberRegister(memberRepo),
		Payments:  register.NewPaymentRegister(paymentRepo, memberRepo),
		Analytics: analytics.NewService(memberRepo, paymentRepo),
		Editor:    registry,
		Uploader:  uploader,
		Metrics:   m,
	})
	return &testEnv{app: NewApp(h), provider: provider, objects: objects, roles: roles}
}

type reply struct {
	status int
	body   map[string]interface{}
	res    *http.Response
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, cookie string) reply {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(t, req, cookie)
}

func (e *testEnv) send(t *testing.T, req *http.Request, cookie string) reply {
	t.Helper()
	if cookie != "" {
		req.Header.Set("Cookie", auth.CookieName+"="+cookie)
	}
	res, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	out := reply{status: res.StatusCode, res: res}
	data, _ := io.ReadAll(res.Body)
	if len(data) > 0 && strings.HasPrefix(res.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(data, &out.body); err != nil {
			t.Fatalf("decode %s %s: %v", req.Method, req.URL.Path, err)
		}
	}
	return out
}

func sessionCookie(t *testing.T, r reply) string {
	t.Helper()
	for _, c := range r.res.Cookies() {
		if c.Name == auth.CookieName {
			return c.Value
		}
	}
	t.Fatalf("no session cookie in response (status %d)", r.status)
	return ""
}

func (e *testEnv) loginAdmin(t *testing.T) string {
	t.Helper()
	if _, err := e.provider.EnsureAdmin(context.Background(), "admin@ryba.ua", "secret123"); err != nil {
		t.Fatal(err)
	}
	r := e.do(t, "POST", "/api/v1/auth/login", map[string]string{"email": "admin@ryba.ua", "password": "secret123"}, "")
	if r.status != 200 {
		t.Fatalf("login status = %d, body = %v", r.status, r.body)
	}
	return sessionCookie(t, r)
}

func notice(r reply) string {
	n, _ := r.body["notice"].(map[string]interface{})
	msg, _ := n["message"].(string)
	return msg
}

func TestAdminRoutesRejectVisitors(t *testing.T) {
	env := newEnv(t)

	r := env.do(t, "GET", "/api/v1/admin/articles", nil, "")
	if r.status != 401 || r.body["redirect"] != "/login" || notice(r) != "Будь ласка, увійдіть в систему" {
		t.Errorf("anonymous = %d %v", r.status, r.body)
	}

	r = env.do(t, "POST", "/api/v1/auth/register", map[string]string{
		"email": "member@ryba.ua", "password": "secret123", "username": "member", "company_name": "Рибгосп",
	}, "")
	if r.status != 201 {
		t.Fatalf("register status = %d, body = %v", r.status, r.body)
	}
	member := sessionCookie(t, r)

	lookups := env.roles.Lookups
	r = env.do(t, "GET", "/api/v1/admin/articles", nil, member)
	if r.status != 403 || r.body["redirect"] != "/" || notice(r) != "Доступ заборонено" {
		t.Errorf("member = %d %v", r.status, r.body)
	}
	if _, ok := r.body["items"]; ok {
		t.Error("article data must not be returned to a member")
	}
	if env.roles.Lookups == lookups {
		t.Error("the role should have been looked up")
	}

	r = env.do(t, "GET", "/api/v1/auth/me", nil, member)
	if r.body["state"] != "member" {
		t.Errorf("me = %v", r.body)
	}

	// the new account appears in the public directory
	r = env.do(t, "GET", "/api/v1/members", nil, "")
	if r.status != 200 || r.body["total"].(float64) != 1 {
		t.Errorf("directory = %v", r.body)
	}
}

func TestMemberEditsOwnRecord(t *testing.T) {
	env := newEnv(t)

	r := env.do(t, "GET", "/api/v1/me/member", nil, "")
	if r.status != 401 || r.body["redirect"] != "/login" {
		t.Errorf("anonymous = %d %v", r.status, r.body)
	}

	r = env.do(t, "POST", "/api/v1/auth/register", map[string]string{
		"email": "farm@ryba.ua", "password": "secret123", "username": "farm", "company_name": "Рибгосп",
	}, "")
	if r.status != 201 {
		t.Fatalf("register status = %d, body = %v", r.status, r.body)
	}
	cookie := sessionCookie(t, r)

	r = env.do(t, "GET", "/api/v1/me/member", nil, cookie)
	if r.status != 200 {
		t.Fatalf("get own = %d %v", r.status, r.body)
	}
	before := r.body["member"].(map[string]interface{})
	if before["name"] != "Рибгосп" {
		t.Errorf("own member = %v", before)
	}

	r = env.do(t, "PUT", "/api/v1/me/member", map[string]interface{}{
		"name":              "Рибгосп Дніпро",
		"description":       "Короп і товстолобик",
		"membership_type":   "Premium",
		"production_amount": 120,
	}, cookie)
	if r.status != 200 {
		t.Fatalf("update own = %d %v", r.status, r.body)
	}
	after := r.body["member"].(map[string]interface{})
	if after["name"] != "Рибгосп Дніпро" || after["description"] != "Короп і товстолобик" {
		t.Errorf("edits not applied: %v", after)
	}
	for _, field := range []string{"id", "membership_type", "join_date", "user_id"} {
		if after[field] != before[field] {
			t.Errorf("%s = %v, want %v", field, after[field], before[field])
		}
	}

	r = env.do(t, "PUT", "/api/v1/me/member", map[string]interface{}{"name": ""}, cookie)
	if r.status != 422 {
		t.Errorf("empty name = %d %v", r.status, r.body)
	}

	// the directory still lists one record
	r = env.do(t, "GET", "/api/v1/members", nil, "")
	if r.status != 200 || r.body["total"].(float64) != 1 {
		t.Errorf("directory = %v", r.body)
	}

	// an admin without a member record gets a 404
	r = env.do(t, "GET", "/api/v1/me/member", nil, env.loginAdmin(t))
	if r.status != 404 {
		t.Errorf("admin own member = %d %v", r.status, r.body)
	}
}

func TestArticleLifecycle(t *testing.T) {
	env := newEnv(t)
	admin := env.loginAdmin(t)

	r := env.do(t, "POST", "/api/v1/admin/articles", map[string]string{
		"title": "Old", "summary": "S", "content": "<p>x</p>", "publish_date": "2020-01-01",
	}, admin)
	if r.status != 201 {
		t.Fatalf("create status = %d, body = %v", r.status, r.body)
	}

	r = env.do(t, "POST", "/api/v1/admin/articles", map[string]string{
		"title": "Test", "summary": "S", "content": "<p>x</p>", "tags": "a, , b,b",
	}, admin)
	if r.status != 201 {
		t.Fatalf("create status = %d, body = %v", r.status, r.body)
	}
	created := r.body["article"].(map[string]interface{})
	id := created["id"].(string)
	if created["category"] != "Загальні новини" || created["author"] != "Адміністратор" {
		t.Errorf("defaults = %v", created)
	}
	if tags := created["tags"].([]interface{}); len(tags) != 2 {
		t.Errorf("tags = %v", tags)
	}

	r = env.do(t, "GET", "/api/v1/news", nil, "")
	items := r.body["items"].([]interface{})
	if len(items) != 2 || items[0].(map[string]interface{})["id"] != id {
		t.Fatalf("news = %v", r.body)
	}

	r = env.do(t, "POST", "/api/v1/admin/articles", map[string]string{"title": "No body"}, admin)
	if r.status != 422 {
		t.Errorf("invalid create status = %d", r.status)
	}

	r = env.do(t, "DELETE", "/api/v1/admin/articles/"+id, nil, admin)
	if r.status != 428 {
		t.Errorf("unconfirmed delete status = %d", r.status)
	}
	r = env.do(t, "DELETE", "/api/v1/admin/articles/"+id+"?confirm=true", nil, admin)
	if r.status != 200 {
		t.Fatalf("delete status = %d, body = %v", r.status, r.body)
	}
	if r = env.do(t, "GET", "/api/v1/news/"+id, nil, ""); r.status != 404 {
		t.Errorf("deleted article status = %d", r.status)
	}
	r = env.do(t, "GET", "/api/v1/news", nil, "")
	if len(r.body["items"].([]interface{})) != 1 {
		t.Errorf("news after delete = %v", r.body)
	}
}

func TestUpdateDetectsStaleBase(t *testing.T) {
	env := newEnv(t)
	admin := env.loginAdmin(t)

	r := env.do(t, "POST", "/api/v1/admin/articles", map[string]string{"title": "v1", "summary": "S", "content": "c"}, admin)
	id := r.body["article"].(map[string]interface{})["id"].(string)
	base := r.body["base_hash"].(string)

	update := map[string]interface{}{"title": "v2", "summary": "S", "content": "c", "base_hash": base}
	if r = env.do(t, "PUT", "/api/v1/admin/articles/"+id, update, admin); r.status != 200 {
		t.Fatalf("update status = %d, body = %v", r.status, r.body)
	}
	update["title"] = "v3"
	if r = env.do(t, "PUT", "/api/v1/admin/articles/"+id, update, admin); r.status != 409 {
		t.Errorf("stale update status = %d", r.status)
	}
	update["force"] = true
	if r = env.do(t, "PUT", "/api/v1/admin/articles/"+id, update, admin); r.status != 200 {
		t.Errorf("forced update status = %d", r.status)
	}
}

func TestEditorFlow(t *testing.T) {
	env := newEnv(t)
	admin := env.loginAdmin(t)

	r := env.do(t, "POST", "/api/v1/admin/editor", nil, admin)
	if r.status != 201 {
		t.Fatalf("open status = %d, body = %v", r.status, r.body)
	}
	base := "/api/v1/admin/editor/" + r.body["id"].(string)

	steps := []struct {
		path string
		body interface{}
	}{
		{"/field", map[string]string{"field": "title", "value": "Test"}},
		{"/field", map[string]string{"field": "summary", "value": "S"}},
		{"/input", map[string]string{"content": "<p>Hello world</p>"}},
		{"/command", map[string]interface{}{"command": "bold", "selection": map[string]int{"start": 0, "end": 5}}},
		{"/tab", map[string]string{"tab": "html"}},
		{"/tab", map[string]string{"tab": "editor"}},
	}
	for _, s := range steps {
		if r = env.do(t, "POST", base+s.path, s.body, admin); r.status != 200 {
			t.Fatalf("%s status = %d, body = %v", s.path, r.status, r.body)
		}
	}
	content := r.body["draft"].(map[string]interface{})["content"]
	if content != "<p><b>Hello</b> world</p>" {
		t.Errorf("content = %v", content)
	}

	r = env.do(t, "POST", base+"/command", map[string]interface{}{"command": "createLink", "value": "https://x", "selection": map[string]int{"start": 1, "end": 1}}, admin)
	if r.status != 422 || notice(r) != "Спочатку виділіть текст" {
		t.Errorf("link without selection = %d %v", r.status, r.body)
	}

	r = env.do(t, "POST", base+"/save", nil, admin)
	if r.status != 200 {
		t.Fatalf("save status = %d, body = %v", r.status, r.body)
	}
	id := r.body["article"].(map[string]interface{})["id"].(string)

	r = env.do(t, "GET", "/api/v1/news/"+id, nil, "")
	if r.status != 200 || r.body["article"].(map[string]interface{})["content"] != "<p><b>Hello</b> world</p>" {
		t.Errorf("saved article = %d %v", r.status, r.body)
	}

	if r = env.do(t, "GET", base, nil, admin); r.status != 404 {
		t.Errorf("session after save status = %d", r.status)
	}
}

func pngFile(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	for x := 0; x < 20; x++ {
		for y := 0; y < 10; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestUploadImage(t *testing.T) {
	env := newEnv(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, _ := w.CreateFormFile("file", "fish.png")
	part.Write(pngFile(t))
	w.Close()

	upload := func(cookie string) reply {
		req := httptest.NewRequest("POST", "/api/v1/admin/images", bytes.NewReader(body.Bytes()))
		req.Header.Set("Content-Type", w.FormDataContentType())
		return env.send(t, req, cookie)
	}

	if r := upload(""); r.status != 401 {
		t.Errorf("anonymous upload status = %d", r.status)
	}
	if env.objects.Calls() != 0 {
		t.Errorf("anonymous upload made %d storage calls", env.objects.Calls())
	}

	r := upload(env.loginAdmin(t))
	if r.status != 201 {
		t.Fatalf("upload status = %d, body = %v", r.status, r.body)
	}
	url := r.body["image"].(map[string]interface{})["url"].(string)
	if !strings.HasPrefix(url, "https://images.test/") || strings.Contains(url, "fish") {
		t.Errorf("url = %q, want a generated name", url)
	}
}

func TestPaymentsAndAnalytics(t *testing.T) {
	env := newEnv(t)
	admin := env.loginAdmin(t)

	r := env.do(t, "POST", "/api/v1/admin/members", map[string]interface{}{
		"name": "Рибгосп", "production_type": "Короп", "production_amount": 12,
	}, admin)
	if r.status != 201 {
		t.Fatalf("member status = %d, body = %v", r.status, r.body)
	}
	memberID := r.body["member"].(map[string]interface{})["id"].(string)

	r = env.do(t, "POST", "/api/v1/admin/payments", map[string]interface{}{
		"member_id": memberID, "amount": 1500, "payment_date": "2024-02-10",
	}, admin)
	if r.status != 201 {
		t.Fatalf("payment status = %d, body = %v", r.status, r.body)
	}
	paymentID := r.body["payment"].(map[string]interface{})["id"].(string)

	r = env.do(t, "PATCH", "/api/v1/admin/payments/"+paymentID+"/status", nil, admin)
	if r.status != 200 || r.body["payment"].(map[string]interface{})["payment_status"] != "pending" {
		t.Errorf("toggle = %d %v", r.status, r.body)
	}

	r = env.do(t, "GET", "/api/v1/admin/payments?status=pending", nil, admin)
	totals := r.body["totals"].(map[string]interface{})
	if totals["pending"] != 1500.0 || totals["paid"] != 0.0 {
		t.Errorf("totals = %v", totals)
	}

	r = env.do(t, "PATCH", "/api/v1/admin/members/"+memberID+"/membership", map[string]string{"membership_type": "Premium"}, admin)
	if r.status != 200 {
		t.Errorf("membership status = %d, body = %v", r.status, r.body)
	}

	r = env.do(t, "GET", "/api/v1/admin/analytics", nil, admin)
	if r.status != 200 || r.body["member_count"] != 1.0 || r.body["production_total"] != 12.0 {
		t.Errorf("analytics = %v", r.body)
	}
	monthly := r.body["monthly"].([]interface{})
	if len(monthly) != 1 || monthly[0].(map[string]interface{})["month"] != "2024-02" {
		t.Errorf("monthly = %v", monthly)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newEnv(t)
	if r := env.do(t, "GET", "/api/v1/health", nil, ""); r.status != 200 || r.body["status"] != "ok" {
		t.Errorf("health = %d %v", r.status, r.body)
	}

	res, err := env.app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(data), `portal_http_request_duration_seconds_count{method="GET",route="/api/v1/health",status="200"} 1`) {
		t.Errorf("metrics output lacks the health request:\n%s", data)
	}

	if r := env.do(t, "GET", "/api/v1/nope", nil, ""); r.status != 404 {
		t.Errorf("unknown route status = %d", r.status)
	}
}
