package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/estategate/internal/domain/gatepass"
	"github.com/geocoder89/estategate/internal/domain/user"
	"github.com/geocoder89/estategate/internal/http/handlers"
	"github.com/geocoder89/estategate/internal/http/middlewares"
	"github.com/geocoder89/estategate/internal/service"
	"github.com/gin-gonic/gin"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeAccounts struct {
	registerFn func(ctx context.Context, in service.RegisterInput) (string, user.PendingRegistration, error)
	verifyFn   func(ctx context.Context, claim, password string) (service.Credentials, error)
	loginFn    func(ctx context.Context, email, password string) (service.Credentials, error)
	refreshFn  func(ctx context.Context, token string) (string, error)
	meFn       func(ctx context.Context, caller user.Identity) (user.User, error)
}

func (f *fakeAccounts) Register(ctx context.Context, in service.RegisterInput) (string, user.PendingRegistration, error) {
	if f.registerFn != nil {
		return f.registerFn(ctx, in)
	}
	return "claim", user.PendingRegistration{}, nil
}

func (f *fakeAccounts) Verify(ctx context.Context, claim, password string) (service.Credentials, error) {
	if f.verifyFn != nil {
		return f.verifyFn(ctx, claim, password)
	}
	return service.Credentials{AccessToken: "a", RefreshToken: "r"}, nil
}

func (f *fakeAccounts) Login(ctx context.Context, email, password string) (service.Credentials, error) {
	if f.loginFn != nil {
		return f.loginFn(ctx, email, password)
	}
	return service.Credentials{AccessToken: "a", RefreshToken: "r"}, nil
}

func (f *fakeAccounts) Refresh(ctx context.Context, token string) (string, error) {
	if f.refreshFn != nil {
		return f.refreshFn(ctx, token)
	}
	return "a2", nil
}

func (f *fakeAccounts) Me(ctx context.Context, caller user.Identity) (user.User, error) {
	if f.meFn != nil {
		return f.meFn(ctx, caller)
	}
	return user.User{ID: caller.UserID, Email: caller.Email, Role: caller.Role}, nil
}

type fakeRegistry struct {
	generateFn func(ctx context.Context, caller user.Identity, req service.EntryRequest) (service.IssuedPass, error)
	validateFn func(ctx context.Context, caller user.Identity, id string) (service.PassDetails, error)
	exitFn     func(ctx context.Context, caller user.Identity, id string) (service.IssuedPass, error)
}

func (f *fakeRegistry) GenerateEntry(ctx context.Context, caller user.Identity, req service.EntryRequest) (service.IssuedPass, error) {
	return f.generateFn(ctx, caller, req)
}

func (f *fakeRegistry) Validate(ctx context.Context, caller user.Identity, id string) (service.PassDetails, error) {
	return f.validateFn(ctx, caller, id)
}

func (f *fakeRegistry) GenerateExit(ctx context.Context, caller user.Identity, id string) (service.IssuedPass, error) {
	return f.exitFn(ctx, caller, id)
}

func (f *fakeRegistry) Active(_ context.Context, _ user.Identity) ([]gatepass.VisitorToken, error) {
	return nil, nil
}

func withIdentity(id user.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(string(middlewares.CtxIdentity), id)
		c.Next()
	}
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body: %v body=%s", err, w.Body.String())
	}
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	body := decode(t, w)
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func authRouter(acc *fakeAccounts) *gin.Engine {
	h := handlers.NewAuthHandler(acc, discard)

	r := gin.New()
	r.POST("/register", h.Register)
	r.POST("/verify/:token", h.Verify)
	r.POST("/login", h.Login)
	r.POST("/refresh", h.Refresh)
	r.GET("/me", withIdentity(user.Identity{UserID: "u1", Email: "a@x.com", Role: user.RoleResident}), h.Me)
	return r
}

func TestRegister(t *testing.T) {
	var got service.RegisterInput
	acc := &fakeAccounts{
		registerFn: func(_ context.Context, in service.RegisterInput) (string, user.PendingRegistration, error) {
			got = in
			return "claim", user.PendingRegistration{}, nil
		},
	}

	w := doJSON(authRouter(acc), http.MethodPost, "/register",
		`{"fullname":"Amy","email":"a@x.com","phone":"555","status":"Resident"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	if decode(t, w)["message"] == nil {
		t.Fatalf("expected message in body")
	}
	if _, leaked := decode(t, w)["token"]; leaked {
		t.Fatalf("claim must only travel by email")
	}
	if got.Role != "Resident" || got.FullName != "Amy" {
		t.Fatalf("unexpected input %+v", got)
	}
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"missing fields", `{"email":"a@x.com"}`, nil, http.StatusBadRequest, "invalid_request"},
		{"delivery failure", `{"fullname":"A","email":"a@x.com","phone":"1"}`, service.ErrDelivery, http.StatusInternalServerError, "delivery_failed"},
		{"service validation", `{"fullname":"A","email":"a@x.com","phone":"1"}`, service.ErrValidation, http.StatusBadRequest, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := &fakeAccounts{
				registerFn: func(context.Context, service.RegisterInput) (string, user.PendingRegistration, error) {
					return "claim", user.PendingRegistration{}, tt.err
				},
			}

			w := doJSON(authRouter(acc), http.MethodPost, "/register", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d body=%s", tt.wantCode, w.Code, w.Body.String())
			}
			if code := errorCode(t, w); code != tt.wantErr {
				t.Fatalf("expected error code %q, got %q", tt.wantErr, code)
			}
		})
	}
}

func TestVerify_MapsEveryFailureTo400(t *testing.T) {
	tests := []struct {
		err      error
		wantCode string
	}{
		{service.ErrClaimExpired, "token_expired"},
		{service.ErrClaimInvalid, "invalid_token"},
		{service.ErrConflict, "email_taken"},
		{service.ErrValidation, "password_required"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			acc := &fakeAccounts{
				verifyFn: func(context.Context, string, string) (service.Credentials, error) {
					return service.Credentials{}, tt.err
				},
			}

			w := doJSON(authRouter(acc), http.MethodPost, "/verify/abc", `{"password":"pw"}`)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if code := errorCode(t, w); code != tt.wantCode {
				t.Fatalf("expected %q, got %q", tt.wantCode, code)
			}
		})
	}
}

func TestVerify_EmptyBodyReachesService(t *testing.T) {
	var gotClaim, gotPassword string
	acc := &fakeAccounts{
		verifyFn: func(_ context.Context, claim, password string) (service.Credentials, error) {
			gotClaim, gotPassword = claim, password
			return service.Credentials{AccessToken: "a", RefreshToken: "r"}, nil
		},
	}

	w := doJSON(authRouter(acc), http.MethodPost, "/verify/the-claim", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from fake, got %d body=%s", w.Code, w.Body.String())
	}
	if gotClaim != "the-claim" || gotPassword != "" {
		t.Fatalf("unexpected args claim=%q password=%q", gotClaim, gotPassword)
	}

	body := decode(t, w)
	if body["access_token"] != "a" || body["refresh_token"] != "r" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestLogin(t *testing.T) {
	acc := &fakeAccounts{
		loginFn: func(_ context.Context, email, password string) (service.Credentials, error) {
			if password != "pw123" {
				return service.Credentials{}, service.ErrAuth
			}
			return service.Credentials{AccessToken: "a", RefreshToken: "r"}, nil
		},
	}
	r := authRouter(acc)

	if w := doJSON(r, http.MethodPost, "/login", `{"email":"a@x.com","password":"pw123"}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w := doJSON(r, http.MethodPost, "/login", `{"email":"a@x.com","password":"nope"}`)
	if w.Code != http.StatusUnauthorized || errorCode(t, w) != "invalid_credentials" {
		t.Fatalf("expected 401 invalid_credentials, got %d %s", w.Code, w.Body.String())
	}
}

func TestRefresh(t *testing.T) {
	acc := &fakeAccounts{
		refreshFn: func(_ context.Context, token string) (string, error) {
			if token != "good" {
				return "", service.ErrAuth
			}
			return "fresh", nil
		},
	}
	r := authRouter(acc)

	w := doJSON(r, http.MethodPost, "/refresh", `{"refresh_token":"good"}`)
	if w.Code != http.StatusOK || decode(t, w)["access_token"] != "fresh" {
		t.Fatalf("expected fresh access token, got %d %s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodPost, "/refresh", `{"refresh_token":"bad"}`)
	if w.Code != http.StatusUnauthorized || errorCode(t, w) != "invalid_refresh" {
		t.Fatalf("expected 401 invalid_refresh, got %d %s", w.Code, w.Body.String())
	}
}

func TestMe(t *testing.T) {
	w := doJSON(authRouter(&fakeAccounts{}), http.MethodGet, "/me", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decode(t, w)
	if body["id"] != "u1" || body["status"] != "Resident" {
		t.Fatalf("unexpected profile %v", body)
	}
	if _, leaked := body["password_hash"]; leaked {
		t.Fatalf("password hash must not be serialized")
	}
}

func passRouter(reg *fakeRegistry, caller user.Identity) *gin.Engine {
	h := handlers.NewGatePassHandler(reg, discard)

	r := gin.New()
	r.Use(withIdentity(caller))
	r.POST("/generate", h.Generate)
	r.GET("/validate/:token_id", h.Validate)
	r.POST("/exit/:token_id", h.GenerateExit)
	return r
}

var residentID = user.Identity{UserID: "r1", Role: user.RoleResident}

func TestGenerate_AcceptsNumericStrings(t *testing.T) {
	var got service.EntryRequest
	reg := &fakeRegistry{
		generateFn: func(_ context.Context, _ user.Identity, req service.EntryRequest) (service.IssuedPass, error) {
			got = req
			return service.IssuedPass{TokenID: "ABC123", ExpiresIn: "1 hour", ExpiresAt: time.Now()}, nil
		},
	}
	r := passRouter(reg, residentID)

	for _, body := range []string{
		`{"visitor_name":"Bob","visitor_phone":"555","expiration":60}`,
		`{"visitor_name":"Bob","visitor_phone":"555","expiration":"60"}`,
	} {
		w := doJSON(r, http.MethodPost, "/generate", body)
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201 for %s, got %d %s", body, w.Code, w.Body.String())
		}
		out := decode(t, w)
		if out["token_id"] != "ABC123" || out["expires_in"] != "1 hour" {
			t.Fatalf("unexpected body %v", out)
		}
		if got.ExpirationMinutes != 60 {
			t.Fatalf("expected 60 minutes, got %d", got.ExpirationMinutes)
		}
	}
}

func TestGenerate_BadInput(t *testing.T) {
	reg := &fakeRegistry{
		generateFn: func(context.Context, user.Identity, service.EntryRequest) (service.IssuedPass, error) {
			t.Fatalf("registry must not be called")
			return service.IssuedPass{}, nil
		},
	}
	r := passRouter(reg, residentID)

	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"missing expiration", `{"visitor_name":"Bob","visitor_phone":"555"}`, "Missing required fields"},
		{"missing name", `{"visitor_phone":"555","expiration":5}`, "Missing required fields"},
		{"word expiration", `{"visitor_name":"Bob","visitor_phone":"555","expiration":"soon"}`, "Invalid expiration value"},
		{"zero expiration", `{"visitor_name":"Bob","visitor_phone":"555","expiration":0}`, "Invalid expiration value"},
		{"negative expiration", `{"visitor_name":"Bob","visitor_phone":"555","expiration":"-3"}`, "Invalid expiration value"},
		{"overflowing expiration", `{"visitor_name":"Bob","visitor_phone":"555","expiration":200000000}`, "Invalid expiration value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/generate", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d %s", w.Code, w.Body.String())
			}
			e := decode(t, w)["error"].(map[string]any)
			if e["message"] != tt.msg {
				t.Fatalf("expected message %q, got %v", tt.msg, e["message"])
			}
		})
	}
}

func TestValidate_StatusMapping(t *testing.T) {
	expires := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"forbidden", service.ErrForbidden, http.StatusForbidden},
		{"not found", service.ErrNotFound, http.StatusNotFound},
		{"expired", service.ErrExpired, http.StatusGone},
		{"store down", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &fakeRegistry{
				validateFn: func(context.Context, user.Identity, string) (service.PassDetails, error) {
					if tt.err != nil {
						return service.PassDetails{}, tt.err
					}
					return service.PassDetails{VisitorName: "Bob", VisitorPhone: "555", ExpiresAt: expires, Purpose: gatepass.PurposeEntry}, nil
				},
			}

			w := doJSON(passRouter(reg, user.Identity{UserID: "s1", Role: user.RoleSecurity}), http.MethodGet, "/validate/ABC123", "")
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d %s", tt.want, w.Code, w.Body.String())
			}
			if tt.err == nil {
				body := decode(t, w)
				if body["visitor_name"] != "Bob" || body["expires_at"] != "2026-06-01T12:00:00Z" || body["purpose"] != "entry" {
					t.Fatalf("unexpected body %v", body)
				}
			}
		})
	}
}

func TestGenerateExit(t *testing.T) {
	reg := &fakeRegistry{
		exitFn: func(_ context.Context, _ user.Identity, id string) (service.IssuedPass, error) {
			if id != "ABC123" {
				return service.IssuedPass{}, service.ErrNotFound
			}
			return service.IssuedPass{TokenID: "XYZ789", ExpiresIn: "15 minutes", ExpiresAt: time.Now()}, nil
		},
	}
	r := passRouter(reg, residentID)

	w := doJSON(r, http.MethodPost, "/exit/ABC123", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["exit_token_id"] != "XYZ789" || body["expires_in"] != "15 minutes" {
		t.Fatalf("unexpected body %v", body)
	}

	if w := doJSON(r, http.MethodPost, "/exit/OTHER1", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestReadyz(t *testing.T) {
	up := handlers.ReadyCheck{Name: "store", Ping: func(context.Context) error { return nil }}
	down := handlers.ReadyCheck{Name: "redis", Ping: func(context.Context) error { return errors.New("dial tcp") }}

	r := gin.New()
	r.GET("/ok", handlers.NewHealthHandler([]handlers.ReadyCheck{up}, func() gin.H { return gin.H{"mail": "idle"} }).Readyz)
	r.GET("/bad", handlers.NewHealthHandler([]handlers.ReadyCheck{up, down}, nil).Readyz)

	w := doJSON(r, http.MethodGet, "/ok", "")
	if w.Code != http.StatusOK || decode(t, w)["mail"] != "idle" {
		t.Fatalf("expected ready with extras, got %d %s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodGet, "/bad", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	deps := decode(t, w)["dependencies"].(map[string]any)
	if deps["redis"] != "down" || deps["store"] != "up" {
		t.Fatalf("unexpected dependencies %v", deps)
	}
}
