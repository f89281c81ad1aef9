package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/rfsbase/internal/auth"
	"github.com/hitoshi/rfsbase/internal/clock"
)

const testSecret = "middleware-test-secret-at-least-32-bytes"

// --- モック定義 ---

type mockVerifier struct {
	verifyFn func(token string) (*auth.Claims, error)
	calls    int
}

func (m *mockVerifier) VerifyToken(token string) (*auth.Claims, error) {
	m.calls++
	if m.verifyFn != nil {
		return m.verifyFn(token)
	}
	return nil, auth.ErrUnauthorized
}

type mockVerificationRecorder struct {
	results []string
}

func (m *mockVerificationRecorder) RecordTokenVerification(result string) {
	m.results = append(m.results, result)
}

var _ TokenVerifier = (*mockVerifier)(nil)
var _ TokenVerifier = (*auth.TokenService)(nil)
var _ VerificationRecorder = (*mockVerificationRecorder)(nil)

func acceptToken(want string) *mockVerifier {
	return &mockVerifier{
		verifyFn: func(token string) (*auth.Claims, error) {
			if token != want {
				return nil, auth.ErrUnauthorized
			}
			c := &auth.Claims{Email: "a@x.io", Name: "Alice"}
			c.Subject = "user-1"
			return c, nil
		},
	}
}

// identityCapture は後続ハンドラーで観測したIDを保持する。
type identityCapture struct {
	called   bool
	identity auth.Identity
	ok       bool
}

func (c *identityCapture) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.called = true
		c.identity, c.ok = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

// --- テスト ---

func TestRequireAuth_ValidToken_AttachesIdentity(t *testing.T) {
	rec := &mockVerificationRecorder{}
	capture := &identityCapture{}
	handler := NewRequireAuthMiddleware(acceptToken("good"), rec)(capture.handler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !capture.ok {
		t.Fatal("identity not attached")
	}
	want := auth.Identity{UserID: "user-1", Email: "a@x.io", Name: "Alice"}
	if capture.identity != want {
		t.Errorf("identity = %+v, want %+v", capture.identity, want)
	}
	if len(rec.results) != 1 || rec.results[0] != VerificationVerified {
		t.Errorf("recorded = %v, want [verified]", rec.results)
	}
}

// 拒否時は後続ハンドラーを呼ばずに401を返す
func TestRequireAuth_RejectsBeforeHandler(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantResult string
	}{
		{name: "no header", header: "", wantResult: VerificationMissing},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantResult: VerificationMissing},
		{name: "lowercase bearer", header: "bearer good", wantResult: VerificationMissing},
		{name: "empty token", header: "Bearer ", wantResult: VerificationMissing},
		{name: "invalid token", header: "Bearer bad", wantResult: VerificationRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &mockVerificationRecorder{}
			capture := &identityCapture{}
			handler := NewRequireAuthMiddleware(acceptToken("good"), rec)(capture.handler())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if capture.called {
				t.Error("downstream handler should not run")
			}
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}

			var body ErrorEnvelope
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Success || body.Error.Code != "UNAUTHORIZED" || body.Error.Message != "Authentication required" {
				t.Errorf("body = %+v", body)
			}
			if len(rec.results) != 1 || rec.results[0] != tt.wantResult {
				t.Errorf("recorded = %v, want [%s]", rec.results, tt.wantResult)
			}
		})
	}
}

// ヘッダーがない場合は検証器を呼ばない
func TestRequireAuth_MissingHeader_SkipsVerifier(t *testing.T) {
	verifier := acceptToken("good")
	handler := NewRequireAuthMiddleware(verifier, nil)(http.NotFoundHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if verifier.calls != 0 {
		t.Errorf("verifier calls = %d, want 0", verifier.calls)
	}
}

func TestOptionalAuth_PassesThrough(t *testing.T) {
	tests := []struct {
		name         string
		header       string
		wantIdentity bool
	}{
		{name: "no header", header: "", wantIdentity: false},
		{name: "invalid token", header: "Bearer bad", wantIdentity: false},
		{name: "valid token", header: "Bearer good", wantIdentity: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capture := &identityCapture{}
			handler := NewOptionalAuthMiddleware(acceptToken("good"), nil)(capture.handler())

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if !capture.called {
				t.Fatal("downstream handler should always run")
			}
			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if capture.ok != tt.wantIdentity {
				t.Errorf("identity present = %v, want %v", capture.ok, tt.wantIdentity)
			}
		})
	}
}

// 実際のTokenServiceと組み合わせて期限切れトークンを拒否する
func TestRequireAuth_WithTokenService(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := auth.NewTokenService(auth.TokenConfig{Secret: testSecret, ExpiryHours: 1},
		clock.Func(func() time.Time { return now }))

	token, err := svc.CreateToken(svc.CreateClaims("user-9", "z@x.io", "z"))
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	capture := &identityCapture{}
	handler := NewRequireAuthMiddleware(svc, nil)(capture.handler())

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	if code := do(); code != http.StatusOK || capture.identity.UserID != "user-9" {
		t.Fatalf("fresh token: status = %d, identity = %+v", code, capture.identity)
	}

	now = now.Add(2 * time.Hour)
	if code := do(); code != http.StatusUnauthorized {
		t.Errorf("expired token: status = %d, want %d", code, http.StatusUnauthorized)
	}
}

func TestIdentityFromContext_NoValue(t *testing.T) {
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Error("expected no identity in empty context")
	}
	if _, err := UserIDFromContext(context.Background()); !errors.Is(err, ErrNoIdentity) {
		t.Errorf("UserIDFromContext error = %v, want ErrNoIdentity", err)
	}
}

func TestContextWithIdentity_RoundTrip(t *testing.T) {
	id := auth.Identity{UserID: "u1", Email: "a@x.io", Name: "a"}
	ctx := ContextWithIdentity(context.Background(), id)

	got, ok := IdentityFromContext(ctx)
	if !ok || got != id {
		t.Errorf("IdentityFromContext = %+v, %v", got, ok)
	}
	userID, err := UserIDFromContext(ctx)
	if err != nil || userID != "u1" {
		t.Errorf("UserIDFromContext = %q, %v", userID, err)
	}
}
