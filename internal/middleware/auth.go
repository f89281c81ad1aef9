// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hitoshi/rfsbase/internal/auth"
	"github.com/hitoshi/rfsbase/internal/model"
)

// bearerPrefix はAuthorizationヘッダーの接頭辞。大文字小文字を区別する。
const bearerPrefix = "Bearer "

// トークン検証結果のメトリクスラベル
const (
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
	VerificationMissing  = "missing"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに認証済みIDを格納するためのキー。
var identityContextKey = contextKey("identity")

// ErrNoIdentity はコンテキストに認証済みIDがない場合のエラー。
var ErrNoIdentity = errors.New("identity not found in context")

// TokenVerifier はセッショントークンの検証に必要なインターフェース。
// auth.TokenServiceが満たす。
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// VerificationRecorder はトークン検証結果を記録する。
type VerificationRecorder interface {
	RecordTokenVerification(result string)
}

type noopVerificationRecorder struct{}

func (noopVerificationRecorder) RecordTokenVerification(string) {}

// credential はリクエストから読み取った認証情報の状態。
type credential int

const (
	credentialMissing credential = iota
	credentialRejected
	credentialVerified
)

// authenticate はAuthorizationヘッダーを検証し、認証状態とIDを返す。
func authenticate(r *http.Request, verifier TokenVerifier, recorder VerificationRecorder) (credential, auth.Identity) {
	token, ok := bearerToken(r)
	if !ok {
		recorder.RecordTokenVerification(VerificationMissing)
		return credentialMissing, auth.Identity{}
	}

	claims, err := verifier.VerifyToken(token)
	if err != nil {
		recorder.RecordTokenVerification(VerificationRejected)
		return credentialRejected, auth.Identity{}
	}

	recorder.RecordTokenVerification(VerificationVerified)
	return credentialVerified, claims.Identity()
}

// bearerToken は"Bearer "で始まるAuthorizationヘッダーからトークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := header[len(bearerPrefix):]
	if token == "" {
		return "", false
	}
	return token, true
}

// NewRequireAuthMiddleware は有効なBearerトークンを必須とするミドルウェアを返す。
// トークンがない、または検証に失敗した場合は後続ハンドラーを呼ばずに401を返す。
// recorderはnilでもよい。
func NewRequireAuthMiddleware(verifier TokenVerifier, recorder VerificationRecorder) func(next http.Handler) http.Handler {
	if recorder == nil {
		recorder = noopVerificationRecorder{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state, identity := authenticate(r, verifier, recorder)
			if state != credentialVerified {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// NewOptionalAuthMiddleware はトークンが有効な場合のみIDを付与するミドルウェアを返す。
// リクエストを拒否することはない。
func NewOptionalAuthMiddleware(verifier TokenVerifier, recorder VerificationRecorder) func(next http.Handler) http.Handler {
	if recorder == nil {
		recorder = noopVerificationRecorder{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state, identity := authenticate(r, verifier, recorder)
			if state == credentialVerified {
				r = r.WithContext(ContextWithIdentity(r.Context(), identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ContextWithIdentity は認証済みIDを格納したコンテキストを返す。
// リクエストログ用の情報があればユーザーIDも記録する。
func ContextWithIdentity(ctx context.Context, identity auth.Identity) context.Context {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.setUserID(identity.UserID)
	}
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext はコンテキストから認証済みIDを取得する。
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(auth.Identity)
	return identity, ok
}

// UserIDFromContext はコンテキストから認証済みユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok || identity.UserID == "" {
		return "", ErrNoIdentity
	}
	return identity.UserID, nil
}
