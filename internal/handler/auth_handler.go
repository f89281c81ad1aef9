// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/hitoshi/rfsbase/internal/auth"
	"github.com/hitoshi/rfsbase/internal/middleware"
	"github.com/hitoshi/rfsbase/internal/model"
)

// maxRequestBodySize は認証エンドポイントが受け付けるリクエストボディの上限。
const maxRequestBodySize = 1 << 16

const magicLinkSentMessage = "Magic link sent to your email"

// MagicLinkServiceInterface は認証ハンドラーが必要とするマジックリンクフロー。
type MagicLinkServiceInterface interface {
	Issue(ctx context.Context, email string) error
	Redeem(ctx context.Context, token string) (*auth.LoginResult, error)
}

// UserFinder はIDでユーザーを取得する。見つからない場合はnilを返す。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// AuthHandler はマジックリンク認証関連のHTTPハンドラー。
type AuthHandler struct {
	magicLinks MagicLinkServiceInterface
	users      UserFinder
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(magicLinks MagicLinkServiceInterface, users UserFinder) *AuthHandler {
	return &AuthHandler{
		magicLinks: magicLinks,
		users:      users,
	}
}

type magicLinkRequest struct {
	Email string `json:"email"`
}

// Validate は形式のみを確認する。メールアドレスの妥当性はサービス側で検証する。
func (r magicLinkRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
	)
}

type verifyRequest struct {
	Token string `json:"token"`
}

func (r verifyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

type verifiedStatus struct {
	Email bool `json:"email"`
}

// userResponse はユーザー情報のレスポンス型。
type userResponse struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Name      string         `json:"name"`
	Avatar    *string        `json:"avatar"`
	Bio       *string        `json:"bio"`
	Verified  verifiedStatus `json:"verified"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// MagicLink はマジックリンクを発行してメールで送る。
// アカウントの有無にかかわらず同じレスポンスを返す。
// POST /api/v1/auth/magic-link
func (h *AuthHandler) MagicLink(w http.ResponseWriter, r *http.Request) {
	var req magicLinkRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(auth.MsgInvalidEmail))
		return
	}

	if err := h.magicLinks.Issue(r.Context(), req.Email); err != nil {
		writeServiceError(w, "issue magic link", err)
		return
	}

	middleware.WriteSuccessResponse(w, http.StatusOK, messageResponse{Message: magicLinkSentMessage})
}

// Verify はマジックリンクトークンを引き換え、セッショントークンとユーザー情報を返す。
// POST /api/v1/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(auth.MsgInvalidToken))
		return
	}

	result, err := h.magicLinks.Redeem(r.Context(), req.Token)
	if err != nil {
		writeServiceError(w, "redeem magic link", err)
		return
	}

	middleware.WriteSuccessResponse(w, http.StatusOK, authResponse{
		User:  toUserResponse(result.User),
		Token: result.Token,
	})
}

// Me は現在のユーザー情報を返す。必須認証ミドルウェアの内側に置く。
// GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		slog.Error("failed to find current user",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}
	if user == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
		return
	}

	middleware.WriteSuccessResponse(w, http.StatusOK, toUserResponse(user))
}

// Logout は成功を返すのみ。トークンはステートレスで、サーバー側で失効させるものはない。
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if id, ok := middleware.IdentityFromContext(r.Context()); ok {
		slog.Info("user logged out", slog.String("user_id", id.UserID))
	}
	middleware.WriteSuccessResponse(w, http.StatusOK, nil)
}

// decodeRequest はJSONボディをdstに読み込む。失敗時は400を書き込んでfalseを返す。
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("invalid request body"))
		return false
	}
	return true
}

// writeServiceError は認証サービスのエラーを分類してレスポンスに変換する。
// 内部エラーの詳細はログのみに残す。
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch auth.Classify(err) {
	case auth.KindUnauthorized:
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
	case auth.KindValidation:
		msg, _ := auth.ValidationMessage(err)
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(msg))
	default:
		slog.Error("auth request failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
	}
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Avatar:    optionalString(u.Avatar),
		Bio:       optionalString(u.Bio),
		Verified:  verifiedStatus{Email: u.VerifiedEmail},
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// optionalString は空文字をnullとして返す。
func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
