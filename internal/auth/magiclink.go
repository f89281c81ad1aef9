// Package auth はセッショントークンの発行・検証とマジックリンクによるパスワードレスログインを提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/hitoshi/rfsbase/internal/clock"
	"github.com/hitoshi/rfsbase/internal/model"
)

const (
	minEmailLength = 5
	tokenBytes     = 32
)

// 引き換え結果のメトリクスラベル
const (
	RedemptionSuccess = "success"
	RedemptionInvalid = "invalid"
	RedemptionError   = "error"
)

// MagicLinkStore はマジックリンクレコードの永続化インターフェース。
type MagicLinkStore interface {
	// Create はマジックリンクを保存する。
	Create(ctx context.Context, link *model.MagicLink) error
	// ConsumeIfValid はtokenに一致し、未使用かつexpires_at > nowのレコードを
	// 単一の条件付き更新でused=trueにして返す。該当がなければnilを返す。
	ConsumeIfValid(ctx context.Context, token string, now time.Time) (*model.MagicLink, error)
}

// UserStore はマジックリンク引き換え時に使うユーザー永続化インターフェース。
type UserStore interface {
	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// Create はverified_email=trueのユーザーを作成して返す。
	// 同じメールアドレスのユーザーが既に存在する場合はそのユーザーを返す。
	Create(ctx context.Context, email, name string) (*model.User, error)
	// MarkEmailVerified はverified_emailをtrueにする。冪等。
	MarkEmailVerified(ctx context.Context, email string) error
}

// MagicLinkSender はマジックリンクを利用者へ配送する。
type MagicLinkSender interface {
	SendMagicLink(ctx context.Context, to, link string) error
}

// MagicLinkMetrics はマジックリンクの発行・引き換えを記録する。
type MagicLinkMetrics interface {
	RecordMagicLinkIssued()
	RecordMagicLinkRedemption(result string)
}

type noopMetrics struct{}

func (noopMetrics) RecordMagicLinkIssued()           {}
func (noopMetrics) RecordMagicLinkRedemption(string) {}

// MagicLinkConfig はマジックリンクフローの設定。
type MagicLinkConfig struct {
	// AppURL はフロントエンドのベースURL。配送するリンクは AppURL + "/auth/verify?token=..." になる。
	AppURL string
	// Metrics は省略可能。
	Metrics MagicLinkMetrics
}

// LoginResult はマジックリンク引き換えの結果。
type LoginResult struct {
	Identity Identity
	Token    string
	User     *model.User
}

// MagicLinkService はワンタイムログイントークンの発行と引き換えを行う。
type MagicLinkService struct {
	links   MagicLinkStore
	users   UserStore
	tokens  *TokenService
	sender  MagicLinkSender
	clock   clock.Clock
	appURL  string
	metrics MagicLinkMetrics
}

// NewMagicLinkService はMagicLinkServiceを生成する。
func NewMagicLinkService(
	links MagicLinkStore,
	users UserStore,
	tokens *TokenService,
	sender MagicLinkSender,
	clk clock.Clock,
	config MagicLinkConfig,
) *MagicLinkService {
	if clk == nil {
		clk = clock.System{}
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &MagicLinkService{
		links:   links,
		users:   users,
		tokens:  tokens,
		sender:  sender,
		clock:   clk,
		appURL:  strings.TrimRight(config.AppURL, "/"),
		metrics: metrics,
	}
}

// Issue はemail宛てのマジックリンクを発行し、配送する。
// アカウントの有無にかかわらず同じ結果を返す。配送失敗はログに記録するのみ。
func (s *MagicLinkService) Issue(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}

	token, err := generateToken()
	if err != nil {
		return newInternalError("generate magic link token", err)
	}

	now := s.clock.Now()
	link := &model.MagicLink{
		ID:        uuid.New().String(),
		Email:     email,
		Token:     token,
		ExpiresAt: now.Add(model.MagicLinkTTL),
		Used:      false,
		CreatedAt: now,
	}

	if err := s.links.Create(ctx, link); err != nil {
		return newInternalError("store magic link", err)
	}
	s.metrics.RecordMagicLinkIssued()

	if err := s.sender.SendMagicLink(ctx, email, s.verifyURL(token)); err != nil {
		slog.Error("failed to deliver magic link",
			slog.String("link_id", link.ID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// Redeem はマジックリンクトークンを一度だけ引き換え、セッショントークンを発行する。
// 未登録のメールアドレスであればユーザーを作成する。
// トークンが存在しない、使用済み、期限切れのいずれの場合も同じ検証エラーを返す。
func (s *MagicLinkService) Redeem(ctx context.Context, token string) (*LoginResult, error) {
	if token == "" {
		s.metrics.RecordMagicLinkRedemption(RedemptionInvalid)
		return nil, newValidationError(MsgInvalidToken)
	}

	// 1. 条件付き更新で消費する（読んでから書くと競合する）
	link, err := s.links.ConsumeIfValid(ctx, token, s.clock.Now())
	if err != nil {
		s.metrics.RecordMagicLinkRedemption(RedemptionError)
		return nil, newInternalError("consume magic link", err)
	}
	if link == nil {
		s.metrics.RecordMagicLinkRedemption(RedemptionInvalid)
		return nil, newValidationError(MsgInvalidToken)
	}

	// 2. ユーザーを検索、なければ作成
	user, err := s.findOrCreateUser(ctx, link.Email)
	if err != nil {
		s.metrics.RecordMagicLinkRedemption(RedemptionError)
		return nil, err
	}

	// 3. セッショントークンを発行
	claims := s.tokens.CreateClaims(user.ID, link.Email, user.Name)
	signed, err := s.tokens.CreateToken(claims)
	if err != nil {
		s.metrics.RecordMagicLinkRedemption(RedemptionError)
		return nil, err
	}

	s.metrics.RecordMagicLinkRedemption(RedemptionSuccess)
	slog.Info("magic link redeemed", slog.String("user_id", user.ID))

	return &LoginResult{
		Identity: claims.Identity(),
		Token:    signed,
		User:     user,
	}, nil
}

// findOrCreateUser はemailのユーザーを取得し、メール確認済みにする。
// 存在しなければローカル部を表示名として作成する。
func (s *MagicLinkService) findOrCreateUser(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, newInternalError("find user by email", err)
	}

	if user != nil {
		if err := s.users.MarkEmailVerified(ctx, email); err != nil {
			return nil, newInternalError("mark email verified", err)
		}
		user.VerifiedEmail = true
		return user, nil
	}

	created, err := s.users.Create(ctx, email, model.DefaultDisplayName(email))
	if err != nil {
		return nil, newInternalError("create user", err)
	}
	slog.Info("new user created", slog.String("user_id", created.ID))
	return created, nil
}

func (s *MagicLinkService) verifyURL(token string) string {
	return s.appURL + "/auth/verify?token=" + url.QueryEscape(token)
}

// validateEmail は@を含み5文字以上であることだけを確認する。
func validateEmail(email string) error {
	err := validation.Validate(email,
		validation.Required,
		validation.Length(minEmailLength, 0),
		validation.By(containsAt),
	)
	if err != nil {
		return newValidationError(MsgInvalidEmail)
	}
	return nil
}

func containsAt(value interface{}) error {
	s, _ := value.(string)
	if !strings.Contains(s, "@") {
		return errors.New("must contain @")
	}
	return nil
}

// generateToken は暗号的に安全な256bitのトークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
