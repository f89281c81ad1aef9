package auth

import (
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/rfsbase/internal/clock"
)

const (
	// Issuer はトークンに埋め込む固定の発行者。設定では変更できない。
	Issuer = "rfsbase"

	// VerificationLeeway はセッショントークンの有効期限判定に加える許容誤差。
	// 発行側と検証側の時計のずれを吸収する。マジックリンクには適用しない。
	VerificationLeeway = 60 * time.Second

	// DefaultExpiryHours はセッショントークンの既定の有効期間（時間）。
	DefaultExpiryHours = 168

	// MinSecretLength はこれ未満の署名鍵に警告を出す長さ。
	MinSecretLength = 32

	secondsPerHour = 3600
)

// Claims はセッショントークンに格納するクレーム。
// sub=ユーザーID、email、name、iss、iat、expを持つ。
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// UserID はsubjectに格納したユーザーIDを返す。
func (c *Claims) UserID() string {
	return c.Subject
}

// Identity は検証済みクレームからリクエスト単位の認証済みIDを作る。
func (c *Claims) Identity() Identity {
	return Identity{
		UserID: c.Subject,
		Email:  c.Email,
		Name:   c.Name,
	}
}

// TokenConfig はトークンサービスの設定。構築後は変更しない。
type TokenConfig struct {
	Secret      string
	ExpiryHours int
}

// TokenService はセッショントークン（HS256 JWT）の発行と検証を行う。
// 生成後はイミュータブルで、複数goroutineから共有してよい。
type TokenService struct {
	secret      []byte
	expiryHours int
	clock       clock.Clock
	parser      *jwt.Parser
}

// NewTokenService はTokenServiceを生成する。
// ExpiryHoursが0以下の場合は既定値を使う。clkがnilの場合はシステム時刻を使う。
func NewTokenService(cfg TokenConfig, clk clock.Clock) *TokenService {
	if clk == nil {
		clk = clock.System{}
	}
	expiryHours := cfg.ExpiryHours
	if expiryHours <= 0 {
		expiryHours = DefaultExpiryHours
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithLeeway(VerificationLeeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(clk.Now),
	)

	return &TokenService{
		secret:      []byte(cfg.Secret),
		expiryHours: expiryHours,
		clock:       clk,
		parser:      parser,
	}
}

// CreateClaims は設定された有効期間でユーザーのクレームを生成する。
// 時刻は秒単位に丸める。
func (s *TokenService) CreateClaims(userID, email, name string) *Claims {
	now := s.clock.Now().Truncate(time.Second)
	exp := now.Add(time.Duration(s.expiryHours*secondsPerHour) * time.Second)

	return &Claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
}

// CreateToken はクレームに署名してトークン文字列を返す。
// 失敗は署名ライブラリ内部の障害のみで、InternalErrorとして返す。
func (s *TokenService) CreateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", newInternalError("sign session token", err)
	}
	return signed, nil
}

// VerifyToken は署名、発行者、有効期限（60秒のリーウェイ付き）を検証してクレームを返す。
// 失敗理由は呼び出し元に区別させず、すべてErrUnauthorizedを返す。
func (s *TokenService) VerifyToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		slog.Debug("session token rejected", slog.String("reason", err.Error()))
		return nil, ErrUnauthorized
	}
	if !parsed.Valid {
		return nil, ErrUnauthorized
	}
	if claims.IssuedAt == nil || !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		slog.Debug("session token rejected", slog.String("reason", "expiry not after issued-at"))
		return nil, ErrUnauthorized
	}

	return claims, nil
}
