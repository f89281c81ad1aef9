package auth

// Identity はリクエスト単位で扱う認証済みユーザー情報。
// 検証済みクレームから作られ、永続化はしない。
type Identity struct {
	UserID string
	Email  string
	Name   string
}
