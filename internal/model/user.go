// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// 認証サブシステムが読み書きするのはEmail、Name、VerifiedEmailのみ。
type User struct {
	ID            string
	Email         string
	Name          string
	Avatar        string
	Bio           string
	VerifiedEmail bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DefaultDisplayName はメールアドレスのローカル部（@より前）を表示名として返す。
// マジックリンク経由で新規作成されるユーザーの初期表示名に使う。
func DefaultDisplayName(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			if i == 0 {
				return "User"
			}
			return email[:i]
		}
	}
	return email
}
