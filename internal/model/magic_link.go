package model

import "time"

// MagicLinkTTL はマジックリンクの有効期間。設定では変更できない。
const MagicLinkTTL = 15 * time.Minute

// MagicLink はメールで配送するワンタイムログイントークンを表す。
// Usedはfalse→trueに一度だけ遷移し、以後変更されない。
type MagicLink struct {
	ID        string
	Email     string
	Token     string
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Expired はnow時点で有効期限を過ぎているかを返す。
// 境界は厳密で、リーウェイは設けない。
func (m *MagicLink) Expired(now time.Time) bool {
	return !m.ExpiresAt.After(now)
}
