// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/rfsbase/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はverified_email=trueのユーザーを作成する。
	// emailが既に存在する場合は重複を作らず、既存ユーザーを確認済みにして返す。
	Create(ctx context.Context, email, name string) (*model.User, error)

	// MarkEmailVerified はverified_emailをtrueにする。存在しないemailは何もしない。
	MarkEmailVerified(ctx context.Context, email string) error
}

// MagicLinkRepository はマジックリンクの永続化インターフェース。
type MagicLinkRepository interface {
	// Create はマジックリンクを保存する。
	Create(ctx context.Context, link *model.MagicLink) error

	// ConsumeIfValid は未使用かつ期限内のトークンを単一の条件付きUPDATEで使用済みにして返す。
	// 該当しない場合はnilを返す。同一トークンの同時呼び出しで非nilを得るのは一つだけ。
	ConsumeIfValid(ctx context.Context, token string, now time.Time) (*model.MagicLink, error)

	// DeleteExpired はbefore以前に期限切れとなったリンクと、before以前に使用されたリンクを削除し、件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}
