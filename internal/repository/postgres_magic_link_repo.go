package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/rfsbase/internal/model"
)

const magicLinkColumns = `id, email, token, expires_at, used, used_at, created_at`

// PostgresMagicLinkRepo はPostgreSQLを使用したマジックリンクリポジトリ。
type PostgresMagicLinkRepo struct {
	db *sql.DB
}

// NewPostgresMagicLinkRepo はPostgresMagicLinkRepoを生成する。
func NewPostgresMagicLinkRepo(db *sql.DB) *PostgresMagicLinkRepo {
	return &PostgresMagicLinkRepo{db: db}
}

// Create はマジックリンクを保存する。
func (r *PostgresMagicLinkRepo) Create(ctx context.Context, link *model.MagicLink) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO magic_links (id, email, token, expires_at, used, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		link.ID, link.Email, link.Token, link.ExpiresAt, link.Used, link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create magic link: %w", err)
	}
	return nil
}

// ConsumeIfValid は未使用かつexpires_at > nowのトークンを使用済みにして返す。
// 判定と更新を1文で行うため、同時に引き換えても行を得られるのは一つだけ。
func (r *PostgresMagicLinkRepo) ConsumeIfValid(ctx context.Context, token string, now time.Time) (*model.MagicLink, error) {
	link, err := scanMagicLink(r.db.QueryRowContext(ctx,
		`UPDATE magic_links
		 SET used = true, used_at = $2
		 WHERE token = $1 AND used = false AND expires_at > $2
		 RETURNING `+magicLinkColumns,
		token, now,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume magic link: %w", err)
	}

	return link, nil
}

// DeleteExpired はbefore以前に期限切れになったリンクと使用済みになったリンクを削除する。
func (r *PostgresMagicLinkRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM magic_links
		 WHERE expires_at <= $1 OR (used = true AND used_at <= $1)`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired magic links: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func scanMagicLink(row rowScanner) (*model.MagicLink, error) {
	link := &model.MagicLink{}
	var usedAt sql.NullTime
	err := row.Scan(
		&link.ID, &link.Email, &link.Token, &link.ExpiresAt,
		&link.Used, &usedAt, &link.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		t := usedAt.Time
		link.UsedAt = &t
	}
	return link, nil
}

// compile-time interface check
var _ MagicLinkRepository = (*PostgresMagicLinkRepo)(nil)
