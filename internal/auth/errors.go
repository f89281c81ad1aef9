package auth

import (
	"errors"
	"fmt"
)

// ErrUnauthorized はセッショントークンの検証失敗を表す。
// 署名不正、発行者不一致、期限切れ、形式不正のいずれも区別せずこのエラーに集約する。
var ErrUnauthorized = errors.New("unauthorized")

// ValidationError は利用者に提示してよい入力検証エラー。
// Messageはそのままクライアントに返るため、アカウントの存在有無などを含めてはならない。
type ValidationError struct {
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return e.Message
}

// InternalError はトークン署名やデータストア障害などの内部エラー。
// Causeはサーバーログにのみ記録し、クライアントには返さない。
type InternalError struct {
	Op    string
	Cause error
}

// Error はerrorインターフェースを実装する。
func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

// Unwrap は原因エラーを返す。
func (e *InternalError) Unwrap() error {
	return e.Cause
}

// 検証エラーメッセージ
const (
	MsgInvalidEmail = "invalid email address"
	MsgInvalidToken = "invalid or expired token"
)

func newValidationError(message string) error {
	return &ValidationError{Message: message}
}

func newInternalError(op string, cause error) error {
	return &InternalError{Op: op, Cause: cause}
}

// ErrorKind は外部に公開するエラーの粗い分類。
type ErrorKind int

const (
	// KindInternal は内部エラー。詳細はログのみに残す。
	KindInternal ErrorKind = iota
	// KindUnauthorized は認証失敗。
	KindUnauthorized
	// KindValidation は入力検証エラー。
	KindValidation
)

// Classify はサブシステム内部のエラーを外部向けの分類に写像する。
// 分類できないエラーはすべてKindInternalとして扱う。
func Classify(err error) ErrorKind {
	if errors.Is(err, ErrUnauthorized) {
		return KindUnauthorized
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	return KindInternal
}

// ValidationMessage はerrがValidationErrorの場合にそのメッセージを返す。
func ValidationMessage(err error) (string, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message, true
	}
	return "", false
}
