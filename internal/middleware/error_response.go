package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/rfsbase/internal/model"
)

// ErrorResponseBody はエラー詳細。
type ErrorResponseBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope はAPIエラーレスポンスの統一フォーマット。
// {"success":false,"error":{"code":...,"message":...}}
type ErrorEnvelope struct {
	Success bool              `json:"success"`
	Error   ErrorResponseBody `json:"error"`
}

// SuccessEnvelope はAPI成功レスポンスの統一フォーマット。
// {"success":true,"data":...}
type SuccessEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorEnvelope{
		Success: false,
		Error: ErrorResponseBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// WriteSuccessResponse はdataを統一成功フォーマットで書き込む。
func WriteSuccessResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(SuccessEnvelope{
		Success: true,
		Data:    data,
	})
}
