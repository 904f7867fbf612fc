// Package handler はAPIのHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/feedhub/internal/model"
)

// apiErrorResponse はAPIエラーレスポンスの統一フォーマット。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたAPIErrorを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, apiErr *model.APIError) {
	writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
// BAD_REQUESTは予期しない失敗の集約コードのため500として扱う。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeAlreadySubscribed, model.ErrCodeExceededMaxSubscriptions:
		return http.StatusConflict
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeUnauthorizedResponse は認証エラーの統一レスポンスを書き込む。
func writeUnauthorizedResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
}
