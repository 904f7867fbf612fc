package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hitoshi/feedhub/internal/catalog"
	"github.com/hitoshi/feedhub/internal/middleware"
	"github.com/hitoshi/feedhub/internal/model"
)

// CatalogServiceInterface はカタログ検索ハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	Search(ctx context.Context, input catalog.SearchInput) (*catalog.Connection, *model.APIError)
}

// CatalogHandler はフィードカタログ検索のHTTPハンドラー。
type CatalogHandler struct {
	service CatalogServiceInterface
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(service CatalogServiceInterface) *CatalogHandler {
	return &CatalogHandler{
		service: service,
	}
}

// Search はフィードカタログをカーソルページネーション付きで検索する。
// GET /api/catalog/search?q=golang&first=10&after=10
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UserIDFromContext(r.Context()); err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	q := r.URL.Query()
	input := catalog.SearchInput{
		Query:     q.Get("q"),
		After:     q.Get("after"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}

	if firstStr := q.Get("first"); firstStr != "" {
		first, err := strconv.Atoi(firstStr)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("firstは整数を指定してください"))
			return
		}
		input.First = &first
	}

	conn, apiErr := h.service.Search(r.Context(), input)
	if apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conn)
}
