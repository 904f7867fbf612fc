package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/feedhub/internal/middleware"
	"github.com/hitoshi/feedhub/internal/model"
	"github.com/hitoshi/feedhub/internal/subscription"
)

// SubscriptionServiceInterface は購読ハンドラーが必要とするサービスインターフェース。
type SubscriptionServiceInterface interface {
	// Subscribe はRSSフィードの購読を登録する。
	Subscribe(ctx context.Context, userID, url string, opts subscription.SubscribeOptions) (*model.Subscription, *model.APIError)
	// Unsubscribe は購読を解除する（id優先、nameは旧クライアント互換）。
	Unsubscribe(ctx context.Context, userID, id, name string) (*model.Subscription, *model.APIError)
	// Update は購読のフィールドを部分更新する。
	Update(ctx context.Context, userID, id string, input subscription.UpdateInput) (*model.Subscription, *model.APIError)
	// List はユーザーの購読一覧を返す。
	List(ctx context.Context, userID string, typeFilter *model.SubscriptionType, sortBy subscription.SortBy, sortOrder subscription.SortOrder) ([]*model.Subscription, *model.APIError)
}

// SubscriptionHandler は購読管理のHTTPハンドラー。
type SubscriptionHandler struct {
	service SubscriptionServiceInterface
}

// NewSubscriptionHandler はSubscriptionHandlerを生成する。
func NewSubscriptionHandler(service SubscriptionServiceInterface) *SubscriptionHandler {
	return &SubscriptionHandler{
		service: service,
	}
}

// subscriptionResponse は購読情報のAPIレスポンス。
type subscriptionResponse struct {
	ID                string     `json:"id"`
	Type              string     `json:"type"`
	URL               string     `json:"url,omitempty"`
	Name              string     `json:"name"`
	Description       string     `json:"description,omitempty"`
	IconURL           string     `json:"icon_url,omitempty"`
	Status            string     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	LastFetchedAt     *time.Time `json:"last_fetched_at,omitempty"`
	ScheduledAt       *time.Time `json:"scheduled_at,omitempty"`
	AutoAddToLibrary  bool       `json:"auto_add_to_library"`
	IsPrivate         bool       `json:"is_private"`
	NewsletterAddress string     `json:"newsletter_address,omitempty"`
}

// toSubscriptionResponse はドメインモデルをAPIレスポンスに変換する。
func toSubscriptionResponse(sub *model.Subscription) subscriptionResponse {
	resp := subscriptionResponse{
		ID:               sub.ID,
		Type:             string(sub.Type),
		URL:              sub.URL,
		Name:             sub.Name,
		Description:      sub.Description,
		IconURL:          sub.IconURL,
		Status:           string(sub.Status),
		CreatedAt:        sub.CreatedAt,
		LastFetchedAt:    sub.LastFetchedAt,
		ScheduledAt:      sub.ScheduledAt,
		AutoAddToLibrary: sub.AutoAddToLibrary,
		IsPrivate:        sub.IsPrivate,
	}
	if sub.NewsletterEmail != nil {
		resp.NewsletterAddress = sub.NewsletterEmail.Address
	}
	return resp
}

// subscribeRequest は購読登録リクエストのボディ。
type subscribeRequest struct {
	URL              string `json:"url"`
	AutoAddToLibrary bool   `json:"auto_add_to_library"`
	IsPrivate        bool   `json:"is_private"`
}

// unsubscribeRequest は購読解除リクエストのボディ。
// idとnameのどちらかを指定する（両方指定時はid優先）。
type unsubscribeRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// updateSubscriptionRequest は購読更新リクエストのボディ。
// nilのフィールドは変更しない。日時はRFC 3339形式の文字列。
type updateSubscriptionRequest struct {
	Name                *string `json:"name"`
	Description         *string `json:"description"`
	LastFetchedAt       *string `json:"last_fetched_at"`
	LastFetchedChecksum *string `json:"last_fetched_checksum"`
	Status              *string `json:"status"`
	ScheduledAt         *string `json:"scheduled_at"`
	AutoAddToLibrary    *bool   `json:"auto_add_to_library"`
	IsPrivate           *bool   `json:"is_private"`
}

// Subscribe はRSSフィードの購読を登録する。
// POST /api/subscriptions
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("urlは必須です"))
		return
	}

	sub, apiErr := h.service.Subscribe(r.Context(), userID, req.URL, subscription.SubscribeOptions{
		AutoAddToLibrary: req.AutoAddToLibrary,
		IsPrivate:        req.IsPrivate,
	})
	if apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toSubscriptionResponse(sub))
}

// Unsubscribe はIDを指定して購読を解除する。
// DELETE /api/subscriptions/:id
func (h *SubscriptionHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	subscriptionID := chi.URLParam(r, "id")

	sub, apiErr := h.service.Unsubscribe(r.Context(), userID, subscriptionID, "")
	if apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toSubscriptionResponse(sub))
}

// UnsubscribeByBody はボディのid/name指定で購読を解除する（旧クライアント互換）。
// POST /api/subscriptions/unsubscribe
func (h *SubscriptionHandler) UnsubscribeByBody(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	if req.ID == "" && req.Name == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("idまたはnameのいずれかを指定してください"))
		return
	}

	sub, apiErr := h.service.Unsubscribe(r.Context(), userID, req.ID, req.Name)
	if apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toSubscriptionResponse(sub))
}

// Update は購読のフィールドを部分更新する。
// PATCH /api/subscriptions/:id
func (h *SubscriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	subscriptionID := chi.URLParam(r, "id")

	var req updateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	sub, apiErr := h.service.Update(r.Context(), userID, subscriptionID, subscription.UpdateInput{
		Name:                req.Name,
		Description:         req.Description,
		LastFetchedAt:       req.LastFetchedAt,
		LastFetchedChecksum: req.LastFetchedChecksum,
		Status:              req.Status,
		ScheduledAt:         req.ScheduledAt,
		AutoAddToLibrary:    req.AutoAddToLibrary,
		IsPrivate:           req.IsPrivate,
	})
	if apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toSubscriptionResponse(sub))
}

// List はユーザーの購読一覧を取得する。
// GET /api/subscriptions?type=RSS&sort_by=UpdatedTime&sort_order=Ascending
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var typeFilter *model.SubscriptionType
	switch r.URL.Query().Get("type") {
	case "":
		// フィルタなし
	case string(model.SubscriptionTypeRSS):
		t := model.SubscriptionTypeRSS
		typeFilter = &t
	case string(model.SubscriptionTypeNewsletter):
		t := model.SubscriptionTypeNewsletter
		typeFilter = &t
	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("typeはRSSまたはNEWSLETTERを指定してください"))
		return
	}

	sortBy := subscription.SortBy(r.URL.Query().Get("sort_by"))
	sortOrder := subscription.SortOrder(r.URL.Query().Get("sort_order"))

	subs, apiErr := h.service.List(r.Context(), userID, typeFilter, sortBy, sortOrder)
	if apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}

	resp := make([]subscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		resp = append(resp, toSubscriptionResponse(sub))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
