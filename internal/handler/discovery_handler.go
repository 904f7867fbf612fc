package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/feedhub/internal/discovery"
	"github.com/hitoshi/feedhub/internal/metrics"
	"github.com/hitoshi/feedhub/internal/middleware"
	"github.com/hitoshi/feedhub/internal/model"
)

// DiscoveryServiceInterface はフィード探索ハンドラーが必要とするサービスインターフェース。
type DiscoveryServiceInterface interface {
	Scan(ctx context.Context, input discovery.ScanInput) ([]model.FeedCandidate, *model.APIError)
}

// DiscoveryHandler はフィード探索のHTTPハンドラー。
type DiscoveryHandler struct {
	service   DiscoveryServiceInterface
	collector metrics.MetricsCollector
}

// NewDiscoveryHandler はDiscoveryHandlerを生成する。collectorはnil可。
func NewDiscoveryHandler(service DiscoveryServiceInterface, collector metrics.MetricsCollector) *DiscoveryHandler {
	return &DiscoveryHandler{
		service:   service,
		collector: collector,
	}
}

// scanRequest はフィード探索リクエストのボディ。
// opmlとurlは排他的で、両方指定時はopmlが優先される。
type scanRequest struct {
	OPML string `json:"opml"`
	URL  string `json:"url"`
}

// feedCandidateResponse はフィード候補のAPIレスポンス。
type feedCandidateResponse struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Scan はOPML文書またはURLからフィード候補を探索する。
// POST /api/feeds/scan
func (h *DiscoveryHandler) Scan(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UserIDFromContext(r.Context()); err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	candidates, apiErr := h.service.Scan(r.Context(), discovery.ScanInput{
		OPML: req.OPML,
		URL:  req.URL,
	})
	if apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}

	if h.collector != nil {
		source := "url"
		if req.OPML != "" {
			source = "opml"
		}
		h.collector.RecordDiscoveryScan(source, len(candidates))
	}

	resp := make([]feedCandidateResponse, 0, len(candidates))
	for _, c := range candidates {
		resp = append(resp, feedCandidateResponse{URL: c.URL, Title: c.Title, Type: c.Type})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
