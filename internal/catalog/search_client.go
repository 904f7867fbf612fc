package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/feedhub/internal/model"
)

// SearchClient は外部フィード検索サービスのHTTPクライアント。
// 検索インデックスの構築・更新は検索サービス側の責務。
type SearchClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
}

// NewSearchClient はSearchClientの新しいインスタンスを生成する。
func NewSearchClient(httpClient *http.Client, logger *slog.Logger, endpoint string) *SearchClient {
	return &SearchClient{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
	}
}

// searchResponse は検索サービスのレスポンスボディ。
type searchResponse struct {
	Entries    []model.FeedCatalogEntry `json:"entries"`
	TotalCount int                      `json:"totalCount"`
}

// Search は検索サービスに問い合わせ、一致エントリーと総一致件数を返す。
func (c *SearchClient) Search(ctx context.Context, query string, limit, offset int, sortBy, sortOrder string) ([]model.FeedCatalogEntry, int, error) {
	if c.endpoint == "" {
		return nil, 0, fmt.Errorf("検索サービスのエンドポイントが未設定です")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	if sortBy != "" {
		params.Set("sortBy", sortBy)
	}
	if sortOrder != "" {
		params.Set("sortOrder", sortOrder)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Feedhub/1.0 Feed Aggregator")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("検索サービスへのリクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("検索サービスがステータス %d を返しました", resp.StatusCode)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, 0, fmt.Errorf("検索レスポンスのデコードに失敗しました: %w", err)
	}

	return result.Entries, result.TotalCount, nil
}

var _ SearchService = (*SearchClient)(nil)
