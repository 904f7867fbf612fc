package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/feedhub/internal/model"
)

// mockSearchService はSearchServiceのモック実装。
type mockSearchService struct {
	searchFunc func(ctx context.Context, query string, limit, offset int, sortBy, sortOrder string) ([]model.FeedCatalogEntry, int, error)
}

func (m *mockSearchService) Search(ctx context.Context, query string, limit, offset int, sortBy, sortOrder string) ([]model.FeedCatalogEntry, int, error) {
	return m.searchFunc(ctx, query, limit, offset, sortBy, sortOrder)
}

// fixedIndex はtotal件の仮想インデックスに対するウィンドウ取得を模倣する。
func fixedIndex(total int) *mockSearchService {
	return &mockSearchService{
		searchFunc: func(ctx context.Context, query string, limit, offset int, sortBy, sortOrder string) ([]model.FeedCatalogEntry, int, error) {
			var entries []model.FeedCatalogEntry
			for i := offset; i < offset+limit && i < total; i++ {
				entries = append(entries, model.FeedCatalogEntry{
					ID:    fmt.Sprintf("feed-%d", i),
					Title: fmt.Sprintf("フィード %d", i),
				})
			}
			return entries, total, nil
		},
	}
}

func newTestPaginator(search SearchService) *Paginator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPaginator(search, nil, logger)
}

func intPtr(i int) *int { return &i }

// TestSearch_FirstPage は先頭ページのウィンドウ計算を検証する。
func TestSearch_FirstPage(t *testing.T) {
	p := newTestPaginator(fixedIndex(25))

	conn, apiErr := p.Search(context.Background(), SearchInput{Query: "tech", First: intPtr(10)})
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}

	if len(conn.Edges) != 10 {
		t.Errorf("edge count = %d, want 10", len(conn.Edges))
	}
	if conn.Edges[0].Node.ID != "feed-0" {
		t.Errorf("first node ID = %q, want %q", conn.Edges[0].Node.ID, "feed-0")
	}
	if !conn.PageInfo.HasNextPage {
		t.Error("hasNextPage = false, want true")
	}
	if conn.PageInfo.HasPreviousPage {
		t.Error("hasPreviousPage = true, want false for first page")
	}
	if conn.PageInfo.EndCursor != "10" {
		t.Errorf("endCursor = %q, want %q", conn.PageInfo.EndCursor, "10")
	}
	if conn.TotalCount != 25 {
		t.Errorf("totalCount = %d, want 25", conn.TotalCount)
	}
}

// TestSearch_WalkAllPages は25件のインデックスをfirst=10で最後まで辿れることを検証する。
// endCursorは常に次ページの先頭エントリーのオフセットに一致する。
func TestSearch_WalkAllPages(t *testing.T) {
	p := newTestPaginator(fixedIndex(25))

	// 1ページ目: 10件、endCursor=10
	page1, apiErr := p.Search(context.Background(), SearchInput{Query: "tech", First: intPtr(10)})
	if apiErr != nil {
		t.Fatalf("page1: unexpected error: %v", apiErr)
	}
	if page1.PageInfo.EndCursor != "10" || !page1.PageInfo.HasNextPage {
		t.Errorf("page1 = {endCursor: %q, hasNext: %v}, want {10, true}", page1.PageInfo.EndCursor, page1.PageInfo.HasNextPage)
	}

	// 2ページ目: 10件、endCursor=20
	page2, apiErr := p.Search(context.Background(), SearchInput{Query: "tech", First: intPtr(10), After: page1.PageInfo.EndCursor})
	if apiErr != nil {
		t.Fatalf("page2: unexpected error: %v", apiErr)
	}
	if page2.PageInfo.EndCursor != "20" || !page2.PageInfo.HasNextPage {
		t.Errorf("page2 = {endCursor: %q, hasNext: %v}, want {20, true}", page2.PageInfo.EndCursor, page2.PageInfo.HasNextPage)
	}
	if !page2.PageInfo.HasPreviousPage {
		t.Error("page2 hasPreviousPage = false, want true")
	}
	if page2.Edges[0].Node.ID != "feed-10" {
		t.Errorf("page2 first node = %q, want feed-10", page2.Edges[0].Node.ID)
	}

	// 最終ページ: 残り5件、hasNextPage=false
	page3, apiErr := p.Search(context.Background(), SearchInput{Query: "tech", First: intPtr(10), After: page2.PageInfo.EndCursor})
	if apiErr != nil {
		t.Fatalf("page3: unexpected error: %v", apiErr)
	}
	if len(page3.Edges) != 5 {
		t.Errorf("page3 edge count = %d, want 5", len(page3.Edges))
	}
	if page3.PageInfo.HasNextPage {
		t.Error("page3 hasNextPage = true, want false")
	}
	if page3.PageInfo.EndCursor != "25" {
		t.Errorf("page3 endCursor = %q, want %q", page3.PageInfo.EndCursor, "25")
	}
}

// TestSearch_EdgesShareEndCursor は全エッジがページのendCursorを共有することを検証する。
func TestSearch_EdgesShareEndCursor(t *testing.T) {
	p := newTestPaginator(fixedIndex(25))

	conn, apiErr := p.Search(context.Background(), SearchInput{Query: "tech", First: intPtr(10)})
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}

	for i, edge := range conn.Edges {
		if edge.Cursor != conn.PageInfo.EndCursor {
			t.Errorf("edge[%d].Cursor = %q, want page endCursor %q", i, edge.Cursor, conn.PageInfo.EndCursor)
		}
	}
}

// TestSearch_FetchesFirstPlusOne は次ページ判定のためにfirst+1件を要求することを検証する。
func TestSearch_FetchesFirstPlusOne(t *testing.T) {
	var gotLimit, gotOffset int
	search := &mockSearchService{
		searchFunc: func(ctx context.Context, query string, limit, offset int, sortBy, sortOrder string) ([]model.FeedCatalogEntry, int, error) {
			gotLimit = limit
			gotOffset = offset
			return nil, 0, nil
		},
	}
	p := newTestPaginator(search)

	_, apiErr := p.Search(context.Background(), SearchInput{Query: "tech", First: intPtr(10), After: "20"})
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if gotLimit != 11 {
		t.Errorf("search limit = %d, want 11", gotLimit)
	}
	if gotOffset != 20 {
		t.Errorf("search offset = %d, want 20", gotOffset)
	}
}

// TestSearch_PageSizeClamping はページサイズが[0, 100]に丸められることを検証する。
func TestSearch_PageSizeClamping(t *testing.T) {
	tests := []struct {
		name      string
		first     *int
		wantLimit int
	}{
		{name: "未指定はデフォルト10", first: nil, wantLimit: 11},
		{name: "負値は0に丸める", first: intPtr(-5), wantLimit: 1},
		{name: "100超は100に丸める", first: intPtr(500), wantLimit: 101},
		{name: "範囲内はそのまま", first: intPtr(30), wantLimit: 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit int
			search := &mockSearchService{
				searchFunc: func(ctx context.Context, query string, limit, offset int, sortBy, sortOrder string) ([]model.FeedCatalogEntry, int, error) {
					gotLimit = limit
					return nil, 0, nil
				},
			}
			p := newTestPaginator(search)

			_, apiErr := p.Search(context.Background(), SearchInput{Query: "tech", First: tt.first})
			if apiErr != nil {
				t.Fatalf("unexpected error: %v", apiErr)
			}
			if gotLimit != tt.wantLimit {
				t.Errorf("search limit = %d, want %d", gotLimit, tt.wantLimit)
			}
		})
	}
}

// TestSearch_EmptyResult は一致なしの検索が空のエッジを返すことを検証する。
func TestSearch_EmptyResult(t *testing.T) {
	p := newTestPaginator(fixedIndex(0))

	conn, apiErr := p.Search(context.Background(), SearchInput{Query: "存在しないクエリ"})
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if len(conn.Edges) != 0 {
		t.Errorf("edge count = %d, want 0", len(conn.Edges))
	}
	if conn.PageInfo.HasNextPage || conn.PageInfo.HasPreviousPage {
		t.Errorf("pageInfo = %+v, want no next/previous", conn.PageInfo)
	}
	if conn.PageInfo.EndCursor != "0" {
		t.Errorf("endCursor = %q, want %q", conn.PageInfo.EndCursor, "0")
	}
}

// TestSearch_InvalidCursor は数値でないカーソルにBAD_REQUESTを返すことを検証する。
func TestSearch_InvalidCursor(t *testing.T) {
	p := newTestPaginator(fixedIndex(25))

	tests := []string{"abc", "-1", "10.5"}
	for _, cursor := range tests {
		_, apiErr := p.Search(context.Background(), SearchInput{Query: "tech", After: cursor})
		if apiErr == nil {
			t.Errorf("cursor %q: expected error, got nil", cursor)
			continue
		}
		if apiErr.Code != model.ErrCodeBadRequest {
			t.Errorf("cursor %q: error code = %q, want %q", cursor, apiErr.Code, model.ErrCodeBadRequest)
		}
	}
}

// TestSearch_SearchServiceError は検索コラボレーターの失敗がBAD_REQUESTに集約されることを検証する。
func TestSearch_SearchServiceError(t *testing.T) {
	search := &mockSearchService{
		searchFunc: func(ctx context.Context, query string, limit, offset int, sortBy, sortOrder string) ([]model.FeedCatalogEntry, int, error) {
			return nil, 0, errors.New("search index unavailable")
		},
	}
	p := newTestPaginator(search)

	_, apiErr := p.Search(context.Background(), SearchInput{Query: "tech"})
	if apiErr == nil {
		t.Fatal("expected error, got nil")
	}
	if apiErr.Code != model.ErrCodeBadRequest {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeBadRequest)
	}
}

// TestSearchClient_Search はHTTP検索クライアントのリクエスト構築とレスポンス解釈を検証する。
func TestSearchClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q, want /search", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "golang" {
			t.Errorf("query param q = %q, want %q", q.Get("q"), "golang")
		}
		if q.Get("limit") != "11" || q.Get("offset") != "0" {
			t.Errorf("limit/offset = %q/%q, want 11/0", q.Get("limit"), q.Get("offset"))
		}
		json.NewEncoder(w).Encode(searchResponse{
			Entries: []model.FeedCatalogEntry{
				{ID: "feed-1", Title: "Goブログ", URL: "https://example.com/feed.xml", SubscriberCount: 42},
			},
			TotalCount: 1,
		})
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewSearchClient(server.Client(), logger, server.URL)

	entries, total, err := client.Search(context.Background(), "golang", 11, 0, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Title != "Goブログ" {
		t.Errorf("entries = %+v, want single Goブログ entry", entries)
	}
	if total != 1 {
		t.Errorf("totalCount = %d, want 1", total)
	}
}

// TestSearchClient_ServerError は検索サービスのエラーステータスがエラーとして返ることを検証する。
func TestSearchClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewSearchClient(server.Client(), logger, server.URL)

	_, _, err := client.Search(context.Background(), "golang", 11, 0, "", "")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// TestSearchClient_NoEndpoint はエンドポイント未設定時にエラーを返すことを検証する。
func TestSearchClient_NoEndpoint(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewSearchClient(http.DefaultClient, logger, "")

	_, _, err := client.Search(context.Background(), "golang", 11, 0, "", "")
	if err == nil {
		t.Fatal("expected error for unset endpoint, got nil")
	}
}
