// Package catalog はフィードカタログ検索のオフセットカーソルページネーションを提供する。
// 全文検索自体は外部の検索コラボレーターの責務で、このパッケージは
// ページウィンドウの計算とカーソルメタデータの生成のみを行う。
package catalog

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/hitoshi/feedhub/internal/metrics"
	"github.com/hitoshi/feedhub/internal/model"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// SearchService は外部のフィード検索コラボレーターのインターフェース。
// クエリ・limit・offsetに対してエントリーと総一致件数を返す。
type SearchService interface {
	Search(ctx context.Context, query string, limit, offset int, sortBy, sortOrder string) ([]model.FeedCatalogEntry, int, error)
}

// Edge はページ内の1エントリーとそのカーソルを表す。
// カーソルはエントリー個別の位置ではなくページのendCursorを共有する。
// そのため任意の中間エントリーからの再開はできず、ページ境界からのみ再開できる。
type Edge struct {
	Node   model.FeedCatalogEntry `json:"node"`
	Cursor string                 `json:"cursor"`
}

// PageInfo はページネーションのメタデータを表す。
type PageInfo struct {
	HasNextPage     bool   `json:"hasNextPage"`
	HasPreviousPage bool   `json:"hasPreviousPage"`
	EndCursor       string `json:"endCursor"`
}

// Connection はカタログ検索1ページ分の結果を表す。
type Connection struct {
	Edges      []Edge   `json:"edges"`
	PageInfo   PageInfo `json:"pageInfo"`
	TotalCount int      `json:"totalCount"`
}

// SearchInput はカタログ検索の入力。
// Firstがnilの場合はデフォルトのページサイズを使用する。
// Afterは前ページのendCursor（空文字列は先頭から）。
type SearchInput struct {
	Query     string
	First     *int
	After     string
	SortBy    string
	SortOrder string
}

// Paginator はカタログ検索のページネーションエンジン。
type Paginator struct {
	search    SearchService
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// NewPaginator はPaginatorの新しいインスタンスを生成する。
func NewPaginator(search SearchService, collector metrics.MetricsCollector, logger *slog.Logger) *Paginator {
	return &Paginator{
		search:    search,
		collector: collector,
		logger:    logger,
	}
}

// Search はクエリに一致するカタログエントリーを1ページ分返す。
// カーソルは先頭未取得エントリーのゼロ基点オフセットの10進文字列で、
// 次ページの有無は first+1 件のフェッチで追加ラウンドトリップなしに判定する。
// 検索コラボレーターの失敗はBAD_REQUESTに集約する。
func (p *Paginator) Search(ctx context.Context, input SearchInput) (*Connection, *model.APIError) {
	start, apiErr := decodeCursor(input.After)
	if apiErr != nil {
		return nil, apiErr
	}

	first := clampPageSize(input.First)

	began := time.Now()
	entries, total, err := p.search.Search(ctx, input.Query, first+1, start, input.SortBy, input.SortOrder)
	if p.collector != nil {
		p.collector.RecordCatalogSearchLatency(time.Since(began))
	}
	if err != nil {
		p.logger.Error("カタログ検索に失敗しました",
			slog.String("query", input.Query),
			slog.String("error", err.Error()),
		)
		return nil, model.NewBadRequestError("カタログ検索に失敗しました")
	}

	returned := len(entries)
	hasNext := returned > first

	// endCursorは次ページの先頭エントリーのオフセットに一致する
	endOffset := start + returned
	if hasNext {
		endOffset--
		entries = entries[:first]
	}
	endCursor := strconv.Itoa(endOffset)

	edges := make([]Edge, 0, len(entries))
	for _, entry := range entries {
		edges = append(edges, Edge{Node: entry, Cursor: endCursor})
	}

	return &Connection{
		Edges: edges,
		PageInfo: PageInfo{
			HasNextPage:     hasNext,
			HasPreviousPage: start > 0,
			EndCursor:       endCursor,
		},
		TotalCount: total,
	}, nil
}

// decodeCursor はカーソル文字列をゼロ基点オフセットに変換する。
// 空文字列はオフセット0を意味する。
func decodeCursor(cursor string) (int, *model.APIError) {
	if cursor == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return 0, model.NewBadRequestError("カーソルの形式が不正です")
	}
	return offset, nil
}

// clampPageSize はページサイズを[0, 100]の範囲に丸める。未指定は10。
func clampPageSize(first *int) int {
	if first == nil {
		return defaultPageSize
	}
	if *first < 0 {
		return 0
	}
	if *first > maxPageSize {
		return maxPageSize
	}
	return *first
}
