package subscription

import (
	"context"
	"log/slog"

	"github.com/hitoshi/feedhub/internal/model"
	"github.com/hitoshi/feedhub/internal/repository"
)

// SortBy は購読一覧のソート基準を表す。
type SortBy string

const (
	// SortByCreatedTime は購読の作成日時でソートする（デフォルト）。
	SortByCreatedTime SortBy = "CreatedTime"
	// SortByUpdatedTime は最終フェッチ日時でソートする。
	SortByUpdatedTime SortBy = "UpdatedTime"
)

// SortOrder は購読一覧のソート方向を表す。
type SortOrder string

const (
	// SortOrderAscending は昇順ソート。
	SortOrderAscending SortOrder = "Ascending"
	// SortOrderDescending は降順ソート（デフォルト）。
	SortOrderDescending SortOrder = "Descending"
)

// List はユーザーの購読一覧を種類フィルタとソート指定付きで返す。
// ソート基準・方向をストア層の順序付けパラメータに変換する以外の
// ビジネスロジックは持たない。ストア層の失敗はBAD_REQUESTに集約する。
func (s *Service) List(ctx context.Context, userID string, typeFilter *model.SubscriptionType, sortBy SortBy, sortOrder SortOrder) ([]*model.Subscription, *model.APIError) {
	sortKey := repository.SortKeyCreatedAt
	if sortBy == SortByUpdatedTime {
		sortKey = repository.SortKeyLastFetchedAt
	}

	sortDir := repository.SortDescending
	if sortOrder == SortOrderAscending {
		sortDir = repository.SortAscending
	}

	subs, err := s.repo.ListByUserFiltered(ctx, userID, typeFilter, sortKey, sortDir)
	if err != nil {
		s.logger.Error("購読一覧の取得に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewBadRequestError("購読一覧の取得に失敗しました")
	}

	return subs, nil
}
