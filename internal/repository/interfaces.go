// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/feedhub/internal/model"
)

// ErrDuplicateSubscription は同一(user_id, url)のアクティブなRSS購読が
// 既に存在する場合にInsertIfUnderQuotaが返すエラー。
// 部分ユニークインデックス違反をこのエラーに正規化する。
var ErrDuplicateSubscription = errors.New("duplicate active subscription")

// SortKey は購読一覧の第2ソートキーを表す。
// 第1キーは常にstatus昇順（ACTIVEがUNSUBSCRIBEDより先）で固定される。
type SortKey string

const (
	// SortKeyCreatedAt は作成日時でソートする。
	SortKeyCreatedAt SortKey = "created_at"
	// SortKeyLastFetchedAt は最終フェッチ日時でソートする。NULLは方向に関わらず末尾に置かれる。
	SortKeyLastFetchedAt SortKey = "last_fetched_at"
	// SortKeyName は購読名でソートする。
	SortKeyName SortKey = "name"
)

// SortDirection はソート方向を表す。
type SortDirection string

const (
	// SortAscending は昇順ソート。
	SortAscending SortDirection = "ASC"
	// SortDescending は降順ソート。
	SortDescending SortDirection = "DESC"
)

// SubscriptionUpdate は購読の部分更新ペイロード。
// nilのフィールドは変更せず、既存の値を維持する。
type SubscriptionUpdate struct {
	Name                *string
	Description         *string
	LastFetchedAt       *time.Time
	LastFetchedChecksum *string
	Status              *model.SubscriptionStatus
	ScheduledAt         *time.Time
	AutoAddToLibrary    *bool
	IsPrivate           *bool
}

// SubscriptionRepository は購読データの永続化インターフェース。
type SubscriptionRepository interface {
	// FindByID は指定ユーザーの購読をIDで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.Subscription, error)

	// FindByName は指定ユーザーの購読を名前で検索する。見つからない場合はnilを返す。
	// 旧クライアント互換の解除経路で使用する。
	FindByName(ctx context.Context, userID, name string) (*model.Subscription, error)

	// FindByUserAndURL はユーザーID・URL・種類で購読を検索する。
	// ステータスを問わず一致行を返す（再購読の検出に使用）。見つからない場合はnilを返す。
	FindByUserAndURL(ctx context.Context, userID, url string, subType model.SubscriptionType) (*model.Subscription, error)

	// ListByUserFiltered はユーザーの購読一覧を種類フィルタとソート指定付きで返す。
	//   - typeFilter = NEWSLETTER: アクティブなニュースレターのみ
	//   - typeFilter = RSS: ステータスを問わず全RSS行
	//   - typeFilter = nil: (アクティブなニュースレター) OR (全RSS行)
	// ニュースレター購読はnewsletter_emailsをJOINフェッチして返す。
	// 順序: status昇順 → sortKeyのsortDir順（NULLは常に末尾）。
	ListByUserFiltered(ctx context.Context, userID string, typeFilter *model.SubscriptionType, sortKey SortKey, sortDir SortDirection) ([]*model.Subscription, error)

	// InsertIfUnderQuota はユーザーのアクティブなRSS購読数がmaxActiveRSS未満の場合のみ
	// 新しい購読行を挿入する。カウント評価と挿入は単一の不可分なデータベース操作として
	// 実行され、同一ユーザーの並行subscribe呼び出しが上限を超えることはない。
	// 挿入された行を1要素のスライスで返し、上限到達時は空スライスを返す
	// （上限到達はエラーにしない）。同一(user_id, url)のアクティブ行が既に存在する
	// 場合はErrDuplicateSubscriptionを返す。
	InsertIfUnderQuota(ctx context.Context, sub *model.Subscription, maxActiveRSS int) ([]*model.Subscription, error)

	// UpdateFields は部分更新ペイロードに含まれるフィールドのみを更新し、
	// 更新後の正準的な行をuserIDスコープで読み直して返す。
	// 書き込みと読み直しは同一トランザクション内で行う。
	// id+userIDに一致する行がない場合はsql.ErrNoRowsを返す。
	UpdateFields(ctx context.Context, userID, id string, update SubscriptionUpdate) (*model.Subscription, error)
}
