package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/feedhub/internal/model"
)

// subscriptionColumns はSELECTで取得する購読行のカラムリスト。
// newsletter_emailsのJOINフェッチ列を含む。
const subscriptionColumns = `
	s.id, s.user_id, s.type, s.url, s.name, s.description, s.icon_url, s.status,
	s.created_at, s.last_fetched_at, s.last_fetched_checksum, s.scheduled_at,
	s.auto_add_to_library, s.is_private, s.unsubscribe_mail_to, s.unsubscribe_http_url,
	n.id, n.address, n.created_at`

const subscriptionFromClause = `
	FROM subscriptions s
	LEFT JOIN newsletter_emails n ON n.subscription_id = s.id`

// PostgresSubscriptionRepo はPostgreSQLを使用した購読リポジトリ。
type PostgresSubscriptionRepo struct {
	db *sql.DB
}

// NewPostgresSubscriptionRepo はPostgresSubscriptionRepoを生成する。
func NewPostgresSubscriptionRepo(db *sql.DB) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{db: db}
}

// rowScanner はsql.Rowとsql.Rowsの共通Scanインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSubscription は1行分の購読データをドメインモデルに読み取る。
func scanSubscription(row rowScanner) (*model.Subscription, error) {
	sub := &model.Subscription{}
	var (
		url                 sql.NullString
		lastFetchedAt       sql.NullTime
		lastFetchedChecksum sql.NullString
		scheduledAt         sql.NullTime
		unsubMailTo         sql.NullString
		unsubHTTPURL        sql.NullString
		emailID             sql.NullString
		emailAddress        sql.NullString
		emailCreatedAt      sql.NullTime
	)

	if err := row.Scan(
		&sub.ID, &sub.UserID, &sub.Type, &url, &sub.Name, &sub.Description, &sub.IconURL, &sub.Status,
		&sub.CreatedAt, &lastFetchedAt, &lastFetchedChecksum, &scheduledAt,
		&sub.AutoAddToLibrary, &sub.IsPrivate, &unsubMailTo, &unsubHTTPURL,
		&emailID, &emailAddress, &emailCreatedAt,
	); err != nil {
		return nil, err
	}

	sub.URL = url.String
	if lastFetchedAt.Valid {
		t := lastFetchedAt.Time
		sub.LastFetchedAt = &t
	}
	if lastFetchedChecksum.Valid {
		v := lastFetchedChecksum.String
		sub.LastFetchedChecksum = &v
	}
	if scheduledAt.Valid {
		t := scheduledAt.Time
		sub.ScheduledAt = &t
	}
	if unsubMailTo.Valid {
		v := unsubMailTo.String
		sub.UnsubscribeMailTo = &v
	}
	if unsubHTTPURL.Valid {
		v := unsubHTTPURL.String
		sub.UnsubscribeHTTPURL = &v
	}
	if emailID.Valid {
		sub.NewsletterEmail = &model.NewsletterEmail{
			ID:        emailID.String,
			Address:   emailAddress.String,
			CreatedAt: emailCreatedAt.Time,
		}
	}

	return sub, nil
}

// findOne は単一行クエリを実行し、行がない場合はnilを返す。
func (r *PostgresSubscriptionRepo) findOne(ctx context.Context, where string, args ...any) (*model.Subscription, error) {
	query := `SELECT` + subscriptionColumns + subscriptionFromClause + ` WHERE ` + where
	sub, err := scanSubscription(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("購読の取得に失敗しました: %w", err)
	}
	return sub, nil
}

// FindByID は指定ユーザーの購読をIDで取得する。見つからない場合はnilを返す。
func (r *PostgresSubscriptionRepo) FindByID(ctx context.Context, userID, id string) (*model.Subscription, error) {
	return r.findOne(ctx, `s.id = $1 AND s.user_id = $2`, id, userID)
}

// FindByName は指定ユーザーの購読を名前で検索する。見つからない場合はnilを返す。
func (r *PostgresSubscriptionRepo) FindByName(ctx context.Context, userID, name string) (*model.Subscription, error) {
	return r.findOne(ctx, `s.user_id = $1 AND s.name = $2`, userID, name)
}

// FindByUserAndURL はユーザーID・URL・種類で購読を検索する。
// ステータスを問わず一致行を返す。見つからない場合はnilを返す。
func (r *PostgresSubscriptionRepo) FindByUserAndURL(ctx context.Context, userID, url string, subType model.SubscriptionType) (*model.Subscription, error) {
	return r.findOne(ctx, `s.user_id = $1 AND s.url = $2 AND s.type = $3`, userID, url, string(subType))
}

// sortColumns はソートキーとして許可するカラムの対応表。
// 動的にORDER BY句へ埋め込むため、ここに無いキーは受け付けない。
var sortColumns = map[SortKey]string{
	SortKeyCreatedAt:     "s.created_at",
	SortKeyLastFetchedAt: "s.last_fetched_at",
	SortKeyName:          "s.name",
}

// buildListQuery は一覧取得クエリのSQLを構築する。
// 種類フィルタの条件と、status昇順を第1キーに固定したORDER BY句
// （第2キーはNULLを方向に関わらず末尾に置く）を組み立てる。
func buildListQuery(typeFilter *model.SubscriptionType, sortKey SortKey, sortDir SortDirection) (string, error) {
	column, ok := sortColumns[sortKey]
	if !ok {
		return "", fmt.Errorf("無効なソートキーです: %s", sortKey)
	}
	direction := "DESC"
	if sortDir == SortAscending {
		direction = "ASC"
	}

	var typeCond string
	switch {
	case typeFilter != nil && *typeFilter == model.SubscriptionTypeNewsletter:
		typeCond = `s.type = 'NEWSLETTER' AND s.status = 'ACTIVE'`
	case typeFilter != nil && *typeFilter == model.SubscriptionTypeRSS:
		typeCond = `s.type = 'RSS'`
	default:
		typeCond = `((s.type = 'NEWSLETTER' AND s.status = 'ACTIVE') OR s.type = 'RSS')`
	}

	return `SELECT` + subscriptionColumns + subscriptionFromClause +
		` WHERE s.user_id = $1 AND ` + typeCond +
		` ORDER BY s.status ASC, ` + column + ` ` + direction + ` NULLS LAST, s.id ASC`, nil
}

// ListByUserFiltered はユーザーの購読一覧を種類フィルタとソート指定付きで返す。
func (r *PostgresSubscriptionRepo) ListByUserFiltered(ctx context.Context, userID string, typeFilter *model.SubscriptionType, sortKey SortKey, sortDir SortDirection) ([]*model.Subscription, error) {
	query, err := buildListQuery(typeFilter, sortKey, sortDir)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("購読一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var subs []*model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("購読行の読み取りに失敗しました: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("購読一覧の走査に失敗しました: %w", err)
	}
	return subs, nil
}

// insertUnderQuotaQuery はアクティブなRSS購読数が上限未満のときだけ挿入する。
// 条件を満たさない場合は1行も返さない。
const insertUnderQuotaQuery = `
	INSERT INTO subscriptions (
		id, user_id, type, url, name, description, icon_url, status,
		created_at, scheduled_at, auto_add_to_library, is_private
	)
	SELECT $1, $2, $3, $4, $5, $6, $7, 'ACTIVE', $8, $9, $10, $11
	WHERE (
		SELECT COUNT(*) FROM subscriptions
		WHERE user_id = $2 AND type = 'RSS' AND status = 'ACTIVE'
	) < $12
	RETURNING id, created_at`

// InsertIfUnderQuota はアクティブなRSS購読数の上限チェックと挿入を
// 単一トランザクション内の不可分な操作として実行する。
// ユーザー単位のアドバイザリロックで同一ユーザーの並行呼び出しを直列化するため、
// 並行subscribeが上限を突破することはない。上限到達時は空スライスを返す。
func (r *PostgresSubscriptionRepo) InsertIfUnderQuota(ctx context.Context, sub *model.Subscription, maxActiveRSS int) ([]*model.Subscription, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	// 同一ユーザーのカウント評価と挿入を直列化する（トランザクション終了時に自動解放）
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sub.UserID); err != nil {
		return nil, fmt.Errorf("アドバイザリロックの取得に失敗しました: %w", err)
	}

	var (
		insertedID string
		createdAt  time.Time
	)
	err = tx.QueryRowContext(ctx, insertUnderQuotaQuery,
		sub.ID, sub.UserID, string(sub.Type), nullString(sub.URL),
		sub.Name, sub.Description, sub.IconURL,
		sub.CreatedAt, nullTime(sub.ScheduledAt),
		sub.AutoAddToLibrary, sub.IsPrivate,
		maxActiveRSS,
	).Scan(&insertedID, &createdAt)

	if err == sql.ErrNoRows {
		// 上限到達。エラーにせず空の結果で返す
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
		}
		return nil, nil
	}
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, ErrDuplicateSubscription
		}
		return nil, fmt.Errorf("購読の挿入に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	inserted := *sub
	inserted.ID = insertedID
	inserted.Status = model.SubscriptionStatusActive
	inserted.CreatedAt = createdAt
	return []*model.Subscription{&inserted}, nil
}

// UpdateFields は部分更新ペイロードに含まれるフィールドのみを更新し、
// 同一トランザクション内で更新後の正準的な行を読み直して返す。
// id+userIDに一致する行がない場合はsql.ErrNoRowsを返す。
func (r *PostgresSubscriptionRepo) UpdateFields(ctx context.Context, userID, id string, update SubscriptionUpdate) (*model.Subscription, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	setClauses, args := buildUpdateClauses(update)
	if len(setClauses) > 0 {
		args = append(args, id, userID)
		query := fmt.Sprintf(
			`UPDATE subscriptions SET %s WHERE id = $%d AND user_id = $%d RETURNING id`,
			strings.Join(setClauses, ", "), len(args)-1, len(args),
		)
		var updatedID string
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&updatedID); err != nil {
			if err == sql.ErrNoRows {
				return nil, sql.ErrNoRows
			}
			return nil, fmt.Errorf("購読の更新に失敗しました: %w", err)
		}
	}

	// 更新後の正準的な行をuserIDスコープで読み直す
	query := `SELECT` + subscriptionColumns + subscriptionFromClause + ` WHERE s.id = $1 AND s.user_id = $2`
	sub, err := scanSubscription(tx.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("更新後の購読の取得に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return sub, nil
}

// buildUpdateClauses は部分更新ペイロードからSET句とバインド引数を構築する。
// nilのフィールドは句に含めない（NULL化しない）。
func buildUpdateClauses(update SubscriptionUpdate) ([]string, []any) {
	var clauses []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Name != nil {
		add("name", *update.Name)
	}
	if update.Description != nil {
		add("description", *update.Description)
	}
	if update.LastFetchedAt != nil {
		add("last_fetched_at", *update.LastFetchedAt)
	}
	if update.LastFetchedChecksum != nil {
		add("last_fetched_checksum", *update.LastFetchedChecksum)
	}
	if update.Status != nil {
		add("status", string(*update.Status))
	}
	if update.ScheduledAt != nil {
		add("scheduled_at", *update.ScheduledAt)
	}
	if update.AutoAddToLibrary != nil {
		add("auto_add_to_library", *update.AutoAddToLibrary)
	}
	if update.IsPrivate != nil {
		add("is_private", *update.IsPrivate)
	}

	return clauses, args
}

// nullString は空文字列をNULLとして扱うためのヘルパー。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullTime はnilをNULLとして扱うためのヘルパー。
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// compile-time interface check
var _ SubscriptionRepository = (*PostgresSubscriptionRepo)(nil)
