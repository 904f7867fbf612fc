package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// エンジン層の操作は必ずAPIErrorのいずれかのコードに集約して返し、
// 生の例外を境界の外に漏らさない。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, subscription, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeBadRequest               = "BAD_REQUEST"
	ErrCodeNotFound                 = "NOT_FOUND"
	ErrCodeAlreadySubscribed        = "ALREADY_SUBSCRIBED"
	ErrCodeExceededMaxSubscriptions = "EXCEEDED_MAX_SUBSCRIPTIONS"
	ErrCodeUnauthorized             = "UNAUTHORIZED"
	ErrCodeInvalidRequest           = "INVALID_REQUEST"
)

// NewBadRequestError は予期しない失敗の汎用エラーを生成する。
// ネットワーク障害やデータベース障害など、呼び出し元が区別する必要のない失敗を集約する。
func NewBadRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeBadRequest,
		Message:  fmt.Sprintf("リクエストの処理に失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewNotFoundError は対象のエンティティまたはフィードが存在しない場合のエラーを生成する。
func NewNotFoundError(target string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("対象が見つかりません: %s", target),
		Category: "subscription",
		Action:   "URLまたは購読IDを確認してください。",
	}
}

// NewAlreadySubscribedError は既にアクティブな購読が存在する場合のエラーを生成する。
func NewAlreadySubscribedError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeAlreadySubscribed,
		Message:  fmt.Sprintf("このフィードは既に購読しています: %s", url),
		Category: "subscription",
		Action:   "購読一覧から該当フィードを確認してください。",
	}
}

// NewExceededMaxSubscriptionsError はアクティブなRSS購読数が上限に達している場合のエラーを生成する。
func NewExceededMaxSubscriptionsError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodeExceededMaxSubscriptions,
		Message:  fmt.Sprintf("アクティブなRSS購読数が上限（%d件）に達しています。", limit),
		Category: "subscription",
		Action:   "不要な購読を解除してから、新しいフィードを登録してください。",
	}
}

// NewUnauthorizedError は未認証リクエストのエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidRequestError はリクエスト形式が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}
