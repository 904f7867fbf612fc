// Package newsletter はニュースレター購読解除の外部副作用の委譲を提供する。
package newsletter

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/feedhub/internal/model"
	"github.com/hitoshi/feedhub/internal/taskqueue"
)

// UnsubscribeDelegate はニュースレター解除の副作用（提供元への通知）の
// インターフェースを定義する。
// ベストエフォートの契約であり、失敗しても購読解除自体は成立する。
type UnsubscribeDelegate interface {
	Unsubscribe(ctx context.Context, sub *model.Subscription)
}

// Unsubscriber はUnsubscribeDelegateの実装。
// 解除用URLがあればList-Unsubscribe相当のHTTPリクエストを送信し、
// 解除用メールアドレスのみの場合は解除メールの送信タスクを投入する。
type Unsubscriber struct {
	httpClient *http.Client
	enqueuer   taskqueue.Enqueuer
	logger     *slog.Logger
}

// NewUnsubscriber はUnsubscriberの新しいインスタンスを生成する。
// httpClientにはSSRF防止付きクライアントを渡すこと。
func NewUnsubscriber(httpClient *http.Client, enqueuer taskqueue.Enqueuer, logger *slog.Logger) *Unsubscriber {
	return &Unsubscriber{
		httpClient: httpClient,
		enqueuer:   enqueuer,
		logger:     logger,
	}
}

// Unsubscribe はニュースレター提供元への解除通知を実行する。
// 解除手段（URL・メールアドレス）を両方欠く購読は提供元のアカウント設定から
// 解除する必要があるため、情報ログのみ記録して何もしない。
func (u *Unsubscriber) Unsubscribe(ctx context.Context, sub *model.Subscription) {
	if sub.Type != model.SubscriptionTypeNewsletter {
		return
	}

	switch {
	case sub.UnsubscribeHTTPURL != nil && *sub.UnsubscribeHTTPURL != "":
		u.unsubscribeViaHTTP(ctx, sub, *sub.UnsubscribeHTTPURL)

	case sub.UnsubscribeMailTo != nil && *sub.UnsubscribeMailTo != "":
		u.unsubscribeViaMail(ctx, sub, *sub.UnsubscribeMailTo)

	default:
		u.logger.Info("解除手段を持たないニュースレター購読のため提供元への通知をスキップしました",
			slog.String("subscription_id", sub.ID),
		)
	}
}

// unsubscribeViaHTTP は解除用URLへGETリクエストを送信する。
func (u *Unsubscriber) unsubscribeViaHTTP(ctx context.Context, sub *model.Subscription, rawURL string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		u.logger.Warn("解除URLのリクエスト作成に失敗しました",
			slog.String("subscription_id", sub.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	req.Header.Set("User-Agent", "Feedhub/1.0 Feed Aggregator")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		u.logger.Warn("解除URLへのリクエストに失敗しました",
			slog.String("subscription_id", sub.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		u.logger.Warn("解除URLがエラーステータスを返しました",
			slog.String("subscription_id", sub.ID),
			slog.Int("http_status", resp.StatusCode),
		)
	}
}

// unsubscribeViaMail は解除メールの送信タスクを投入する。
// 送信元には購読の受信用メールアドレスを使用する。
func (u *Unsubscriber) unsubscribeViaMail(ctx context.Context, sub *model.Subscription, mailTo string) {
	fromAddress := ""
	if sub.NewsletterEmail != nil {
		fromAddress = sub.NewsletterEmail.Address
	}

	task := taskqueue.MailTask{
		SubscriptionID: sub.ID,
		MailTo:         mailTo,
		FromAddress:    fromAddress,
	}
	if err := u.enqueuer.EnqueueUnsubscribeMail(ctx, task); err != nil {
		u.logger.Warn("解除メールタスクの投入に失敗しました",
			slog.String("subscription_id", sub.ID),
			slog.String("error", err.Error()),
		)
	}
}

var _ UnsubscribeDelegate = (*Unsubscriber)(nil)
