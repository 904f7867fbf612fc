// Package taskqueue はフェッチワーカーへの非同期タスク投入クライアントを提供する。
// タスクの消費（フィード本文の取得・取り込み）はワーカー側の責務であり、
// このパッケージは投入のみを行う。
package taskqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// FetchTask はフィードフェッチの非同期タスク1件を表す。
// 購読1件につき1レコードで、配列間のインデックス整合に依存しない。
type FetchTask struct {
	UserID         string     `json:"userId"`
	SubscriptionID string     `json:"subscriptionId"`
	URL            string     `json:"url"`
	ScheduledAt    time.Time  `json:"scheduledAt"`
	FetchedAt      *time.Time `json:"fetchedAt,omitempty"`
	Checksum       *string    `json:"checksum,omitempty"`
	AddToLibrary   bool       `json:"addToLibrary"`
}

// MailTask はニュースレター解除メールの送信タスクを表す。
type MailTask struct {
	SubscriptionID string `json:"subscriptionId"`
	MailTo         string `json:"mailTo"`
	FromAddress    string `json:"fromAddress"`
}

// Enqueuer はタスク投入機能のインターフェースを定義する。
type Enqueuer interface {
	// EnqueueFetch はフェッチタスクを投入する。
	// エンドポイントが未設定の場合は何もしない。
	EnqueueFetch(ctx context.Context, tasks []FetchTask) error

	// EnqueueUnsubscribeMail はニュースレター解除メールの送信タスクを投入する。
	EnqueueUnsubscribeMail(ctx context.Context, task MailTask) error
}

// Client はタスクキューサービスのHTTPクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string // 未設定の場合タスク投入は無効化される
}

// NewClient はClientの新しいインスタンスを生成する。
// endpointが空文字列の場合、すべての投入操作はno-opになる。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
	}
}

// EnqueueFetch はフェッチタスクを投入する。
func (c *Client) EnqueueFetch(ctx context.Context, tasks []FetchTask) error {
	if len(tasks) == 0 {
		return nil
	}
	return c.post(ctx, "/tasks/fetch", tasks)
}

// EnqueueUnsubscribeMail はニュースレター解除メールの送信タスクを投入する。
func (c *Client) EnqueueUnsubscribeMail(ctx context.Context, task MailTask) error {
	return c.post(ctx, "/tasks/unsubscribe-mail", task)
}

// post はペイロードをJSONエンコードしてタスクキューにPOSTする。
func (c *Client) post(ctx context.Context, path string, payload any) error {
	if c.endpoint == "" {
		c.logger.Debug("タスクキューが未設定のためタスク投入をスキップしました",
			slog.String("path", path),
		)
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("タスクペイロードのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Feedhub/1.0 Feed Aggregator")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("タスクキューへの投入に失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("タスクキューがエラーステータスを返しました",
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("タスクキューがステータス %d を返しました", resp.StatusCode)
	}

	return nil
}

var _ Enqueuer = (*Client)(nil)
