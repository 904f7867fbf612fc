// Package analytics はイベント計測サービスへの送信クライアントを提供する。
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// Event は計測イベント1件を表す。
type Event struct {
	UserID     string         `json:"userId"`
	Event      string         `json:"event"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Tracker はイベント計測のインターフェースを定義する。
// fire-and-forgetの契約であり、送信失敗が呼び出し元の操作を失敗させることはない。
type Tracker interface {
	Track(ctx context.Context, event Event)
}

// Client はイベント計測サービスのHTTPクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string // 未設定の場合イベント送信は無効化される
}

// NewClient はClientの新しいインスタンスを生成する。
// endpointが空文字列の場合、Trackはno-opになる。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
	}
}

// Track はイベントを計測サービスに送信する。
// 送信失敗はログに記録するのみで、エラーを返さない。
func (c *Client) Track(ctx context.Context, event Event) {
	if c.endpoint == "" {
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		c.logger.Error("計測イベントのエンコードに失敗しました",
			slog.String("event", event.Event),
			slog.String("error", err.Error()),
		)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/track", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("計測リクエストの作成に失敗しました",
			slog.String("event", event.Event),
			slog.String("error", err.Error()),
		)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Feedhub/1.0 Feed Aggregator")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("計測イベントの送信に失敗しました",
			slog.String("event", event.Event),
			slog.String("error", err.Error()),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("計測サービスがエラーステータスを返しました",
			slog.String("event", event.Event),
			slog.Int("http_status", resp.StatusCode),
		)
	}
}

var _ Tracker = (*Client)(nil)
