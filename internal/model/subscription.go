// Package model はドメインモデルを定義する。
package model

import "time"

// SubscriptionType は購読の種類（RSSフィード/ニュースレター）を表す。
type SubscriptionType string

const (
	// SubscriptionTypeRSS はRSS/Atomフィードの購読。
	SubscriptionTypeRSS SubscriptionType = "RSS"
	// SubscriptionTypeNewsletter はキュレーション型ニュースレターの購読。
	SubscriptionTypeNewsletter SubscriptionType = "NEWSLETTER"
)

// SubscriptionStatus は購読のライフサイクル状態を表す。
// 遷移は ACTIVE → UNSUBSCRIBED と UNSUBSCRIBED → ACTIVE のみ許可される。
// 物理削除は行わない（購読解除はステータス変更のみのソフトデリート）。
type SubscriptionStatus string

const (
	// SubscriptionStatusActive はアクティブな購読状態。
	SubscriptionStatusActive SubscriptionStatus = "ACTIVE"
	// SubscriptionStatusUnsubscribed は解除済みの購読状態。
	SubscriptionStatusUnsubscribed SubscriptionStatus = "UNSUBSCRIBED"
)

// Subscription はユーザーとフィード/ニュースレターの購読関係を表す。
// RSS購読はURL必須で、(user_id, url) あたりアクティブな行は常に1件以下。
// ニュースレター購読は必ずNewsletterEmailを1:1で保持する。
type Subscription struct {
	ID                  string
	UserID              string
	Type                SubscriptionType
	URL                 string // RSSでは必須。ニュースレターでは空の場合がある
	Name                string
	Description         string
	IconURL             string
	Status              SubscriptionStatus
	CreatedAt           time.Time
	LastFetchedAt       *time.Time // 未フェッチの場合はnil
	LastFetchedChecksum *string    // 前回フェッチ内容のハッシュ。未フェッチの場合はnil
	ScheduledAt         *time.Time // 次回フェッチ予定時刻。未スケジュールの場合はnil
	AutoAddToLibrary    bool
	IsPrivate           bool
	UnsubscribeMailTo   *string // ニュースレター専用。解除用メールアドレス
	UnsubscribeHTTPURL  *string // ニュースレター専用。解除用URL
	NewsletterEmail     *NewsletterEmail
}

// NewsletterEmail はニュースレター受信用のメールアドレスを表す。
// ニュースレター購読に1:1で紐付く。
type NewsletterEmail struct {
	ID        string
	Address   string
	CreatedAt time.Time
}

// FeedCandidate はフィード探索（OPML/HTML/直接URL）で検出された
// 未永続化のフィード候補を表す。
type FeedCandidate struct {
	URL   string
	Title string
	Type  string // 未指定の場合は"rss"
}

// FeedCatalogEntry は外部のフィード検索インデックスからの読み取り専用射影。
// スキーマは検索側が所有し、このサービスはページネーションにのみ使用する。
type FeedCatalogEntry struct {
	ID              string `json:"id"`
	URL             string `json:"url"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	IconURL         string `json:"iconUrl,omitempty"`
	SubscriberCount int    `json:"subscriberCount"`
}
