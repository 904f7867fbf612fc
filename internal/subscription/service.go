// Package subscription は購読ライフサイクル管理のドメインロジックを提供する。
// subscribe / unsubscribe / resubscribe / update の状態遷移を調停し、
// フェッチスケジュール要求と計測イベントを発行する。
package subscription

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/feedhub/internal/analytics"
	"github.com/hitoshi/feedhub/internal/discovery"
	"github.com/hitoshi/feedhub/internal/metrics"
	"github.com/hitoshi/feedhub/internal/model"
	"github.com/hitoshi/feedhub/internal/newsletter"
	"github.com/hitoshi/feedhub/internal/repository"
	"github.com/hitoshi/feedhub/internal/security"
	"github.com/hitoshi/feedhub/internal/taskqueue"
)

// Service は購読ライフサイクルのサービス層。
// 状態は {ACTIVE, UNSUBSCRIBED} の2値で、遷移は
// ACTIVE → UNSUBSCRIBED（unsubscribe）と UNSUBSCRIBED → ACTIVE（resubscribe）のみ。
type Service struct {
	repo         repository.SubscriptionRepository
	normalizer   discovery.NormalizerService
	enqueuer     taskqueue.Enqueuer
	tracker      analytics.Tracker
	unsubscriber newsletter.UnsubscribeDelegate
	sanitizer    security.MetadataSanitizerService
	collector    metrics.MetricsCollector
	logger       *slog.Logger
	maxActive    int
}

// NewService はServiceの新しいインスタンスを生成する。
// maxActiveはユーザーあたりの同時アクティブRSS購読数の上限。
func NewService(
	repo repository.SubscriptionRepository,
	normalizer discovery.NormalizerService,
	enqueuer taskqueue.Enqueuer,
	tracker analytics.Tracker,
	unsubscriber newsletter.UnsubscribeDelegate,
	sanitizer security.MetadataSanitizerService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxActive int,
) *Service {
	return &Service{
		repo:         repo,
		normalizer:   normalizer,
		enqueuer:     enqueuer,
		tracker:      tracker,
		unsubscriber: unsubscriber,
		sanitizer:    sanitizer,
		collector:    collector,
		logger:       logger,
		maxActive:    maxActive,
	}
}

// SubscribeOptions はsubscribe操作のオプション。
type SubscribeOptions struct {
	AutoAddToLibrary bool
	IsPrivate        bool
}

// Subscribe はRSSフィードの購読を登録する。
//   - 同一URLのアクティブな購読が既にある場合はALREADY_SUBSCRIBED。
//   - 解除済みの購読がある場合は再アクティブ化し、前回フェッチ情報を保持したまま
//     即時フェッチを要求する（増分フェッチの判断はワーカーに委ねる）。
//   - 新規の場合はURLが実在するフィードに解決されることを検証した上で、
//     上限チェック付きの不可分な挿入を行う。上限到達はEXCEEDED_MAX_SUBSCRIPTIONS。
//
// 予期しない失敗はBAD_REQUESTに集約し、生のエラーを返さない。
func (s *Service) Subscribe(ctx context.Context, userID, url string, opts SubscribeOptions) (*model.Subscription, *model.APIError) {
	if url == "" {
		return nil, model.NewBadRequestError("URLが入力されていません")
	}

	existing, err := s.repo.FindByUserAndURL(ctx, userID, url, model.SubscriptionTypeRSS)
	if err != nil {
		s.logger.Error("購読の検索に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		s.recordSubscribe(metrics.SubscribeOutcomeError)
		return nil, model.NewBadRequestError("購読の検索に失敗しました")
	}

	if existing != nil {
		if existing.Status == model.SubscriptionStatusActive {
			s.recordSubscribe(metrics.SubscribeOutcomeAlreadySubscribed)
			return nil, model.NewAlreadySubscribedError(url)
		}
		return s.resubscribe(ctx, userID, existing)
	}

	return s.subscribeNew(ctx, userID, url, opts)
}

// resubscribe は解除済みの購読をACTIVEに戻す。
// 前回のlastFetchedAt/checksumは更新せず保持する。
func (s *Service) resubscribe(ctx context.Context, userID string, existing *model.Subscription) (*model.Subscription, *model.APIError) {
	now := time.Now()
	status := model.SubscriptionStatusActive
	updated, err := s.repo.UpdateFields(ctx, userID, existing.ID, repository.SubscriptionUpdate{
		Status:      &status,
		ScheduledAt: &now,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.recordSubscribe(metrics.SubscribeOutcomeNotFound)
			return nil, model.NewNotFoundError(existing.ID)
		}
		s.logger.Error("再購読の更新に失敗しました",
			slog.String("user_id", userID),
			slog.String("subscription_id", existing.ID),
			slog.String("error", err.Error()),
		)
		s.recordSubscribe(metrics.SubscribeOutcomeError)
		return nil, model.NewBadRequestError("再購読の処理に失敗しました")
	}

	s.enqueueFetchNow(ctx, updated)
	s.track(ctx, userID, "resubscribe_rss", map[string]any{"url": updated.URL})
	s.recordSubscribe(metrics.SubscribeOutcomeResubscribed)
	return updated, nil
}

// subscribeNew は新規購読を登録する。
func (s *Service) subscribeNew(ctx context.Context, userID, url string, opts SubscribeOptions) (*model.Subscription, *model.APIError) {
	candidate, apiErr := s.normalizer.ResolveFeed(ctx, url)
	if apiErr != nil {
		if apiErr.Code == model.ErrCodeNotFound {
			s.recordSubscribe(metrics.SubscribeOutcomeNotFound)
		} else {
			s.recordSubscribe(metrics.SubscribeOutcomeError)
		}
		return nil, apiErr
	}

	now := time.Now()
	sub := &model.Subscription{
		ID:               uuid.NewString(),
		UserID:           userID,
		Type:             model.SubscriptionTypeRSS,
		URL:              url,
		Name:             s.sanitizer.SanitizeName(candidate.Title),
		Status:           model.SubscriptionStatusActive,
		CreatedAt:        now,
		ScheduledAt:      &now,
		AutoAddToLibrary: opts.AutoAddToLibrary,
		IsPrivate:        opts.IsPrivate,
	}

	inserted, err := s.repo.InsertIfUnderQuota(ctx, sub, s.maxActive)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateSubscription) {
			// 並行subscribeとの競合。既にアクティブな行が存在する
			s.recordSubscribe(metrics.SubscribeOutcomeAlreadySubscribed)
			return nil, model.NewAlreadySubscribedError(url)
		}
		s.logger.Error("購読の登録に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		s.recordSubscribe(metrics.SubscribeOutcomeError)
		return nil, model.NewBadRequestError("購読の登録に失敗しました")
	}

	if len(inserted) == 0 {
		if s.collector != nil {
			s.collector.RecordQuotaRejection()
		}
		s.recordSubscribe(metrics.SubscribeOutcomeQuotaExceeded)
		return nil, model.NewExceededMaxSubscriptionsError(s.maxActive)
	}

	created := inserted[0]
	s.enqueueFetchNow(ctx, created)
	s.track(ctx, userID, "subscribe_rss", map[string]any{"url": url})
	s.recordSubscribe(metrics.SubscribeOutcomeCreated)
	return created, nil
}

// Unsubscribe は購読を解除する。物理削除は行わず、ステータスをUNSUBSCRIBEDに変更する。
// idが指定されていればid優先で解決し、空の場合はname（旧クライアント互換）で解決する。
// ニュースレターの提供元への解除通知は外部デリゲートに委譲し、
// その失敗が解除操作を失敗させることはない。
func (s *Service) Unsubscribe(ctx context.Context, userID, id, name string) (*model.Subscription, *model.APIError) {
	sub, apiErr := s.resolveTarget(ctx, userID, id, name)
	if apiErr != nil {
		return nil, apiErr
	}

	status := model.SubscriptionStatusUnsubscribed
	updated, err := s.repo.UpdateFields(ctx, userID, sub.ID, repository.SubscriptionUpdate{
		Status: &status,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NewNotFoundError(sub.ID)
		}
		s.logger.Error("購読解除の更新に失敗しました",
			slog.String("user_id", userID),
			slog.String("subscription_id", sub.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewBadRequestError("購読解除の処理に失敗しました")
	}

	// デリゲート実行前の購読を返す契約のため、先に戻り値を確定してから通知する
	s.unsubscriber.Unsubscribe(ctx, updated)
	s.track(ctx, userID, "unsubscribe", map[string]any{"type": string(updated.Type)})
	if s.collector != nil {
		s.collector.RecordUnsubscribe(string(updated.Type))
	}
	return updated, nil
}

// resolveTarget はid（優先）またはnameで購読を解決する。
func (s *Service) resolveTarget(ctx context.Context, userID, id, name string) (*model.Subscription, *model.APIError) {
	if id == "" && name == "" {
		return nil, model.NewBadRequestError("idまたはnameのいずれかを指定してください")
	}

	var sub *model.Subscription
	var err error
	if id != "" {
		sub, err = s.repo.FindByID(ctx, userID, id)
	} else {
		sub, err = s.repo.FindByName(ctx, userID, name)
	}
	if err != nil {
		s.logger.Error("購読の解決に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewBadRequestError("購読の解決に失敗しました")
	}
	if sub == nil {
		target := id
		if target == "" {
			target = name
		}
		return nil, model.NewNotFoundError(target)
	}
	return sub, nil
}

// UpdateInput は購読の部分更新入力。
// nilのフィールドは変更しない（nullでの上書きはしない）。
// 日時フィールドはRFC 3339形式の文字列で受け取る。
type UpdateInput struct {
	Name                *string
	Description         *string
	LastFetchedAt       *string
	LastFetchedChecksum *string
	Status              *string
	ScheduledAt         *string
	AutoAddToLibrary    *bool
	IsPrivate           *bool
}

// Update は購読のフィールドを部分更新し、更新後の正準的な行を返す。
// 入力に含まれるフィールドのみを書き込み、名前と説明文はサニタイズする。
// 永続化の失敗（対象行なしを含む）はBAD_REQUESTに集約する。
func (s *Service) Update(ctx context.Context, userID, id string, input UpdateInput) (*model.Subscription, *model.APIError) {
	if id == "" {
		return nil, model.NewBadRequestError("購読IDが入力されていません")
	}

	update := repository.SubscriptionUpdate{
		LastFetchedChecksum: input.LastFetchedChecksum,
		AutoAddToLibrary:    input.AutoAddToLibrary,
		IsPrivate:           input.IsPrivate,
	}

	if input.Name != nil {
		sanitized := s.sanitizer.SanitizeName(*input.Name)
		update.Name = &sanitized
	}
	if input.Description != nil {
		sanitized := s.sanitizer.SanitizeDescription(*input.Description)
		update.Description = &sanitized
	}
	if input.Status != nil {
		status := model.SubscriptionStatus(*input.Status)
		if status != model.SubscriptionStatusActive && status != model.SubscriptionStatusUnsubscribed {
			return nil, model.NewBadRequestError("statusはACTIVEまたはUNSUBSCRIBEDを指定してください")
		}
		update.Status = &status
	}
	if input.LastFetchedAt != nil {
		parsed, err := time.Parse(time.RFC3339, *input.LastFetchedAt)
		if err != nil {
			return nil, model.NewBadRequestError("lastFetchedAtの日時形式が不正です")
		}
		update.LastFetchedAt = &parsed
	}
	if input.ScheduledAt != nil {
		parsed, err := time.Parse(time.RFC3339, *input.ScheduledAt)
		if err != nil {
			return nil, model.NewBadRequestError("scheduledAtの日時形式が不正です")
		}
		update.ScheduledAt = &parsed
	}

	updated, err := s.repo.UpdateFields(ctx, userID, id, update)
	if err != nil {
		s.logger.Error("購読の更新に失敗しました",
			slog.String("user_id", userID),
			slog.String("subscription_id", id),
			slog.String("error", err.Error()),
		)
		return nil, model.NewBadRequestError("購読の更新に失敗しました")
	}

	s.track(ctx, userID, "update_subscription", map[string]any{"subscription_id": id})
	return updated, nil
}

// enqueueFetchNow は即時フェッチのタスクを投入する。
// 前回フェッチ情報は購読行の値をそのまま引き継ぐ（新規購読ではnil）。
// 投入失敗はログに記録するのみで、購読操作自体は成功扱いにする。
func (s *Service) enqueueFetchNow(ctx context.Context, sub *model.Subscription) {
	task := taskqueue.FetchTask{
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		URL:            sub.URL,
		ScheduledAt:    time.Now(),
		FetchedAt:      sub.LastFetchedAt,
		Checksum:       sub.LastFetchedChecksum,
		AddToLibrary:   sub.AutoAddToLibrary,
	}
	if err := s.enqueuer.EnqueueFetch(ctx, []taskqueue.FetchTask{task}); err != nil {
		s.logger.Warn("フェッチタスクの投入に失敗しました",
			slog.String("subscription_id", sub.ID),
			slog.String("error", err.Error()),
		)
	}
}

// track は計測イベントを送信する。
func (s *Service) track(ctx context.Context, userID, event string, properties map[string]any) {
	if s.tracker == nil {
		return
	}
	s.tracker.Track(ctx, analytics.Event{
		UserID:     userID,
		Event:      event,
		Properties: properties,
	})
}

// recordSubscribe はsubscribe結果のメトリクスを記録する。
func (s *Service) recordSubscribe(outcome string) {
	if s.collector != nil {
		s.collector.RecordSubscribeResult(outcome)
	}
}
