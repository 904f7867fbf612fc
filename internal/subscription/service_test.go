package subscription

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/feedhub/internal/analytics"
	"github.com/hitoshi/feedhub/internal/discovery"
	"github.com/hitoshi/feedhub/internal/model"
	"github.com/hitoshi/feedhub/internal/repository"
	"github.com/hitoshi/feedhub/internal/security"
	"github.com/hitoshi/feedhub/internal/taskqueue"
)

// mockRepo はrepository.SubscriptionRepositoryのモック実装。
type mockRepo struct {
	findByIDFunc           func(ctx context.Context, userID, id string) (*model.Subscription, error)
	findByNameFunc         func(ctx context.Context, userID, name string) (*model.Subscription, error)
	findByUserAndURLFunc   func(ctx context.Context, userID, url string, subType model.SubscriptionType) (*model.Subscription, error)
	listByUserFilteredFunc func(ctx context.Context, userID string, typeFilter *model.SubscriptionType, sortKey repository.SortKey, sortDir repository.SortDirection) ([]*model.Subscription, error)
	insertIfUnderQuotaFunc func(ctx context.Context, sub *model.Subscription, maxActiveRSS int) ([]*model.Subscription, error)
	updateFieldsFunc       func(ctx context.Context, userID, id string, update repository.SubscriptionUpdate) (*model.Subscription, error)
}

func (m *mockRepo) FindByID(ctx context.Context, userID, id string) (*model.Subscription, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, userID, id)
	}
	return nil, nil
}

func (m *mockRepo) FindByName(ctx context.Context, userID, name string) (*model.Subscription, error) {
	if m.findByNameFunc != nil {
		return m.findByNameFunc(ctx, userID, name)
	}
	return nil, nil
}

func (m *mockRepo) FindByUserAndURL(ctx context.Context, userID, url string, subType model.SubscriptionType) (*model.Subscription, error) {
	if m.findByUserAndURLFunc != nil {
		return m.findByUserAndURLFunc(ctx, userID, url, subType)
	}
	return nil, nil
}

func (m *mockRepo) ListByUserFiltered(ctx context.Context, userID string, typeFilter *model.SubscriptionType, sortKey repository.SortKey, sortDir repository.SortDirection) ([]*model.Subscription, error) {
	if m.listByUserFilteredFunc != nil {
		return m.listByUserFilteredFunc(ctx, userID, typeFilter, sortKey, sortDir)
	}
	return nil, nil
}

func (m *mockRepo) InsertIfUnderQuota(ctx context.Context, sub *model.Subscription, maxActiveRSS int) ([]*model.Subscription, error) {
	if m.insertIfUnderQuotaFunc != nil {
		return m.insertIfUnderQuotaFunc(ctx, sub, maxActiveRSS)
	}
	return nil, nil
}

func (m *mockRepo) UpdateFields(ctx context.Context, userID, id string, update repository.SubscriptionUpdate) (*model.Subscription, error) {
	if m.updateFieldsFunc != nil {
		return m.updateFieldsFunc(ctx, userID, id, update)
	}
	return nil, sql.ErrNoRows
}

// mockNormalizer はdiscovery.NormalizerServiceのモック実装。
type mockNormalizer struct {
	resolveFeedFunc func(ctx context.Context, inputURL string) (*model.FeedCandidate, *model.APIError)
}

func (m *mockNormalizer) Scan(ctx context.Context, input discovery.ScanInput) ([]model.FeedCandidate, *model.APIError) {
	return nil, nil
}

func (m *mockNormalizer) ResolveFeed(ctx context.Context, inputURL string) (*model.FeedCandidate, *model.APIError) {
	if m.resolveFeedFunc != nil {
		return m.resolveFeedFunc(ctx, inputURL)
	}
	return &model.FeedCandidate{URL: inputURL, Title: "テストフィード", Type: "rss"}, nil
}

// mockEnqueuer はtaskqueue.Enqueuerのモック実装。投入されたタスクを記録する。
type mockEnqueuer struct {
	fetchTasks []taskqueue.FetchTask
	mailTasks  []taskqueue.MailTask
	fetchErr   error
}

func (m *mockEnqueuer) EnqueueFetch(ctx context.Context, tasks []taskqueue.FetchTask) error {
	m.fetchTasks = append(m.fetchTasks, tasks...)
	return m.fetchErr
}

func (m *mockEnqueuer) EnqueueUnsubscribeMail(ctx context.Context, task taskqueue.MailTask) error {
	m.mailTasks = append(m.mailTasks, task)
	return nil
}

// mockTracker はanalytics.Trackerのモック実装。送信イベントを記録する。
type mockTracker struct {
	events []analytics.Event
}

func (m *mockTracker) Track(ctx context.Context, event analytics.Event) {
	m.events = append(m.events, event)
}

// mockUnsubscriber はnewsletter.UnsubscribeDelegateのモック実装。
type mockUnsubscriber struct {
	calls []*model.Subscription
}

func (m *mockUnsubscriber) Unsubscribe(ctx context.Context, sub *model.Subscription) {
	m.calls = append(m.calls, sub)
}

type serviceDeps struct {
	repo         *mockRepo
	normalizer   *mockNormalizer
	enqueuer     *mockEnqueuer
	tracker      *mockTracker
	unsubscriber *mockUnsubscriber
}

// newTestService はデフォルトのモック依存を持つServiceを生成する。
func newTestService(t *testing.T) (*Service, *serviceDeps) {
	t.Helper()
	deps := &serviceDeps{
		repo:         &mockRepo{},
		normalizer:   &mockNormalizer{},
		enqueuer:     &mockEnqueuer{},
		tracker:      &mockTracker{},
		unsubscriber: &mockUnsubscriber{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(
		deps.repo,
		deps.normalizer,
		deps.enqueuer,
		deps.tracker,
		deps.unsubscriber,
		security.NewMetadataSanitizer(),
		nil,
		logger,
		150,
	)
	return svc, deps
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

// TestSubscribe_NewURL_CreatesSubscription は新規URLの購読登録を検証する。
// フィード解決で得たタイトルが購読名になり、前回フェッチ情報なしの
// 即時フェッチタスクが投入される。
func TestSubscribe_NewURL_CreatesSubscription(t *testing.T) {
	svc, deps := newTestService(t)

	created := &model.Subscription{
		ID:     "sub-new",
		UserID: "user-1",
		Type:   model.SubscriptionTypeRSS,
		URL:    "https://example.com/feed.xml",
		Name:   "テストフィード",
		Status: model.SubscriptionStatusActive,
	}
	var insertedSub *model.Subscription
	deps.repo.insertIfUnderQuotaFunc = func(ctx context.Context, sub *model.Subscription, maxActiveRSS int) ([]*model.Subscription, error) {
		insertedSub = sub
		if maxActiveRSS != 150 {
			t.Errorf("maxActiveRSS = %d, want 150", maxActiveRSS)
		}
		return []*model.Subscription{created}, nil
	}

	got, apiErr := svc.Subscribe(context.Background(), "user-1", "https://example.com/feed.xml", SubscribeOptions{AutoAddToLibrary: true})
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if got.ID != "sub-new" {
		t.Errorf("subscription ID = %q, want %q", got.ID, "sub-new")
	}
	if insertedSub.Name != "テストフィード" {
		t.Errorf("inserted Name = %q, want resolved feed title", insertedSub.Name)
	}
	if !insertedSub.AutoAddToLibrary {
		t.Error("inserted AutoAddToLibrary = false, want true")
	}

	if len(deps.enqueuer.fetchTasks) != 1 {
		t.Fatalf("fetch task count = %d, want 1", len(deps.enqueuer.fetchTasks))
	}
	task := deps.enqueuer.fetchTasks[0]
	if task.SubscriptionID != "sub-new" {
		t.Errorf("task SubscriptionID = %q, want %q", task.SubscriptionID, "sub-new")
	}
	if task.FetchedAt != nil || task.Checksum != nil {
		t.Error("new subscription fetch task should carry nil prior-fetch values")
	}

	if len(deps.tracker.events) != 1 || deps.tracker.events[0].Event != "subscribe_rss" {
		t.Errorf("tracked events = %+v, want single subscribe_rss", deps.tracker.events)
	}
}

// TestSubscribe_EmptyURL は空URLにBAD_REQUESTを返すことを検証する。
func TestSubscribe_EmptyURL(t *testing.T) {
	svc, _ := newTestService(t)

	_, apiErr := svc.Subscribe(context.Background(), "user-1", "", SubscribeOptions{})
	if apiErr == nil {
		t.Fatal("expected error for empty URL, got nil")
	}
	if apiErr.Code != model.ErrCodeBadRequest {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeBadRequest)
	}
}

// TestSubscribe_ActiveExisting は既にアクティブな購読にALREADY_SUBSCRIBEDを返し、
// 新しい行を作成しないことを検証する。
func TestSubscribe_ActiveExisting(t *testing.T) {
	svc, deps := newTestService(t)

	deps.repo.findByUserAndURLFunc = func(ctx context.Context, userID, url string, subType model.SubscriptionType) (*model.Subscription, error) {
		return &model.Subscription{ID: "sub-1", Status: model.SubscriptionStatusActive}, nil
	}
	insertCalled := false
	deps.repo.insertIfUnderQuotaFunc = func(ctx context.Context, sub *model.Subscription, maxActiveRSS int) ([]*model.Subscription, error) {
		insertCalled = true
		return nil, nil
	}

	_, apiErr := svc.Subscribe(context.Background(), "user-1", "https://example.com/feed.xml", SubscribeOptions{})
	if apiErr == nil {
		t.Fatal("expected error, got nil")
	}
	if apiErr.Code != model.ErrCodeAlreadySubscribed {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeAlreadySubscribed)
	}
	if insertCalled {
		t.Error("insert should not be called for already-active subscription")
	}
}

// TestSubscribe_Resubscribe は解除済み購読の再アクティブ化を検証する。
// 前回のlastFetchedAt/checksumは上書きされず、保持された値が
// フェッチタスクに引き継がれる。
func TestSubscribe_Resubscribe(t *testing.T) {
	svc, deps := newTestService(t)

	prevFetched := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	prevChecksum := "checksum-prev"

	deps.repo.findByUserAndURLFunc = func(ctx context.Context, userID, url string, subType model.SubscriptionType) (*model.Subscription, error) {
		return &model.Subscription{
			ID:                  "sub-2",
			UserID:              "user-1",
			Status:              model.SubscriptionStatusUnsubscribed,
			LastFetchedAt:       &prevFetched,
			LastFetchedChecksum: &prevChecksum,
		}, nil
	}

	var gotUpdate repository.SubscriptionUpdate
	deps.repo.updateFieldsFunc = func(ctx context.Context, userID, id string, update repository.SubscriptionUpdate) (*model.Subscription, error) {
		gotUpdate = update
		return &model.Subscription{
			ID:                  "sub-2",
			UserID:              "user-1",
			URL:                 "https://example.com/feed.xml",
			Status:              model.SubscriptionStatusActive,
			LastFetchedAt:       &prevFetched,
			LastFetchedChecksum: &prevChecksum,
		}, nil
	}

	got, apiErr := svc.Subscribe(context.Background(), "user-1", "https://example.com/feed.xml", SubscribeOptions{})
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if got.Status != model.SubscriptionStatusActive {
		t.Errorf("status = %q, want ACTIVE", got.Status)
	}

	// 更新ペイロードはステータス（と次回スケジュール）のみで、前回フェッチ情報は触らない
	if gotUpdate.Status == nil || *gotUpdate.Status != model.SubscriptionStatusActive {
		t.Error("update payload should set status to ACTIVE")
	}
	if gotUpdate.LastFetchedAt != nil || gotUpdate.LastFetchedChecksum != nil {
		t.Error("update payload must not overwrite prior fetch values")
	}

	if len(deps.enqueuer.fetchTasks) != 1 {
		t.Fatalf("fetch task count = %d, want 1", len(deps.enqueuer.fetchTasks))
	}
	task := deps.enqueuer.fetchTasks[0]
	if task.FetchedAt == nil || !task.FetchedAt.Equal(prevFetched) {
		t.Errorf("task FetchedAt = %v, want preserved %v", task.FetchedAt, prevFetched)
	}
	if task.Checksum == nil || *task.Checksum != prevChecksum {
		t.Errorf("task Checksum = %v, want preserved %q", task.Checksum, prevChecksum)
	}

	if len(deps.tracker.events) != 1 || deps.tracker.events[0].Event != "resubscribe_rss" {
		t.Errorf("tracked events = %+v, want single resubscribe_rss", deps.tracker.events)
	}
}

// TestSubscribe_FeedNotResolvable はフィードに解決できないURLにNOT_FOUNDを返すことを検証する。
func TestSubscribe_FeedNotResolvable(t *testing.T) {
	svc, deps := newTestService(t)

	deps.normalizer.resolveFeedFunc = func(ctx context.Context, inputURL string) (*model.FeedCandidate, *model.APIError) {
		return nil, model.NewNotFoundError(inputURL)
	}
	insertCalled := false
	deps.repo.insertIfUnderQuotaFunc = func(ctx context.Context, sub *model.Subscription, maxActiveRSS int) ([]*model.Subscription, error) {
		insertCalled = true
		return nil, nil
	}

	_, apiErr := svc.Subscribe(context.Background(), "user-1", "https://example.com/not-a-feed", SubscribeOptions{})
	if apiErr == nil {
		t.Fatal("expected error, got nil")
	}
	if apiErr.Code != model.ErrCodeNotFound {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeNotFound)
	}
	if insertCalled {
		t.Error("insert should not be called for unresolvable feed")
	}
}

// TestSubscribe_QuotaExhausted は上限到達時にEXCEEDED_MAX_SUBSCRIPTIONSを返すことを検証する。
// ストア層の空スライス（上限到達の表現）がエラーコードに変換される。
func TestSubscribe_QuotaExhausted(t *testing.T) {
	svc, deps := newTestService(t)

	deps.repo.insertIfUnderQuotaFunc = func(ctx context.Context, sub *model.Subscription, maxActiveRSS int) ([]*model.Subscription, error) {
		return []*model.Subscription{}, nil
	}

	_, apiErr := svc.Subscribe(context.Background(), "user-1", "https://example.com/feed.xml", SubscribeOptions{})
	if apiErr == nil {
		t.Fatal("expected error, got nil")
	}
	if apiErr.Code != model.ErrCodeExceededMaxSubscriptions {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeExceededMaxSubscriptions)
	}
	if len(deps.enqueuer.fetchTasks) != 0 {
		t.Error("no fetch task should be enqueued when quota is exhausted")
	}
}

// TestSubscribe_DuplicateRace は並行subscribeとの競合（重複挿入）が
// ALREADY_SUBSCRIBEDに変換されることを検証する。
func TestSubscribe_DuplicateRace(t *testing.T) {
	svc, deps := newTestService(t)

	deps.repo.insertIfUnderQuotaFunc = func(ctx context.Context, sub *model.Subscription, maxActiveRSS int) ([]*model.Subscription, error) {
		return nil, repository.ErrDuplicateSubscription
	}

	_, apiErr := svc.Subscribe(context.Background(), "user-1", "https://example.com/feed.xml", SubscribeOptions{})
	if apiErr == nil {
		t.Fatal("expected error, got nil")
	}
	if apiErr.Code != model.ErrCodeAlreadySubscribed {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeAlreadySubscribed)
	}
}

// TestSubscribe_RepoError は予期しないストア層の失敗がBAD_REQUESTに集約されることを検証する。
func TestSubscribe_RepoError(t *testing.T) {
	svc, deps := newTestService(t)

	deps.repo.findByUserAndURLFunc = func(ctx context.Context, userID, url string, subType model.SubscriptionType) (*model.Subscription, error) {
		return nil, errors.New("connection refused")
	}

	_, apiErr := svc.Subscribe(context.Background(), "user-1", "https://example.com/feed.xml", SubscribeOptions{})
	if apiErr == nil {
		t.Fatal("expected error, got nil")
	}
	if apiErr.Code != model.ErrCodeBadRequest {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeBadRequest)
	}
}

// TestUnsubscribe_ByID はID指定での購読解除を検証する。
// ステータスがUNSUBSCRIBEDに変更され、解除デリゲートが呼ばれる。
func TestUnsubscribe_ByID(t *testing.T) {
	svc, deps := newTestService(t)

	deps.repo.findByIDFunc = func(ctx context.Context, userID, id string) (*model.Subscription, error) {
		return &model.Subscription{ID: "sub-3", UserID: userID, Type: model.SubscriptionTypeRSS, Status: model.SubscriptionStatusActive}, nil
	}
	var gotUpdate repository.SubscriptionUpdate
	deps.repo.updateFieldsFunc = func(ctx context.Context, userID, id string, update repository.SubscriptionUpdate) (*model.Subscription, error) {
		gotUpdate = update
		return &model.Subscription{ID: "sub-3", UserID: userID, Type: model.SubscriptionTypeRSS, Status: model.SubscriptionStatusUnsubscribed}, nil
	}

	got, apiErr := svc.Unsubscribe(context.Background(), "user-1", "sub-3", "")
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if got.Status != model.SubscriptionStatusUnsubscribed {
		t.Errorf("status = %q, want UNSUBSCRIBED", got.Status)
	}
	if gotUpdate.Status == nil || *gotUpdate.Status != model.SubscriptionStatusUnsubscribed {
		t.Error("update payload should set status to UNSUBSCRIBED")
	}
	if len(deps.unsubscriber.calls) != 1 {
		t.Errorf("unsubscribe delegate call count = %d, want 1", len(deps.unsubscriber.calls))
	}
}

// TestUnsubscribe_ByName はname指定（旧クライアント互換）での解除を検証する。
func TestUnsubscribe_ByName(t *testing.T) {
	svc, deps := newTestService(t)

	var lookedUpName string
	deps.repo.findByNameFunc = func(ctx context.Context, userID, name string) (*model.Subscription, error) {
		lookedUpName = name
		return &model.Subscription{ID: "sub-4", UserID: userID, Status: model.SubscriptionStatusActive}, nil
	}
	deps.repo.updateFieldsFunc = func(ctx context.Context, userID, id string, update repository.SubscriptionUpdate) (*model.Subscription, error) {
		return &model.Subscription{ID: "sub-4", Status: model.SubscriptionStatusUnsubscribed}, nil
	}

	_, apiErr := svc.Unsubscribe(context.Background(), "user-1", "", "週刊ニュースレター")
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if lookedUpName != "週刊ニュースレター" {
		t.Errorf("looked up name = %q, want %q", lookedUpName, "週刊ニュースレター")
	}
}

// TestUnsubscribe_IDTakesPrecedence はidとnameの両方が指定された場合にidが優先されることを検証する。
func TestUnsubscribe_IDTakesPrecedence(t *testing.T) {
	svc, deps := newTestService(t)

	idCalled := false
	nameCalled := false
	deps.repo.findByIDFunc = func(ctx context.Context, userID, id string) (*model.Subscription, error) {
		idCalled = true
		return &model.Subscription{ID: id, UserID: userID, Status: model.SubscriptionStatusActive}, nil
	}
	deps.repo.findByNameFunc = func(ctx context.Context, userID, name string) (*model.Subscription, error) {
		nameCalled = true
		return nil, nil
	}
	deps.repo.updateFieldsFunc = func(ctx context.Context, userID, id string, update repository.SubscriptionUpdate) (*model.Subscription, error) {
		return &model.Subscription{ID: id, Status: model.SubscriptionStatusUnsubscribed}, nil
	}

	_, apiErr := svc.Unsubscribe(context.Background(), "user-1", "sub-5", "別の名前")
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if !idCalled {
		t.Error("expected FindByID to be called")
	}
	if nameCalled {
		t.Error("FindByName should not be called when id is provided")
	}
}

// TestUnsubscribe_NotFound は存在しない購読にNOT_FOUNDを返すことを検証する。
func TestUnsubscribe_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, apiErr := svc.Unsubscribe(context.Background(), "user-1", "missing-id", "")
	if apiErr == nil {
		t.Fatal("expected error, got nil")
	}
	if apiErr.Code != model.ErrCodeNotFound {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeNotFound)
	}
}

// TestUnsubscribe_NoIdentifier はidもnameも未指定の場合にBAD_REQUESTを返すことを検証する。
func TestUnsubscribe_NoIdentifier(t *testing.T) {
	svc, _ := newTestService(t)

	_, apiErr := svc.Unsubscribe(context.Background(), "user-1", "", "")
	if apiErr == nil {
		t.Fatal("expected error, got nil")
	}
	if apiErr.Code != model.ErrCodeBadRequest {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeBadRequest)
	}
}

// TestUnsubscribe_NewsletterWithoutEndpoints は解除手段を持たないニュースレターでも
// 解除が成立する（エラーにならない）ことを検証する。
func TestUnsubscribe_NewsletterWithoutEndpoints(t *testing.T) {
	svc, deps := newTestService(t)

	deps.repo.findByIDFunc = func(ctx context.Context, userID, id string) (*model.Subscription, error) {
		return &model.Subscription{
			ID:     "sub-6",
			UserID: userID,
			Type:   model.SubscriptionTypeNewsletter,
			Status: model.SubscriptionStatusActive,
		}, nil
	}
	deps.repo.updateFieldsFunc = func(ctx context.Context, userID, id string, update repository.SubscriptionUpdate) (*model.Subscription, error) {
		return &model.Subscription{ID: "sub-6", Type: model.SubscriptionTypeNewsletter, Status: model.SubscriptionStatusUnsubscribed}, nil
	}

	got, apiErr := svc.Unsubscribe(context.Background(), "user-1", "sub-6", "")
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if got.Status != model.SubscriptionStatusUnsubscribed {
		t.Errorf("status = %q, want UNSUBSCRIBED", got.Status)
	}
}

// TestUpdate_PartialFields は入力に含まれるフィールドのみが更新ペイロードに
// 載ることを検証する。名前はサニタイズされる。
func TestUpdate_PartialFields(t *testing.T) {
	svc, deps := newTestService(t)

	var gotUpdate repository.SubscriptionUpdate
	deps.repo.updateFieldsFunc = func(ctx context.Context, userID, id string, update repository.SubscriptionUpdate) (*model.Subscription, error) {
		gotUpdate = update
		return &model.Subscription{ID: id, Name: "新しい名前"}, nil
	}

	input := UpdateInput{
		Name:          strPtr("<script>x</script>新しい名前"),
		LastFetchedAt: strPtr("2026-08-30T10:00:00Z"),
		IsPrivate:     boolPtr(true),
	}
	got, apiErr := svc.Update(context.Background(), "user-1", "sub-7", input)
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if got.Name != "新しい名前" {
		t.Errorf("returned Name = %q", got.Name)
	}

	if gotUpdate.Name == nil || *gotUpdate.Name != "新しい名前" {
		t.Errorf("update Name = %v, want sanitized %q", gotUpdate.Name, "新しい名前")
	}
	if gotUpdate.LastFetchedAt == nil || !gotUpdate.LastFetchedAt.Equal(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("update LastFetchedAt = %v, want parsed RFC3339 value", gotUpdate.LastFetchedAt)
	}
	if gotUpdate.IsPrivate == nil || !*gotUpdate.IsPrivate {
		t.Error("update IsPrivate should be true")
	}

	// 未指定フィールドはペイロードに含めない
	if gotUpdate.Description != nil || gotUpdate.Status != nil || gotUpdate.ScheduledAt != nil ||
		gotUpdate.LastFetchedChecksum != nil || gotUpdate.AutoAddToLibrary != nil {
		t.Errorf("unspecified fields must remain nil in update payload: %+v", gotUpdate)
	}
}

// TestUpdate_StatusField はstatusフィールドが列挙値の検証を経て
// 更新ペイロードに含まれることを検証する。
func TestUpdate_StatusField(t *testing.T) {
	svc, deps := newTestService(t)

	var gotUpdate repository.SubscriptionUpdate
	deps.repo.updateFieldsFunc = func(ctx context.Context, userID, id string, update repository.SubscriptionUpdate) (*model.Subscription, error) {
		gotUpdate = update
		return &model.Subscription{ID: id, Status: *update.Status}, nil
	}

	input := UpdateInput{Status: strPtr("UNSUBSCRIBED")}
	got, apiErr := svc.Update(context.Background(), "user-1", "sub-9", input)
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if got.Status != model.SubscriptionStatusUnsubscribed {
		t.Errorf("returned Status = %q, want %q", got.Status, model.SubscriptionStatusUnsubscribed)
	}
	if gotUpdate.Status == nil || *gotUpdate.Status != model.SubscriptionStatusUnsubscribed {
		t.Errorf("update Status = %v, want %q", gotUpdate.Status, model.SubscriptionStatusUnsubscribed)
	}
}

// TestUpdate_InvalidStatus は列挙値以外のstatusにBAD_REQUESTを返すことを検証する。
func TestUpdate_InvalidStatus(t *testing.T) {
	svc, deps := newTestService(t)

	called := false
	deps.repo.updateFieldsFunc = func(ctx context.Context, userID, id string, update repository.SubscriptionUpdate) (*model.Subscription, error) {
		called = true
		return nil, nil
	}

	for _, status := range []string{"PAUSED", "active", ""} {
		input := UpdateInput{Status: strPtr(status)}
		_, apiErr := svc.Update(context.Background(), "user-1", "sub-9", input)
		if apiErr == nil {
			t.Fatalf("status %q: expected error, got nil", status)
		}
		if apiErr.Code != model.ErrCodeBadRequest {
			t.Errorf("status %q: error code = %q, want %q", status, apiErr.Code, model.ErrCodeBadRequest)
		}
	}
	if called {
		t.Error("store must not be called for invalid status")
	}
}

// TestUpdate_InvalidTimestamp は不正な日時形式にBAD_REQUESTを返すことを検証する。
func TestUpdate_InvalidTimestamp(t *testing.T) {
	svc, _ := newTestService(t)

	input := UpdateInput{LastFetchedAt: strPtr("2026/08/30 10:00")}
	_, apiErr := svc.Update(context.Background(), "user-1", "sub-8", input)
	if apiErr == nil {
		t.Fatal("expected error for invalid timestamp, got nil")
	}
	if apiErr.Code != model.ErrCodeBadRequest {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeBadRequest)
	}
}

// TestUpdate_RowMissing は対象行が存在しない場合にBAD_REQUESTを返すことを検証する。
func TestUpdate_RowMissing(t *testing.T) {
	svc, deps := newTestService(t)

	deps.repo.updateFieldsFunc = func(ctx context.Context, userID, id string, update repository.SubscriptionUpdate) (*model.Subscription, error) {
		return nil, sql.ErrNoRows
	}

	_, apiErr := svc.Update(context.Background(), "user-1", "missing", UpdateInput{Name: strPtr("x")})
	if apiErr == nil {
		t.Fatal("expected error, got nil")
	}
	if apiErr.Code != model.ErrCodeBadRequest {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeBadRequest)
	}
}

// TestList_SortMapping はソート基準・方向のストア層パラメータへの変換を検証する。
func TestList_SortMapping(t *testing.T) {
	tests := []struct {
		name      string
		sortBy    SortBy
		sortOrder SortOrder
		wantKey   repository.SortKey
		wantDir   repository.SortDirection
	}{
		{
			name:      "UpdatedTimeは最終フェッチ日時にマップされる",
			sortBy:    SortByUpdatedTime,
			sortOrder: SortOrderAscending,
			wantKey:   repository.SortKeyLastFetchedAt,
			wantDir:   repository.SortAscending,
		},
		{
			name:      "CreatedTimeは作成日時にマップされる",
			sortBy:    SortByCreatedTime,
			sortOrder: SortOrderDescending,
			wantKey:   repository.SortKeyCreatedAt,
			wantDir:   repository.SortDescending,
		},
		{
			name:    "未指定は作成日時の降順がデフォルト",
			wantKey: repository.SortKeyCreatedAt,
			wantDir: repository.SortDescending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := newTestService(t)

			var gotKey repository.SortKey
			var gotDir repository.SortDirection
			deps.repo.listByUserFilteredFunc = func(ctx context.Context, userID string, typeFilter *model.SubscriptionType, sortKey repository.SortKey, sortDir repository.SortDirection) ([]*model.Subscription, error) {
				gotKey = sortKey
				gotDir = sortDir
				return []*model.Subscription{}, nil
			}

			_, apiErr := svc.List(context.Background(), "user-1", nil, tt.sortBy, tt.sortOrder)
			if apiErr != nil {
				t.Fatalf("unexpected error: %v", apiErr)
			}
			if gotKey != tt.wantKey {
				t.Errorf("sortKey = %q, want %q", gotKey, tt.wantKey)
			}
			if gotDir != tt.wantDir {
				t.Errorf("sortDir = %q, want %q", gotDir, tt.wantDir)
			}
		})
	}
}

// TestList_TypeFilterPassthrough は種類フィルタがそのままストア層に渡ることを検証する。
func TestList_TypeFilterPassthrough(t *testing.T) {
	svc, deps := newTestService(t)

	var gotFilter *model.SubscriptionType
	deps.repo.listByUserFilteredFunc = func(ctx context.Context, userID string, typeFilter *model.SubscriptionType, sortKey repository.SortKey, sortDir repository.SortDirection) ([]*model.Subscription, error) {
		gotFilter = typeFilter
		return []*model.Subscription{}, nil
	}

	newsletter := model.SubscriptionTypeNewsletter
	_, apiErr := svc.List(context.Background(), "user-1", &newsletter, SortByCreatedTime, SortOrderDescending)
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if gotFilter == nil || *gotFilter != model.SubscriptionTypeNewsletter {
		t.Errorf("typeFilter = %v, want NEWSLETTER", gotFilter)
	}
}

// TestList_RepoError はストア層の失敗がBAD_REQUESTに集約されることを検証する。
func TestList_RepoError(t *testing.T) {
	svc, deps := newTestService(t)

	deps.repo.listByUserFilteredFunc = func(ctx context.Context, userID string, typeFilter *model.SubscriptionType, sortKey repository.SortKey, sortDir repository.SortDirection) ([]*model.Subscription, error) {
		return nil, errors.New("connection refused")
	}

	_, apiErr := svc.List(context.Background(), "user-1", nil, SortByCreatedTime, SortOrderDescending)
	if apiErr == nil {
		t.Fatal("expected error, got nil")
	}
	if apiErr.Code != model.ErrCodeBadRequest {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeBadRequest)
	}
}
