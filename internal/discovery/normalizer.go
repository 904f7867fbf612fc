// Package discovery はOPML・HTML・フィードURLからのフィード候補の正規化を提供する。
package discovery

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/feedhub/internal/model"
	"github.com/mmcdole/gofeed"
)

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// NormalizerService はフィード探索の正規化機能のインターフェースを定義する。
type NormalizerService interface {
	// Scan はOPML文書・HTML文書・フィードURLのいずれかの入力を
	// 統一的なフィード候補のリストに正規化する。
	//   - OPMLが与えられた場合: outline要素を候補に変換する。
	//     使用可能なoutlineが1件もない場合はBAD_REQUEST。
	//   - URLが与えられた場合: フェッチしてContent-Typeで分岐する。
	//     HTMLなら自動検出リンクを候補に、それ以外はボディ自体を
	//     フィードとしてパースし1件の候補にする。パース不能ならNOT_FOUND。
	//   - どちらも未指定の場合はBAD_REQUEST。
	// ネットワーク・パースの失敗は生のエラーとして伝播させず、
	// 必ず上記いずれかのエラーコードに集約する。副作用は持たない。
	Scan(ctx context.Context, input ScanInput) ([]model.FeedCandidate, *model.APIError)

	// ResolveFeed は単一URLが実在するフィードに解決されることを検証し、
	// 解決されたフィード候補を返す。HTMLページの場合は自動検出リンクから
	// 最適な候補を選択する。フィードに解決できない場合はNOT_FOUND。
	ResolveFeed(ctx context.Context, inputURL string) (*model.FeedCandidate, *model.APIError)
}

// ScanInput はScanの入力。OPMLとURLは排他的で、OPMLが優先される。
type ScanInput struct {
	OPML string
	URL  string
}

// Normalizer はNormalizerServiceの実装。
type Normalizer struct {
	ssrfGuard   SSRFValidator
	timeout     time.Duration
	maxBodySize int64
}

// NewNormalizer はNormalizerの新しいインスタンスを生成する。
// ssrfGuardがnilの場合はSSRF防止なしの標準クライアントを使用する（テスト用）。
func NewNormalizer(ssrfGuard SSRFValidator, timeout time.Duration, maxBodySize int64) *Normalizer {
	return &Normalizer{
		ssrfGuard:   ssrfGuard,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// Scan はOPML文書・HTML文書・フィードURLを統一的なフィード候補リストに正規化する。
func (n *Normalizer) Scan(ctx context.Context, input ScanInput) ([]model.FeedCandidate, *model.APIError) {
	switch {
	case input.OPML != "":
		candidates := parseOPML(input.OPML)
		if len(candidates) == 0 {
			return nil, model.NewBadRequestError("OPML文書から使用可能なフィードを抽出できませんでした")
		}
		return candidates, nil

	case input.URL != "":
		return n.scanURL(ctx, input.URL)

	default:
		return nil, model.NewBadRequestError("opmlまたはurlのいずれかを指定してください")
	}
}

// scanURL はURLをフェッチしてContent-Typeに応じた候補抽出を行う。
func (n *Normalizer) scanURL(ctx context.Context, inputURL string) ([]model.FeedCandidate, *model.APIError) {
	body, contentType, apiErr := n.fetch(ctx, inputURL)
	if apiErr != nil {
		return nil, apiErr
	}

	if isHTMLContentType(contentType) {
		// HTML: headタグの自動検出リンクを候補にする。候補ゼロはエラーではない
		return feedCandidates(parseFeedLinksFromHTML(body, inputURL)), nil
	}

	// HTML以外: ボディ自体をフィードとしてパースし1件の候補にする
	candidate, apiErr := parseFeedBody(body, inputURL)
	if apiErr != nil {
		return nil, apiErr
	}
	return []model.FeedCandidate{*candidate}, nil
}

// ResolveFeed は単一URLを実在するフィード候補に解決する。
func (n *Normalizer) ResolveFeed(ctx context.Context, inputURL string) (*model.FeedCandidate, *model.APIError) {
	if inputURL == "" {
		return nil, model.NewBadRequestError("URLが入力されていません")
	}

	body, contentType, apiErr := n.fetch(ctx, inputURL)
	if apiErr != nil {
		return nil, apiErr
	}

	if !isHTMLContentType(contentType) {
		return parseFeedBody(body, inputURL)
	}

	// HTMLページ: 自動検出リンクから最適な候補を選択する
	links := parseFeedLinksFromHTML(body, inputURL)
	best := selectBestCandidate(links, inputURL)
	if best == nil {
		return nil, model.NewNotFoundError(inputURL)
	}
	return best, nil
}

// fetch はSSRF検証付きでURLをフェッチし、ボディとContent-Typeを返す。
func (n *Normalizer) fetch(ctx context.Context, inputURL string) ([]byte, string, *model.APIError) {
	if n.ssrfGuard != nil {
		if err := n.ssrfGuard.ValidateURL(inputURL); err != nil {
			return nil, "", model.NewBadRequestError(fmt.Sprintf("安全でないURLです: %v", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inputURL, nil)
	if err != nil {
		return nil, "", model.NewBadRequestError(fmt.Sprintf("URLの形式が不正です: %v", err))
	}
	req.Header.Set("User-Agent", "Feedhub/1.0 Feed Aggregator")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*")

	resp, err := n.getHTTPClient().Do(req)
	if err != nil {
		return nil, "", model.NewNotFoundError(inputURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, n.maxBodySize))
	if err != nil {
		return nil, "", model.NewBadRequestError(fmt.Sprintf("レスポンスの読み取りに失敗: %v", err))
	}

	return body, resp.Header.Get("Content-Type"), nil
}

// parseFeedBody はレスポンスボディをフィードとしてパースし、1件の候補に変換する。
// フィードとしてパースできない場合はNOT_FOUND。
func parseFeedBody(body []byte, inputURL string) (*model.FeedCandidate, *model.APIError) {
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil || feed == nil {
		return nil, model.NewNotFoundError(inputURL)
	}

	feedType := strings.ToLower(feed.FeedType)
	if feedType == "" {
		feedType = "rss"
	}

	return &model.FeedCandidate{
		URL:   inputURL,
		Title: feed.Title,
		Type:  feedType,
	}, nil
}

// isHTMLContentType はContent-TypeがHTML文書を示すかを判定する。
func isHTMLContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.Contains(strings.ToLower(mediaType), "html")
}

// getHTTPClient はHTTPクライアントを取得する。
// SSRFGuardが設定されている場合はSSRF防止付きクライアントを返す。
func (n *Normalizer) getHTTPClient() *http.Client {
	if n.ssrfGuard != nil {
		return n.ssrfGuard.NewSafeClient(n.timeout)
	}
	return &http.Client{Timeout: n.timeout}
}

var _ NormalizerService = (*Normalizer)(nil)
