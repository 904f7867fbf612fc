package discovery

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/hitoshi/feedhub/internal/model"
	"golang.org/x/net/html"
)

// フィードリンクとして受理するlink要素のtype属性値。
const (
	contentTypeRSS  = "application/rss+xml"
	contentTypeAtom = "application/atom+xml"
)

// feedLink はHTML自動検出で見つかったフィードリンク。
// 候補のtypeは一律"rss"に正規化されるため、候補選択用に
// link要素のtype属性を別に保持する。
type feedLink struct {
	candidate   model.FeedCandidate
	contentType string
}

// parseFeedLinksFromHTML はHTMLのheadタグからRSS/Atomフィードリンクを解析・検出する。
// rel="alternate" かつ RSS/Atom Content-Type のlink要素のみが候補となり、
// Atomリンクも候補のtypeは"rss"に正規化される。
// href属性を欠く要素は破棄される。相対URLはbaseURLを基準に絶対URLに解決される。
func parseFeedLinksFromHTML(htmlBody []byte, baseURL string) []feedLink {
	var candidates []feedLink

	baseU, err := url.Parse(baseURL)
	if err != nil {
		return candidates
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return candidates

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "head" {
				inHead = true
				continue
			}

			if tagName == "body" {
				// bodyに入ったらheadの解析を終了
				return candidates
			}

			if !inHead || tagName != "link" || !hasAttr {
				continue
			}

			// link要素の属性を解析
			var rel, linkType, href, title string
			for {
				key, val, more := tokenizer.TagAttr()
				k := strings.ToLower(string(key))
				v := string(val)
				switch k {
				case "rel":
					rel = strings.ToLower(v)
				case "type":
					linkType = strings.ToLower(v)
				case "href":
					href = v
				case "title":
					title = v
				}
				if !more {
					break
				}
			}

			// rel="alternate" 以外、およびhrefを欠く要素は破棄
			if rel != "alternate" || href == "" {
				continue
			}

			if linkType != contentTypeRSS && linkType != contentTypeAtom {
				continue
			}

			// 相対URLを絶対URLに解決
			resolvedURL := resolveURL(baseU, href)
			if resolvedURL == "" {
				continue
			}

			candidates = append(candidates, feedLink{
				candidate: model.FeedCandidate{
					URL:   resolvedURL,
					Title: title,
					Type:  "rss",
				},
				contentType: linkType,
			})

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return candidates
			}
		}
	}
}

// resolveURL は相対URLをベースURLを基準に絶対URLに解決する。
func resolveURL(base *url.URL, rawRef string) string {
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// feedCandidates はフィードリンクのリストを候補リストに変換する。
func feedCandidates(links []feedLink) []model.FeedCandidate {
	if len(links) == 0 {
		return nil
	}
	candidates := make([]model.FeedCandidate, len(links))
	for i, l := range links {
		candidates[i] = l.candidate
	}
	return candidates
}

// selectBestCandidate は複数のフィードリンクから優先順位に従って最適な候補を選択する。
// 優先順位: 同一ホスト > Atomリンク > RSSリンク > 先頭
// Atom判定はlink要素のtype属性で行う（候補のtypeは"rss"に正規化済み）。
func selectBestCandidate(links []feedLink, inputURL string) *model.FeedCandidate {
	if len(links) == 0 {
		return nil
	}

	inputHost := extractHost(inputURL)

	bestIdx := 0
	bestScore := -1

	for i, l := range links {
		score := 0

		if extractHost(l.candidate.URL) == inputHost {
			score += 100
		}
		if l.contentType == contentTypeAtom {
			score += 10
		}

		// 同スコアの場合はインデックスが小さい方を優先する
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	return &links[bestIdx].candidate
}

// extractHost はURLからホスト名を抽出する。
func extractHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
