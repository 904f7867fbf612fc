package discovery

import (
	"encoding/xml"
	"strings"

	"github.com/hitoshi/feedhub/internal/model"
)

// opmlDocument はOPML文書のルート要素。
type opmlDocument struct {
	XMLName xml.Name `xml:"opml"`
	Body    opmlBody `xml:"body"`
}

type opmlBody struct {
	Outlines []opmlOutline `xml:"outline"`
}

// opmlOutline はOPMLのoutline要素。フォルダ構造を表すため再帰的にネストする。
type opmlOutline struct {
	Type     string        `xml:"type,attr"`
	Text     string        `xml:"text,attr"`
	Title    string        `xml:"title,attr"`
	XMLURL   string        `xml:"xmlUrl,attr"`
	Outlines []opmlOutline `xml:"outline"`
}

// parseOPML はOPML文書からフィード候補を抽出する。
// xmlUrl属性を持つoutline要素のみが候補となり、フォルダ階層は平坦化される。
// type属性が未指定の場合は"rss"を補完する。
// 文書がパースできない、または使用可能なoutlineが1件もない場合はnilを返す。
func parseOPML(text string) []model.FeedCandidate {
	var doc opmlDocument
	if err := xml.Unmarshal([]byte(text), &doc); err != nil {
		return nil
	}

	var candidates []model.FeedCandidate
	collectOutlines(doc.Body.Outlines, &candidates)
	return candidates
}

// collectOutlines はoutlineツリーを深さ優先で走査してフィード候補を収集する。
func collectOutlines(outlines []opmlOutline, out *[]model.FeedCandidate) {
	for _, o := range outlines {
		if o.XMLURL != "" {
			feedType := strings.ToLower(strings.TrimSpace(o.Type))
			if feedType == "" {
				feedType = "rss"
			}
			title := o.Title
			if title == "" {
				title = o.Text
			}
			*out = append(*out, model.FeedCandidate{
				URL:   o.XMLURL,
				Title: title,
				Type:  feedType,
			})
		}
		collectOutlines(o.Outlines, out)
	}
}
