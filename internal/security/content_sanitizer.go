package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxNameLength は購読名の最大長（文字数）。超過分は切り詰める。
const maxNameLength = 512

// MetadataSanitizerService は購読メタデータのサニタイズ機能のインターフェースを定義する。
// ユーザー入力およびフィード由来のタイトル・説明文の保存前に使用される。
type MetadataSanitizerService interface {
	// SanitizeName は購読名をサニタイズする。
	// HTMLタグをすべて除去し、エンティティをデコードし、前後の空白を
	// 取り除いたプレーンテキストを返す。512文字を超える場合は切り詰める。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeName(raw string) string

	// SanitizeDescription は購読の説明文をサニタイズする。
	// 長さ制限を除きSanitizeNameと同じ規則を適用する。
	SanitizeDescription(raw string) string
}

// metadataSanitizer はMetadataSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type metadataSanitizer struct {
	policy *bluemonday.Policy
}

// NewMetadataSanitizer はMetadataSanitizerServiceの新しいインスタンスを生成する。
// 購読名・説明文はプレーンテキストとして扱うため、タグを一切許可しない
// StrictPolicyを使用する。
func NewMetadataSanitizer() *metadataSanitizer {
	return &metadataSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeName は購読名をサニタイズする。
func (s *metadataSanitizer) SanitizeName(raw string) string {
	cleaned := s.sanitizeText(raw)
	runes := []rune(cleaned)
	if len(runes) > maxNameLength {
		return string(runes[:maxNameLength])
	}
	return cleaned
}

// SanitizeDescription は購読の説明文をサニタイズする。
func (s *metadataSanitizer) SanitizeDescription(raw string) string {
	return s.sanitizeText(raw)
}

// sanitizeText はHTMLタグの除去とエンティティのデコードを行う。
// StrictPolicyはテキストをエスケープして返すため、デコードして
// プレーンテキストに戻す。この時点でタグは既に除去されている。
func (s *metadataSanitizer) sanitizeText(raw string) string {
	stripped := s.policy.Sanitize(raw)
	decoded := html.UnescapeString(stripped)
	return strings.TrimSpace(decoded)
}
