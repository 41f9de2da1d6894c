// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザーが入力する表示名などのプレーンテキストから
// HTMLマークアップを除去する。クライアントが値をそのままHTMLに埋め込んでも
// スクリプトが実行されないよう、保存やIDバックエンドへの送信の前に適用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// SanitizeText は全てのタグを除去したプレーンテキストを返す。
	// script、styleタグは中身ごと除去する。
	// 文字参照はデコードした状態で返し、前後の空白を取り除く。
	// 同一入力に対して常に同一出力を返す。
	SanitizeText(s string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので全リクエストで共有する。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText は全てのタグを除去したプレーンテキストを返す。
func (s *textSanitizer) SanitizeText(text string) string {
	if text == "" {
		return ""
	}
	// StrictPolicyは"&"などを文字参照にエスケープするため、保存用に元へ戻す
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}

var _ TextSanitizer = (*textSanitizer)(nil)
