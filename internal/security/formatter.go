// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentFormatter は投稿・コメント本文の表示用HTMLを生成する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグと属性のみを通過させる。
package security

import (
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentFormatter は本文テキストを安全なHTMLに変換するインターフェースを定義する。
type ContentFormatter interface {
	// Sanitize はHTMLをサニタイズして安全なHTMLを返す。
	// 許可タグ（p, br, a, ul, ol, li, blockquote, pre, code, strong, em）のみを通過させる。
	// aタグにはtarget="_blank"とrel="noopener noreferrer"が自動付与される。
	Sanitize(raw string) string

	// Format はサニタイズ後に改行を<br>に変換し、テンプレートに埋め込めるHTMLを返す。
	Format(text string) template.HTML
}

// contentFormatter はContentFormatterの実装。
// bluemondayのポリシーを保持し、スレッドセーフに処理を行う。
type contentFormatter struct {
	policy *bluemonday.Policy
}

// NewContentFormatter はContentFormatterの新しいインスタンスを生成する。
func NewContentFormatter() ContentFormatter {
	p := bluemonday.NewPolicy()

	// script, iframe, style等は許可リストに含めないことで除去される
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &contentFormatter{policy: p}
}

// Sanitize はHTMLをサニタイズして安全なHTMLを返す。
func (f *contentFormatter) Sanitize(raw string) string {
	return f.policy.Sanitize(raw)
}

// Format は本文を表示用HTMLに変換する。
func (f *contentFormatter) Format(text string) template.HTML {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	safe := f.policy.Sanitize(text)
	// サニタイズ済みのHTMLのみをtemplate.HTMLとして扱う
	return template.HTML(strings.ReplaceAll(safe, "\n", "<br>\n"))
}
