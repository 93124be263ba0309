// Package render は埋め込みテンプレートによるHTMLレンダリングを提供する。
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/hitoshi/postline/internal/feed"
	"github.com/hitoshi/postline/internal/media"
	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/security"
)

//go:embed templates/*.html templates/partials/*.html
var templateFS embed.FS

// テンプレート名
const (
	PageIndex       = "index.html"
	PageGroup       = "group.html"
	PageProfile     = "profile.html"
	PageFollow      = "follow.html"
	PageDetail      = "detail.html"
	PagePostForm    = "post_form.html"
	PageSignup      = "signup.html"
	PageLogin       = "login.html"
	PageLogout      = "logout.html"
	PageWithdraw    = "withdraw.html"
	PageAboutAuthor = "about_author.html"
	PageAboutTech   = "about_tech.html"
	PageNotFound    = "404.html"
	PageServerError = "500.html"
)

// View はテンプレートに渡す共通データ。
type View struct {
	Title     string
	User      *model.User // ログイン中のユーザー。未ログインはnil
	CSRFToken string
	// Shared は複数の閲覧者で共有されるページであることを示す。
	// trueの場合、ナビゲーションにユーザー固有の情報を含めない。
	Shared bool
	Data   any
}

// Renderer はページごとに構築したテンプレートを保持する。
type Renderer struct {
	pages map[string]*template.Template
}

// New は埋め込みテンプレートを解析してRendererを生成する。
func New(formatter security.ContentFormatter) (*Renderer, error) {
	funcs := template.FuncMap{
		"format":   formatter.Format,
		"mediaURL": media.URL,
		"date": func(t time.Time) string {
			return t.Format("2006年1月2日 15:04")
		},
		"label": func(p *model.PostView) string {
			return p.String()
		},
		"pageURL": func(n int) string {
			return fmt.Sprintf("?page=%d", n)
		},
		"hasErrors": func(errs map[string][]string, field string) bool {
			return len(errs[field]) > 0
		},
	}

	partials, err := fs.Glob(templateFS, "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list partial templates: %w", err)
	}
	pageFiles, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list page templates: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(pageFiles))}
	for _, file := range pageFiles {
		name := path.Base(file)
		if name == "base.html" {
			continue
		}
		files := append([]string{"templates/base.html"}, partials...)
		files = append(files, file)
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, files...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render は指定ページをwに書き出す。
// 途中で失敗した場合に不完全なHTMLを返さないよう、一度バッファに描画する。
func (r *Renderer) Render(w io.Writer, name string, v *View) error {
	b, err := r.Bytes(name, v)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Bytes は指定ページを描画したバイト列を返す。
func (r *Renderer) Bytes(name string, v *View) ([]byte, error) {
	t, ok := r.pages[name]
	if !ok {
		return nil, fmt.Errorf("template not found: %s", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", v); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// Has はページテンプレートが存在するかを返す。
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// PageTitle はフィード画面のタイトルを組み立てる。
func PageTitle(base string, page *feed.Page) string {
	if page == nil || page.Number <= 1 {
		return base
	}
	return strings.Join([]string{base, fmt.Sprintf("%dページ目", page.Number)}, " | ")
}
