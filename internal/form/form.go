// Package form は投稿フォーム・コメントフォームの入力検証を提供する。
// 検証結果は未保存のモデルとして返し、永続化は呼び出し側が行う。
package form

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/postline/internal/model"
)

// 検証メッセージ
const (
	MsgRequired     = "この項目は必須です。"
	MsgInvalidGroup = "正しく選択してください。選択したものは候補にありません。"
	MsgInvalidImage = "画像をアップロードしてください。アップロードしたファイルは画像でないか、または壊れています。"
	MsgImageTooBig  = "ファイルサイズが大きすぎます。"
)

// DefaultMaxImageSize は画像アップロードの既定の上限（バイト）。
const DefaultMaxImageSize = 5 << 20

// GroupFinder はグループの存在確認に必要な操作を定義する。
type GroupFinder interface {
	FindByID(ctx context.Context, id int64) (*model.Group, error)
}

// Upload はアップロードされたファイルを表す。
type Upload struct {
	Filename    string
	ContentType string // 内容から判定したMIMEタイプ
	Data        []byte
}

// Errors はフィールド名ごとの検証エラー。
type Errors map[string][]string

func (e Errors) add(field, msg string) {
	e[field] = append(e[field], msg)
}

// PostForm は投稿の作成・編集フォーム。
type PostForm struct {
	Text  string
	Group string // グループIDの文字列表現。空はグループなし
	Image *Upload

	MaxImageSize int
	Errors       Errors
}

// NewPostFormFromPost は既存の投稿を初期値とするフォームを生成する。
func NewPostFormFromPost(p *model.Post) *PostForm {
	f := &PostForm{Text: p.Text}
	if p.GroupID != nil {
		f.Group = strconv.FormatInt(*p.GroupID, 10)
	}
	return f
}

// SelectedGroup はテンプレートでグループの選択状態を判定する。
func (f *PostForm) SelectedGroup(id int64) bool {
	return f.Group == strconv.FormatInt(id, 10)
}

// Validate は入力を検証し、未保存の投稿を返す。
// 検証エラーがある場合はf.Errorsに詳細を格納し、validationカテゴリのAPIErrorを返す。
// AuthorIDと画像パスは呼び出し側が設定する。
func (f *PostForm) Validate(ctx context.Context, groups GroupFinder) (*model.Post, error) {
	f.Errors = Errors{}
	post := &model.Post{}

	text := strings.TrimSpace(f.Text)
	if text == "" {
		f.Errors.add("text", MsgRequired)
	}
	post.Text = text

	if raw := strings.TrimSpace(f.Group); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			f.Errors.add("group", MsgInvalidGroup)
		} else {
			g, err := groups.FindByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if g == nil {
				f.Errors.add("group", MsgInvalidGroup)
			} else {
				post.GroupID = &g.ID
			}
		}
	}

	if f.Image != nil {
		f.validateImage()
	}

	if len(f.Errors) > 0 {
		return nil, model.NewValidationError(f.Errors)
	}
	return post, nil
}

// validateImage はアップロードが画像であることを内容から確認する。
func (f *PostForm) validateImage() {
	limit := f.MaxImageSize
	if limit <= 0 {
		limit = DefaultMaxImageSize
	}
	if len(f.Image.Data) > limit {
		f.Errors.add("image", MsgImageTooBig)
		return
	}
	if len(f.Image.Data) == 0 {
		f.Errors.add("image", MsgInvalidImage)
		return
	}

	ct := http.DetectContentType(f.Image.Data)
	if !strings.HasPrefix(ct, "image/") {
		f.Errors.add("image", MsgInvalidImage)
		return
	}
	f.Image.ContentType = ct
}

// CommentForm はコメント投稿フォーム。
type CommentForm struct {
	Text   string
	Errors Errors
}

// Validate は入力を検証し、未保存のコメントを返す。
// PostIDとAuthorIDは呼び出し側が設定する。
func (f *CommentForm) Validate() (*model.Comment, error) {
	f.Errors = Errors{}

	text := strings.TrimSpace(f.Text)
	if text == "" {
		f.Errors.add("text", MsgRequired)
		return nil, model.NewValidationError(f.Errors)
	}
	return &model.Comment{Text: text}, nil
}
