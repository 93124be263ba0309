package model

import "time"

// postLabelLength は投稿の短縮ラベルの文字数。
const postLabelLength = 15

// Group は投稿をまとめるコミュニティを表す。
type Group struct {
	ID          int64
	Title       string
	Slug        string
	Description string
}

// String はグループの表示ラベル（タイトル）を返す。
func (g *Group) String() string {
	return g.Title
}

// Post はユーザーの投稿を表す。
type Post struct {
	ID        int64
	Text      string
	CreatedAt time.Time
	AuthorID  string
	GroupID   *int64
	Image     string // メディアディレクトリからの相対パス。空は画像なし。
}

// String は本文の先頭15文字を返す。
func (p *Post) String() string {
	r := []rune(p.Text)
	if len(r) <= postLabelLength {
		return p.Text
	}
	return string(r[:postLabelLength])
}

// PostView は表示用に著者・グループ情報を結合した投稿を表す。
type PostView struct {
	Post
	AuthorUsername string
	GroupSlug      string
	GroupTitle     string
}

// HasGroup はグループに属しているかを返す。
func (v *PostView) HasGroup() bool {
	return v.GroupID != nil
}

// Comment は投稿へのコメントを表す。
// PostIDがnilのコメントは投稿に紐付かない。
type Comment struct {
	ID        int64
	PostID    *int64
	AuthorID  string
	Text      string
	CreatedAt time.Time

	// 表示用
	AuthorUsername string
}
