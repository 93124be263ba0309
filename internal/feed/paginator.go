package feed

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/hitoshi/postline/internal/model"
)

// DefaultPerPage は1ページあたりの既定投稿数。
const DefaultPerPage = 10

// Page はページ分割された投稿一覧の1ページを表す。
type Page struct {
	Number   int // 1始まりのページ番号
	NumPages int // 総ページ数（投稿0件でも1）
	Count    int // 総投稿数
	PerPage  int
	Posts    []*model.PostView
}

// HasNext は次のページが存在するかを返す。
func (p *Page) HasNext() bool { return p.Number < p.NumPages }

// HasPrevious は前のページが存在するかを返す。
func (p *Page) HasPrevious() bool { return p.Number > 1 }

// HasOtherPages はページ送りを表示する必要があるかを返す。
func (p *Page) HasOtherPages() bool { return p.NumPages > 1 }

// NextNumber は次のページ番号を返す。最終ページでは現在のページ番号を返す。
func (p *Page) NextNumber() int {
	if p.HasNext() {
		return p.Number + 1
	}
	return p.Number
}

// PreviousNumber は前のページ番号を返す。先頭ページでは1を返す。
func (p *Page) PreviousNumber() int {
	if p.HasPrevious() {
		return p.Number - 1
	}
	return 1
}

// StartIndex はページ先頭の投稿の通し番号（1始まり）を返す。投稿0件の場合は0。
func (p *Page) StartIndex() int {
	if p.Count == 0 {
		return 0
	}
	return (p.Number-1)*p.PerPage + 1
}

// PageRange は1からNumPagesまでのページ番号を返す。
func (p *Page) PageRange() []int {
	r := make([]int, p.NumPages)
	for i := range r {
		r[i] = i + 1
	}
	return r
}

// Paginator は総件数とページサイズからページ位置を計算する。
type Paginator struct {
	PerPage int
	Count   int
}

// NumPages は総ページ数を返す。投稿が0件でも1ページとして扱う。
func (p Paginator) NumPages() int {
	if p.Count <= 0 {
		return 1
	}
	return (p.Count + p.PerPage - 1) / p.PerPage
}

// Clamp はページ番号を有効範囲 [1, NumPages] に丸める。
func (p Paginator) Clamp(number int) int {
	if number < 1 {
		return 1
	}
	if last := p.NumPages(); number > last {
		return last
	}
	return number
}

// Offset は指定ページ（丸め済み）の先頭オフセットを返す。
func (p Paginator) Offset(number int) int {
	return (p.Clamp(number) - 1) * p.PerPage
}

// ParsePageNumber はクエリ文字列のpage値を解釈する。
// 未指定や整数でない値は1として扱う。範囲外の値はPaginator.Clampで丸める。
// intに収まらない正の値は最終ページとなるようmath.MaxIntを返す。
func ParsePageNumber(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(raw, "-") {
			return math.MaxInt
		}
		return 1
	}
	return n
}
