package post

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/postline/internal/form"
	"github.com/hitoshi/postline/internal/metrics"
	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/repository/repotest"
)

var gifData = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")

type mockImageStore struct {
	saveFn func(ctx context.Context, contentType string, data []byte) (string, error)
	calls  int
}

func (m *mockImageStore) Save(ctx context.Context, contentType string, data []byte) (string, error) {
	m.calls++
	if m.saveFn != nil {
		return m.saveFn(ctx, contentType, data)
	}
	return "posts/test.gif", nil
}

// countingCollector は作成系メトリクスの呼び出し回数を数える。
type countingCollector struct {
	metrics.Nop
	posts    int
	comments int
}

func (c *countingCollector) RecordPostCreated()    { c.posts++ }
func (c *countingCollector) RecordCommentCreated() { c.comments++ }

func newTestService(images *mockImageStore, collector metrics.MetricsCollector) (*Service, *repotest.Store) {
	store := repotest.NewStore()
	if images == nil {
		images = &mockImageStore{}
	}
	return NewService(store.Posts(), store.Comments(), store.Groups(), images, collector, nil), store
}

func TestService_Detail(t *testing.T) {
	svc, store := newTestService(nil, nil)
	alice := store.MustUser("alice")
	bob := store.MustUser("bob")
	p := store.MustPost(alice, "最初の投稿", nil)
	store.MustPost(alice, "二番目の投稿", nil)
	ctx := context.Background()

	_, err := svc.AddComment(ctx, bob, p.ID, &form.CommentForm{Text: "古いコメント"})
	require.NoError(t, err)
	_, err = svc.AddComment(ctx, alice, p.ID, &form.CommentForm{Text: "新しいコメント"})
	require.NoError(t, err)

	d, err := svc.Detail(ctx, p.ID)
	require.NoError(t, err)

	assert.Equal(t, "最初の投稿", d.Post.Text)
	assert.Equal(t, "alice", d.Post.AuthorUsername)
	assert.Equal(t, 2, d.AuthorPostCount)
	require.Len(t, d.Comments, 2)
	assert.Equal(t, "新しいコメント", d.Comments[0].Text)
	assert.Equal(t, "bob", d.Comments[1].AuthorUsername)
}

func TestService_Detail_NotFound(t *testing.T) {
	svc, _ := newTestService(nil, nil)

	_, err := svc.Detail(context.Background(), 999)
	assert.True(t, model.IsCategory(err, model.CategoryNotFound))
}

func TestService_Create(t *testing.T) {
	collector := &countingCollector{}
	svc, store := newTestService(nil, collector)
	alice := store.MustUser("alice")
	g := store.MustGroup("Go", "go")

	f := &form.PostForm{Text: "  こんにちは  ", Group: strconv.FormatInt(g.ID, 10)}
	p, err := svc.Create(context.Background(), alice, f)
	require.NoError(t, err)

	assert.NotZero(t, p.ID)
	assert.Equal(t, "こんにちは", p.Text)
	assert.Equal(t, alice.ID, p.AuthorID)
	require.NotNil(t, p.GroupID)
	assert.Equal(t, g.ID, *p.GroupID)
	assert.Equal(t, "", p.Image)
	assert.Equal(t, 1, store.PostCount())
	assert.Equal(t, 1, collector.posts)
}

// 本文が空の投稿は保存されない
func TestService_Create_EmptyTextIsNotPersisted(t *testing.T) {
	svc, store := newTestService(nil, nil)
	alice := store.MustUser("alice")

	f := &form.PostForm{Text: "   "}
	_, err := svc.Create(context.Background(), alice, f)

	assert.True(t, model.IsCategory(err, model.CategoryValidation))
	assert.Equal(t, []string{form.MsgRequired}, f.Errors["text"])
	assert.Equal(t, 0, store.PostCount())
}

func TestService_Create_WithImage(t *testing.T) {
	images := &mockImageStore{}
	svc, store := newTestService(images, nil)
	alice := store.MustUser("alice")

	f := &form.PostForm{Text: "画像つき", Image: &form.Upload{Filename: "a.gif", Data: gifData}}
	p, err := svc.Create(context.Background(), alice, f)
	require.NoError(t, err)

	assert.Equal(t, 1, images.calls)
	assert.Equal(t, "posts/test.gif", p.Image)
}

func TestService_Create_ImageSaveFailure(t *testing.T) {
	images := &mockImageStore{
		saveFn: func(ctx context.Context, contentType string, data []byte) (string, error) {
			return "", errors.New("disk full")
		},
	}
	svc, store := newTestService(images, nil)
	alice := store.MustUser("alice")

	f := &form.PostForm{Text: "画像つき", Image: &form.Upload{Data: gifData}}
	_, err := svc.Create(context.Background(), alice, f)
	require.Error(t, err)
	assert.Equal(t, 0, store.PostCount())
}

func TestService_Create_Unauthenticated(t *testing.T) {
	svc, _ := newTestService(nil, nil)

	_, err := svc.Create(context.Background(), nil, &form.PostForm{Text: "x"})
	assert.True(t, model.IsCategory(err, model.CategoryAuth))
}

func TestService_Edit(t *testing.T) {
	svc, store := newTestService(nil, nil)
	alice := store.MustUser("alice")
	g := store.MustGroup("Go", "go")
	p := store.MustPost(alice, "編集前", g)
	ctx := context.Background()
	require.NoError(t, store.Posts().Update(ctx, &model.Post{ID: p.ID, Text: p.Text, GroupID: p.GroupID, Image: "posts/old.png"}))

	updated, err := svc.Edit(ctx, alice, p.ID, &form.PostForm{Text: "編集後"})
	require.NoError(t, err)

	got, err := store.Posts().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "編集後", got.Text)
	assert.Nil(t, got.GroupID, "グループ未選択ならグループは外れる")
	assert.Equal(t, "posts/old.png", got.Image, "画像未アップロードなら既存画像を維持する")
	assert.Equal(t, p.CreatedAt, updated.CreatedAt)
}

func TestService_Edit_ReplacesImage(t *testing.T) {
	svc, store := newTestService(nil, nil)
	alice := store.MustUser("alice")
	p := store.MustPost(alice, "編集前", nil)

	_, err := svc.Edit(context.Background(), alice, p.ID, &form.PostForm{Text: "編集後", Image: &form.Upload{Data: gifData}})
	require.NoError(t, err)

	got, err := store.Posts().FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "posts/test.gif", got.Image)
}

func TestService_Edit_Errors(t *testing.T) {
	svc, store := newTestService(nil, nil)
	alice := store.MustUser("alice")
	bob := store.MustUser("bob")
	p := store.MustPost(alice, "aliceの投稿", nil)
	ctx := context.Background()

	_, err := svc.Edit(ctx, bob, p.ID, &form.PostForm{Text: "乗っ取り"})
	assert.True(t, model.IsCategory(err, model.CategoryForbidden))

	_, err = svc.Edit(ctx, alice, 999, &form.PostForm{Text: "x"})
	assert.True(t, model.IsCategory(err, model.CategoryNotFound))

	_, err = svc.Edit(ctx, nil, p.ID, &form.PostForm{Text: "x"})
	assert.True(t, model.IsCategory(err, model.CategoryAuth))

	_, err = svc.Edit(ctx, alice, p.ID, &form.PostForm{Text: ""})
	assert.True(t, model.IsCategory(err, model.CategoryValidation))

	got, err := store.Posts().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "aliceの投稿", got.Text)
}

func TestService_AddComment(t *testing.T) {
	collector := &countingCollector{}
	svc, store := newTestService(nil, collector)
	alice := store.MustUser("alice")
	p := store.MustPost(alice, "投稿", nil)

	c, err := svc.AddComment(context.Background(), alice, p.ID, &form.CommentForm{Text: " いいね "})
	require.NoError(t, err)

	assert.Equal(t, "いいね", c.Text)
	require.NotNil(t, c.PostID)
	assert.Equal(t, p.ID, *c.PostID)
	assert.Equal(t, alice.ID, c.AuthorID)
	assert.Equal(t, 1, store.CommentCount())
	assert.Equal(t, 1, collector.comments)
}

func TestService_AddComment_Errors(t *testing.T) {
	svc, store := newTestService(nil, nil)
	alice := store.MustUser("alice")
	p := store.MustPost(alice, "投稿", nil)
	ctx := context.Background()

	_, err := svc.AddComment(ctx, alice, 999, &form.CommentForm{Text: "x"})
	assert.True(t, model.IsCategory(err, model.CategoryNotFound))

	_, err = svc.AddComment(ctx, alice, p.ID, &form.CommentForm{Text: ""})
	assert.True(t, model.IsCategory(err, model.CategoryValidation))

	assert.Equal(t, 0, store.CommentCount())
}

func TestService_Groups(t *testing.T) {
	svc, store := newTestService(nil, nil)
	store.MustGroup("Rust", "rust")
	store.MustGroup("Go", "go")

	groups, err := svc.Groups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Go", groups[0].Title)
}
