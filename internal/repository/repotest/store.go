// Package repotest はテスト用のインメモリリポジトリ実装を提供する。
// Store 1つでrepositoryパッケージの全インターフェースを満たす。
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/repository"
)

// Store はスレッドセーフなインメモリデータストア。
type Store struct {
	mu sync.Mutex

	users    map[string]*model.User
	sessions map[string]*model.Session
	groups   map[int64]*model.Group
	posts    map[int64]*model.Post
	comments map[int64]*model.Comment
	follows  map[[2]string]int64

	nextID int64
	// Now は投稿日時の採番に使用する時計。既定では1投稿ごとに1秒進む。
	Now func() time.Time
}

// NewStore は空のStoreを生成する。
func NewStore() *Store {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &Store{
		users:    make(map[string]*model.User),
		sessions: make(map[string]*model.Session),
		groups:   make(map[int64]*model.Group),
		posts:    make(map[int64]*model.Post),
		comments: make(map[int64]*model.Comment),
		follows:  make(map[[2]string]int64),
	}
	s.Now = func() time.Time {
		return base.Add(time.Duration(s.nextID) * time.Second)
	}
	return s
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Users はUserRepositoryとしてのビューを返す。
func (s *Store) Users() repository.UserRepository { return (*userRepo)(s) }

// Sessions はSessionRepositoryとしてのビューを返す。
func (s *Store) Sessions() repository.SessionRepository { return (*sessionRepo)(s) }

// Groups はGroupRepositoryとしてのビューを返す。
func (s *Store) Groups() repository.GroupRepository { return (*groupRepo)(s) }

// Posts はPostRepositoryとしてのビューを返す。
func (s *Store) Posts() repository.PostRepository { return (*postRepo)(s) }

// Comments はCommentRepositoryとしてのビューを返す。
func (s *Store) Comments() repository.CommentRepository { return (*commentRepo)(s) }

// Follows はFollowRepositoryとしてのビューを返す。
func (s *Store) Follows() repository.FollowRepository { return (*followRepo)(s) }

// MustUser はユーザーを作成して返す。
func (s *Store) MustUser(username string) *model.User {
	u := &model.User{Username: username}
	if err := s.Users().Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

// MustGroup はグループを作成して返す。
func (s *Store) MustGroup(title, slug string) *model.Group {
	g := &model.Group{Title: title, Slug: slug}
	if err := s.Groups().Create(context.Background(), g); err != nil {
		panic(err)
	}
	return g
}

// MustPost は投稿を作成して返す。
func (s *Store) MustPost(author *model.User, text string, group *model.Group) *model.Post {
	p := &model.Post{Text: text, AuthorID: author.ID}
	if group != nil {
		p.GroupID = &group.ID
	}
	if err := s.Posts().Create(context.Background(), p); err != nil {
		panic(err)
	}
	return p
}

// DeleteAllPosts は全投稿とそのコメントを削除する。
func (s *Store) DeleteAllPosts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = make(map[int64]*model.Post)
	s.comments = make(map[int64]*model.Comment)
}

// PostCount は保存されている投稿数を返す。
func (s *Store) PostCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

// CommentCount は保存されているコメント数を返す。
func (s *Store) CommentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.comments)
}

// FollowCount は保存されているフォロー関係の数を返す。
func (s *Store) FollowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.follows)
}

// --- users ---

type userRepo Store

func (r *userRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *userRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *userRepo) Create(_ context.Context, user *model.User) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = s.Now()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (r *userRepo) DeleteByID(_ context.Context, id string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	for sid, sess := range s.sessions {
		if sess.UserID == id {
			delete(s.sessions, sid)
		}
	}
	for pid, p := range s.posts {
		if p.AuthorID == id {
			delete(s.posts, pid)
		}
	}
	for cid, c := range s.comments {
		if c.AuthorID == id {
			delete(s.comments, cid)
		}
	}
	for key := range s.follows {
		if key[0] == id || key[1] == id {
			delete(s.follows, key)
		}
	}
	return nil
}

// --- sessions ---

type sessionRepo Store

func (r *sessionRepo) Create(_ context.Context, session *model.Session) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (r *sessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || !sess.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (r *sessionRepo) DeleteByID(_ context.Context, id string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (r *sessionRepo) DeleteByUserID(_ context.Context, userID string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, id)
		}
	}
	return nil
}

func (r *sessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := time.Now()
	for id, sess := range s.sessions {
		if !sess.ExpiresAt.After(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// --- groups ---

type groupRepo Store

func (r *groupRepo) FindByID(_ context.Context, id int64) (*model.Group, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, nil
}

func (r *groupRepo) FindBySlug(_ context.Context, slug string) (*model.Group, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.Slug == slug {
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *groupRepo) List(_ context.Context) ([]*model.Group, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Group, 0, len(s.groups))
	for _, g := range s.groups {
		cp := *g
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (r *groupRepo) Create(_ context.Context, group *model.Group) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.Slug == group.Slug {
			return repository.ErrDuplicate
		}
	}
	group.ID = s.id()
	cp := *group
	s.groups[group.ID] = &cp
	return nil
}

func (r *groupRepo) DeleteBySlug(_ context.Context, slug string) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, g := range s.groups {
		if g.Slug != slug {
			continue
		}
		delete(s.groups, id)
		for _, p := range s.posts {
			if p.GroupID != nil && *p.GroupID == id {
				p.GroupID = nil
			}
		}
		return true, nil
	}
	return false, nil
}

// --- posts ---

type postRepo Store

func (s *Store) view(p *model.Post) *model.PostView {
	v := &model.PostView{Post: *p}
	if u, ok := s.users[p.AuthorID]; ok {
		v.AuthorUsername = u.Username
	}
	if p.GroupID != nil {
		gid := *p.GroupID
		v.GroupID = &gid
		if g, ok := s.groups[gid]; ok {
			v.GroupSlug = g.Slug
			v.GroupTitle = g.Title
		}
	}
	return v
}

func (s *Store) match(p *model.Post, f repository.PostFilter) bool {
	if f.GroupID != nil && (p.GroupID == nil || *p.GroupID != *f.GroupID) {
		return false
	}
	if f.AuthorID != "" && p.AuthorID != f.AuthorID {
		return false
	}
	if f.FollowerID != "" {
		if _, ok := s.follows[[2]string{f.FollowerID, p.AuthorID}]; !ok {
			return false
		}
	}
	return true
}

func (r *postRepo) FindByID(_ context.Context, id int64) (*model.PostView, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, nil
	}
	return s.view(p), nil
}

func (r *postRepo) Count(_ context.Context, filter repository.PostFilter) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.posts {
		if s.match(p, filter) {
			n++
		}
	}
	return n, nil
}

func (r *postRepo) List(_ context.Context, filter repository.PostFilter, limit, offset int) ([]*model.PostView, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*model.Post
	for _, p := range s.posts {
		if s.match(p, filter) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	out := make([]*model.PostView, 0, limit)
	for i := offset; i < len(matched) && len(out) < limit; i++ {
		out = append(out, s.view(matched[i]))
	}
	return out, nil
}

func (r *postRepo) Create(_ context.Context, post *model.Post) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	post.ID = s.id()
	post.CreatedAt = s.Now()
	cp := *post
	s.posts[post.ID] = &cp
	return nil
}

func (r *postRepo) Update(_ context.Context, post *model.Post) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[post.ID]
	if !ok {
		return nil
	}
	p.Text = post.Text
	p.GroupID = post.GroupID
	p.Image = post.Image
	return nil
}

// --- comments ---

type commentRepo Store

func (r *commentRepo) Create(_ context.Context, comment *model.Comment) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	comment.ID = s.id()
	comment.CreatedAt = s.Now()
	cp := *comment
	s.comments[comment.ID] = &cp
	return nil
}

func (r *commentRepo) ListByPost(_ context.Context, postID int64) ([]*model.Comment, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Comment
	for _, c := range s.comments {
		if c.PostID != nil && *c.PostID == postID {
			cp := *c
			if u, ok := s.users[c.AuthorID]; ok {
				cp.AuthorUsername = u.Username
			}
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// --- follows ---

type followRepo Store

func (r *followRepo) Create(_ context.Context, userID, authorID string) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{userID, authorID}
	if _, ok := s.follows[key]; ok {
		return false, nil
	}
	s.follows[key] = s.id()
	return true, nil
}

func (r *followRepo) Delete(_ context.Context, userID, authorID string) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{userID, authorID}
	if _, ok := s.follows[key]; !ok {
		return false, nil
	}
	delete(s.follows, key)
	return true, nil
}

func (r *followRepo) Exists(_ context.Context, userID, authorID string) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.follows[[2]string{userID, authorID}]
	return ok, nil
}

func (r *followRepo) ListByUser(_ context.Context, userID string) ([]*model.Follow, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Follow
	for key, id := range s.follows {
		if key[0] != userID {
			continue
		}
		f := &model.Follow{ID: id, UserID: key[0], AuthorID: key[1]}
		if u, ok := s.users[key[0]]; ok {
			f.Username = u.Username
		}
		if a, ok := s.users[key[1]]; ok {
			f.AuthorUsername = a.Username
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AuthorUsername < out[j].AuthorUsername })
	return out, nil
}
