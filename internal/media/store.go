// Package media は投稿画像の保存と配信を提供する。
package media

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
)

// URLPrefix は保存済みファイルを配信するURLパスの接頭辞。
const URLPrefix = "/media/"

// postsDir は投稿画像を保存するサブディレクトリ。
const postsDir = "posts"

// extensions はMIMEタイプごとの保存拡張子。
var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// Store は画像の保存先インターフェース。
type Store interface {
	// Save は画像を保存し、メディアルートからの相対パスを返す。
	Save(ctx context.Context, contentType string, data []byte) (string, error)
}

// LocalStore はローカルディレクトリに画像を保存するStore実装。
type LocalStore struct {
	root string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore はrootを保存先とするLocalStoreを生成する。
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// Root は保存先ディレクトリを返す。
func (s *LocalStore) Root() string {
	return s.root
}

// Save は画像をposts/配下にUUIDのファイル名で保存する。
func (s *LocalStore) Save(ctx context.Context, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext, ok := extensions[contentType]
	if !ok {
		ext = ".img"
	}
	rel := path.Join(postsDir, uuid.NewString()+ext)

	dir := filepath.Join(s.root, postsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("メディアディレクトリの作成に失敗しました: %w", err)
	}

	dst := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("画像の保存に失敗しました: %w", err)
	}
	return rel, nil
}

// URL はメディアルートからの相対パスを配信URLに変換する。空の場合は空文字列を返す。
func URL(rel string) string {
	if rel == "" {
		return ""
	}
	return URLPrefix + rel
}

// Handler はrootのファイルをURLPrefix配下で配信するハンドラーを返す。
// ディレクトリ一覧は返さない。
func Handler(root string) http.Handler {
	fs := http.FileServer(noListFS{http.Dir(root)})
	return http.StripPrefix(URLPrefix, fs)
}

// noListFS はディレクトリを開けないhttp.FileSystem。
type noListFS struct {
	fs http.FileSystem
}

func (n noListFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
