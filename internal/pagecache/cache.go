// Package pagecache はレンダリング済みページのTTLキャッシュを提供する。
package pagecache

import (
	"context"
	"time"
)

// Cache はキーと値のバイト列をTTL付きで保持するキャッシュ。
// 実装はゴルーチンセーフでなければならない。
type Cache interface {
	// Get はキーに対応する値を返す。存在しないか期限切れの場合はfalseを返す。
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set はキーに値を保存する。ttl経過後は取得できなくなる。
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Clear はこのキャッシュの全エントリを削除する。
	Clear(ctx context.Context) error
}
