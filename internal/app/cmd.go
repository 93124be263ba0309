package app

import (
	"errors"
	"fmt"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はWebサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandClearCache は共有ページキャッシュを削除することを示す。
	CommandClearCache Command = "clearcache"
	// CommandGroup はグループの作成・削除を行うことを示す。
	CommandGroup Command = "group"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	case "clearcache":
		return CommandClearCache
	case "group":
		return CommandGroup
	default:
		return CommandServe
	}
}

// groupUsage はgroupサブコマンドの使い方。
const groupUsage = "usage: postline group create <slug> <title> [description] | postline group delete <slug>"

// errGroupUsage はgroupサブコマンドの引数が不正な場合のエラー。
var errGroupUsage = errors.New(groupUsage)

// GroupArgs はgroupサブコマンドの引数を表す。
type GroupArgs struct {
	Action      string // "create" または "delete"
	Slug        string
	Title       string
	Description string
}

// ParseGroupArgs はgroupサブコマンドに続く引数を解析する。
func ParseGroupArgs(args []string) (*GroupArgs, error) {
	if len(args) == 0 {
		return nil, errGroupUsage
	}
	switch args[0] {
	case "create":
		if len(args) < 3 || len(args) > 4 {
			return nil, errGroupUsage
		}
		ga := &GroupArgs{Action: args[0], Slug: args[1], Title: args[2]}
		if len(args) == 4 {
			ga.Description = args[3]
		}
		return ga, nil
	case "delete":
		if len(args) != 2 {
			return nil, errGroupUsage
		}
		return &GroupArgs{Action: args[0], Slug: args[1]}, nil
	default:
		return nil, fmt.Errorf("unknown group action %q: %w", args[0], errGroupUsage)
	}
}
