// rfsbase はマジックリンク認証付きAPIサーバー、クリーンアップワーカー、マイグレーションを1バイナリで提供する。
//
// 使い方:
//
//	rfsbase [serve|worker|migrate|healthcheck]
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/rfsbase/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("rfsbase exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
