package main

import (
	"fmt"
	"os"

	"github.com/eventops/flow/internal/cli"
)

// ldflags로 주입 (-X main.version=... -X main.commit=...)
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cli.SetVersionInfo(version, commit)

	// 단계별 서브커맨드 실행
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
