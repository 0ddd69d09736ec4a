package main

import (
	"github.com/turtacn/ssoguard/cmd/cli"
)

// main 是 ssoguard-admin 命令行工具的入口点。
func main() {
	cli.Execute()
}
