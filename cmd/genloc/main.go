package main

import "github.com/GenLoc-2025/GenLoc/internal/cli"

func main() {
	cli.Execute()
}
