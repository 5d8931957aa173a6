package main

import (
	"os"

	"github.com/wonny/stockgame/cmd/stockgame/commands"
)

// main is the entry point for the stockgame CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/stockgame [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
