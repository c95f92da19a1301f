// Command judgectl is an operator REPL for exercising a running judge
// server from a terminal: upload artifacts, submit compile/judge/run/
// interactive tasks, and poll task state. Grounded on cmd/cli/main.go's
// flag handling and internal/cli/repl's command loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"evaljudge/cmd/judgectl/internal/replutil"
)

func main() {
	baseURL := flag.String("base", "http://127.0.0.1:3235", "judge server base URL")
	token := flag.String("token", "", "auth token")
	pretty := flag.Bool("pretty", true, "pretty-print JSON responses")
	flag.Parse()

	client := replutil.New(*baseURL, *token, 0)

	s, err := newSession(client, *pretty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init session failed: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	s.Run(context.Background())
}

func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".judgectl_history"
	}
	return filepath.Join(home, ".judgectl_history")
}
