package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"evaljudge/cmd/judgectl/internal/replutil"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

// session drives the operator REPL: tokenize a line with shlex into a
// `<command> key=value ...` shape, dispatch
// to one of a small set of judge-server operations, and print the result.
// Line editing and history come from readline instead of the teacher's
// plain bufio.Reader loop.
type session struct {
	client *replutil.Client
	rl     *readline.Instance
	pretty bool
}

func newSession(client *replutil.Client, pretty bool) (*session, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "judgectl> ",
		HistoryFile:     historyFilePath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("init readline: %w", err)
	}
	return &session{client: client, rl: rl, pretty: pretty}, nil
}

func (s *session) Close() error { return s.rl.Close() }

func (s *session) Run(ctx context.Context) {
	for {
		line, err := s.rl.Readline()
		if err != nil {
			if err == io.EOF || err == readline.ErrInterrupt {
				return
			}
			fmt.Fprintf(s.rl.Stderr(), "read input failed: %v\n", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		handled, quit := s.handleSystemCommand(line)
		if quit {
			return
		}
		if handled {
			continue
		}
		if err := s.dispatch(ctx, line); err != nil {
			fmt.Fprintf(s.rl.Stderr(), "error: %v\n", err)
		}
	}
}

// handleSystemCommand handles the non-API commands. handled reports whether
// line was one of them; quit reports whether Run should stop.
func (s *session) handleSystemCommand(line string) (handled, quit bool) {
	switch line {
	case "exit", "quit":
		fmt.Fprintln(s.rl.Stdout(), "bye")
		return true, true
	case "help":
		s.printHelp()
		return true, false
	}
	if strings.HasPrefix(line, "set base ") {
		s.client.SetBaseURL(strings.TrimSpace(strings.TrimPrefix(line, "set base ")))
		fmt.Fprintln(s.rl.Stdout(), "base updated")
		return true, false
	}
	if strings.HasPrefix(line, "set token ") {
		s.client.SetToken(strings.TrimSpace(strings.TrimPrefix(line, "set token ")))
		fmt.Fprintln(s.rl.Stdout(), "token updated")
		return true, false
	}
	return false, false
}

func (s *session) dispatch(ctx context.Context, line string) (err error) {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	params := map[string]string{}
	for _, tok := range tokens[1:] {
		kv := strings.SplitN(tok, "=", 2)
		if len(kv) != 2 {
			return fmt.Errorf("invalid param %q, expected key=value", tok)
		}
		params[kv[0]] = kv[1]
	}

	resp, respErr := s.run(ctx, tokens[0], params)
	if respErr != nil {
		return respErr
	}
	s.render(resp)
	return nil
}

func (s *session) run(ctx context.Context, cmd string, params map[string]string) (replutil.ResponseInfo, error) {
	switch cmd {
	case "upload":
		return s.client.UploadFile(ctx, params["file"], params["type"])
	case "compile":
		return s.postJSON(ctx, "/compile", map[string]interface{}{"sourceCacheId": params["source"], "language": params["language"]})
	case "compile-checker":
		return s.postJSON(ctx, "/compile/checker", map[string]interface{}{"sourceCacheId": params["source"], "language": params["language"]})
	case "judge":
		return s.postJSON(ctx, "/judge", map[string]interface{}{
			"binaryCacheId": params["binary"], "inputCacheId": params["input"], "outputCacheId": params["answer"],
			"checkerName": params["checker"],
		})
	case "run":
		return s.postJSON(ctx, "/run", map[string]interface{}{"binaryCacheId": params["binary"], "inputCacheId": params["input"]})
	case "interactive":
		return s.postJSON(ctx, "/interactive", map[string]interface{}{
			"userBinaryCacheId": params["user"], "interactorBinaryCacheId": params["interactor"], "inputCacheId": params["input"],
		})
	case "task":
		return s.client.DoJSON(ctx, "GET", "/task/"+params["id"], nil)
	case "status":
		return s.client.DoJSON(ctx, "GET", "/status", nil)
	default:
		return replutil.ResponseInfo{}, fmt.Errorf("unknown command: %s", cmd)
	}
}

func (s *session) postJSON(ctx context.Context, path string, body map[string]interface{}) (replutil.ResponseInfo, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return replutil.ResponseInfo{}, fmt.Errorf("encode request: %w", err)
	}
	return s.client.DoJSON(ctx, "POST", path, payload)
}

func (s *session) render(resp replutil.ResponseInfo) {
	fmt.Fprintf(s.rl.Stdout(), "HTTP %d (%s)\n", resp.StatusCode, resp.Duration)
	if len(resp.Body) == 0 {
		return
	}
	if s.pretty {
		var raw interface{}
		if err := json.Unmarshal(resp.Body, &raw); err == nil {
			formatted, _ := json.MarshalIndent(raw, "", "  ")
			fmt.Fprintln(s.rl.Stdout(), string(formatted))
			return
		}
	}
	fmt.Fprintln(s.rl.Stdout(), string(resp.Body))
}

func (s *session) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), "usage: <command> key=value ...")
	fmt.Fprintln(s.rl.Stdout(), "commands: upload | compile | compile-checker | judge | run | interactive | task | status")
	fmt.Fprintln(s.rl.Stdout(), "system: help | exit | set base <url> | set token <token>")
	fmt.Fprintln(s.rl.Stdout(), "example: upload file=./main.cpp type=source")
}
