//go:build linux

// Package local is a reference implementation of sandbox.Service intended
// for development and testing, not production hardening. It enforces an
// address-space limit via the shell's ulimit -v and a wall-clock time limit
// by killing the whole process group (golang.org/x/sys/unix) on timeout.
// Reported time is wall-clock elapsed; peak memory comes from the child's
// rusage. It deliberately has none of the teacher's
// namespace/cgroup/seccomp machinery (internal/judge/sandbox/engine) —
// that's sandbox policy, out of scope here, and assumed supplied by a real
// Sandbox Runtime in production (see DESIGN.md).
package local

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"evaljudge/internal/apperr"
	"evaljudge/internal/checker"
	"evaljudge/internal/sandbox"

	"golang.org/x/sys/unix"
)

// Adapter is the reference sandbox.Service implementation.
type Adapter struct {
	// DefaultCheckerTimeLimitMs bounds a custom compiled checker's run time.
	DefaultCheckerTimeLimitMs int
	DefaultCheckerMemoryKB    int
}

// New returns a reference adapter with sane defaults for checker limits.
func New() *Adapter {
	return &Adapter{DefaultCheckerTimeLimitMs: 10000, DefaultCheckerMemoryKB: 256 * 1024}
}

type langSpec struct {
	sourceName string
	compile    func(workDir, srcPath, binPath string) *exec.Cmd
	interpreted bool
}

func specFor(language string) (langSpec, error) {
	switch strings.ToLower(language) {
	case "cpp", "c++":
		return langSpec{
			sourceName: "main.cpp",
			compile: func(workDir, srcPath, binPath string) *exec.Cmd {
				return exec.Command("g++", "-O2", "-std=c++17", "-o", binPath, srcPath)
			},
		}, nil
	case "c":
		return langSpec{
			sourceName: "main.c",
			compile: func(workDir, srcPath, binPath string) *exec.Cmd {
				return exec.Command("gcc", "-O2", "-o", binPath, srcPath)
			},
		}, nil
	case "python3", "python":
		return langSpec{sourceName: "main.py", interpreted: true}, nil
	default:
		return langSpec{}, apperr.Newf(apperr.InvalidParams, "unsupported language %q", language)
	}
}

// Compile builds a submitted source file into an executable inside WorkDir.
func (a *Adapter) Compile(ctx context.Context, req sandbox.CompileRequest) (sandbox.CompileResult, error) {
	return a.compileInto(ctx, req, "user")
}

// CompileChecker builds a checker source into an executable inside WorkDir.
func (a *Adapter) CompileChecker(ctx context.Context, req sandbox.CompileRequest) (sandbox.CompileResult, error) {
	return a.compileInto(ctx, req, "checker")
}

func (a *Adapter) compileInto(ctx context.Context, req sandbox.CompileRequest, binaryName string) (sandbox.CompileResult, error) {
	spec, err := specFor(req.Language)
	if err != nil {
		return sandbox.CompileResult{}, err
	}

	srcPath := filepath.Join(req.WorkDir, spec.sourceName)
	if err := os.WriteFile(srcPath, req.SourceCode, 0644); err != nil {
		return sandbox.CompileResult{}, apperr.Wrapf(err, apperr.JudgeSystemError, "write source")
	}

	binPath := filepath.Join(req.WorkDir, binaryName)

	if spec.interpreted {
		wrapped := append([]byte("#!/usr/bin/env python3\n"), req.SourceCode...)
		if err := os.WriteFile(binPath, wrapped, 0755); err != nil {
			return sandbox.CompileResult{}, apperr.Wrapf(err, apperr.JudgeSystemError, "write interpreted entrypoint")
		}
		return sandbox.CompileResult{Success: true, ExecutablePath: binPath}, nil
	}

	base := spec.compile(req.WorkDir, srcPath, binPath)
	cmd := exec.CommandContext(ctx, base.Path, base.Args[1:]...)
	cmd.Dir = req.WorkDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return sandbox.CompileResult{Success: false, Message: stderr.String()}, nil
	}
	return sandbox.CompileResult{Success: true, ExecutablePath: binPath, Message: stderr.String()}, nil
}

// RunProgram executes a compiled or interpreted program against one test.
func (a *Adapter) RunProgram(ctx context.Context, req sandbox.RunRequest) (sandbox.RunResult, error) {
	outputPath := filepath.Join(req.WorkDir, "stdout.txt")
	if req.Mode == sandbox.Fileio && req.OutputFileName != "" {
		outputPath = filepath.Join(req.WorkDir, req.OutputFileName)
	}

	var stdinPath string
	if req.Mode != sandbox.Fileio {
		stdinPath = req.InputPath
	} else if req.InputFileName != "" {
		dst := filepath.Join(req.WorkDir, req.InputFileName)
		if err := copyFile(req.InputPath, dst); err != nil {
			return sandbox.RunResult{}, apperr.Wrapf(err, apperr.JudgeSystemError, "stage fileio input")
		}
	}

	res, err := runLimited(ctx, req.ExecutablePath, nil, req.WorkDir, stdinPath, outputPath, req.TimeLimitMs, req.MemoryLimitKB)
	if err != nil {
		return sandbox.RunResult{}, err
	}
	res.OutputPath = outputPath
	return res, nil
}

// runLimited is the shared exec/limit/measure path used by RunProgram and
// compiled-checker execution.
func runLimited(ctx context.Context, execPath string, args []string, workDir, stdinPath, stdoutPath string, timeLimitMs, memoryLimitKB int) (sandbox.RunResult, error) {
	if timeLimitMs <= 0 {
		timeLimitMs = 10000
	}
	if memoryLimitKB <= 0 {
		memoryLimitKB = 256 * 1024
	}

	shellCmd := fmt.Sprintf("ulimit -v %d 2>/dev/null; exec %q", memoryLimitKB, execPath)
	for _, a := range args {
		shellCmd += " " + strconv.Quote(a)
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeLimitMs)*time.Millisecond+200*time.Millisecond)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", shellCmd)
	cmd.Dir = workDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if stdinPath != "" {
		f, err := os.Open(stdinPath)
		if err != nil {
			return sandbox.RunResult{}, apperr.Wrapf(err, apperr.JudgeSystemError, "open input")
		}
		defer f.Close()
		cmd.Stdin = f
	}

	outFile, err := os.Create(stdoutPath)
	if err != nil {
		return sandbox.RunResult{}, apperr.Wrapf(err, apperr.JudgeSystemError, "create output file")
	}
	defer outFile.Close()
	cmd.Stdout = outFile

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Start()
	if runErr != nil {
		return sandbox.RunResult{}, apperr.Wrapf(runErr, apperr.SandboxFailed, "start program")
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-runCtx.Done():
		killProcessGroup(cmd.Process.Pid)
		waitErr = <-done
	}
	elapsed := time.Since(start)

	result := sandbox.RunResult{
		TimeMs: elapsed.Milliseconds(),
		Stderr: stderr.Bytes(),
	}
	if usage, ok := childRusage(cmd); ok {
		result.MemoryKB = usage
	}

	timedOut := elapsed.Milliseconds() >= int64(timeLimitMs)
	switch {
	case timedOut:
		result.Status = sandbox.TimeExceeded
	case waitErr == nil:
		result.Status = sandbox.ExitedNormally
		result.ExitCode = 0
	default:
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				if result.MemoryKB >= int64(float64(memoryLimitKB)*0.9) {
					result.Status = sandbox.MemoryExceeded
				} else {
					result.Status = sandbox.RuntimeFailure
				}
			} else {
				result.Status = sandbox.NonZeroExit
			}
		} else {
			result.Status = sandbox.RuntimeFailure
		}
	}
	return result, nil
}

func childRusage(cmd *exec.Cmd) (int64, bool) {
	if cmd.ProcessState == nil {
		return 0, false
	}
	usage, ok := cmd.ProcessState.SysUsage().(*syscall.Rusage)
	if !ok {
		return 0, false
	}
	// Maxrss is in KB on Linux already.
	return usage.Maxrss, true
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = unix.Kill(-pid, unix.SIGKILL)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

// RunChecker compares a program's output against the reference answer,
// using either a built-in Go comparator or a caller-compiled checker
// binary invoked as `checker input output answer`.
func (a *Adapter) RunChecker(ctx context.Context, req sandbox.CheckerRequest) (sandbox.CheckerResult, error) {
	if req.UseBuiltin != "" {
		fn, err := checker.Lookup(req.UseBuiltin)
		if err != nil {
			return sandbox.CheckerResult{}, err
		}
		input, err := os.Open(req.InputPath)
		if err != nil {
			return sandbox.CheckerResult{}, apperr.Wrapf(err, apperr.JudgeSystemError, "open checker input")
		}
		defer input.Close()
		output, err := os.Open(req.OutputPath)
		if err != nil {
			return sandbox.CheckerResult{}, apperr.Wrapf(err, apperr.JudgeSystemError, "open checker output")
		}
		defer output.Close()
		answer, err := os.Open(req.AnswerPath)
		if err != nil {
			return sandbox.CheckerResult{}, apperr.Wrapf(err, apperr.JudgeSystemError, "open checker answer")
		}
		defer answer.Close()

		outcome, err := fn(input, output, answer)
		if err != nil {
			return sandbox.CheckerResult{}, apperr.Wrapf(err, apperr.JudgeSystemError, "run built-in checker")
		}
		return sandbox.CheckerResult{NormalizedScore: outcome.NormalizedScore, Message: outcome.Message}, nil
	}

	res, err := runLimited(ctx, req.CheckerPath, []string{req.InputPath, req.OutputPath, req.AnswerPath}, req.WorkDir, "", filepath.Join(req.WorkDir, "checker_stdout.txt"), a.DefaultCheckerTimeLimitMs, a.DefaultCheckerMemoryKB)
	if err != nil {
		return sandbox.CheckerResult{}, err
	}
	score := 0.0
	if res.Status == sandbox.ExitedNormally && res.ExitCode == 0 {
		score = 1.0
	}
	return sandbox.CheckerResult{NormalizedScore: score, Message: strings.TrimSpace(string(res.Stderr))}, nil
}

// RunInteractive runs a contestant program wired to an interactor over a
// bidirectional pipe. The interactor receives the original input path plus
// two extra arguments — score file and message file paths — that it must
// write its verdict to, since its stdout is consumed by the user program.
func (a *Adapter) RunInteractive(ctx context.Context, req sandbox.InteractiveRequest) (sandbox.InteractiveResult, error) {
	scorePath := filepath.Join(req.WorkDir, "score.txt")
	messagePath := filepath.Join(req.WorkDir, "message.txt")

	userToInteractorR, userToInteractorW, err := os.Pipe()
	if err != nil {
		return sandbox.InteractiveResult{}, apperr.Wrap(err, apperr.SandboxFailed)
	}
	interactorToUserR, interactorToUserW, err := os.Pipe()
	if err != nil {
		return sandbox.InteractiveResult{}, apperr.Wrap(err, apperr.SandboxFailed)
	}
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(req.UserTimeLimitMs+req.InteractorTimeLimitMs)*time.Millisecond+500*time.Millisecond)
	defer cancel()

	userCmd := exec.CommandContext(runCtx, req.UserExecutablePath)
	userCmd.Dir = req.WorkDir
	userCmd.Stdin = interactorToUserR
	userCmd.Stdout = userToInteractorW
	var userStderr bytes.Buffer
	userCmd.Stderr = &userStderr
	userCmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	interactorCmd := exec.CommandContext(runCtx, req.InteractorExecutablePath, req.InputPath, scorePath, messagePath)
	interactorCmd.Dir = req.WorkDir
	interactorCmd.Stdin = userToInteractorR
	interactorCmd.Stdout = interactorToUserW
	var interactorStderr bytes.Buffer
	interactorCmd.Stderr = &interactorStderr
	interactorCmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	start := time.Now()
	if err := userCmd.Start(); err != nil {
		return sandbox.InteractiveResult{}, apperr.Wrap(err, apperr.SandboxFailed)
	}
	if err := interactorCmd.Start(); err != nil {
		killProcessGroup(userCmd.Process.Pid)
		return sandbox.InteractiveResult{}, apperr.Wrap(err, apperr.SandboxFailed)
	}

	// Both children hold their own duped copies of these fds now; the
	// parent's copies must close so each side sees EOF when the other exits.
	userToInteractorR.Close()
	userToInteractorW.Close()
	interactorToUserR.Close()
	interactorToUserW.Close()

	var wg sync.WaitGroup
	var userErr, interactorErr error
	wg.Add(2)
	go func() { defer wg.Done(); userErr = userCmd.Wait() }()
	go func() { defer wg.Done(); interactorErr = interactorCmd.Wait() }()

	waitDone := make(chan struct{})
	go func() { wg.Wait(); close(waitDone) }()

	select {
	case <-waitDone:
	case <-runCtx.Done():
		killProcessGroup(userCmd.Process.Pid)
		killProcessGroup(interactorCmd.Process.Pid)
		<-waitDone
	}
	elapsed := time.Since(start)

	userResult := sandbox.RunResult{TimeMs: elapsed.Milliseconds(), Stderr: userStderr.Bytes()}
	if usage, ok := childRusage(userCmd); ok {
		userResult.MemoryKB = usage
	}
	switch {
	case elapsed.Milliseconds() >= int64(req.UserTimeLimitMs):
		userResult.Status = sandbox.TimeExceeded
	case userErr == nil:
		userResult.Status = sandbox.ExitedNormally
	default:
		userResult.Status = sandbox.RuntimeFailure
	}

	result := sandbox.InteractiveResult{UserResult: userResult, InteractorStderr: interactorStderr.Bytes()}

	interactorFailed := interactorErr != nil
	userFailed := userResult.Status != sandbox.ExitedNormally
	switch {
	case interactorFailed && userFailed:
		result.Verdict = sandbox.InteractiveJudgementFailed
		result.Message = "both interactor and user program failed to run cleanly"
		return result, nil
	case interactorFailed:
		result.Verdict = sandbox.InteractiveInteractorError
		result.Message = "interactor did not exit cleanly"
		return result, nil
	case userFailed:
		result.Verdict = sandbox.InteractiveUserError
		result.Message = "user program did not exit cleanly"
		return result, nil
	}

	scoreBytes, err := os.ReadFile(scorePath)
	if err != nil {
		result.Verdict = sandbox.InteractiveInvalidInteraction
		result.Message = "interactor did not write a score file"
		return result, nil
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(string(scoreBytes)), 64)
	if err != nil {
		result.Verdict = sandbox.InteractiveInvalidInteraction
		result.Message = "interactor wrote a non-numeric score"
		return result, nil
	}
	if msg, err := os.ReadFile(messagePath); err == nil {
		result.Message = strings.TrimSpace(string(msg))
	}
	result.NormalizedScore = score
	switch {
	case score >= 1.0:
		result.Verdict = sandbox.InteractiveAccepted
	case score > 0:
		result.Verdict = sandbox.InteractivePartial
	default:
		result.Verdict = sandbox.InteractiveWrongAnswer
	}
	return result, nil
}

// CleanupTempDir removes a scratch directory the pipeline is done with.
func (a *Adapter) CleanupTempDir(ctx context.Context, dir string) error {
	if dir == "" || dir == "/" {
		return apperr.New(apperr.InvalidParams).WithMessage("refusing to clean up an empty or root path")
	}
	return os.RemoveAll(dir)
}
