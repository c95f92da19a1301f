package pipeline

import (
	"context"
	"os"
	"testing"
	"time"

	"evaljudge/internal/cache"
	"evaljudge/internal/sandbox"
)

// fakeSandbox is a scripted stand-in for a real sandbox.Service, letting
// tests drive every branch of the pipeline handlers without compiling or
// executing real programs.
type fakeSandbox struct {
	compileResult sandbox.CompileResult
	compileErr    error

	runResults []sandbox.RunResult
	runErr     error
	runCalls   int

	checkerResult sandbox.CheckerResult
	checkerErr    error
	lastChecker   sandbox.CheckerRequest

	interactiveResult sandbox.InteractiveResult
	interactiveErr    error
}

func (f *fakeSandbox) Compile(ctx context.Context, req sandbox.CompileRequest) (sandbox.CompileResult, error) {
	if f.compileErr != nil {
		return sandbox.CompileResult{}, f.compileErr
	}
	if f.compileResult.Success && f.compileResult.ExecutablePath == "" {
		path := req.WorkDir + "/a.out"
		os.WriteFile(path, []byte("binary"), 0755)
		f.compileResult.ExecutablePath = path
	}
	return f.compileResult, nil
}

func (f *fakeSandbox) CompileChecker(ctx context.Context, req sandbox.CompileRequest) (sandbox.CompileResult, error) {
	return f.Compile(ctx, req)
}

func (f *fakeSandbox) RunProgram(ctx context.Context, req sandbox.RunRequest) (sandbox.RunResult, error) {
	if f.runErr != nil {
		return sandbox.RunResult{}, f.runErr
	}
	idx := f.runCalls
	f.runCalls++
	if idx >= len(f.runResults) {
		idx = len(f.runResults) - 1
	}
	res := f.runResults[idx]
	if res.OutputPath == "" {
		res.OutputPath = req.WorkDir + "/output.txt"
		os.WriteFile(res.OutputPath, []byte("output"), 0644)
	}
	return res, nil
}

func (f *fakeSandbox) RunChecker(ctx context.Context, req sandbox.CheckerRequest) (sandbox.CheckerResult, error) {
	f.lastChecker = req
	if f.checkerErr != nil {
		return sandbox.CheckerResult{}, f.checkerErr
	}
	return f.checkerResult, nil
}

func (f *fakeSandbox) RunInteractive(ctx context.Context, req sandbox.InteractiveRequest) (sandbox.InteractiveResult, error) {
	return f.interactiveResult, f.interactiveErr
}

func (f *fakeSandbox) CleanupTempDir(ctx context.Context, dir string) error {
	return os.RemoveAll(dir)
}

func newTestDeps(t *testing.T, sb sandbox.Service) *Deps {
	t.Helper()
	cacheDir := t.TempDir()
	scratchDir := t.TempDir()
	c, err := cache.New(cacheDir, time.Hour)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	t.Cleanup(c.Close)
	return &Deps{Cache: c, Sandbox: sb, ScratchRoot: scratchDir}
}

func TestCompileSuccessCachesBinary(t *testing.T) {
	sb := &fakeSandbox{compileResult: sandbox.CompileResult{Success: true, Message: "ok"}}
	d := newTestDeps(t, sb)
	ctx := context.Background()

	handle, err := d.Cache.Put(ctx, cache.Source, "main.cpp", []byte("int main(){}"))
	if err != nil {
		t.Fatalf("put source: %v", err)
	}

	result, err := d.Compile(ctx, CompileRequest{SourceHandle: handle, Language: "cpp"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	res := result.(CompileResult)
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if !d.Cache.Has(res.BinaryHandle) {
		t.Fatalf("compiled binary was not cached")
	}
}

func TestCompileFailureReturnsMessageNoHandle(t *testing.T) {
	sb := &fakeSandbox{compileResult: sandbox.CompileResult{Success: false, Message: "syntax error"}}
	d := newTestDeps(t, sb)
	ctx := context.Background()

	handle, _ := d.Cache.Put(ctx, cache.Source, "main.cpp", []byte("broken"))
	result, err := d.Compile(ctx, CompileRequest{SourceHandle: handle, Language: "cpp"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	res := result.(CompileResult)
	if res.Success || res.BinaryHandle != "" {
		t.Fatalf("expected failed compile with no handle, got %+v", res)
	}
	if res.Message != "syntax error" {
		t.Fatalf("expected compiler message preserved, got %q", res.Message)
	}
}

func TestCompileMissingSourceHandleFails(t *testing.T) {
	sb := &fakeSandbox{}
	d := newTestDeps(t, sb)
	_, err := d.Compile(context.Background(), CompileRequest{SourceHandle: "not-a-real-handle", Language: "cpp"})
	if err == nil {
		t.Fatal("expected error for missing source artifact")
	}
}

func setupJudgeDeps(t *testing.T, sb *fakeSandbox) (*Deps, string, JudgeRequest) {
	t.Helper()
	d := newTestDeps(t, sb)
	ctx := context.Background()

	binHandle, err := d.Cache.Put(ctx, cache.Binary, "a.out", []byte("binary"))
	if err != nil {
		t.Fatalf("put binary: %v", err)
	}
	inputHandle, _ := d.Cache.Put(ctx, cache.Input, "1.in", []byte("1 2\n"))
	answerHandle, _ := d.Cache.Put(ctx, cache.Output, "1.ans", []byte("3\n"))

	req := JudgeRequest{
		BinaryHandle:  binHandle,
		Language:      "cpp",
		CheckerName:   "ncmp",
		TimeLimitMs:   1000,
		MemoryLimitKB: 65536,
		Testcases: []Testcase{
			{ID: "1", InputHandle: inputHandle, AnswerHandle: answerHandle},
		},
	}
	return d, binHandle, req
}

func TestJudgeAcceptedTestcase(t *testing.T) {
	sb := &fakeSandbox{
		runResults:    []sandbox.RunResult{{Status: sandbox.ExitedNormally, TimeMs: 10, MemoryKB: 1024}},
		checkerResult: sandbox.CheckerResult{NormalizedScore: 1.0, Message: "ok"},
	}
	d, _, req := setupJudgeDeps(t, sb)

	result, err := d.Judge(context.Background(), req)
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	res := result.(JudgeResult)
	if res.Status != VerdictAccepted {
		t.Fatalf("expected accepted, got %s", res.Status)
	}
	if len(res.Testcases) != 1 || res.Testcases[0].Status != VerdictAccepted {
		t.Fatalf("unexpected testcase verdicts: %+v", res.Testcases)
	}
	if res.Output == "" {
		t.Fatalf("expected an output handle to be ingested")
	}
	if sb.lastChecker.UseBuiltin != "ncmp" {
		t.Fatalf("expected builtin checker ncmp to be used, got %+v", sb.lastChecker)
	}
}

func TestJudgeWrongAnswer(t *testing.T) {
	sb := &fakeSandbox{
		runResults:    []sandbox.RunResult{{Status: sandbox.ExitedNormally}},
		checkerResult: sandbox.CheckerResult{NormalizedScore: 0.0, Message: "wrong"},
	}
	d, _, req := setupJudgeDeps(t, sb)

	result, err := d.Judge(context.Background(), req)
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	res := result.(JudgeResult)
	if res.Status != VerdictWrongAnswer {
		t.Fatalf("expected wrong-answer, got %s", res.Status)
	}
}

func TestJudgeAcceptedTestcaseScoresOneHundred(t *testing.T) {
	sb := &fakeSandbox{
		runResults:    []sandbox.RunResult{{Status: sandbox.ExitedNormally}},
		checkerResult: sandbox.CheckerResult{NormalizedScore: 1.0, Message: "ok"},
	}
	d, _, req := setupJudgeDeps(t, sb)

	result, err := d.Judge(context.Background(), req)
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	res := result.(JudgeResult)
	if res.Score != 100 {
		t.Fatalf("expected a single accepted testcase to score 100, got %v", res.Score)
	}
}

func TestJudgePartialCreditFromChecker(t *testing.T) {
	sb := &fakeSandbox{
		runResults:    []sandbox.RunResult{{Status: sandbox.ExitedNormally}},
		checkerResult: sandbox.CheckerResult{NormalizedScore: 0.5, Message: "half credit"},
	}
	d, _, req := setupJudgeDeps(t, sb)

	result, err := d.Judge(context.Background(), req)
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	res := result.(JudgeResult)
	if len(res.Testcases) != 1 || res.Testcases[0].Status != VerdictPartialAccepted {
		t.Fatalf("expected partial-accepted testcase, got %+v", res.Testcases)
	}
	if res.CheckerMessage != "half credit" {
		t.Fatalf("expected checker message to surface at top level, got %q", res.CheckerMessage)
	}
	if res.Score != 50 {
		t.Fatalf("expected 50%% credit scaled to score, got %v", res.Score)
	}
}

func TestJudgeTimeLimitExceededSkipsChecker(t *testing.T) {
	sb := &fakeSandbox{
		runResults: []sandbox.RunResult{{Status: sandbox.TimeExceeded}},
	}
	d, _, req := setupJudgeDeps(t, sb)

	result, err := d.Judge(context.Background(), req)
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	res := result.(JudgeResult)
	if res.Status != VerdictTimeLimitExceeded {
		t.Fatalf("expected time-limit-exceeded, got %s", res.Status)
	}
	if sb.lastChecker.UseBuiltin != "" {
		t.Fatalf("checker should not run after a timeout")
	}
}

func TestJudgeWithCompiledCheckerHandle(t *testing.T) {
	sb := &fakeSandbox{
		runResults:    []sandbox.RunResult{{Status: sandbox.ExitedNormally}},
		checkerResult: sandbox.CheckerResult{NormalizedScore: 1.0},
	}
	d, _, req := setupJudgeDeps(t, sb)

	checkerHandle, err := d.Cache.Put(context.Background(), cache.Checker, "checker", []byte("checker-binary"))
	if err != nil {
		t.Fatalf("put checker: %v", err)
	}
	req.CheckerName = checkerHandle

	_, err = d.Judge(context.Background(), req)
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if sb.lastChecker.UseBuiltin != "" {
		t.Fatalf("expected compiled checker path, got builtin %q", sb.lastChecker.UseBuiltin)
	}
	if sb.lastChecker.CheckerPath == "" {
		t.Fatalf("expected a staged checker path")
	}
}

func TestJudgeSubtaskAllOrNothingScoring(t *testing.T) {
	sb := &fakeSandbox{
		runResults: []sandbox.RunResult{
			{Status: sandbox.ExitedNormally},
			{Status: sandbox.ExitedNormally},
			{Status: sandbox.ExitedNormally},
		},
		checkerResult: sandbox.CheckerResult{NormalizedScore: 1.0},
	}
	d := newTestDeps(t, sb)
	ctx := context.Background()

	binHandle, _ := d.Cache.Put(ctx, cache.Binary, "a.out", []byte("bin"))
	mkInput := func(content string) string {
		h, _ := d.Cache.Put(ctx, cache.Input, "in", []byte(content))
		return h
	}

	req := JudgeRequest{
		BinaryHandle: binHandle,
		CheckerName:  "ncmp",
		Subtasks: []Subtask{
			{ID: "st1", Score: 40, StopOnFail: true},
			{ID: "st2", Score: 60, StopOnFail: true},
		},
		Testcases: []Testcase{
			{ID: "1", SubtaskID: "st1", InputHandle: mkInput("1"), AnswerHandle: mkInput("1")},
			{ID: "2", SubtaskID: "st2", InputHandle: mkInput("2"), AnswerHandle: mkInput("2")},
			{ID: "3", SubtaskID: "st2", InputHandle: mkInput("3"), AnswerHandle: mkInput("3")},
		},
	}

	// second testcase (st2) fails; st2's third testcase should be skipped
	// because StopOnFail is set, but st1 must still be scored.
	sb.runResults[1] = sandbox.RunResult{Status: sandbox.RuntimeFailure}

	result, err := d.Judge(ctx, req)
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	res := result.(JudgeResult)
	if res.Score != 40 {
		t.Fatalf("expected only st1's 40 points awarded, got %v (testcases=%+v)", res.Score, res.Testcases)
	}
	if len(res.Testcases) != 2 {
		t.Fatalf("expected st2's third testcase to be skipped, got %d testcases", len(res.Testcases))
	}
}

func TestRunProducesOutputHandle(t *testing.T) {
	sb := &fakeSandbox{
		runResults: []sandbox.RunResult{{Status: sandbox.ExitedNormally, TimeMs: 5, MemoryKB: 512}},
	}
	d := newTestDeps(t, sb)
	ctx := context.Background()

	binHandle, _ := d.Cache.Put(ctx, cache.Binary, "a.out", []byte("bin"))
	inputHandle, _ := d.Cache.Put(ctx, cache.Input, "in.txt", []byte("hello"))

	result, err := d.Run(ctx, RunRequest{BinaryHandle: binHandle, InputHandle: inputHandle, TimeLimitMs: 1000, MemoryLimitKB: 65536})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := result.(RunResult)
	if res.Status != RunExitedNormally {
		t.Fatalf("expected exited-normally status, got %s", res.Status)
	}
	if res.OutputHandle == "" || !d.Cache.Has(res.OutputHandle) {
		t.Fatalf("expected a cached output handle")
	}
}

func TestRunReportsNonZeroExit(t *testing.T) {
	sb := &fakeSandbox{
		runResults: []sandbox.RunResult{{Status: sandbox.NonZeroExit, ExitCode: 1}},
	}
	d := newTestDeps(t, sb)
	ctx := context.Background()

	binHandle, _ := d.Cache.Put(ctx, cache.Binary, "a.out", []byte("bin"))
	inputHandle, _ := d.Cache.Put(ctx, cache.Input, "in.txt", []byte("hello"))

	result, err := d.Run(ctx, RunRequest{BinaryHandle: binHandle, InputHandle: inputHandle, TimeLimitMs: 1000, MemoryLimitKB: 65536})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := result.(RunResult)
	if res.Status != RunNonZeroExit {
		t.Fatalf("expected non-zero-exit status, got %s", res.Status)
	}
}

func TestInteractiveMapsJudgementFailed(t *testing.T) {
	sb := &fakeSandbox{
		interactiveResult: sandbox.InteractiveResult{Verdict: sandbox.InteractiveJudgementFailed, Message: "interactor crashed"},
	}
	d := newTestDeps(t, sb)
	ctx := context.Background()

	userHandle, _ := d.Cache.Put(ctx, cache.Binary, "user", []byte("bin"))
	interactorHandle, _ := d.Cache.Put(ctx, cache.Binary, "interactor", []byte("bin"))
	inputHandle, _ := d.Cache.Put(ctx, cache.Input, "in", []byte("data"))

	result, err := d.Interactive(ctx, InteractiveRequest{
		UserBinaryHandle:       userHandle,
		InteractorBinaryHandle: interactorHandle,
		InputHandle:            inputHandle,
		UserTimeLimitMs:        1000,
		UserMemoryLimitKB:      65536,
		InteractorTimeLimitMs:  1000,
		InteractorMemoryLimitKB: 65536,
	})
	if err != nil {
		t.Fatalf("Interactive: %v", err)
	}
	res := result.(InteractiveResult)
	if res.Verdict != VerdictJudgementFailed {
		t.Fatalf("expected judgement-failed, got %s", res.Verdict)
	}
}

func TestInteractiveAcceptedOnHighScore(t *testing.T) {
	sb := &fakeSandbox{
		interactiveResult: sandbox.InteractiveResult{Verdict: sandbox.InteractiveAccepted, NormalizedScore: 1.0},
	}
	d := newTestDeps(t, sb)
	ctx := context.Background()

	userHandle, _ := d.Cache.Put(ctx, cache.Binary, "user", []byte("bin"))
	interactorHandle, _ := d.Cache.Put(ctx, cache.Binary, "interactor", []byte("bin"))
	inputHandle, _ := d.Cache.Put(ctx, cache.Input, "in", []byte("data"))

	result, err := d.Interactive(ctx, InteractiveRequest{
		UserBinaryHandle:       userHandle,
		InteractorBinaryHandle: interactorHandle,
		InputHandle:            inputHandle,
	})
	if err != nil {
		t.Fatalf("Interactive: %v", err)
	}
	res := result.(InteractiveResult)
	if res.Verdict != VerdictAccepted {
		t.Fatalf("expected accepted, got %s", res.Verdict)
	}
}

func TestInteractiveReportsPartialCredit(t *testing.T) {
	sb := &fakeSandbox{
		interactiveResult: sandbox.InteractiveResult{Verdict: sandbox.InteractivePartial, NormalizedScore: 0.5},
	}
	d := newTestDeps(t, sb)
	ctx := context.Background()

	userHandle, _ := d.Cache.Put(ctx, cache.Binary, "user", []byte("bin"))
	interactorHandle, _ := d.Cache.Put(ctx, cache.Binary, "interactor", []byte("bin"))

	result, err := d.Interactive(ctx, InteractiveRequest{
		UserBinaryHandle:       userHandle,
		InteractorBinaryHandle: interactorHandle,
	})
	if err != nil {
		t.Fatalf("Interactive: %v", err)
	}
	res := result.(InteractiveResult)
	if res.Verdict != InteractivePartial {
		t.Fatalf("expected partial, got %s", res.Verdict)
	}
}

func TestWrongPayloadTypeIsRejected(t *testing.T) {
	d := newTestDeps(t, &fakeSandbox{})
	if _, err := d.Compile(context.Background(), "not-a-request"); err == nil {
		t.Fatal("expected error for wrong payload type")
	}
}
