// Package sandbox defines the thin interface between the judge pipeline and
// whatever actually executes untrusted code — a real, hardened Sandbox
// Runtime in production, or the reference internal/sandbox/local
// implementation for development. Grounded on the teacher's
// internal/judge/sandbox/api.go Service interface, split into the
// finer-grained operations the pipeline needs to drive each stage
// independently.
package sandbox

import "context"

// IOMode selects how a program reads input and writes output.
type IOMode string

const (
	Stdio  IOMode = "stdio"
	Fileio IOMode = "fileio"
)

// CompileRequest asks the sandbox to build a submitted source file.
type CompileRequest struct {
	SourceCode []byte
	Language   string
	WorkDir    string // scratch directory the caller owns and will clean up
}

// CompileResult reports whether compilation succeeded and, if so, where the
// resulting executable lives inside WorkDir.
type CompileResult struct {
	Success        bool
	Message        string // compiler diagnostics, populated on failure
	ExecutablePath string
}

// RunRequest asks the sandbox to execute a compiled program against one
// test's input under resource limits.
type RunRequest struct {
	ExecutablePath string
	WorkDir        string
	Mode           IOMode
	InputPath      string
	InputFileName  string // used when Mode == Fileio
	OutputFileName string // used when Mode == Fileio
	TimeLimitMs    int
	MemoryLimitKB  int
}

// ExitStatus classifies how a run ended.
type ExitStatus string

const (
	ExitedNormally  ExitStatus = "exited"
	NonZeroExit     ExitStatus = "non-zero-exit"
	TimeExceeded    ExitStatus = "time-limit-exceeded"
	MemoryExceeded  ExitStatus = "memory-limit-exceeded"
	RuntimeFailure  ExitStatus = "runtime-error"
)

// RunResult reports how the run ended, its resource usage, and where its
// stdout/output-file content landed.
type RunResult struct {
	Status     ExitStatus
	ExitCode   int
	TimeMs     int64
	MemoryKB   int64
	OutputPath string
	Stderr     []byte
}

// CheckerRequest asks the sandbox to run a checker (built-in or compiled)
// against a program's output.
type CheckerRequest struct {
	CheckerPath string // empty when UseBuiltin is set
	UseBuiltin  string // built-in checker name, e.g. "wcmp"
	WorkDir     string
	InputPath   string
	OutputPath  string
	AnswerPath  string
}

// CheckerResult is the outcome of a checker run.
type CheckerResult struct {
	NormalizedScore float64
	Message         string
}

// InteractiveRequest asks the sandbox to run a contestant program wired to
// an interactor over a bidirectional pipe.
type InteractiveRequest struct {
	UserExecutablePath       string
	InteractorExecutablePath string
	WorkDir                  string
	InputPath                string
	UserTimeLimitMs          int
	UserMemoryLimitKB        int
	InteractorTimeLimitMs    int
	InteractorMemoryLimitKB  int
}

// InteractiveVerdict classifies how an interactive judging run ended. It is
// its own vocabulary rather than a reuse of ExitStatus, since an
// interactor can fail in ways a plain program run cannot (protocol
// violations, the interactor process itself crashing) and can also award
// partial credit.
type InteractiveVerdict string

const (
	InteractiveAccepted           InteractiveVerdict = "accepted"
	InteractivePartial            InteractiveVerdict = "partial"
	InteractiveWrongAnswer        InteractiveVerdict = "wrong-answer"
	InteractiveUserError          InteractiveVerdict = "user-error"
	InteractiveInteractorError    InteractiveVerdict = "interactor-error"
	InteractiveInvalidInteraction InteractiveVerdict = "invalid-interaction"
	InteractiveJudgementFailed    InteractiveVerdict = "judgement-failed"
)

// InteractiveResult is the combined outcome of an interactive run.
type InteractiveResult struct {
	Verdict          InteractiveVerdict
	NormalizedScore  float64
	Message          string
	UserResult       RunResult
	InteractorStderr []byte
}

// Service is what the judge pipeline drives to actually execute code. A
// production deployment supplies its own hardened implementation behind
// this interface; internal/sandbox/local is a reference/dev implementation
// only.
type Service interface {
	Compile(ctx context.Context, req CompileRequest) (CompileResult, error)
	CompileChecker(ctx context.Context, req CompileRequest) (CompileResult, error)
	RunProgram(ctx context.Context, req RunRequest) (RunResult, error)
	RunChecker(ctx context.Context, req CheckerRequest) (CheckerResult, error)
	RunInteractive(ctx context.Context, req InteractiveRequest) (InteractiveResult, error)
	CleanupTempDir(ctx context.Context, dir string) error
}
