//go:build !linux

package local

import (
	"context"

	"evaljudge/internal/apperr"
	"evaljudge/internal/sandbox"
)

// Adapter on non-Linux platforms always reports the sandbox as unavailable;
// process-group signaling and rlimit enforcement are Linux-specific here,
// matching the teacher's own engine_stub.go for non-Linux builds.
type Adapter struct{}

func New() *Adapter { return &Adapter{} }

var errUnsupported = apperr.New(apperr.SandboxUnavailable).WithMessage("local sandbox adapter requires linux")

func (a *Adapter) Compile(ctx context.Context, req sandbox.CompileRequest) (sandbox.CompileResult, error) {
	return sandbox.CompileResult{}, errUnsupported
}

func (a *Adapter) CompileChecker(ctx context.Context, req sandbox.CompileRequest) (sandbox.CompileResult, error) {
	return sandbox.CompileResult{}, errUnsupported
}

func (a *Adapter) RunProgram(ctx context.Context, req sandbox.RunRequest) (sandbox.RunResult, error) {
	return sandbox.RunResult{}, errUnsupported
}

func (a *Adapter) RunChecker(ctx context.Context, req sandbox.CheckerRequest) (sandbox.CheckerResult, error) {
	return sandbox.CheckerResult{}, errUnsupported
}

func (a *Adapter) RunInteractive(ctx context.Context, req sandbox.InteractiveRequest) (sandbox.InteractiveResult, error) {
	return sandbox.InteractiveResult{}, errUnsupported
}

func (a *Adapter) CleanupTempDir(ctx context.Context, dir string) error {
	return nil
}
