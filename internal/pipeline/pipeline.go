package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"evaljudge/internal/apperr"
	"evaljudge/internal/cache"
	"evaljudge/internal/ids"
	"evaljudge/internal/logging"
	"evaljudge/internal/sandbox"

	"go.uber.org/zap"
)

// Deps are the dependencies every pipeline handler needs: the artifact
// cache to resolve/produce handles, the sandbox to actually run code, and a
// scratch root each handler stages a private, cleaned-up-on-exit directory
// under.
type Deps struct {
	Cache       *cache.Cache
	Sandbox     sandbox.Service
	ScratchRoot string
}

// scratchDir creates a private staging directory for one task and returns
// it plus a cleanup func the caller must defer. Cleanup happens even on
// panic, since defer still runs during a panicking goroutine's unwind.
func (d *Deps) scratchDir(prefix string) (string, func(), error) {
	dir, err := os.MkdirTemp(d.ScratchRoot, prefix+"-")
	if err != nil {
		return "", nil, apperr.Wrapf(err, apperr.JudgeSystemError, "create scratch dir")
	}
	cleanup := func() {
		_ = d.Sandbox.CleanupTempDir(context.Background(), dir)
	}
	return dir, cleanup, nil
}

func (d *Deps) readArtifact(handle string) ([]byte, cache.Metadata, error) {
	ref, ok := d.Cache.Get(handle)
	if !ok {
		return nil, cache.Metadata{}, apperr.Newf(apperr.CacheMiss, "artifact %s not found or expired", handle)
	}
	data, err := os.ReadFile(ref.FilePath)
	if err != nil {
		return nil, cache.Metadata{}, apperr.Wrapf(err, apperr.JudgeSystemError, "read artifact %s", handle)
	}
	return data, ref.Metadata, nil
}

// Compile handles a "compile" task: builds source into a binary and caches it.
func (d *Deps) Compile(ctx context.Context, data interface{}) (interface{}, error) {
	req, ok := data.(CompileRequest)
	if !ok {
		return nil, apperr.New(apperr.InvalidParams).WithMessage("compile: unexpected payload type")
	}

	source, _, err := d.readArtifact(req.SourceHandle)
	if err != nil {
		return nil, err
	}

	dir, cleanup, err := d.scratchDir("compile")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	res, err := d.Sandbox.Compile(ctx, sandbox.CompileRequest{SourceCode: source, Language: req.Language, WorkDir: dir})
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return CompileResult{Success: false, Message: res.Message}, nil
	}

	binary, err := os.ReadFile(res.ExecutablePath)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.JudgeSystemError, "read compiled binary")
	}
	handle, err := d.Cache.Put(ctx, cache.Binary, filepath.Base(res.ExecutablePath), binary)
	if err != nil {
		return nil, err
	}
	return CompileResult{Success: true, Message: res.Message, BinaryHandle: handle}, nil
}

// CompileChecker handles a "compile-checker" task.
func (d *Deps) CompileChecker(ctx context.Context, data interface{}) (interface{}, error) {
	req, ok := data.(CompileCheckerRequest)
	if !ok {
		return nil, apperr.New(apperr.InvalidParams).WithMessage("compile-checker: unexpected payload type")
	}

	source, _, err := d.readArtifact(req.SourceHandle)
	if err != nil {
		return nil, err
	}

	dir, cleanup, err := d.scratchDir("compile-checker")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	res, err := d.Sandbox.CompileChecker(ctx, sandbox.CompileRequest{SourceCode: source, Language: req.Language, WorkDir: dir})
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return CompileCheckerResult{Success: false, Message: res.Message}, nil
	}

	binary, err := os.ReadFile(res.ExecutablePath)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.JudgeSystemError, "read compiled checker")
	}
	handle, err := d.Cache.Put(ctx, cache.Checker, filepath.Base(res.ExecutablePath), binary)
	if err != nil {
		return nil, err
	}
	return CompileCheckerResult{Success: true, Message: res.Message, CheckerHandle: handle}, nil
}

// resolveChecker implements CORE SPEC §4.4.3's dual-mode checker-name
// resolution: a UUID-shaped name is a compiled checker handle in the
// cache, anything else must be a built-in comparator name.
func (d *Deps) resolveChecker(name string) (checkerPath, builtinName string, cleanup func(), err error) {
	if !ids.IsHandle(name) {
		return "", name, func() {}, nil
	}
	data, meta, err := d.readArtifact(name)
	if err != nil {
		return "", "", nil, err
	}
	dir, err := os.MkdirTemp(d.ScratchRoot, "checker-")
	if err != nil {
		return "", "", nil, apperr.Wrapf(err, apperr.JudgeSystemError, "stage checker binary")
	}
	path := filepath.Join(dir, "checker")
	if meta.FileName != "" {
		path = filepath.Join(dir, meta.FileName)
	}
	if err := os.WriteFile(path, data, 0755); err != nil {
		os.RemoveAll(dir)
		return "", "", nil, apperr.Wrapf(err, apperr.JudgeSystemError, "write checker binary")
	}
	return path, "", func() { os.RemoveAll(dir) }, nil
}

func stageBinary(dir string, data []byte) (string, error) {
	path := filepath.Join(dir, "program")
	if err := os.WriteFile(path, data, 0755); err != nil {
		return "", apperr.Wrapf(err, apperr.JudgeSystemError, "stage binary")
	}
	return path, nil
}

// Judge handles a "judge" task: runs a binary over every testcase, scores
// each with the resolved checker, and aggregates subtask scores.
func (d *Deps) Judge(ctx context.Context, data interface{}) (interface{}, error) {
	req, ok := data.(JudgeRequest)
	if !ok {
		return nil, apperr.New(apperr.InvalidParams).WithMessage("judge: unexpected payload type")
	}
	if len(req.Testcases) == 0 {
		return nil, apperr.New(apperr.ValidationFail).WithDetail("field", "testcases")
	}

	binary, _, err := d.readArtifact(req.BinaryHandle)
	if err != nil {
		return nil, err
	}

	checkerPath, builtinName, checkerCleanup, err := d.resolveChecker(req.CheckerName)
	if err != nil {
		return nil, err
	}
	defer checkerCleanup()

	subtaskIndex := prepareSubtasks(req.Subtasks, req.Testcases)

	dir, cleanup, err := d.scratchDir("judge")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	binPath, err := stageBinary(dir, binary)
	if err != nil {
		return nil, err
	}

	verdicts := make([]TestcaseVerdict, 0, len(req.Testcases))
	skippedSubtasks := make(map[string]bool)

	for _, tc := range req.Testcases {
		if tc.SubtaskID != "" && skippedSubtasks[tc.SubtaskID] {
			continue
		}
		v, err := d.judgeOne(ctx, req, tc, binPath, checkerPath, builtinName, dir)
		if err != nil {
			return nil, err
		}
		verdicts = append(verdicts, v)
		updateSubtaskState(subtaskIndex, tc.SubtaskID, v.Status == VerdictAccepted)
		if v.Status != VerdictAccepted {
			if st, ok := subtaskIndex[tc.SubtaskID]; ok && st.spec.StopOnFail {
				skippedSubtasks[tc.SubtaskID] = true
			}
		}
	}

	score := computeTotalScore(subtaskIndex, verdicts, req.Testcases)
	overall := VerdictAccepted
	representative := 0
	for i, v := range verdicts {
		if v.Status != VerdictAccepted {
			overall = v.Status
			representative = i
			break
		}
	}

	normalized := 0.0
	if len(verdicts) > 0 {
		sum := 0.0
		for _, v := range verdicts {
			sum += v.NormalizedScore
		}
		normalized = sum / float64(len(verdicts))
	}

	result := JudgeResult{Status: overall, Score: score, NormalizedScore: normalized, Testcases: verdicts}
	if len(verdicts) > 0 {
		result.Output = verdicts[representative].OutputHandle
		result.CheckerMessage = verdicts[representative].Message
	}
	return result, nil
}

func (d *Deps) judgeOne(ctx context.Context, req JudgeRequest, tc Testcase, binPath, checkerPath, builtinName, workDir string) (TestcaseVerdict, error) {
	input, _, err := d.readArtifact(tc.InputHandle)
	if err != nil {
		return TestcaseVerdict{}, err
	}
	answer, _, err := d.readArtifact(tc.AnswerHandle)
	if err != nil {
		return TestcaseVerdict{}, err
	}

	testDir := filepath.Join(workDir, tc.ID)
	if err := os.MkdirAll(testDir, 0755); err != nil {
		return TestcaseVerdict{}, apperr.Wrapf(err, apperr.JudgeSystemError, "create testcase dir")
	}
	inputPath := filepath.Join(testDir, "input.txt")
	answerPath := filepath.Join(testDir, "answer.txt")
	if err := os.WriteFile(inputPath, input, 0644); err != nil {
		return TestcaseVerdict{}, apperr.Wrapf(err, apperr.JudgeSystemError, "write input")
	}
	if err := os.WriteFile(answerPath, answer, 0644); err != nil {
		return TestcaseVerdict{}, apperr.Wrapf(err, apperr.JudgeSystemError, "write answer")
	}

	mode := sandbox.Stdio
	if req.IO.Mode == "fileio" {
		mode = sandbox.Fileio
	}
	runRes, err := d.Sandbox.RunProgram(ctx, sandbox.RunRequest{
		ExecutablePath: binPath,
		WorkDir:        testDir,
		Mode:           mode,
		InputPath:      inputPath,
		InputFileName:  req.IO.InputFileName,
		OutputFileName: req.IO.OutputFileName,
		TimeLimitMs:    req.TimeLimitMs,
		MemoryLimitKB:  req.MemoryLimitKB,
	})
	if err != nil {
		return TestcaseVerdict{}, err
	}

	v := TestcaseVerdict{TestcaseID: tc.ID, TimeMs: runRes.TimeMs, MemoryKB: runRes.MemoryKB}
	if status, ok := mapRunStatus(runRes.Status); ok {
		v.Status = status
		if status != VerdictAccepted {
			v.Message = string(runRes.Status)
			return v, nil
		}
	}

	if outBytes, readErr := os.ReadFile(runRes.OutputPath); readErr == nil {
		if handle, putErr := d.Cache.Put(ctx, cache.Output, "output.txt", outBytes); putErr == nil {
			v.OutputHandle = handle
		}
	}

	checkRes, err := d.Sandbox.RunChecker(ctx, sandbox.CheckerRequest{
		CheckerPath: checkerPath,
		UseBuiltin:  builtinName,
		WorkDir:     testDir,
		InputPath:   inputPath,
		OutputPath:  runRes.OutputPath,
		AnswerPath:  answerPath,
	})
	if err != nil {
		return TestcaseVerdict{}, err
	}
	v.NormalizedScore = checkRes.NormalizedScore
	v.Message = checkRes.Message
	switch {
	case checkRes.NormalizedScore >= 1.0:
		v.Status = VerdictAccepted
	case checkRes.NormalizedScore > 0:
		v.Status = VerdictPartialAccepted
	default:
		v.Status = VerdictWrongAnswer
	}
	return v, nil
}

func mapRunStatus(status sandbox.ExitStatus) (string, bool) {
	switch status {
	case sandbox.ExitedNormally:
		return VerdictAccepted, true
	case sandbox.TimeExceeded:
		return VerdictTimeLimitExceeded, true
	case sandbox.MemoryExceeded:
		return VerdictMemoryLimitExceeded, true
	case sandbox.NonZeroExit, sandbox.RuntimeFailure:
		return VerdictRuntimeError, true
	default:
		return "", false
	}
}

// mapRunExitStatus is the "run" task's own status mapping: unlike judging,
// a plain run has no checker, so a clean exit is reported as
// "exited-normally" and a non-zero exit as "non-zero-exit" rather than
// folded into the judge taxonomy's "accepted"/"runtime-error".
func mapRunExitStatus(status sandbox.ExitStatus) string {
	switch status {
	case sandbox.ExitedNormally:
		return RunExitedNormally
	case sandbox.NonZeroExit:
		return RunNonZeroExit
	case sandbox.TimeExceeded:
		return VerdictTimeLimitExceeded
	case sandbox.MemoryExceeded:
		return VerdictMemoryLimitExceeded
	default:
		return VerdictRuntimeError
	}
}

// Run handles a "run" task: execute a binary against one input, no scoring.
func (d *Deps) Run(ctx context.Context, data interface{}) (interface{}, error) {
	req, ok := data.(RunRequest)
	if !ok {
		return nil, apperr.New(apperr.InvalidParams).WithMessage("run: unexpected payload type")
	}

	binary, _, err := d.readArtifact(req.BinaryHandle)
	if err != nil {
		return nil, err
	}
	input, _, err := d.readArtifact(req.InputHandle)
	if err != nil {
		return nil, err
	}

	dir, cleanup, err := d.scratchDir("run")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	binPath, err := stageBinary(dir, binary)
	if err != nil {
		return nil, err
	}
	inputPath := filepath.Join(dir, "input.txt")
	if err := os.WriteFile(inputPath, input, 0644); err != nil {
		return nil, apperr.Wrapf(err, apperr.JudgeSystemError, "write input")
	}

	mode := sandbox.Stdio
	if req.IO.Mode == "fileio" {
		mode = sandbox.Fileio
	}
	res, err := d.Sandbox.RunProgram(ctx, sandbox.RunRequest{
		ExecutablePath: binPath,
		WorkDir:        dir,
		Mode:           mode,
		InputPath:      inputPath,
		InputFileName:  req.IO.InputFileName,
		OutputFileName: req.IO.OutputFileName,
		TimeLimitMs:    req.TimeLimitMs,
		MemoryLimitKB:  req.MemoryLimitKB,
	})
	if err != nil {
		return nil, err
	}

	out := RunResult{TimeMs: res.TimeMs, MemoryKB: res.MemoryKB, Stderr: string(res.Stderr), Status: mapRunExitStatus(res.Status)}

	if outBytes, readErr := os.ReadFile(res.OutputPath); readErr == nil {
		handle, err := d.Cache.Put(ctx, cache.Output, "stdout.txt", outBytes)
		if err == nil {
			out.OutputHandle = handle
		}
	}
	return out, nil
}

// Interactive handles an "interactive" task.
func (d *Deps) Interactive(ctx context.Context, data interface{}) (interface{}, error) {
	req, ok := data.(InteractiveRequest)
	if !ok {
		return nil, apperr.New(apperr.InvalidParams).WithMessage("interactive: unexpected payload type")
	}

	userBinary, _, err := d.readArtifact(req.UserBinaryHandle)
	if err != nil {
		return nil, err
	}
	interactorBinary, _, err := d.readArtifact(req.InteractorBinaryHandle)
	if err != nil {
		return nil, err
	}

	dir, cleanup, err := d.scratchDir("interactive")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	userPath := filepath.Join(dir, "user")
	interactorPath := filepath.Join(dir, "interactor")
	if err := os.WriteFile(userPath, userBinary, 0755); err != nil {
		return nil, apperr.Wrapf(err, apperr.JudgeSystemError, "stage user binary")
	}
	if err := os.WriteFile(interactorPath, interactorBinary, 0755); err != nil {
		return nil, apperr.Wrapf(err, apperr.JudgeSystemError, "stage interactor binary")
	}

	// inputCacheId is optional: some interactors need no seed input beyond
	// what they generate themselves during the exchange.
	var inputPath string
	if req.InputHandle != "" {
		input, _, err := d.readArtifact(req.InputHandle)
		if err != nil {
			return nil, err
		}
		inputPath = filepath.Join(dir, "input.txt")
		if err := os.WriteFile(inputPath, input, 0644); err != nil {
			return nil, apperr.Wrapf(err, apperr.JudgeSystemError, "write input")
		}
	}

	res, err := d.Sandbox.RunInteractive(ctx, sandbox.InteractiveRequest{
		UserExecutablePath:       userPath,
		InteractorExecutablePath: interactorPath,
		WorkDir:                  dir,
		InputPath:                inputPath,
		UserTimeLimitMs:          req.UserTimeLimitMs,
		UserMemoryLimitKB:        req.UserMemoryLimitKB,
		InteractorTimeLimitMs:    req.InteractorTimeLimitMs,
		InteractorMemoryLimitKB:  req.InteractorMemoryLimitKB,
	})
	if err != nil {
		return nil, err
	}

	out := InteractiveResult{
		NormalizedScore: res.NormalizedScore,
		Message:         res.Message,
		UserTimeMs:      res.UserResult.TimeMs,
		UserMemoryKB:    res.UserResult.MemoryKB,
	}
	switch res.Verdict {
	case sandbox.InteractiveAccepted:
		out.Verdict = VerdictAccepted
	case sandbox.InteractivePartial:
		out.Verdict = InteractivePartial
	case sandbox.InteractiveUserError:
		out.Verdict = InteractiveUserError
	case sandbox.InteractiveInteractorError:
		out.Verdict = InteractiveInteractorError
	case sandbox.InteractiveInvalidInteraction:
		out.Verdict = InteractiveInvalidInteraction
	case sandbox.InteractiveJudgementFailed:
		out.Verdict = VerdictJudgementFailed
	default:
		out.Verdict = VerdictWrongAnswer
	}

	logging.Info(ctx, "interactive task finished", zap.String("verdict", out.Verdict))
	return out, nil
}

// --- subtask-aware scoring, grounded on
// judge_service/internal/sandbox/worker.go's subtaskState/prepareSubtasks/
// updateSubtaskState/computeTotalScore ---

type subtaskState struct {
	spec     Subtask
	expected int
	executed int
	failed   bool
}

func prepareSubtasks(subtasks []Subtask, testcases []Testcase) map[string]*subtaskState {
	index := make(map[string]*subtaskState, len(subtasks))
	for _, st := range subtasks {
		index[st.ID] = &subtaskState{spec: st}
	}
	for _, tc := range testcases {
		if tc.SubtaskID == "" {
			continue
		}
		if st, ok := index[tc.SubtaskID]; ok {
			st.expected++
		}
	}
	return index
}

func updateSubtaskState(index map[string]*subtaskState, subtaskID string, accepted bool) {
	if subtaskID == "" {
		return
	}
	st, ok := index[subtaskID]
	if !ok {
		return
	}
	st.executed++
	if !accepted {
		st.failed = true
	}
}

func computeTotalScore(index map[string]*subtaskState, verdicts []TestcaseVerdict, testcases []Testcase) float64 {
	if len(index) == 0 {
		if len(verdicts) == 0 {
			return 0
		}
		sum := 0.0
		for _, v := range verdicts {
			sum += v.NormalizedScore
		}
		return (sum / float64(len(verdicts))) * 100
	}
	total := 0.0
	for _, st := range index {
		if st.expected == 0 || st.executed < st.expected || st.failed {
			continue
		}
		total += st.spec.Score
	}
	return total
}
