package apperr

// Code identifies the class of failure that produced an Error.
type Code int

// Code ranges:
// 1000-1099: generic/client errors
// 1100-1199: cache errors
// 1200-1299: queue/scheduler errors
// 1300-1399: pipeline/handler errors
// 1400-1499: sandbox errors
// 1500-1599: auth errors
const (
	Success Code = 1000

	InvalidParams  Code = 1001
	NotFound       Code = 1002
	Timeout        Code = 1003
	InternalError  Code = 1004
	Unavailable    Code = 1005
	ValidationFail Code = 1006

	CacheMiss     Code = 1100
	CacheExpired  Code = 1101
	CacheWriteErr Code = 1102
	CacheFull     Code = 1103

	TaskNotFound     Code = 1200
	QueueFull        Code = 1201
	UnknownTaskType  Code = 1202
	SchedulerStopped Code = 1203

	CompileError        Code = 1300
	RuntimeError        Code = 1301
	TimeLimitExceeded   Code = 1302
	MemoryLimitExceeded Code = 1303
	CheckerNotFound     Code = 1304
	JudgeSystemError    Code = 1305

	SandboxUnavailable Code = 1400
	SandboxFailed      Code = 1401

	Unauthorized Code = 1500
	Forbidden    Code = 1501
)

var messages = map[Code]string{
	Success:        "success",
	InvalidParams:  "invalid parameters",
	NotFound:       "resource not found",
	Timeout:        "operation timed out",
	InternalError:  "internal server error",
	Unavailable:    "service unavailable",
	ValidationFail: "validation failed",

	CacheMiss:     "artifact not found in cache",
	CacheExpired:  "artifact handle has expired",
	CacheWriteErr: "failed to write artifact to cache",
	CacheFull:     "artifact cache is full",

	TaskNotFound:     "task not found",
	QueueFull:        "task queue is full",
	UnknownTaskType:  "unrecognized task type",
	SchedulerStopped: "scheduler is shutting down",

	CompileError:        "compilation failed",
	RuntimeError:        "runtime error",
	TimeLimitExceeded:   "time limit exceeded",
	MemoryLimitExceeded: "memory limit exceeded",
	CheckerNotFound:     "checker not found",
	JudgeSystemError:    "judge system error",

	SandboxUnavailable: "sandbox runtime unavailable",
	SandboxFailed:      "sandbox execution failed",

	Unauthorized: "unauthorized",
	Forbidden:    "forbidden",
}

// Message returns the default human-readable message for the code.
func (c Code) Message() string {
	if msg, ok := messages[c]; ok {
		return msg
	}
	return "unknown error"
}

// HTTPStatus maps a code to the HTTP status the API layer should send.
func (c Code) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Unauthorized:
		return 401
	case c == Forbidden:
		return 403
	case c == NotFound, c == TaskNotFound, c == CacheMiss, c == CheckerNotFound:
		return 404
	case c == CacheExpired:
		return 410
	case c == InvalidParams, c == ValidationFail, c == UnknownTaskType:
		return 400
	case c == Timeout:
		return 408
	case c == QueueFull, c == CacheFull:
		return 429
	case c == Unavailable, c == SandboxUnavailable, c == SchedulerStopped:
		return 503
	default:
		return 500
	}
}
