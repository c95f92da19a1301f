package api

import "evaljudge/internal/pipeline"

// uploadResponse is returned by POST /upload.
type uploadResponse struct {
	CacheID   string `json:"cacheId"`
	FileName  string `json:"fileName"`
	Type      string `json:"type"`
	Size      int64  `json:"size"`
	ExpiresIn int    `json:"expiresIn"`
}

// taskAcceptedResponse is returned by every task-submission endpoint.
type taskAcceptedResponse struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
}

type compileWireRequest struct {
	SourceCacheID string `json:"sourceCacheId" binding:"required"`
	Language      string `json:"language"`
	Priority      int    `json:"priority"`
}

func (r compileWireRequest) toPipeline() pipeline.CompileRequest {
	lang := r.Language
	if lang == "" {
		lang = "cpp"
	}
	return pipeline.CompileRequest{SourceHandle: r.SourceCacheID, Language: lang}
}

type testcaseWire struct {
	ID           string `json:"id"`
	InputCacheID string `json:"inputCacheId"`
	AnswerCacheID string `json:"answerCacheId"`
	SubtaskID    string `json:"subtaskId"`
}

type subtaskWire struct {
	ID         string  `json:"id"`
	Score      float64 `json:"score"`
	StopOnFail bool    `json:"stopOnFail"`
}

type judgeWireRequest struct {
	BinaryCacheID  string         `json:"binaryCacheId" binding:"required"`
	InputCacheID   string         `json:"inputCacheId"`
	OutputCacheID  string         `json:"outputCacheId"`
	CheckerName    string         `json:"checkerName" binding:"required"`
	TimeLimit      int            `json:"timeLimit"`
	MemoryLimit    int            `json:"memoryLimit"`
	IsFileInput    bool           `json:"isFileInput"`
	InputFileName  string         `json:"inputFileName"`
	OutputFileName string         `json:"outputFileName"`
	Testcases      []testcaseWire `json:"testcases"`
	Subtasks       []subtaskWire  `json:"subtasks"`
	Priority       int            `json:"priority"`
}

func (r judgeWireRequest) toPipeline() pipeline.JudgeRequest {
	timeLimit := r.TimeLimit
	if timeLimit == 0 {
		timeLimit = 1000
	}
	memLimit := r.MemoryLimit
	if memLimit == 0 {
		memLimit = 131072
	}
	inputFileName := r.InputFileName
	if inputFileName == "" {
		inputFileName = "input.txt"
	}
	outputFileName := r.OutputFileName
	if outputFileName == "" {
		outputFileName = "output.txt"
	}
	mode := "stdio"
	if r.IsFileInput {
		mode = "fileio"
	}

	testcases := make([]pipeline.Testcase, 0, len(r.Testcases))
	if len(r.Testcases) == 0 {
		// Single-test shape: exactly one implicit testcase, matching CORE
		// SPEC's documented judge/run behavior when no subtasks are given.
		testcases = append(testcases, pipeline.Testcase{ID: "default", InputHandle: r.InputCacheID, AnswerHandle: r.OutputCacheID})
	} else {
		for _, tc := range r.Testcases {
			testcases = append(testcases, pipeline.Testcase{ID: tc.ID, InputHandle: tc.InputCacheID, AnswerHandle: tc.AnswerCacheID, SubtaskID: tc.SubtaskID})
		}
	}

	subtasks := make([]pipeline.Subtask, 0, len(r.Subtasks))
	for _, st := range r.Subtasks {
		subtasks = append(subtasks, pipeline.Subtask{ID: st.ID, Score: st.Score, StopOnFail: st.StopOnFail})
	}

	return pipeline.JudgeRequest{
		BinaryHandle:  r.BinaryCacheID,
		CheckerName:   r.CheckerName,
		IO:            pipeline.IOSpec{Mode: mode, InputFileName: inputFileName, OutputFileName: outputFileName},
		TimeLimitMs:   timeLimit,
		MemoryLimitKB: memLimit,
		Testcases:     testcases,
		Subtasks:      subtasks,
	}
}

type runWireRequest struct {
	BinaryCacheID  string `json:"binaryCacheId" binding:"required"`
	InputCacheID   string `json:"inputCacheId" binding:"required"`
	TimeLimit      int    `json:"timeLimit"`
	MemoryLimit    int    `json:"memoryLimit"`
	IsFileInput    bool   `json:"isFileInput"`
	InputFileName  string `json:"inputFileName"`
	OutputFileName string `json:"outputFileName"`
	Priority       int    `json:"priority"`
}

func (r runWireRequest) toPipeline() pipeline.RunRequest {
	timeLimit := r.TimeLimit
	if timeLimit == 0 {
		timeLimit = 1000
	}
	memLimit := r.MemoryLimit
	if memLimit == 0 {
		memLimit = 131072
	}
	inputFileName := r.InputFileName
	if inputFileName == "" {
		inputFileName = "input.txt"
	}
	outputFileName := r.OutputFileName
	if outputFileName == "" {
		outputFileName = "output.txt"
	}
	mode := "stdio"
	if r.IsFileInput {
		mode = "fileio"
	}
	return pipeline.RunRequest{
		BinaryHandle:  r.BinaryCacheID,
		InputHandle:   r.InputCacheID,
		IO:            pipeline.IOSpec{Mode: mode, InputFileName: inputFileName, OutputFileName: outputFileName},
		TimeLimitMs:   timeLimit,
		MemoryLimitKB: memLimit,
	}
}

type interactiveWireRequest struct {
	UserBinaryCacheID       string `json:"userBinaryCacheId" binding:"required"`
	InteractorBinaryCacheID string `json:"interactorBinaryCacheId" binding:"required"`
	TimeLimit               int    `json:"timeLimit"`
	MemoryLimit             int    `json:"memoryLimit"`
	InteractorTimeLimit     int    `json:"interactorTimeLimit"`
	InteractorMemoryLimit   int    `json:"interactorMemoryLimit"`
	InputCacheID            string `json:"inputCacheId"`
	Priority                int    `json:"priority"`
}

func (r interactiveWireRequest) toPipeline() pipeline.InteractiveRequest {
	timeLimit := r.TimeLimit
	if timeLimit == 0 {
		timeLimit = 1000
	}
	memLimit := r.MemoryLimit
	if memLimit == 0 {
		memLimit = 131072
	}
	interactorTimeLimit := r.InteractorTimeLimit
	if interactorTimeLimit == 0 {
		interactorTimeLimit = 5000
	}
	interactorMemLimit := r.InteractorMemoryLimit
	if interactorMemLimit == 0 {
		interactorMemLimit = memLimit
	}
	return pipeline.InteractiveRequest{
		UserBinaryHandle:        r.UserBinaryCacheID,
		InteractorBinaryHandle:  r.InteractorBinaryCacheID,
		InputHandle:             r.InputCacheID,
		UserTimeLimitMs:         timeLimit,
		UserMemoryLimitKB:       memLimit,
		InteractorTimeLimitMs:   interactorTimeLimit,
		InteractorMemoryLimitKB: interactorMemLimit,
	}
}
