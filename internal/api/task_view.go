package api

import (
	"time"

	"evaljudge/internal/scheduler"
)

// taskView is the wire shape for GET /task/:id: the task's lifecycle plus
// its result, without echoing back the internal request payload.
type taskView struct {
	TaskID    string      `json:"taskId"`
	Type      string      `json:"type"`
	Status    string      `json:"status"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	StartedAt *time.Time  `json:"startedAt,omitempty"`
	EndedAt   *time.Time  `json:"endedAt,omitempty"`
}

func taskSnapshotJSON(snap scheduler.Snapshot) taskView {
	v := taskView{
		TaskID:    snap.ID,
		Type:      snap.Type,
		Status:    string(snap.Status),
		Result:    snap.Result,
		Error:     snap.Err,
		CreatedAt: snap.CreatedAt,
	}
	if !snap.StartedAt.IsZero() {
		t := snap.StartedAt
		v.StartedAt = &t
	}
	if !snap.EndedAt.IsZero() {
		t := snap.EndedAt
		v.EndedAt = &t
	}
	return v
}
