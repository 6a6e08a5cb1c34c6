package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/resumeflow/internal/pipeline"
)

const (
	TypeResumeProcess = "resume:process"
	TypeResumeAnalyze = "resume:analyze"
	TypeResumeMatch   = "resume:match"
)

var taskTypes = map[pipeline.TaskKind]string{
	pipeline.TaskProcess: TypeResumeProcess,
	pipeline.TaskAnalyze: TypeResumeAnalyze,
	pipeline.TaskMatch:   TypeResumeMatch,
}

// TaskTypes lists every task type the worker must handle.
func TaskTypes() []string {
	return []string{TypeResumeProcess, TypeResumeAnalyze, TypeResumeMatch}
}

// NewTask wraps a pipeline task for the queue. The payload is the task
// itself, lock token included.
func NewTask(t pipeline.Task) (*asynq.Task, error) {
	typ, ok := taskTypes[t.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown task kind %q", t.Kind)
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(typ, data), nil
}

// ParseTask is the inverse of NewTask.
func ParseTask(t *asynq.Task) (pipeline.Task, error) {
	var out pipeline.Task
	if err := json.Unmarshal(t.Payload(), &out); err != nil {
		return out, fmt.Errorf("unmarshal payload: %w", err)
	}
	if typ, ok := taskTypes[out.Kind]; !ok || typ != t.Type() {
		return out, fmt.Errorf("payload kind %q does not match task type %s", out.Kind, t.Type())
	}
	return out, nil
}
