package queue

import (
	"fmt"
	"sort"

	"github.com/hibiken/asynq"
)

// HandlersRegistry maps task types onto handlers for the worker's server.
type HandlersRegistry struct {
	mux   *asynq.ServeMux
	types map[string]bool
}

func NewHandlersRegistry() *HandlersRegistry {
	return &HandlersRegistry{
		mux:   asynq.NewServeMux(),
		types: make(map[string]bool),
	}
}

// Register binds handler to taskType. asynq panics on a duplicate pattern,
// so a second registration is reported as an error instead.
func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) error {
	if r.types[taskType] {
		return fmt.Errorf("handler for %s already registered", taskType)
	}
	r.types[taskType] = true
	r.mux.Handle(taskType, handler)
	return nil
}

// RegisterAll binds one handler to every task type in types.
func (r *HandlersRegistry) RegisterAll(types []string, handler asynq.Handler) error {
	for _, t := range types {
		if err := r.Register(t, handler); err != nil {
			return err
		}
	}
	return nil
}

// Types lists registered task types, sorted.
func (r *HandlersRegistry) Types() []string {
	out := make([]string, 0, len(r.types))
	for t := range r.types {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}
