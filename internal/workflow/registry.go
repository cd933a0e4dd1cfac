package workflow

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fundtrace/fundtrace/internal/models"
)

// ErrUnregisteredWorkflow is returned when a (source, workflow-type) pair has
// no registered implementation. Routing outside the known set fails loudly
// rather than silently dropping the task.
var ErrUnregisteredWorkflow = errors.New("unregistered workflow")

// Factory builds one scraper instance.
type Factory func() Scraper

// sourceEntry holds the per-source registration state.
type sourceEntry struct {
	jobType  models.JobType
	starter  models.WorkflowType
	scrapers map[models.WorkflowType]Factory
}

// Registry maps (source, workflow type) to scraper factories and records each
// source's job family and starter workflow.
type Registry struct {
	sources map[string]*sourceEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]*sourceEntry)}
}

// AddSource declares a source with its job family and starter workflow type.
func (r *Registry) AddSource(name string, jobType models.JobType, starter models.WorkflowType) {
	r.sources[name] = &sourceEntry{
		jobType:  jobType,
		starter:  starter,
		scrapers: make(map[models.WorkflowType]Factory),
	}
}

// Register binds a workflow implementation to a declared source.
func (r *Registry) Register(source string, workflowType models.WorkflowType, factory Factory) {
	entry, ok := r.sources[source]
	if !ok {
		panic(fmt.Sprintf("workflow registered for undeclared source %q", source))
	}
	entry.scrapers[workflowType] = factory
}

// Resolve returns the scraper for a (source, workflow type) pair.
func (r *Registry) Resolve(source string, workflowType models.WorkflowType) (Scraper, error) {
	entry, ok := r.sources[source]
	if !ok {
		return nil, fmt.Errorf("%w: unknown source %q", ErrUnregisteredWorkflow, source)
	}
	factory, ok := entry.scrapers[workflowType]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnregisteredWorkflow, source, workflowType)
	}
	return factory(), nil
}

// Starter returns the workflow type that begins a source's chain.
func (r *Registry) Starter(source string) (models.WorkflowType, error) {
	entry, ok := r.sources[source]
	if !ok {
		return "", fmt.Errorf("%w: unknown source %q", ErrUnregisteredWorkflow, source)
	}
	return entry.starter, nil
}

// JobType returns the job family a source belongs to.
func (r *Registry) JobType(source string) (models.JobType, error) {
	entry, ok := r.sources[source]
	if !ok {
		return "", fmt.Errorf("%w: unknown source %q", ErrUnregisteredWorkflow, source)
	}
	return entry.jobType, nil
}

// HasSource reports whether a source is declared.
func (r *Registry) HasSource(source string) bool {
	_, ok := r.sources[source]
	return ok
}

// Sources returns all declared source names, sorted.
func (r *Registry) Sources() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
