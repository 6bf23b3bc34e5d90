// In file: internal/api/types.go

// Package api defines the public request models for the swarm gateway.
//
// Each model declares its validation rules with binding tags and knows how
// to project itself onto the argument map the underlying tool expects (its
// Args method). Optional fields that were not supplied are omitted from the
// map entirely — the tool server must never see an explicit null/empty
// placeholder standing in for genuinely absent data. Numeric fields with a
// documented default are pointers so that an absent field and a zero value
// can be told apart.
package api

import "errors"

// CreateTaskRequest enqueues a new swarm task.
// Priority: 0=emergency, 1=high, 2=normal, 3=background.
type CreateTaskRequest struct {
	TaskType    string         `json:"task_type" binding:"required"`
	Priority    *int           `json:"priority" binding:"omitempty,min=0,max=3"`
	InputData   map[string]any `json:"input_data"`
	TargetAgent string         `json:"target_agent"`
	Timeout     *int           `json:"timeout" binding:"omitempty,min=10,max=3600"`
}

func (r CreateTaskRequest) Args() map[string]any {
	args := map[string]any{
		"task_type":  r.TaskType,
		"priority":   intOr(r.Priority, 2),
		"input_data": mapOr(r.InputData),
		"timeout":    intOr(r.Timeout, 300),
	}
	if r.TargetAgent != "" {
		args["target_agent"] = r.TargetAgent
	}
	return args
}

// AgentControlRequest starts, stops, pauses, or restarts an agent. The
// action string is passed through; its semantics belong to the tool server.
type AgentControlRequest struct {
	Action string `json:"action" binding:"required"`
}

// BroadcastRequest sends a message to agents, optionally narrowed by
// coordinator and/or status.
type BroadcastRequest struct {
	Message     string `json:"message" binding:"required"`
	Coordinator string `json:"coordinator"`
	Status      string `json:"status"`
}

func (r BroadcastRequest) Args() map[string]any {
	args := map[string]any{"message": r.Message}
	if r.Coordinator != "" {
		args["coordinator"] = r.Coordinator
	}
	if r.Status != "" {
		args["status"] = r.Status
	}
	return args
}

// TriggerRequest registers an event trigger (schedule, webhook, threshold,
// manual, or event).
type TriggerRequest struct {
	TriggerType string         `json:"trigger_type" binding:"required"`
	Condition   map[string]any `json:"condition" binding:"required"`
	Action      map[string]any `json:"action" binding:"required"`
	Cooldown    *int           `json:"cooldown" binding:"omitempty,min=1"`
	Enabled     *bool          `json:"enabled"`
}

func (r TriggerRequest) Args() map[string]any {
	return map[string]any{
		"trigger_type": r.TriggerType,
		"condition":    r.Condition,
		"action":       r.Action,
		"cooldown":     intOr(r.Cooldown, 60),
		"enabled":      boolOr(r.Enabled, true),
	}
}

// PipelineStep is one node of a pipeline. OnSuccess/OnFailure name the
// follow-up step ids.
type PipelineStep struct {
	StepID    string         `json:"step_id" binding:"required"`
	TaskType  string         `json:"task_type" binding:"required"`
	Input     map[string]any `json:"input"`
	OnSuccess string         `json:"on_success,omitempty"`
	OnFailure string         `json:"on_failure,omitempty"`
}

// PipelineRequest runs a multi-step pipeline. At least one step is required:
// a pipeline with no steps could never reach its initial step.
type PipelineRequest struct {
	Name        string         `json:"name" binding:"required"`
	Steps       []PipelineStep `json:"steps" binding:"required,min=1,dive"`
	InitialStep string         `json:"initial_step" binding:"required"`
	Priority    *int           `json:"priority"`
	Timeout     *int           `json:"timeout"`
}

func (r PipelineRequest) Args() map[string]any {
	steps := make([]PipelineStep, len(r.Steps))
	for i, s := range r.Steps {
		s.Input = mapOr(s.Input)
		steps[i] = s
	}
	return map[string]any{
		"name":         r.Name,
		"steps":        steps,
		"initial_step": r.InitialStep,
		"priority":     intOr(r.Priority, 2),
		"timeout":      intOr(r.Timeout, 300000),
	}
}

// WorkflowRequest executes a workflow, either a built-in template or a
// custom definition supplied inline.
type WorkflowRequest struct {
	Template       string         `json:"template"`
	CustomWorkflow map[string]any `json:"custom_workflow"`
	Input          map[string]any `json:"input"`
	Priority       *int           `json:"priority"`
}

func (r WorkflowRequest) Args() map[string]any {
	args := map[string]any{
		"input":    mapOr(r.Input),
		"priority": intOr(r.Priority, 2),
	}
	if r.Template != "" {
		args["template"] = r.Template
	}
	if r.CustomWorkflow != nil {
		args["custom_workflow"] = r.CustomWorkflow
	}
	return args
}

// ScheduleTaskRequest schedules a recurring task, driven either by a cron
// expression or a fixed interval in milliseconds.
type ScheduleTaskRequest struct {
	Cron       string         `json:"cron"`
	IntervalMS *int           `json:"interval_ms" binding:"omitempty,min=1"`
	TaskType   string         `json:"task_type" binding:"required"`
	InputData  map[string]any `json:"input_data"`
	Priority   *int           `json:"priority" binding:"omitempty,min=0,max=3"`
	Enabled    *bool          `json:"enabled"`
}

// Validate enforces the cross-field rule binding tags cannot express:
// exactly one of cron and interval_ms must be given.
func (r ScheduleTaskRequest) Validate() error {
	if r.Cron == "" && r.IntervalMS == nil {
		return errors.New("one of 'cron' or 'interval_ms' is required")
	}
	if r.Cron != "" && r.IntervalMS != nil {
		return errors.New("'cron' and 'interval_ms' are mutually exclusive")
	}
	return nil
}

func (r ScheduleTaskRequest) Args() map[string]any {
	args := map[string]any{
		"task_type":  r.TaskType,
		"input_data": mapOr(r.InputData),
		"priority":   intOr(r.Priority, 2),
		"enabled":    boolOr(r.Enabled, true),
	}
	if r.Cron != "" {
		args["cron"] = r.Cron
	}
	if r.IntervalMS != nil {
		args["interval_ms"] = *r.IntervalMS
	}
	return args
}

// MemorySearchRequest queries the memory graph.
type MemorySearchRequest struct {
	Query  string `json:"query" binding:"required"`
	Domain string `json:"domain"`
	Type   string `json:"type"`
	Limit  *int   `json:"limit" binding:"omitempty,min=1,max=100"`
}

func (r MemorySearchRequest) Args() map[string]any {
	args := map[string]any{
		"query": r.Query,
		"limit": intOr(r.Limit, 10),
	}
	if r.Domain != "" {
		args["domain"] = r.Domain
	}
	if r.Type != "" {
		args["type"] = r.Type
	}
	return args
}

// SandboxExecuteRequest runs code in the sandbox.
type SandboxExecuteRequest struct {
	Code        string `json:"code" binding:"required"`
	Environment string `json:"environment"`
	Timeout     *int   `json:"timeout"`
}

func (r SandboxExecuteRequest) Args() map[string]any {
	env := r.Environment
	if env == "" {
		env = "javascript"
	}
	return map[string]any{
		"code":        r.Code,
		"environment": env,
		"timeout":     intOr(r.Timeout, 30),
	}
}

// AgentsQuery filters the agent listing.
type AgentsQuery struct {
	Coordinator string `form:"coordinator"`
	Status      string `form:"status"`
}

func (q AgentsQuery) Args() map[string]any {
	args := map[string]any{}
	if q.Coordinator != "" {
		args["coordinator"] = q.Coordinator
	}
	if q.Status != "" {
		args["status"] = q.Status
	}
	return args
}

// MetricsQuery selects swarm performance metrics.
type MetricsQuery struct {
	AgentID    string `form:"agent_id"`
	MetricName string `form:"metric_name"`
	Summary    bool   `form:"summary"`
	Limit      *int   `form:"limit" binding:"omitempty,min=1,max=500"`
}

func (q MetricsQuery) Args() map[string]any {
	args := map[string]any{
		"summary": q.Summary,
		"limit":   intOr(q.Limit, 50),
	}
	if q.AgentID != "" {
		args["agent_id"] = q.AgentID
	}
	if q.MetricName != "" {
		args["metric_name"] = q.MetricName
	}
	return args
}

func intOr(p *int, def int) int {
	if p != nil {
		return *p
	}
	return def
}

func boolOr(p *bool, def bool) bool {
	if p != nil {
		return *p
	}
	return def
}

func mapOr(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
