// In file: cmd/gateway/handler.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/dileep-u-k/swarm-bridge/internal/api"
	"github.com/dileep-u-k/swarm-bridge/internal/bridge"

	"github.com/gin-gonic/gin"
)

// =================================================================================
// Swarm Handler
// =================================================================================
// One Gin handler per swarm capability. Every handler follows the same shape:
// validate the inbound request at the boundary, project it onto the argument
// map the underlying tool expects, perform exactly one bridge call, and return
// the decoded result verbatim as the response body. The handlers hold no state
// and perform no reshaping beyond what each endpoint's contract documents
// (only /status flattens sub-fields).
// =================================================================================

// ToolCaller is the handler's view of the bridge. Tests substitute a fake
// that records calls instead of spawning processes.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, arguments map[string]any) (json.RawMessage, error)
}

type SwarmHandler struct {
	bridge ToolCaller
}

func NewSwarmHandler(b ToolCaller) *SwarmHandler {
	return &SwarmHandler{bridge: b}
}

// RegisterRoutes mounts every swarm endpoint on the given group.
func (h *SwarmHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/status", h.HandleStatus)
	rg.GET("/agents", h.HandleListAgents)
	rg.POST("/agents/:agent_id/control", h.HandleAgentControl)
	rg.POST("/broadcast", h.HandleBroadcast)
	rg.POST("/tasks", h.HandleCreateTask)
	rg.GET("/tasks/:task_id", h.HandleTaskStatus)
	rg.DELETE("/tasks/:task_id", h.HandleCancelTask)
	rg.POST("/pipelines", h.HandleRunPipeline)
	rg.POST("/workflows", h.HandleExecuteWorkflow)
	rg.POST("/triggers", h.HandleRegisterTrigger)
	rg.POST("/schedules", h.HandleScheduleTask)
	rg.GET("/metrics", h.HandleMetrics)
	rg.POST("/memory/search", h.HandleMemorySearch)
	rg.POST("/memory/entities", h.HandleCreateEntities)
	rg.GET("/memory/nodes", h.HandleOpenNodes)
	rg.POST("/sandbox/execute", h.HandleSandboxExecute)
}

// --- SWARM MANAGEMENT ---

// HandleStatus aggregates the agent roster and the metrics summary into one
// flat status document.
func (h *SwarmHandler) HandleStatus(c *gin.Context) {
	agentsRaw, err := h.bridge.CallTool(c.Request.Context(), "swarm_list_agents", map[string]any{})
	if err != nil {
		respondFailure(c, err)
		return
	}
	metricsRaw, err := h.bridge.CallTool(c.Request.Context(), "swarm_get_metrics", map[string]any{"summary": true})
	if err != nil {
		respondFailure(c, err)
		return
	}

	var agents struct {
		Agents      []json.RawMessage `json:"agents"`
		TotalAgents int               `json:"totalAgents"`
	}
	if err := json.Unmarshal(agentsRaw, &agents); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected agent listing shape: " + err.Error()})
		return
	}
	var metrics struct {
		SwarmStats     map[string]any `json:"swarmStats"`
		MetricsSummary map[string]any `json:"metricsSummary"`
	}
	if err := json.Unmarshal(metricsRaw, &metrics); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected metrics shape: " + err.Error()})
		return
	}

	if agents.Agents == nil {
		agents.Agents = []json.RawMessage{}
	}
	if metrics.SwarmStats == nil {
		metrics.SwarmStats = map[string]any{}
	}
	if metrics.MetricsSummary == nil {
		metrics.MetricsSummary = map[string]any{}
	}
	c.JSON(http.StatusOK, gin.H{
		"agents":         agents.Agents,
		"totalAgents":    agents.TotalAgents,
		"stats":          metrics.SwarmStats,
		"metricsSummary": metrics.MetricsSummary,
	})
}

func (h *SwarmHandler) HandleListAgents(c *gin.Context) {
	var q api.AgentsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondInvalid(c, err)
		return
	}
	h.call(c, "swarm_list_agents", q.Args())
}

func (h *SwarmHandler) HandleAgentControl(c *gin.Context) {
	var req api.AgentControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	h.call(c, "swarm_agent_control", map[string]any{
		"agent_id": c.Param("agent_id"),
		"action":   req.Action,
	})
}

func (h *SwarmHandler) HandleBroadcast(c *gin.Context) {
	var req api.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	h.call(c, "swarm_broadcast", req.Args())
}

// --- TASKS ---

func (h *SwarmHandler) HandleCreateTask(c *gin.Context) {
	var req api.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	h.call(c, "swarm_create_task", req.Args())
}

func (h *SwarmHandler) HandleTaskStatus(c *gin.Context) {
	h.call(c, "swarm_get_task_status", map[string]any{"task_id": c.Param("task_id")})
}

func (h *SwarmHandler) HandleCancelTask(c *gin.Context) {
	h.call(c, "swarm_cancel_task", map[string]any{
		"task_id": c.Param("task_id"),
		"reason":  c.DefaultQuery("reason", "API request"),
	})
}

// --- PIPELINES, WORKFLOWS, TRIGGERS, SCHEDULES ---

func (h *SwarmHandler) HandleRunPipeline(c *gin.Context) {
	var req api.PipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	h.call(c, "swarm_run_pipeline", req.Args())
}

func (h *SwarmHandler) HandleExecuteWorkflow(c *gin.Context) {
	var req api.WorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	h.call(c, "workflow_execute", req.Args())
}

func (h *SwarmHandler) HandleRegisterTrigger(c *gin.Context) {
	var req api.TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	h.call(c, "swarm_register_trigger", req.Args())
}

func (h *SwarmHandler) HandleScheduleTask(c *gin.Context) {
	var req api.ScheduleTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondInvalid(c, err)
		return
	}
	h.call(c, "swarm_schedule_task", req.Args())
}

// --- METRICS ---

func (h *SwarmHandler) HandleMetrics(c *gin.Context) {
	var q api.MetricsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondInvalid(c, err)
		return
	}
	h.call(c, "swarm_get_metrics", q.Args())
}

// --- MEMORY GRAPH ---

func (h *SwarmHandler) HandleMemorySearch(c *gin.Context) {
	var req api.MemorySearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	h.call(c, "search_graph", req.Args())
}

func (h *SwarmHandler) HandleCreateEntities(c *gin.Context) {
	var entities []map[string]any
	if err := c.ShouldBindJSON(&entities); err != nil {
		respondInvalid(c, err)
		return
	}
	if entities == nil {
		respondInvalid(c, errors.New("request body must be a JSON array of entities"))
		return
	}
	h.call(c, "create_entities", map[string]any{"entities": entities})
}

// HandleOpenNodes fetches full entities by name. The names parameter is
// comma-separated; each segment is trimmed of surrounding whitespace and
// empty segments are preserved as empty strings.
func (h *SwarmHandler) HandleOpenNodes(c *gin.Context) {
	names := c.Query("names")
	if names == "" {
		respondInvalid(c, errors.New("'names' query parameter is required"))
		return
	}
	parts := strings.Split(names, ",")
	list := make([]string, len(parts))
	for i, p := range parts {
		list[i] = strings.TrimSpace(p)
	}
	h.call(c, "open_nodes", map[string]any{"names": list})
}

// --- SANDBOX ---

func (h *SwarmHandler) HandleSandboxExecute(c *gin.Context) {
	var req api.SandboxExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	h.call(c, "sandbox_execute", req.Args())
}

// --- HELPER FUNCTIONS ---

// call performs the single bridge invocation for the request and writes the
// tool's decoded result verbatim, or the mapped failure.
func (h *SwarmHandler) call(c *gin.Context, tool string, args map[string]any) {
	log.Printf("🛠️ Invoking tool: %s", tool)
	result, err := h.bridge.CallTool(c.Request.Context(), tool, args)
	if err != nil {
		respondFailure(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", result)
}

// respondFailure maps a bridge failure onto the HTTP error contract:
// timeouts are 504, everything else 500. Remote failures carry the tool
// server's own error payload, never a paraphrase.
func respondFailure(c *gin.Context, err error) {
	var f *bridge.Failure
	if errors.As(err, &f) {
		log.Printf("🚨 Tool call failed (%s): %s", f.Kind, f.Message)
		c.JSON(f.HTTPStatus(), gin.H{"error": f.ErrorBody()})
		return
	}
	log.Printf("🚨 Tool call failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// respondInvalid rejects a request at the validation boundary; the bridge is
// never invoked for these.
func respondInvalid(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid request: " + err.Error()})
}
