// In file: cmd/gateway/handler_test.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dileep-u-k/swarm-bridge/internal/bridge"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBridge records every tool call and replies with canned payloads, so
// handler tests never spawn a process.
type fakeBridge struct {
	result  json.RawMessage
	results map[string]json.RawMessage // per-tool payloads, optional
	err     error
	calls   []recordedCall
}

type recordedCall struct {
	tool string
	args map[string]any
}

func (f *fakeBridge) CallTool(_ context.Context, name string, args map[string]any) (json.RawMessage, error) {
	f.calls = append(f.calls, recordedCall{tool: name, args: args})
	if f.err != nil {
		return nil, f.err
	}
	if payload, ok := f.results[name]; ok {
		return payload, nil
	}
	if f.result != nil {
		return f.result, nil
	}
	return json.RawMessage(`{}`), nil
}

func newTestRouter(b ToolCaller) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewSwarmHandler(b).RegisterRoutes(engine.Group("/api/v1/swarm"))
	return engine
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/api/v1/swarm"+path, nil)
	} else {
		req = httptest.NewRequest(method, "/api/v1/swarm"+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// --- TASKS ---

func TestCreateTaskAppliesDefaults(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "POST", "/tasks", `{"task_type":"research"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, fake.calls, 1)
	call := fake.calls[0]
	assert.Equal(t, "swarm_create_task", call.tool)
	assert.Equal(t, "research", call.args["task_type"])
	assert.Equal(t, 2, call.args["priority"])
	assert.Equal(t, 300, call.args["timeout"])
	assert.Equal(t, map[string]any{}, call.args["input_data"])
	assert.NotContains(t, call.args, "target_agent")
}

func TestCreateTaskRejectsPriorityOutOfRange(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "POST", "/tasks", `{"task_type":"research","priority":5}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, fake.calls, "bridge must not be invoked for invalid requests")
}

func TestCreateTaskRejectsTimeoutOutOfRange(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "POST", "/tasks", `{"task_type":"research","timeout":5}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, fake.calls)
}

func TestCreateTaskPriorityZeroIsValid(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "POST", "/tasks", `{"task_type":"incident","priority":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, 0, fake.calls[0].args["priority"])
}

func TestCancelTaskDefaultsReason(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "DELETE", "/tasks/task-42", "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, fake.calls, 1)
	call := fake.calls[0]
	assert.Equal(t, "swarm_cancel_task", call.tool)
	assert.Equal(t, "task-42", call.args["task_id"])
	assert.Equal(t, "API request", call.args["reason"])
}

func TestCancelTaskExplicitReason(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "DELETE", "/tasks/task-42?reason=operator+abort", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "operator abort", fake.calls[0].args["reason"])
}

func TestTaskStatusForwardsPathParam(t *testing.T) {
	fake := &fakeBridge{result: json.RawMessage(`{"status":"running"}`)}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "GET", "/tasks/task-7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"running"}`, rec.Body.String())
	assert.Equal(t, "task-7", fake.calls[0].args["task_id"])
}

// --- AGENTS & BROADCAST ---

func TestListAgentsOmitsAbsentFilters(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "GET", "/agents?coordinator=research", "")
	require.Equal(t, http.StatusOK, rec.Code)

	call := fake.calls[0]
	assert.Equal(t, "swarm_list_agents", call.tool)
	assert.Equal(t, "research", call.args["coordinator"])
	assert.NotContains(t, call.args, "status")
}

func TestAgentControlRequiresAction(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "POST", "/agents/agent-1/control", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, fake.calls)
}

func TestAgentControlForwardsAgentID(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "POST", "/agents/agent-1/control", `{"action":"restart"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "swarm_agent_control", fake.calls[0].tool)
	assert.Equal(t, "agent-1", fake.calls[0].args["agent_id"])
	assert.Equal(t, "restart", fake.calls[0].args["action"])
}

func TestBroadcastRequiresMessage(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "POST", "/broadcast", `{"coordinator":"research"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, fake.calls)
}

// --- STATUS ---

func TestStatusFlattensAgentAndMetricsPayloads(t *testing.T) {
	fake := &fakeBridge{results: map[string]json.RawMessage{
		"swarm_list_agents": json.RawMessage(`{"agents":[{"id":"a1"}],"totalAgents":1}`),
		"swarm_get_metrics": json.RawMessage(`{"swarmStats":{"tasksQueued":3},"metricsSummary":{"cpu":0.5}}`),
	}}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "GET", "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"agents":[{"id":"a1"}],
		"totalAgents":1,
		"stats":{"tasksQueued":3},
		"metricsSummary":{"cpu":0.5}
	}`, rec.Body.String())

	require.Len(t, fake.calls, 2)
	assert.Equal(t, "swarm_list_agents", fake.calls[0].tool)
	assert.Equal(t, "swarm_get_metrics", fake.calls[1].tool)
	assert.Equal(t, true, fake.calls[1].args["summary"])
}

func TestStatusDefaultsMissingSubFields(t *testing.T) {
	fake := &fakeBridge{} // every tool replies {}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "GET", "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"agents":[],"totalAgents":0,"stats":{},"metricsSummary":{}}`, rec.Body.String())
}

// --- METRICS ---

func TestMetricsAppliesDefaults(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	call := fake.calls[0]
	assert.Equal(t, "swarm_get_metrics", call.tool)
	assert.Equal(t, false, call.args["summary"])
	assert.Equal(t, 50, call.args["limit"])
	assert.NotContains(t, call.args, "agent_id")
	assert.NotContains(t, call.args, "metric_name")
}

func TestMetricsRejectsLimitOutOfRange(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "GET", "/metrics?limit=1000", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, fake.calls)
}

// --- PIPELINES, WORKFLOWS, TRIGGERS, SCHEDULES ---

func TestRunPipelineRejectsEmptySteps(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "POST", "/pipelines", `{"name":"p","steps":[],"initial_step":"s1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, fake.calls)
}

func TestRunPipelineDefaultsStepInput(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	body := `{"name":"p","steps":[{"step_id":"s1","task_type":"research"}],"initial_step":"s1"}`
	rec := doJSON(t, router, "POST", "/pipelines", body)
	require.Equal(t, http.StatusOK, rec.Code)

	call := fake.calls[0]
	assert.Equal(t, "swarm_run_pipeline", call.tool)
	assert.Equal(t, 2, call.args["priority"])
	assert.Equal(t, 300000, call.args["timeout"])

	// The steps survive the trip with input defaulted to an empty object.
	encoded, err := json.Marshal(call.args["steps"])
	require.NoError(t, err)
	assert.JSONEq(t, `[{"step_id":"s1","task_type":"research","input":{}}]`, string(encoded))
}

func TestExecuteWorkflowOmitsAbsentOptionals(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "POST", "/workflows", `{"template":"daily-digest"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	call := fake.calls[0]
	assert.Equal(t, "workflow_execute", call.tool)
	assert.Equal(t, "daily-digest", call.args["template"])
	assert.Equal(t, map[string]any{}, call.args["input"])
	assert.NotContains(t, call.args, "custom_workflow")
}

func TestRegisterTriggerDefaults(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	body := `{"trigger_type":"threshold","condition":{"metric":"cpu"},"action":{"tool":"swarm_broadcast"}}`
	rec := doJSON(t, router, "POST", "/triggers", body)
	require.Equal(t, http.StatusOK, rec.Code)

	call := fake.calls[0]
	assert.Equal(t, "swarm_register_trigger", call.tool)
	assert.Equal(t, 60, call.args["cooldown"])
	assert.Equal(t, true, call.args["enabled"])
}

func TestRegisterTriggerRejectsCooldownBelowOne(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	body := `{"trigger_type":"threshold","condition":{},"action":{},"cooldown":0}`
	rec := doJSON(t, router, "POST", "/triggers", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, fake.calls)
}

func TestScheduleTaskRequiresExactlyOneSchedule(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "POST", "/schedules", `{"task_type":"report"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, router, "POST", "/schedules", `{"task_type":"report","cron":"*/5 * * * *","interval_ms":1000}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, fake.calls)
}

func TestScheduleTaskWithCron(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "POST", "/schedules", `{"task_type":"report","cron":"*/5 * * * *"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	call := fake.calls[0]
	assert.Equal(t, "swarm_schedule_task", call.tool)
	assert.Equal(t, "*/5 * * * *", call.args["cron"])
	assert.NotContains(t, call.args, "interval_ms")
	assert.Equal(t, true, call.args["enabled"])
}

// --- MEMORY GRAPH ---

func TestMemorySearchDefaults(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "POST", "/memory/search", `{"query":"deployment"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	call := fake.calls[0]
	assert.Equal(t, "search_graph", call.tool)
	assert.Equal(t, 10, call.args["limit"])
	assert.NotContains(t, call.args, "domain")
	assert.NotContains(t, call.args, "type")
}

func TestCreateEntitiesRequiresArrayBody(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "POST", "/memory/entities", `{"name":"not-an-array"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, router, "POST", "/memory/entities", `[{"name":"svc-a","entityType":"service"}]`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "create_entities", fake.calls[0].tool)
}

func TestOpenNodesTrimsSegments(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "GET", "/memory/nodes?names=a,b,%20c", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a", "b", "c"}, fake.calls[0].args["names"])
}

func TestOpenNodesPreservesEmptySegments(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "GET", "/memory/nodes?names=a,,b,", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a", "", "b", ""}, fake.calls[0].args["names"])
}

func TestOpenNodesRequiresNames(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "GET", "/memory/nodes", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, fake.calls)
}

// --- SANDBOX ---

func TestSandboxExecuteDefaults(t *testing.T) {
	fake := &fakeBridge{}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "POST", "/sandbox/execute", `{"code":"1+1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	call := fake.calls[0]
	assert.Equal(t, "sandbox_execute", call.tool)
	assert.Equal(t, "javascript", call.args["environment"])
	assert.Equal(t, 30, call.args["timeout"])
}

// --- FAILURE MAPPING ---

func TestTimeoutFailureMapsTo504(t *testing.T) {
	fake := &fakeBridge{err: &bridge.Failure{Kind: bridge.KindTimeout, Message: "no reply from tool server within 30s"}}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "GET", "/tasks/task-1", "")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), "no reply from tool server")
}

func TestTransportFailureMapsTo500(t *testing.T) {
	fake := &fakeBridge{err: &bridge.Failure{Kind: bridge.KindTransport, Message: "tool server error: boom"}}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "GET", "/tasks/task-1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRemoteFailureCarriesPayloadVerbatim(t *testing.T) {
	fake := &fakeBridge{err: &bridge.Failure{
		Kind:    bridge.KindRemote,
		Message: "tool server reported an error",
		Remote:  json.RawMessage(`{"code":-32000,"message":"unknown tool"}`),
	}}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "GET", "/tasks/task-1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":{"code":-32000,"message":"unknown tool"}}`, rec.Body.String())
}

func TestResultReturnedVerbatim(t *testing.T) {
	fake := &fakeBridge{result: json.RawMessage(`{"taskId":"t-9","queued":true}`)}
	router := newTestRouter(fake)

	rec := doJSON(t, router, "POST", "/tasks", `{"task_type":"research"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"taskId":"t-9","queued":true}`, rec.Body.String())
}
