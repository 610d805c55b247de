package planner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completionServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error": "boom"}`))
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testPlanner(srv *httptest.Server) *Planner {
	return New(Options{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
}

func TestGeneratePlanParsesCompletion(t *testing.T) {
	content := `{
		"steps": [
			{"command": "ls -la", "reasoning": "list files", "risk_level": "safe", "expected_output": "file listing"},
			{"command": "mkdir out", "reasoning": "create dir", "risk_level": "safe", "expected_output": ""}
		],
		"overall_risk": "safe",
		"requires_confirmation": false,
		"estimated_time": "1s",
		"success_criteria": ["files listed"]
	}`
	srv := completionServer(t, http.StatusOK, content)

	plan := testPlanner(srv).GeneratePlan(context.Background(), "list files", nil)

	if len(plan.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(plan.Steps))
	}
	if plan.Steps[0].Command != "ls -la" {
		t.Errorf("step 1 command = %q", plan.Steps[0].Command)
	}
	if plan.OverallRisk != RiskSafe || plan.RequiresConfirmation {
		t.Errorf("plan risk = %v confirmation = %v", plan.OverallRisk, plan.RequiresConfirmation)
	}
}

func TestGeneratePlanStripsMarkdownFences(t *testing.T) {
	content := "```json\n" + `{"steps": [{"command": "pwd", "reasoning": "", "risk_level": "safe", "expected_output": ""}], "overall_risk": "safe"}` + "\n```"
	srv := completionServer(t, http.StatusOK, content)

	plan := testPlanner(srv).GeneratePlan(context.Background(), "where am I", nil)

	if len(plan.Steps) != 1 || plan.Steps[0].Command != "pwd" {
		t.Fatalf("fenced JSON not parsed: %+v", plan)
	}
}

func TestGeneratePlanRaisesUnderreportedRisk(t *testing.T) {
	// The model claims a destructive command is safe; the local classifier
	// overrules it and the plan now demands confirmation.
	content := `{"steps": [{"command": "rm -rf /", "reasoning": "cleanup", "risk_level": "safe", "expected_output": ""}], "overall_risk": "safe", "requires_confirmation": false}`
	srv := completionServer(t, http.StatusOK, content)

	plan := testPlanner(srv).GeneratePlan(context.Background(), "clean up", nil)

	if plan.Steps[0].Risk != RiskCritical {
		t.Errorf("step risk = %v, want %v", plan.Steps[0].Risk, RiskCritical)
	}
	if plan.OverallRisk != RiskCritical {
		t.Errorf("overall risk = %v, want %v", plan.OverallRisk, RiskCritical)
	}
	if !plan.RequiresConfirmation {
		t.Error("critical plan must require confirmation")
	}
}

func TestGeneratePlanFallsBackOnServerError(t *testing.T) {
	srv := completionServer(t, http.StatusInternalServerError, "")

	plan := testPlanner(srv).GeneratePlan(context.Background(), "anything", nil)

	if len(plan.Steps) != 1 || plan.OverallRisk != RiskSafe {
		t.Fatalf("expected the safe fallback plan, got %+v", plan)
	}
	if !strings.Contains(plan.Steps[0].Command, "echo") {
		t.Errorf("fallback step = %q", plan.Steps[0].Command)
	}
}

func TestGeneratePlanFallsBackOnGarbageContent(t *testing.T) {
	srv := completionServer(t, http.StatusOK, "I cannot help with that.")

	plan := testPlanner(srv).GeneratePlan(context.Background(), "anything", nil)

	if len(plan.Steps) != 1 || plan.Steps[0].Risk != RiskSafe {
		t.Fatalf("expected the safe fallback plan, got %+v", plan)
	}
}

func TestBuildPromptCarriesRetryContext(t *testing.T) {
	planCtx := map[string]any{
		"previous_failures": []StepResult{{Command: "bad", Output: "failed to write command to session"}},
		"retry_count":       1,
	}
	prompt := buildPrompt("do thing", planCtx)

	if !strings.Contains(prompt, "do thing") {
		t.Error("prompt missing the request")
	}
	if !strings.Contains(prompt, "Previous attempt failed") {
		t.Error("prompt missing the failure context")
	}
	if !strings.Contains(prompt, "failed to write command to session") {
		t.Error("prompt missing the failure detail")
	}
}

func TestConfigured(t *testing.T) {
	if (&Planner{}).Configured() {
		t.Error("planner without a key reports configured")
	}
	if !New(Options{APIKey: "k"}).Configured() {
		t.Error("planner with a key reports unconfigured")
	}
	var nilPlanner *Planner
	if nilPlanner.Configured() {
		t.Error("nil planner reports configured")
	}
}
