// Package planner is the natural-language collaborator around the session
// core: it turns a goal into shell commands through an OpenAI-compatible
// chat-completions endpoint, classifies command risk, and drives the
// iterative plan/execute loop. The core never depends on it.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultBaseURL = "https://api.openai.com/v1"
)

// Step is one planned command with the model's rationale.
type Step struct {
	Command        string   `json:"command"`
	Reasoning      string   `json:"reasoning"`
	Risk           Risk     `json:"risk_level"`
	ExpectedOutput string   `json:"expected_output"`
	Alternatives   []string `json:"alternatives,omitempty"`
}

// Plan is a full response from the planning model.
type Plan struct {
	Steps                []Step   `json:"steps"`
	OverallRisk          Risk     `json:"overall_risk"`
	RequiresConfirmation bool     `json:"requires_confirmation"`
	EstimatedTime        string   `json:"estimated_time"`
	SuccessCriteria      []string `json:"success_criteria"`
}

// Options configures a Planner.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Planner calls the text-generation service. The core makes no assumption
// about where command text came from; the risk classifier is applied to the
// result regardless.
type Planner struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// New creates a Planner from opts, filling in defaults.
func New(opts Options) *Planner {
	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Planner{
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      model,
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// Configured reports whether an API key is present.
func (p *Planner) Configured() bool {
	return p != nil && p.apiKey != ""
}

// GeneratePlan produces a plan for the request. Any API or parse failure
// degrades to a safe fallback plan rather than an error; planCtx carries
// retry context between loop iterations.
func (p *Planner) GeneratePlan(ctx context.Context, request string, planCtx map[string]any) *Plan {
	plan, err := p.generate(ctx, request, planCtx)
	if err != nil {
		slog.Error("plan generation failed, using fallback", "error", err)
		return fallbackPlan()
	}
	return plan
}

func (p *Planner) generate(ctx context.Context, request string, planCtx map[string]any) (*Plan, error) {
	body, err := json.Marshal(map[string]any{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "user", "content": buildPrompt(request, planCtx)},
		},
		"temperature": 0.3,
		"max_tokens":  1000,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("planning api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &completion); err != nil {
		return nil, fmt.Errorf("decoding completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("planning api returned no choices")
	}

	var plan Plan
	if err := json.Unmarshal([]byte(extractJSON(completion.Choices[0].Message.Content)), &plan); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("plan has no steps")
	}

	normalize(&plan)
	return &plan, nil
}

// normalize re-runs the local risk classifier over every step and lets it
// only raise, never lower, what the model reported. The overall risk and the
// confirmation flag are recomputed from the steps.
func normalize(plan *Plan) {
	overall := RiskSafe
	requiresConfirmation := false
	for i := range plan.Steps {
		step := &plan.Steps[i]
		step.Risk = maxRisk(step.Risk, AssessRisk(step.Command))
		overall = maxRisk(overall, step.Risk)
		if riskRank(step.Risk) >= riskRank(RiskDangerous) {
			requiresConfirmation = true
		}
	}
	plan.OverallRisk = overall
	plan.RequiresConfirmation = requiresConfirmation
}

func buildPrompt(request string, planCtx map[string]any) string {
	cwd, _ := os.Getwd()
	if v, ok := planCtx["cwd"].(string); ok && v != "" {
		cwd = v
	}

	var b strings.Builder
	fmt.Fprintf(&b, `You are a helpful assistant that converts natural language requests into safe shell commands.
Current directory: %s
User request: %s
`, cwd, request)

	if failures, ok := planCtx["previous_failures"]; ok {
		if data, err := json.Marshal(failures); err == nil {
			fmt.Fprintf(&b, "Previous attempt failed with: %s\n", data)
		}
	}

	b.WriteString(`
Generate a step-by-step plan with each command, its reasoning, expected output,
a risk assessment (safe|caution|dangerous|critical), and safer alternatives
where applicable.

Respond with JSON only:
{
  "steps": [
    {
      "command": "command to run",
      "reasoning": "why this command",
      "risk_level": "safe|caution|dangerous|critical",
      "expected_output": "what to expect",
      "alternatives": ["safer option 1"]
    }
  ],
  "overall_risk": "safe|caution|dangerous|critical",
  "requires_confirmation": false,
  "estimated_time": "time estimate",
  "success_criteria": ["criteria"]
}
`)
	return b.String()
}

// extractJSON strips markdown code fences the model sometimes wraps around
// its JSON.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			return content[start : end+1]
		}
	}
	return content
}

func fallbackPlan() *Plan {
	return &Plan{
		Steps: []Step{{
			Command:        "echo 'Please provide more specific instructions'",
			Reasoning:      "Fallback due to planning service error",
			Risk:           RiskSafe,
			ExpectedOutput: "User guidance message",
		}},
		OverallRisk:          RiskSafe,
		RequiresConfirmation: false,
		EstimatedTime:        "immediate",
		SuccessCriteria:      []string{"User provides clearer instructions"},
	}
}
