package planner

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultMaxIterations = 10
	defaultRetryDelay    = 2 * time.Second
)

// PlanSource generates a plan for a goal.
type PlanSource interface {
	GeneratePlan(ctx context.Context, request string, planCtx map[string]any) *Plan
}

// CommandRunner is the slice of the session registry the loop needs.
type CommandRunner interface {
	Exists(id string) bool
	Create(id, shell string) bool
	Execute(id, command string) bool
}

// GoalChecker decides whether the goal has been achieved from the results of
// the latest plan. Callers needing semantic verification supply their own.
type GoalChecker func(goal string, results []StepResult) bool

// AllStepsSucceeded is the default checker: every dispatched command was
// accepted by the session. It performs no semantic verification of output.
func AllStepsSucceeded(goal string, results []StepResult) bool {
	for _, r := range results {
		if !r.Success {
			return false
		}
	}
	return len(results) > 0
}

// StepResult records the outcome of one executed plan step.
type StepResult struct {
	Step      int      `json:"step"`
	Command   string   `json:"command"`
	Reasoning string   `json:"reasoning"`
	Risk      Risk     `json:"risk_level"`
	Warnings  []string `json:"warnings,omitempty"`
	Success   bool     `json:"success"`
	Output    string   `json:"output"`
}

// GoalResult is the outcome of a full ExecuteGoal run.
type GoalResult struct {
	Status     string       `json:"status"`
	Results    []StepResult `json:"results,omitempty"`
	Iterations int          `json:"iterations"`
	Plan       *Plan        `json:"plan,omitempty"`
	Message    string       `json:"message,omitempty"`
}

// Loop plans and executes iteratively until the goal checker is satisfied,
// the plan demands confirmation, the context is cancelled, or the iteration
// budget runs out.
type Loop struct {
	source        PlanSource
	runner        CommandRunner
	check         GoalChecker
	maxIterations int
	retryDelay    time.Duration
}

// NewLoop creates a Loop with the default iteration budget and retry delay.
// A nil checker means AllStepsSucceeded.
func NewLoop(source PlanSource, runner CommandRunner, check GoalChecker) *Loop {
	if check == nil {
		check = AllStepsSucceeded
	}
	return &Loop{
		source:        source,
		runner:        runner,
		check:         check,
		maxIterations: defaultMaxIterations,
		retryDelay:    defaultRetryDelay,
	}
}

// ExecuteGoal runs the plan/execute/review cycle for goal against the named
// session, creating the session if needed.
func (l *Loop) ExecuteGoal(ctx context.Context, goal, sessionID string) *GoalResult {
	slog.Info("starting goal execution", "goal", goal, "session_id", sessionID)

	planCtx := map[string]any{}
	var results []StepResult

	for iteration := 0; iteration < l.maxIterations; iteration++ {
		plan := l.source.GeneratePlan(ctx, goal, planCtx)

		if plan.RequiresConfirmation {
			return &GoalResult{
				Status:     "confirmation_required",
				Plan:       plan,
				Results:    results,
				Iterations: iteration,
				Message:    "Dangerous commands detected. Please review and confirm.",
			}
		}

		stepResults := l.executePlan(plan, sessionID)
		results = append(results, stepResults...)

		if l.check(goal, stepResults) {
			return &GoalResult{
				Status:     "success",
				Results:    results,
				Iterations: iteration + 1,
			}
		}

		planCtx = adjustContext(planCtx, stepResults)

		select {
		case <-ctx.Done():
			return &GoalResult{
				Status:     "cancelled",
				Results:    results,
				Iterations: iteration + 1,
				Message:    ctx.Err().Error(),
			}
		case <-time.After(l.retryDelay):
		}
	}

	return &GoalResult{
		Status:     "max_iterations_reached",
		Results:    results,
		Iterations: l.maxIterations,
		Message:    "Maximum iterations reached without achieving goal",
	}
}

// executePlan dispatches each step to the session in order, stopping at the
// first step that is refused or fails to write.
func (l *Loop) executePlan(plan *Plan, sessionID string) []StepResult {
	if !l.runner.Exists(sessionID) {
		l.runner.Create(sessionID, "")
	}

	results := make([]StepResult, 0, len(plan.Steps))
	for i, step := range plan.Steps {
		res := StepResult{
			Step:      i + 1,
			Command:   step.Command,
			Reasoning: step.Reasoning,
			Risk:      maxRisk(step.Risk, AssessRisk(step.Command)),
			Warnings:  Warnings(step.Command),
		}

		if err := VetCommand(step.Command); err != nil {
			res.Output = err.Error()
			results = append(results, res)
			slog.Warn("plan step refused", "session_id", sessionID, "command", step.Command)
			break
		}

		if l.runner.Execute(sessionID, step.Command) {
			res.Success = true
			res.Output = "command dispatched"
		} else {
			res.Output = "failed to write command to session"
		}
		results = append(results, res)

		if !res.Success {
			slog.Warn("plan step failed, stopping execution", "session_id", sessionID, "step", i+1)
			break
		}
	}
	return results
}

// adjustContext folds the latest failures into the planning context so the
// next iteration can react to them.
func adjustContext(planCtx map[string]any, results []StepResult) map[string]any {
	var failed []StepResult
	for _, r := range results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	if len(failed) == 0 {
		return planCtx
	}

	retries, _ := planCtx["retry_count"].(int)
	planCtx["previous_failures"] = failed
	planCtx["retry_count"] = retries + 1
	planCtx["last_error"] = failed[len(failed)-1].Output
	return planCtx
}
