package planner

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Risk classifies how destructive a command string looks. Classification is
// purely lexical; the session core never interprets commands itself.
type Risk string

const (
	RiskSafe      Risk = "safe"
	RiskCaution   Risk = "caution"
	RiskDangerous Risk = "dangerous"
	RiskCritical  Risk = "critical"
)

func riskRank(r Risk) int {
	switch r {
	case RiskCaution:
		return 1
	case RiskDangerous:
		return 2
	case RiskCritical:
		return 3
	default:
		return 0
	}
}

// maxRisk returns the higher of two risk levels.
func maxRisk(a, b Risk) Risk {
	if riskRank(b) > riskRank(a) {
		return b
	}
	return a
}

type riskPattern struct {
	re      *regexp.Regexp
	warning string
}

var dangerousPatterns = []riskPattern{
	{regexp.MustCompile(`\brm\s+-rf\b`), "Recursive force delete"},
	{regexp.MustCompile(`\brm\s+-rf\s*/`), "Delete root directory"},
	{regexp.MustCompile(`\bchmod\s+777\b`), "World-writable permissions"},
	{regexp.MustCompile(`\bchown\s+-r`), "Recursive ownership change"},
	{regexp.MustCompile(`\bmkfs\b`), "Format filesystem"},
	{regexp.MustCompile(`\bdd\b`), "Raw disk write"},
	{regexp.MustCompile(`\b>\s*/dev/sd`), "Overwrite disk"},
	{regexp.MustCompile(`\bshutdown\s+-h\s+now`), "Immediate shutdown"},
	{regexp.MustCompile(`\breboot\b`), "System reboot"},
	{regexp.MustCompile(`\bsudo\s+rm\b`), "Privileged delete"},
	{regexp.MustCompile(`\bfind\s+.+\s+-delete\b`), "Find and delete"},
	{regexp.MustCompile(`\bchmod\s+[0-7]777\b`), "Overly permissive"},
}

var cautionPatterns = []riskPattern{
	{regexp.MustCompile(`\brm\b`), "File deletion"},
	{regexp.MustCompile(`\bchmod\b`), "Permission changes"},
	{regexp.MustCompile(`\bchown\b`), "Ownership changes"},
	{regexp.MustCompile(`\bmv\b`), "File movement"},
	{regexp.MustCompile(`\bcp\b`), "File copying"},
	{regexp.MustCompile(`\bscp\b`), "Remote copying"},
	{regexp.MustCompile(`\bsudo\b`), "Privileged execution"},
	{regexp.MustCompile(`\bapt-get\b`), "Package management"},
	{regexp.MustCompile(`\byum\b`), "Package management"},
	{regexp.MustCompile(`\bpip\b`), "Python package management"},
}

var commandWrappers = []string{"sudo", "command", "nohup", "env"}

// AssessRisk classifies a command string. Any dangerous pattern makes it
// critical, any caution pattern makes it caution, otherwise it is safe.
func AssessRisk(command string) Risk {
	lower := strings.ToLower(command)
	for _, p := range dangerousPatterns {
		if p.re.MatchString(lower) {
			return RiskCritical
		}
	}
	if isQuotedRecursiveRemove(command) {
		return RiskCritical
	}
	for _, p := range cautionPatterns {
		if p.re.MatchString(lower) {
			return RiskCaution
		}
	}
	return RiskSafe
}

// Warnings lists the specific matched risks for a command.
func Warnings(command string) []string {
	var warnings []string
	lower := strings.ToLower(command)
	for _, p := range append(append([]riskPattern{}, dangerousPatterns...), cautionPatterns...) {
		if p.re.MatchString(lower) {
			warnings = append(warnings, "Potential risk: "+p.warning)
		}
	}
	return warnings
}

// isQuotedRecursiveRemove catches recursive removes of absolute paths that
// dodge the word-boundary regexes with quoting, e.g. rm "-rf" '/'. The
// command is tokenized the way a shell would and wrappers (sudo, env, ...)
// are skipped before looking at the executable.
func isQuotedRecursiveRemove(command string) bool {
	tokens, err := shellquote.Split(command)
	if err != nil || len(tokens) == 0 {
		return false
	}

	i := 0
	for i < len(tokens) && slices.Contains(commandWrappers, strings.ToLower(filepath.Base(tokens[i]))) {
		i++
	}
	if i >= len(tokens) || !strings.EqualFold(filepath.Base(tokens[i]), "rm") {
		return false
	}

	recursive := false
	absolute := false
	for _, arg := range tokens[i+1:] {
		if strings.HasPrefix(arg, "-") {
			if strings.ContainsAny(arg, "rR") {
				recursive = true
			}
			continue
		}
		if filepath.IsAbs(arg) {
			absolute = true
		}
	}
	return recursive && absolute
}

// RiskError is returned when a command is refused at the execution boundary.
type RiskError struct {
	Risk     Risk
	Warnings []string
	Command  string
}

func (e *RiskError) Error() string {
	return fmt.Sprintf("command refused (%s risk): %s", e.Risk, strings.Join(e.Warnings, "; "))
}

// IsRiskError reports whether err is a refusal by the risk classifier.
func IsRiskError(err error) bool {
	_, ok := err.(*RiskError)
	return ok
}

// VetCommand refuses commands classified critical. Callers apply it before
// handing a command to the session core.
func VetCommand(command string) error {
	risk := AssessRisk(command)
	if risk != RiskCritical {
		return nil
	}
	return &RiskError{
		Risk:     risk,
		Warnings: Warnings(command),
		Command:  command,
	}
}
