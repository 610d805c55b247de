package planner

import (
	"strings"
	"testing"
)

func TestAssessRisk(t *testing.T) {
	tests := []struct {
		command string
		want    Risk
	}{
		{"ls -la", RiskSafe},
		{"echo hello", RiskSafe},
		{"git status", RiskSafe},
		{"rm file.txt", RiskCaution},
		{"cp a.txt b.txt", RiskCaution},
		{"mv old new", RiskCaution},
		{"sudo apt-get update", RiskCaution},
		{"pip install requests", RiskCaution},
		{"rm -rf /tmp/build", RiskCritical},
		{"rm -rf /", RiskCritical},
		{"sudo rm /etc/passwd", RiskCritical},
		{"chmod 777 /var/www", RiskCritical},
		{"dd if=/dev/zero of=/dev/sda", RiskCritical},
		{"mkfs.ext4 /dev/sdb1", RiskCritical},
		{"reboot", RiskCritical},
		{"shutdown -h now", RiskCritical},
		{"find /tmp -name '*.log' -delete", RiskCritical},
		{"RM -RF /home", RiskCritical}, // case-insensitive
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			if got := AssessRisk(tt.command); got != tt.want {
				t.Errorf("AssessRisk(%q) = %v, want %v", tt.command, got, tt.want)
			}
		})
	}
}

func TestAssessRiskCatchesQuotedRecursiveRemove(t *testing.T) {
	tests := []struct {
		command string
		want    Risk
	}{
		{`rm "-rf" '/'`, RiskCritical},
		{`rm '-r' "-f" /home`, RiskCritical},
		{`sudo rm "-rf" /var`, RiskCritical},
		{`env nohup rm "-R" /data`, RiskCritical},
		{`rm "-rf" relative/dir`, RiskCaution}, // not absolute
		{`rm "-f" /tmp/x`, RiskCaution},        // not recursive
		{`grep "-rf" /etc/hosts`, RiskSafe},    // not rm
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			if got := AssessRisk(tt.command); got != tt.want {
				t.Errorf("AssessRisk(%q) = %v, want %v", tt.command, got, tt.want)
			}
		})
	}
}

func TestWarningsNameTheMatchedRisks(t *testing.T) {
	warnings := Warnings("sudo rm -rf /opt/app")
	if len(warnings) == 0 {
		t.Fatal("expected warnings for a destructive command")
	}
	joined := strings.Join(warnings, "\n")
	if !strings.Contains(joined, "Recursive force delete") {
		t.Errorf("warnings missing recursive delete: %v", warnings)
	}
	if !strings.Contains(joined, "Privileged execution") {
		t.Errorf("warnings missing sudo: %v", warnings)
	}

	if got := Warnings("echo hello"); got != nil {
		t.Errorf("Warnings(safe command) = %v, want nil", got)
	}
}

func TestVetCommand(t *testing.T) {
	if err := VetCommand("ls -la"); err != nil {
		t.Errorf("VetCommand(safe) = %v, want nil", err)
	}
	if err := VetCommand("rm file.txt"); err != nil {
		t.Errorf("VetCommand(caution) = %v, want nil", err)
	}

	err := VetCommand("rm -rf /")
	if err == nil {
		t.Fatal("VetCommand(critical) = nil, want refusal")
	}
	if !IsRiskError(err) {
		t.Errorf("IsRiskError(%v) = false, want true", err)
	}
	rerr := err.(*RiskError)
	if rerr.Risk != RiskCritical {
		t.Errorf("refusal risk = %v, want %v", rerr.Risk, RiskCritical)
	}
	if len(rerr.Warnings) == 0 {
		t.Error("refusal carries no warnings")
	}
}

func TestMaxRisk(t *testing.T) {
	if got := maxRisk(RiskSafe, RiskCritical); got != RiskCritical {
		t.Errorf("maxRisk(safe, critical) = %v", got)
	}
	if got := maxRisk(RiskDangerous, RiskCaution); got != RiskDangerous {
		t.Errorf("maxRisk(dangerous, caution) = %v", got)
	}
	if got := maxRisk(RiskSafe, RiskSafe); got != RiskSafe {
		t.Errorf("maxRisk(safe, safe) = %v", got)
	}
}
