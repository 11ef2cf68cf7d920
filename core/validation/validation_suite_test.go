package validation

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStepStatus_String(t *testing.T) {
	tests := []struct {
		status   StepStatus
		expected string
	}{
		{StepPending, "pending"},
		{StepRunning, "running"},
		{StepPassed, "passed"},
		{StepFailed, "failed"},
		{StepWarning, "warning"},
		{StepSkipped, "skipped"},
		{StepStatus(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.status.String(); got != tt.expected {
				t.Errorf("StepStatus(%d).String() = %q, want %q", tt.status, got, tt.expected)
			}
		})
	}
}

func TestValidationSuite_MixedResults(t *testing.T) {
	var buf bytes.Buffer
	suite := NewValidationSuite(
		Check{Name: "ok", Run: func() CheckResult { return CheckResult{OK: true, Message: "fine"} }},
		Check{Name: "warn", Run: func() CheckResult { return CheckResult{Warn: true, Message: "degraded"} }},
		Check{Name: "skip", Run: func() CheckResult { return CheckResult{Skip: true} }},
		Check{Name: "fail", Run: func() CheckResult { return CheckResult{Error: errors.New("broken")} }},
	).WithOutput(&buf)

	result := suite.Validate()

	if result.Success {
		t.Error("Success = true, want false")
	}
	if result.TotalSteps != 4 || result.PassedSteps != 1 || result.FailedSteps != 1 || result.Warnings != 1 {
		t.Errorf("unexpected counts: %+v", result)
	}
	if err := result.GetFirstError(); err == nil || err.Error() != "broken" {
		t.Errorf("GetFirstError() = %v, want broken", err)
	}
	out := buf.String()
	for _, want := range []string{"✓ ok", "! warn", "○ skip", "✗ fail", "└─ broken", "Validation Failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestValidationSuite_FailFast(t *testing.T) {
	ran := 0
	suite := NewValidationSuite(
		Check{Name: "first", Run: func() CheckResult { ran++; return CheckResult{} }},
		Check{Name: "second", Run: func() CheckResult { ran++; return CheckResult{OK: true} }},
	).WithShowProgress(false).WithFailFast(true)

	result := suite.Validate()
	if ran != 1 {
		t.Errorf("ran %d checks, want 1", ran)
	}
	if result.Success {
		t.Error("Success = true, want false")
	}
	if !strings.HasPrefix(result.Summary(), "Validation Failed: 0/1") {
		t.Errorf("Summary() = %q", result.Summary())
	}
}

func TestValidateServerURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://api.openai.com/v1", false},
		{"http://127.0.0.1:1234/v1", false},
		{"", true},
		{"ftp://example.com", true},
		{"https://", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := ValidateServerURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateServerURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestCheckFileExistsAndDirWritable(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(file, []byte("rules: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := CheckFileExists(file); err != nil {
		t.Errorf("CheckFileExists(existing) = %v", err)
	}
	if err := CheckFileExists(dir); err == nil {
		t.Error("CheckFileExists(dir) should fail")
	}
	if err := CheckFileExists(filepath.Join(dir, "missing")); err == nil {
		t.Error("CheckFileExists(missing) should fail")
	}
	if err := CheckDirWritable(filepath.Join(dir, "nested", "debug")); err != nil {
		t.Errorf("CheckDirWritable() = %v", err)
	}
}
