package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/crypto/bcrypt"

	"medextract/core"
	"medextract/pdfprocessor/pdftest"
	"medextract/record"
)

// setTestEnv isolates LoadConfig from the developer's environment.
func setTestEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	env := map[string]string{
		"OPENAI_API_KEY":       "",
		"OPENAI_KEY":           "",
		"BASE_LLM_URL":         "",
		"PATIENT_NAMES":        "Wing L Ho",
		"REDACTION_RULES_FILE": "",
		"HISTORY_DB_PATH":      "",
		"DEBUG_ARTIFACTS":      "false",
		"UPLOAD_TOKEN_HASH":    "",
		"HOST":                 "127.0.0.1",
		"PORT":                 "5000",
		"MAX_RETRIES":          "0",
		"LOG_FILE":             filepath.Join(dir, "test.log"),
		"LOG_LEVEL":            "error",
		"DEV_MODE":             "false",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCommand()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestPDF(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "summary.pdf")
	pdf := pdftest.Build(
		"Patient: Wing L Ho\nSSN: 123-45-6789",
		"Assessment: Type 2 diabetes\nHbA1c 8.1 % (high)",
	)
	if err := os.WriteFile(path, pdf, 0o600); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	return path
}

func TestRedact_Stdin(t *testing.T) {
	setTestEnv(t)

	out, stderr, err := execute(t, "Seen today: Wing L Ho, SSN 123-45-6789.\n", "redact", "--stats")
	if err != nil {
		t.Fatalf("redact error = %v", err)
	}
	if strings.Contains(out, "Wing") || strings.Contains(out, "123-45-6789") {
		t.Errorf("identifiers leaked: %q", out)
	}
	if !strings.Contains(out, "Seen today:") {
		t.Errorf("surrounding text lost: %q", out)
	}
	if !strings.Contains(stderr, "redactions:") {
		t.Errorf("stats missing from stderr: %q", stderr)
	}
}

func TestRedact_PDF(t *testing.T) {
	setTestEnv(t)
	path := writeTestPDF(t, t.TempDir())

	out, _, err := execute(t, "", "redact", path)
	if err != nil {
		t.Fatalf("redact error = %v", err)
	}
	if !strings.Contains(out, "--- Page 2 ---") {
		t.Errorf("page markers missing: %q", out)
	}
	if strings.Contains(out, "Wing") || strings.Contains(out, "123-45-6789") {
		t.Errorf("identifiers leaked: %q", out)
	}
}

func TestExtract_WritesRedactedMarkdown(t *testing.T) {
	setTestEnv(t)
	pdfPath := writeTestPDF(t, t.TempDir())
	outDir := filepath.Join(t.TempDir(), "out")

	if _, _, err := execute(t, "", "extract", pdfPath, "-o", outDir); err != nil {
		t.Fatalf("extract error = %v", err)
	}

	mdPath := filepath.Join(outDir, "summary_extracted.md")
	data, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, extractHeader) {
		t.Errorf("missing privacy header: %q", text)
	}
	if strings.Contains(text, "Wing") || strings.Contains(text, "123-45-6789") {
		t.Errorf("identifiers leaked: %q", text)
	}
	if info, err := os.Stat(mdPath); err == nil && info.Mode().Perm() != 0o600 {
		t.Errorf("output mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(filepath.Join(outDir, "summary_analysis.json")); !os.IsNotExist(err) {
		t.Error("analysis written without --extract-data")
	}
}

func TestExtract_WithModel(t *testing.T) {
	setTestEnv(t)

	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) > 1 {
			prompt = req.Messages[1].Content
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{
				Content: `{"diagnoses":[{"description":"Type 2 diabetes"}],` +
					`"lab_results":[{"test_name":"HbA1c","value":"8.1","unit":"%","status":"high"}]}`,
			}}},
		})
	}))
	defer srv.Close()
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("BASE_LLM_URL", srv.URL)

	pdfPath := writeTestPDF(t, t.TempDir())
	outDir := t.TempDir()

	out, _, err := execute(t, "", "extract", pdfPath, "--output", outDir, "--extract-data")
	if err != nil {
		t.Fatalf("extract error = %v", err)
	}
	if strings.Contains(prompt, "Wing") || !strings.Contains(prompt, "Type 2 diabetes") {
		t.Errorf("unexpected prompt sent to model: %q", prompt)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "summary_analysis.json"))
	if err != nil {
		t.Fatalf("read analysis: %v", err)
	}
	var rec record.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("analysis is not JSON: %v", err)
	}
	if len(rec.Diagnoses) != 1 || len(rec.LabResults) != 1 {
		t.Errorf("record = %+v", rec)
	}
	if rec.LabResults[0].Status != record.StatusHigh {
		t.Errorf("status = %q, want %q", rec.LabResults[0].Status, record.StatusHigh)
	}
	if !strings.Contains(out, "diagnoses:") {
		t.Errorf("counts not printed: %q", out)
	}
}

func TestExtract_Errors(t *testing.T) {
	setTestEnv(t)
	dir := t.TempDir()

	txt := filepath.Join(dir, "notes.txt")
	os.WriteFile(txt, []byte("hello"), 0o600)
	if _, _, err := execute(t, "", "extract", txt); err == nil {
		t.Error("extract accepted a non-PDF path")
	}

	fake := filepath.Join(dir, "fake.pdf")
	os.WriteFile(fake, []byte("not really a pdf"), 0o600)
	_, _, err := execute(t, "", "extract", fake)
	if err == nil || !strings.Contains(err.Error(), "input_error") {
		t.Errorf("extract error = %v, want input_error", err)
	}

	pdfPath := writeTestPDF(t, dir)
	_, _, err = execute(t, "", "extract", pdfPath, "--extract-data")
	if _, ok := core.IsConfigError(err); !ok {
		t.Errorf("extract without API key error = %v, want config error", err)
	}
}

func TestValidate(t *testing.T) {
	setTestEnv(t)

	out, _, err := execute(t, "", "validate")
	var exit *exitError
	if !errors.As(err, &exit) || exit.code != core.ExitCodeConfig {
		t.Fatalf("validate error = %v, want exit code %d", err, core.ExitCodeConfig)
	}
	if !strings.Contains(out, "Model credentials") {
		t.Errorf("output missing checks: %q", out)
	}

	out, _, err = execute(t, "", "validate", "--quiet", "--fail-fast")
	if !errors.As(err, &exit) || exit.code != core.ExitCodeConfig {
		t.Fatalf("quiet validate error = %v", err)
	}
	if !strings.HasPrefix(out, "Validation Failed:") || strings.Contains(out, "Model credentials") {
		t.Errorf("quiet output = %q, want summary line only", out)
	}

	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("HISTORY_DB_PATH", filepath.Join(t.TempDir(), "history.db"))
	if out, _, err := execute(t, "", "validate"); err != nil {
		t.Errorf("validate error = %v\n%s", err, out)
	}

	t.Setenv("REDACTION_RULES_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, _, err = execute(t, "", "validate")
	if !errors.As(err, &exit) || exit.code != core.ExitCodeConfig {
		t.Errorf("validate with missing rules file = %v, want exit code %d", err, core.ExitCodeConfig)
	}
}

func TestHashToken(t *testing.T) {
	out, _, err := execute(t, "from-stdin\n", "hash-token")
	if err != nil {
		t.Fatalf("hash-token error = %v", err)
	}
	hash := strings.TrimSpace(out)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("from-stdin")); err != nil {
		t.Errorf("hash does not match token: %v", err)
	}

	if _, _, err := execute(t, "\n", "hash-token"); err == nil {
		t.Error("hash-token accepted an empty token")
	}
}

func TestSchema(t *testing.T) {
	out, _, err := execute(t, "", "schema")
	if err != nil {
		t.Fatalf("schema error = %v", err)
	}
	var schema map[string]any
	if err := json.Unmarshal([]byte(out), &schema); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	props, _ := schema["properties"].(map[string]any)
	if _, ok := props["lab_results"]; !ok {
		t.Errorf("schema missing lab_results: %v", props)
	}
}

func TestModelBudget(t *testing.T) {
	cfg := &core.Config{AITimeout: 10 * time.Second, MaxRetries: 2, RetryDelay: time.Second}
	// three attempts plus 1s and 2s of backoff
	if got, want := modelBudget(cfg), 33*time.Second; got != want {
		t.Errorf("modelBudget() = %v, want %v", got, want)
	}
}

func TestRun_ExitCodes(t *testing.T) {
	setTestEnv(t)
	if code := run([]string{"no-such-command"}); code != core.ExitCodeError {
		t.Errorf("run(unknown) = %d, want %d", code, core.ExitCodeError)
	}
	t.Setenv("PORT", "0")
	if code := run([]string{"redact", "-"}); code != core.ExitCodeConfig {
		t.Errorf("run(bad PORT) = %d, want %d", code, core.ExitCodeConfig)
	}
}
