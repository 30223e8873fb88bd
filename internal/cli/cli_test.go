package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupEnv(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "faq.yaml")
	dataset := `- question: How do I reset my password?
  answer: Use the self-service portal.
  category: Accounts
- question: When does the library open?
  answer: At 8am on weekdays.
`
	if err := os.WriteFile(path, []byte(dataset), 0o600); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	t.Setenv("FAQ_DATASET", path)
	t.Setenv("SEMANTIC_ENABLED", "false")
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("LOG_LEVEL", "error")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestAskJSON(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "ask", "--json", "when", "does", "the", "library", "open")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	var got askOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if got.Source != "lexical" || got.Answer != "At 8am on weekdays." || got.Category != "General" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got.MatchScore < 0.35 || got.MatchScore > 1 {
		t.Fatalf("unexpected score: %v", got.MatchScore)
	}
}

func TestAskTextFallsBackToApology(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "ask", "quantum chromodynamics")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !strings.HasPrefix(out, "Sorry, I couldn't find an answer in the FAQ.") || !strings.Contains(out, "source=none") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestAskRequiresQuestion(t *testing.T) {
	setupEnv(t)

	if _, err := run(t, "ask"); err == nil {
		t.Fatalf("expected error without question")
	}
	if _, err := run(t, "ask", "   "); err == nil {
		t.Fatalf("expected error for blank question")
	}
}

func TestHealth(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if got["status"] != "ok" || got["entries"] != float64(2) || got["use_embeddings"] != false || got["use_gpt"] != false {
		t.Fatalf("unexpected health: %v", got)
	}
}
