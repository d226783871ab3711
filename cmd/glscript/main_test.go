package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-logic-script/internal/auth"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

// ─── Tool commands ──────────────────────────────────────────────────

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "glscript dev") {
		t.Errorf("output = %q", out)
	}
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.py", "@time_trigger\ndef boot():\n    log.info('up')\n")
	bad := writeFile(t, dir, "bad.py", "def broken(:\n    pass\n")

	out, err := execute(t, "", "check", good)
	if err != nil {
		t.Fatalf("check good error = %v", err)
	}
	if !strings.Contains(out, good+": ok") {
		t.Errorf("output = %q", out)
	}

	out, err = execute(t, "", "check", good, bad)
	if err == nil {
		t.Fatal("check with a bad script should fail")
	}
	if !strings.Contains(out, "SyntaxError") {
		t.Errorf("output %q does not report the syntax error", out)
	}

	out, err = execute(t, "", "check", "--dump", good)
	if err != nil {
		t.Fatalf("check --dump error = %v", err)
	}
	if !strings.Contains(out, "boot") {
		t.Errorf("dump %q does not mention the function", out)
	}
}

func TestCheckExampleScripts(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "..", "scripts", "*.py"))
	if err != nil || len(files) == 0 {
		t.Fatalf("no example scripts found: %v", err)
	}
	if out, err := execute(t, "", append([]string{"check"}, files...)...); err != nil {
		t.Errorf("check examples error = %v\n%s", err, out)
	}
}

func TestEvalCommand(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "calc.py", "def double(x):\n    return x * 2\ndouble(21)\n")

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{"expression", []string{"eval", "1 + 2"}, "3\n", false},
		{"string", []string{"eval", "'a' + 'b'"}, "'ab'\n", false},
		{"file", []string{"eval", file}, "42\n", false},
		{"seeded state", []string{"eval", "--set", "sensor.temp=20", "int(sensor.temp) + 1"}, "21\n", false},
		{"state write", []string{"eval", "light.hall = 'on'\nlight.hall"}, "'on'\n", false},
		{"runtime error", []string{"eval", "1 / 0"}, "", true},
		{"bad set", []string{"eval", "--set", "nope", "1"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "", tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && out != tt.want {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestNextCommand(t *testing.T) {
	out, err := execute(t, "", "next", "cron(0 10-15 * * *)", "--now", "2020-07-01T11:59:59Z", "--count", "3")
	if err != nil {
		t.Fatalf("next error = %v", err)
	}
	want := []string{"2020-07-01T12:00:00Z", "2020-07-01T13:00:00Z", "2020-07-01T14:00:00Z"}
	if diff := cmp.Diff(want, strings.Fields(out)); diff != "" {
		t.Errorf("instants mismatch (-want +got):\n%s", diff)
	}

	out, err = execute(t, "", "next", "once(2020/07/01 12:30)", "--now", "2020-07-01T12:00:00Z", "-n", "1")
	if err != nil {
		t.Fatalf("next once error = %v", err)
	}
	if diff := cmp.Diff([]string{"2020-07-01T12:30:00Z"}, strings.Fields(out)); diff != "" {
		t.Errorf("once() mismatch (-want +got):\n%s", diff)
	}

	if _, err := execute(t, "", "next", "every(5m)"); err == nil {
		t.Error("next with an invalid spec should fail")
	}
}

func TestUpcoming(t *testing.T) {
	now := time.Date(2020, 7, 1, 11, 0, 0, 0, time.UTC)
	got := upcoming([]string{"period(2020/07/01 11:00, 30min, 2020/07/01 12:00)"}, now, nil, 2)
	want := []time.Time{
		time.Date(2020, 7, 1, 11, 30, 0, 0, time.UTC),
		time.Date(2020, 7, 1, 12, 0, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("upcoming mismatch (-want +got):\n%s", diff)
	}
}

func TestHashPasswordCommand(t *testing.T) {
	out, err := execute(t, "hunter2\n", "hash-password")
	if err != nil {
		t.Fatalf("hash-password error = %v", err)
	}
	ok, err := auth.VerifyPassword("hunter2", strings.TrimSpace(out))
	if err != nil || !ok {
		t.Errorf("VerifyPassword() = %v, %v for %q", ok, err, out)
	}

	if _, err := execute(t, "", "hash-password"); err == nil {
		t.Error("empty password should be rejected")
	}
}

// ─── run ────────────────────────────────────────────────────────────

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_MissingScriptFolder(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", `
scripts:
  folder: `+filepath.Join(dir, "missing")+`
  watch: false
database:
  enabled: false
logging:
  level: error
`)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, cfgPath); err == nil {
		t.Fatal("run() should fail when the script folder is missing")
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	dir := t.TempDir()
	scripts := filepath.Join(dir, "scripts")
	if err := os.Mkdir(scripts, 0o750); err != nil {
		t.Fatal(err)
	}
	writeFile(t, scripts, "hello.py", "@service\ndef hello():\n    log.info('hello')\n")

	cfgPath := writeFile(t, dir, "config.yaml", `
scripts:
  folder: `+scripts+`
  watch: true
  debounce_ms: 50
database:
  enabled: true
  path: `+filepath.Join(dir, "data", "glscript.db")+`
logging:
  level: error
  output: stderr
`)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfgPath) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}

	if _, err := os.Stat(filepath.Join(dir, "data", "glscript.db")); err != nil {
		t.Errorf("database not created: %v", err)
	}
}
