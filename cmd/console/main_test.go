package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeProgram(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "none.yaml")))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "nodlang" {
		t.Errorf("expected Use 'nodlang', got %q", rootCmd.Use)
	}
	for _, name := range []string{"run", "debug", "asm", "fmt", "tokens", "check"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
			continue
		}
		if cmd.RunE == nil {
			t.Errorf("%s: RunE should not be nil", name)
		}
	}
}

func TestRun(t *testing.T) {
	path := writeProgram(t, t.TempDir(), "sum.nod", `int a = 1; int b = a + 2; string s = to_string(b);`)
	out, err := execute(t, "run", path)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"int a = 1", "int b = 3", `string s = "3"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestDebug(t *testing.T) {
	path := writeProgram(t, t.TempDir(), "loop.nod", `int i = 0; while (i < 2) { i = i + 1; }`)
	out, err := execute(t, "debug", path)
	if err != nil {
		t.Fatalf("debug: %v", err)
	}
	if !strings.Contains(out, "int i = 2") {
		t.Errorf("output lacks the final value of i:\n%s", out)
	}
	if strings.Count(out, "rax=") < 5 {
		t.Errorf("too few steps printed:\n%s", out)
	}
}

func TestAsm(t *testing.T) {
	path := writeProgram(t, t.TempDir(), "p.nod", `if (true) { } else { }`)
	out, err := execute(t, "asm", path)
	if err != nil {
		t.Fatalf("asm: %v", err)
	}
	for _, want := range []string{"push_stack_frame", "jne", "ret"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing lacks %q:\n%s", want, out)
		}
	}
}

func TestAsmAnnotate(t *testing.T) {
	path := writeProgram(t, t.TempDir(), "p.nod", "int a = 1;\nint b = a;")
	out, err := execute(t, "asm", "--annotate", path)
	if err != nil {
		t.Fatalf("asm: %v", err)
	}
	if !strings.Contains(out, "| 2: int b = a;") {
		t.Errorf("listing lacks the source of line 2:\n%s", out)
	}
}

func TestFmtRoundTrip(t *testing.T) {
	const src = "int a = 1;\nif (a > 0) {\n  a = a * 2;\n}\n"
	path := writeProgram(t, t.TempDir(), "p.nod", src)
	out, err := execute(t, "fmt", path)
	if err != nil {
		t.Fatalf("fmt: %v", err)
	}
	if out != src {
		t.Errorf("fmt = %q, want %q", out, src)
	}
}

func TestTokens(t *testing.T) {
	path := writeProgram(t, t.TempDir(), "p.nod", `int a = 1;`)
	out, err := execute(t, "tokens", path)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	if !strings.Contains(out, "ribbon: 5 tokens") {
		t.Errorf("unexpected dump:\n%s", out)
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	writeProgram(t, dir, "good.nod", `int a = 1;`)
	writeProgram(t, dir, "bad.nod", `foo(1);`)

	out, err := execute(t, "check", dir)
	if err == nil {
		t.Fatal("check should fail on an unresolved call")
	}
	if !strings.Contains(out, "ok   ") || !strings.Contains(out, "FAIL ") {
		t.Errorf("unexpected report:\n%s", out)
	}
}
