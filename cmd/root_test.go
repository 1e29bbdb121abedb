// Package cmd provides tests for CLI command handlers.
package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nibzard/todoapp-go/internal/config"
	"github.com/nibzard/todoapp-go/internal/todo"
	"github.com/nibzard/todoapp-go/internal/ui"
)

// testEnv isolates config discovery and returns a database path in a temp dir.
func testEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, name := range []string{"TODOAPP_DB", "TODOAPP_BCRYPT_COST", "TODOAPP_LOG_LEVEL", "TODOAPP_LOG_FORMAT", "TODOAPP_LOG_FILE"} {
		t.Setenv(name, "")
	}
	work := t.TempDir()
	t.Chdir(work)
	return filepath.Join(work, "todo_app.db")
}

// runCLI runs the CLI with a fast bcrypt cost and the given stdin.
func runCLI(t *testing.T, db, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"--db", db, "--bcrypt-cost", "4"}, args...)
	err := run(context.Background(), full, streams{
		in:     strings.NewReader(stdin),
		out:    &out,
		errOut: &errOut,
	})
	return out.String(), errOut.String(), err
}

func script(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

// TestRun tests the main Run function.
func TestRun(t *testing.T) {
	testEnv(t)

	for _, args := range [][]string{{"--help"}, {"-h"}, {"help"}} {
		t.Run("help "+args[0], func(t *testing.T) {
			var out bytes.Buffer
			err := run(context.Background(), args, streams{in: strings.NewReader(""), out: &out, errOut: &out})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(out.String(), "Commands:") {
				t.Errorf("usage not printed: %q", out.String())
			}
		})
	}

	for _, args := range [][]string{{"--version"}, {"-v"}, {"version"}} {
		t.Run("version "+args[0], func(t *testing.T) {
			var out bytes.Buffer
			err := run(context.Background(), args, streams{in: strings.NewReader(""), out: &out, errOut: &out})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if out.String() != "todoapp version "+Version+"\n" {
				t.Errorf("unexpected version output %q", out.String())
			}
		})
	}

	t.Run("unknown command returns error", func(t *testing.T) {
		var out bytes.Buffer
		err := run(context.Background(), []string{"unknown-command"}, streams{in: strings.NewReader(""), out: &out, errOut: &out})
		if err == nil || !strings.Contains(err.Error(), "unknown command") {
			t.Errorf("expected 'unknown command' error, got %v", err)
		}
	})

	t.Run("invalid config is rejected", func(t *testing.T) {
		var out bytes.Buffer
		err := run(context.Background(), []string{"--bcrypt-cost", "99", "doctor"}, streams{in: strings.NewReader(""), out: &out, errOut: &out})
		if err == nil || !strings.Contains(err.Error(), "loading config") {
			t.Errorf("expected config error, got %v", err)
		}
	})
}

func TestRunMenuPersists(t *testing.T) {
	db := testEnv(t)

	out, _, err := runCLI(t, db, script(
		"1", "alice", "pw", "",
		"2", "alice", "pw",
		"1", "first", "",
		"1", "second", "",
		"5", "2", "",
		"8",
		"3",
	))
	if err != nil {
		t.Fatalf("first session: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Registration successful!") || !strings.Contains(out, "Goodbye!") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	out, _, err = runCLI(t, db, script(
		"2", "alice", "pw",
		"2", "",
		"8",
		"3",
	), "run")
	if err != nil {
		t.Fatalf("second session: %v", err)
	}
	for _, want := range []string{"1. [ ] first", "2. [✓] second"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q after reopening the database:\n%s", want, out)
		}
	}
}

func TestRunRejectsExtraArgs(t *testing.T) {
	db := testEnv(t)
	if _, _, err := runCLI(t, db, "", "run", "extra"); err == nil {
		t.Fatal("expected error for unexpected arguments")
	}
}

func registerUsers(t *testing.T, db string, names ...string) {
	t.Helper()
	var lines []string
	for _, name := range names {
		lines = append(lines, "1", name, "pw", "")
	}
	lines = append(lines, "3")
	if _, _, err := runCLI(t, db, script(lines...)); err != nil {
		t.Fatalf("register %v: %v", names, err)
	}
}

func TestExportImportCommands(t *testing.T) {
	db := testEnv(t)
	registerUsers(t, db, "alice", "bob")

	if _, _, err := runCLI(t, db, script(
		"2", "alice", "pw",
		"1", "water plants", "",
		"1", "call mom", "",
		"5", "1", "",
		"8", "3",
	)); err != nil {
		t.Fatalf("seed tasks: %v", err)
	}

	t.Run("stdout json", func(t *testing.T) {
		out, _, err := runCLI(t, db, script("alice", "pw"), "export")
		if err != nil {
			t.Fatalf("export: %v", err)
		}
		want := `[
  {
    "description": "water plants",
    "completed": true
  },
  {
    "description": "call mom",
    "completed": false
  }
]
`
		if out != want {
			t.Errorf("export output:\n%s\nwant:\n%s", out, want)
		}
	})

	yamlPath := filepath.Join(t.TempDir(), "tasks.yaml")

	t.Run("yaml file", func(t *testing.T) {
		_, errOut, err := runCLI(t, db, script("alice", "pw"), "export", "-o", yamlPath)
		if err != nil {
			t.Fatalf("export: %v", err)
		}
		if !strings.Contains(errOut, "Exported 2 tasks") {
			t.Errorf("missing confirmation: %q", errOut)
		}
		doc, err := todo.LoadFile(yamlPath)
		if err != nil {
			t.Fatalf("LoadFile: %v", err)
		}
		if len(doc) != 2 || !doc[0].Completed || doc[1].Description != "call mom" {
			t.Errorf("unexpected document: %+v", doc)
		}
	})

	t.Run("import into another user", func(t *testing.T) {
		_, errOut, err := runCLI(t, db, script("bob", "pw"), "import", yamlPath)
		if err != nil {
			t.Fatalf("import: %v", err)
		}
		if !strings.Contains(errOut, "Imported 2 tasks") {
			t.Errorf("missing confirmation: %q", errOut)
		}
		out, _, err := runCLI(t, db, script("bob", "pw"), "export", "-format", "json")
		if err != nil {
			t.Fatalf("export: %v", err)
		}
		if !strings.Contains(out, `"water plants"`) || !strings.Contains(out, `"call mom"`) {
			t.Errorf("bob's tasks not imported: %s", out)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := runCLI(t, db, script("bob", "pw"), "import", filepath.Join(t.TempDir(), "none.json"))
		if !errors.Is(err, todo.ErrFileNotFound) {
			t.Errorf("expected ErrFileNotFound, got %v", err)
		}
	})

	t.Run("malformed file imports nothing", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		if err := os.WriteFile(bad, []byte(`[{"description":"ok","completed":false},{"description":5}]`), 0644); err != nil {
			t.Fatal(err)
		}
		if _, _, err := runCLI(t, db, script("bob", "pw"), "import", bad); err == nil {
			t.Fatal("expected validation error")
		}
		out, _, err := runCLI(t, db, script("bob", "pw"), "export")
		if err != nil {
			t.Fatalf("export: %v", err)
		}
		if strings.Contains(out, `"ok"`) {
			t.Errorf("partial import persisted: %s", out)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := runCLI(t, db, script("alice", "nope"), "export")
		if err == nil || !strings.Contains(err.Error(), "invalid username or password") {
			t.Errorf("expected login failure, got %v", err)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, _, err := runCLI(t, db, "", "export", "-format", "xml"); err == nil {
			t.Error("expected format error")
		}
	})
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	if err := os.WriteFile(path, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("failed write leaves target untouched", func(t *testing.T) {
		boom := errors.New("boom")
		err := writeFileAtomic(path, func(w io.Writer) error {
			io.WriteString(w, "partial")
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected write error, got %v", err)
		}
		got, err := os.ReadFile(path)
		if err != nil || string(got) != "keep" {
			t.Errorf("target changed: %q, %v", got, err)
		}
		assertOnlyFiles(t, dir, "tasks.json")
	})

	t.Run("successful write replaces target", func(t *testing.T) {
		err := writeFileAtomic(path, func(w io.Writer) error {
			_, err := io.WriteString(w, "[]\n")
			return err
		})
		if err != nil {
			t.Fatalf("writeFileAtomic: %v", err)
		}
		got, err := os.ReadFile(path)
		if err != nil || string(got) != "[]\n" {
			t.Errorf("target: got %q, %v", got, err)
		}
		assertOnlyFiles(t, dir, "tasks.json")
	})

	t.Run("missing directory", func(t *testing.T) {
		err := writeFileAtomic(filepath.Join(dir, "nope", "tasks.json"), func(io.Writer) error { return nil })
		if err == nil {
			t.Fatal("expected error for missing directory")
		}
	})
}

func TestExportCommandFailureLeavesNoFile(t *testing.T) {
	db := testEnv(t)
	registerUsers(t, db, "alice")

	dir := t.TempDir()
	target := filepath.Join(dir, "tasks.json")
	if err := os.Mkdir(target, 0755); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, db, script("alice", "pw"), "export", "-o", target); err == nil {
		t.Fatal("expected export over a directory to fail")
	}
	assertOnlyFiles(t, dir, "tasks.json")
}

func assertOnlyFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.Name())
	}
	if strings.Join(got, ",") != strings.Join(names, ",") {
		t.Errorf("files in %s: got %v, want %v", dir, got, names)
	}
}

func TestDoctorCommand(t *testing.T) {
	db := testEnv(t)

	out, _, err := runCLI(t, db, "", "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	for _, want := range []string{"Database: " + db, "Schema OK", "Users: 0", "Tasks: 0", "All checks passed!"} {
		if !strings.Contains(out, want) {
			t.Errorf("doctor output missing %q:\n%s", want, out)
		}
	}

	registerUsers(t, db, "alice")
	out, _, err = runCLI(t, db, "", "doctor")
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}
	if !strings.Contains(out, "Users: 1") {
		t.Errorf("doctor should count the new user:\n%s", out)
	}
}

func TestDoctorCommandDirectoryPath(t *testing.T) {
	testEnv(t)
	dir := t.TempDir()
	out, _, err := runCLI(t, dir, "", "doctor")
	if err == nil {
		t.Fatal("expected doctor to fail for a directory path")
	}
	if !strings.Contains(out, "path is a directory") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestConfigCommand(t *testing.T) {
	db := testEnv(t)
	if err := os.WriteFile("todoapp.toml", []byte("log_format = \"logfmt\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, db, "", "config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	for _, want := range []string{
		"# read todoapp.toml",
		"flag",
		"project file",
		"default",
		`"logfmt"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("config output missing %q:\n%s", want, out)
		}
	}

	out, _, err = runCLI(t, db, "", "config", "-example")
	if err != nil {
		t.Fatalf("config -example: %v", err)
	}
	if out != config.ExampleConfig() {
		t.Error("example output does not match ExampleConfig")
	}
}

func TestTUIRequiresTTY(t *testing.T) {
	if ui.IsTTY(os.Stdout) {
		t.Skip("stdout is a terminal")
	}
	db := testEnv(t)
	_, _, err := runCLI(t, db, "", "tui")
	if err == nil || !strings.Contains(err.Error(), "TTY") {
		t.Errorf("expected TTY error, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	if err := versionCommand(&out); err != nil {
		t.Errorf("versionCommand() returned error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "todoapp version ") {
		t.Errorf("unexpected output %q", out.String())
	}
}
