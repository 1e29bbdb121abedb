// Package config tests configuration loading.
package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolate points HOME and the working directory at empty temp dirs and
// clears TODOAPP_* variables so only the test's inputs are seen.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("APPDATA", filepath.Join(home, "AppData"))
	for _, name := range []string{
		"TODOAPP_DB", "TODOAPP_BCRYPT_COST", "TODOAPP_LOG_LEVEL", "TODOAPP_LOG_FORMAT",
		"TODOAPP_LOG_TIMESTAMPS", "TODOAPP_LOG_CALLER", "TODOAPP_LOG_FILE",
	} {
		t.Setenv(name, "")
	}
	work := t.TempDir()
	t.Chdir(work)
	return home
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	if cfg.DBPath != DefaultDBPath {
		t.Errorf("DBPath: got %q, want %q", cfg.DBPath, DefaultDBPath)
	}
	if cfg.BcryptCost != DefaultBcryptCost {
		t.Errorf("BcryptCost: got %d, want %d", cfg.BcryptCost, DefaultBcryptCost)
	}
	if cfg.LogLevel != "warn" || cfg.LogFormat != "text" {
		t.Errorf("logging defaults: got %q/%q, want warn/text", cfg.LogLevel, cfg.LogFormat)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TODOAPP_DB", "env.db")
	t.Setenv("TODOAPP_BCRYPT_COST", "12")
	t.Setenv("TODOAPP_LOG_LEVEL", "debug")
	t.Setenv("TODOAPP_LOG_TIMESTAMPS", "yes")

	cfg := &Config{}
	setDefaults(cfg)
	sources := map[string]ConfigSource{}
	loadFromEnv(cfg, sources)

	if cfg.DBPath != "env.db" {
		t.Errorf("DBPath: got %q, want env.db", cfg.DBPath)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost: got %d, want 12", cfg.BcryptCost)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel: got %q, want debug", cfg.LogLevel)
	}
	if !cfg.LogTimestamps {
		t.Error("LogTimestamps: got false, want true")
	}
	if sources["db_path"] != SourceEnv {
		t.Errorf("db_path source: got %q, want %q", sources["db_path"], SourceEnv)
	}
}

func TestLoadFromEnvIgnoresBadNumber(t *testing.T) {
	t.Setenv("TODOAPP_BCRYPT_COST", "lots")
	cfg := &Config{}
	setDefaults(cfg)
	loadFromEnv(cfg, nil)
	if cfg.BcryptCost != DefaultBcryptCost {
		t.Errorf("BcryptCost: got %d, want default %d", cfg.BcryptCost, DefaultBcryptCost)
	}
}

func TestLoadConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "todoapp.toml")

	content := []byte(`db_path = "custom.db"
bcrypt_cost = 6
log_format = "json"
`)
	if err := os.WriteFile(configFile, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{}
	setDefaults(cfg)
	sources := map[string]ConfigSource{}
	if err := loadConfigFile(cfg, configFile, sources, SourceProjFile); err != nil {
		t.Fatalf("loadConfigFile: %v", err)
	}

	if cfg.DBPath != "custom.db" {
		t.Errorf("DBPath: got %q, want custom.db", cfg.DBPath)
	}
	if cfg.BcryptCost != 6 {
		t.Errorf("BcryptCost: got %d, want 6", cfg.BcryptCost)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat: got %q, want json", cfg.LogFormat)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel should keep default, got %q", cfg.LogLevel)
	}
	if sources["bcrypt_cost"] != SourceProjFile {
		t.Errorf("bcrypt_cost source: got %q", sources["bcrypt_cost"])
	}
	if _, ok := sources["log_level"]; ok {
		t.Error("log_level should not be attributed to the file")
	}
}

func TestLoadConfigFileUnknownKey(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "todoapp.toml")
	if err := os.WriteFile(configFile, []byte("todo_file = \"x\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := &Config{}
	err := loadConfigFile(cfg, configFile, nil, SourceProjFile)
	if err == nil || !strings.Contains(err.Error(), "todo_file") {
		t.Errorf("expected unknown key error, got %v", err)
	}
}

func TestResolvePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	root := t.TempDir()
	abs := filepath.Join(t.TempDir(), "elsewhere", "todo.db")
	data := filepath.Join(t.TempDir(), "data")
	t.Setenv("TODOAPP_TEST_DIR", data)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"home prefix", "~/test.db", filepath.Join(home, "test.db")},
		{"bare home", "~", home},
		{"absolute", abs, abs},
		{"relative anchored at root", "relative.db", filepath.Join(root, "relative.db")},
		{"nested relative", "./var/../todo.db", filepath.Join(root, "todo.db")},
		{"env var", "$TODOAPP_TEST_DIR/todo.db", filepath.Join(data, "todo.db")},
		{"env var relative", "${TODOAPP_UNSET_VAR}todo.db", filepath.Join(root, "todo.db")},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolvePath(tt.input, root)
			if got != tt.want {
				t.Errorf("resolvePath(%q, %q): got %q, want %q", tt.input, root, got, tt.want)
			}
		})
	}

	if got := resolvePath("relative.db", ""); got != "relative.db" {
		t.Errorf("resolvePath without root: got %q, want %q", got, "relative.db")
	}
}

func TestLoadResolvesEnvInDBPath(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	t.Setenv("TODOAPP_TEST_DATA", dir)
	t.Setenv("TODOAPP_DB", "$TODOAPP_TEST_DATA/tasks.db")

	cfg, err := Load(flag.NewFlagSet("todoapp", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if want := filepath.Join(dir, "tasks.db"); cfg.DBPath != want {
		t.Errorf("DBPath: got %q, want %q", cfg.DBPath, want)
	}
}

func TestParseFlags(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	sources := map[string]ConfigSource{}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	args := []string{
		"--db", "flag.db",
		"--log-level", "info",
		"--log-caller",
		"run",
	}

	if err := parseFlags(cfg, fs, args, sources); err != nil {
		t.Fatalf("parseFlags: %v", err)
	}

	if cfg.DBPath != "flag.db" {
		t.Errorf("DBPath: got %q, want flag.db", cfg.DBPath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel: got %q, want info", cfg.LogLevel)
	}
	if !cfg.LogCaller {
		t.Error("LogCaller: got false, want true")
	}
	if sources["db_path"] != SourceFlag {
		t.Errorf("db_path source: got %q, want flag", sources["db_path"])
	}
	if _, ok := sources["bcrypt_cost"]; ok {
		t.Error("unset flag should not be recorded")
	}
	if rest := fs.Args(); len(rest) != 1 || rest[0] != "run" {
		t.Errorf("remaining args: got %v, want [run]", rest)
	}
}

func TestLoadWithSources(t *testing.T) {
	home := isolate(t)

	userDir := filepath.Join(home, ".todoapp")
	if err := os.MkdirAll(userDir, 0755); err != nil {
		t.Fatal(err)
	}
	userFile := filepath.Join(userDir, "todoapp.toml")
	if err := os.WriteFile(userFile, []byte("db_path = \"~/user.db\"\nlog_level = \"info\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile("todoapp.toml", []byte("log_level = \"error\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TODOAPP_LOG_FORMAT", "logfmt")

	fs := flag.NewFlagSet("todoapp", flag.ContinueOnError)
	cws, err := LoadWithSources(fs, []string{"--bcrypt-cost", "5"})
	if err != nil {
		t.Fatalf("LoadWithSources: %v", err)
	}
	cfg := cws.Config

	if cfg.DBPath != filepath.Join(home, "user.db") {
		t.Errorf("DBPath: got %q, want %q", cfg.DBPath, filepath.Join(home, "user.db"))
	}
	want := map[string]ConfigSource{
		"db_path":     SourceUserFile,
		"log_level":   SourceProjFile,
		"log_format":  SourceEnv,
		"bcrypt_cost": SourceFlag,
		"log_caller":  SourceDefault,
	}
	for field, src := range want {
		if cws.Sources[field] != src {
			t.Errorf("%s source: got %q, want %q", field, cws.Sources[field], src)
		}
	}
	if cfg.LogLevel != "error" || cfg.LogFormat != "logfmt" || cfg.BcryptCost != 5 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if got := cws.GetConfigFile(); got != "todoapp.toml" {
		t.Errorf("GetConfigFile: got %q, want todoapp.toml", got)
	}
}

func TestLoadResolvesRelativeDBPath(t *testing.T) {
	isolate(t)
	cfg, err := Load(flag.NewFlagSet("todoapp", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !filepath.IsAbs(cfg.DBPath) || filepath.Base(cfg.DBPath) != DefaultDBPath {
		t.Errorf("DBPath: got %q, want absolute path ending in %s", cfg.DBPath, DefaultDBPath)
	}
	if cfg.LogFile != "" {
		t.Errorf("LogFile: got %q, want empty", cfg.LogFile)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty db path", func(c *Config) { c.DBPath = "" }, true},
		{"cost too low", func(c *Config) { c.BcryptCost = 2 }, true},
		{"cost too high", func(c *Config) { c.BcryptCost = 40 }, true},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"json format", func(c *Config) { c.LogFormat = "json" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRejectsInvalidFlag(t *testing.T) {
	isolate(t)
	_, err := Load(flag.NewFlagSet("todoapp", flag.ContinueOnError), []string{"--log-level", "loud"})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestExampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todoapp.toml")
	if err := os.WriteFile(path, []byte(ExampleConfig()), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := &Config{}
	if err := loadConfigFile(cfg, path, nil, SourceProjFile); err != nil {
		t.Fatalf("example config does not parse: %v", err)
	}
	if cfg.DBPath != DefaultDBPath || cfg.BcryptCost != DefaultBcryptCost {
		t.Errorf("example values drifted from defaults: %+v", cfg)
	}
}
