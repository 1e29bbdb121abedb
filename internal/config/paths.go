package config

import (
	"os"
	"path/filepath"
	"strings"
)

// resolvePath turns a configured file path (db_path, log_file) into the path
// the app opens: $VAR references are expanded, a leading ~ becomes the home
// directory, and a relative result is anchored at root. Empty stays empty.
func resolvePath(p, root string) string {
	if p == "" {
		return ""
	}
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, "~"+string(filepath.Separator)) {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	if !filepath.IsAbs(p) && root != "" {
		p = filepath.Join(root, p)
	}
	return filepath.Clean(p)
}
