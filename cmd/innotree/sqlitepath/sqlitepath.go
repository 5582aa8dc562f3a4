// Package sqlitepath locates the SQLite files of the task archive and the
// paper bank when no path is configured.
package sqlitepath

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Goer17/InnoTree/pkg/dotdir"
)

const (
	// ArchiveFile holds finished and running search tasks.
	ArchiveFile = "innotree.db"

	// PapersFile holds the sqlite-vec paper bank.
	PapersFile = "papers.db"
)

// ResolveSQLitePath returns override when set, then the first existing
// file called name in the usual locations, and finally name inside the
// innotree directory resolved from configDir.
func ResolveSQLitePath(override, configDir, name string) (string, error) {
	if override != "" {
		return override, nil
	}

	for _, candidate := range sqliteCandidates(name) {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func sqliteCandidates(name string) []string {
	candidates := []string{
		name,
		filepath.Join(".innotree", name),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".innotree", name))
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append([]string{filepath.Join(xdgHome, "innotree", name)}, candidates...)
	}

	return candidates
}
