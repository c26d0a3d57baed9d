package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/securesearch/securesearch/internal/clientpipeline"
)

// defaultSessionPath returns the path init/add/search use to carry a
// client's identity and planes between separate CLI invocations: nothing
// in the protocol itself requires persistence, but a new process can't
// otherwise recover the planes bytes an earlier `init` received.
func defaultSessionPath() string {
	if p := os.Getenv("SECURE_SEARCH_SESSION_FILE"); p != "" {
		return p
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, ".securesearch", "session.json")
}

func saveSession(path string, session clientpipeline.Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func loadSession(path string) (clientpipeline.Session, error) {
	var session clientpipeline.Session
	data, err := os.ReadFile(path)
	if err != nil {
		return session, fmt.Errorf("reading session file %q (run `init` first): %w", path, err)
	}
	if err := json.Unmarshal(data, &session); err != nil {
		return session, fmt.Errorf("parsing session file %q: %w", path, err)
	}
	return session, nil
}
