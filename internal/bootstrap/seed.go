// Package bootstrap seeds and loads the editable prompt files of a workspace.
package bootstrap

import (
	"bytes"
	"embed"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

// Workspace prompt files.
const (
	SystemFile   = "SYSTEM.md"
	GreetingFile = "GREETING.md"
)

//go:embed templates/*.md
var templateFS embed.FS

// templateFiles lists the templates to seed, in order.
var templateFiles = []string{
	SystemFile,
	SystemFileFor(SegmentDrinks),
	SystemFileFor(SegmentConstruction),
	GreetingFile,
}

// ReadTemplate returns the content of an embedded template file.
func ReadTemplate(name string) (string, error) {
	content, err := templateFS.ReadFile(filepath.Join("templates", name))
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// EnsureWorkspaceFiles seeds template files into a workspace directory.
// Only writes files that don't already exist (will not overwrite).
// Returns the list of files that were created.
func EnsureWorkspaceFiles(workspaceDir string) ([]string, error) {
	if err := os.MkdirAll(workspaceDir, 0755); err != nil {
		return nil, err
	}

	var created []string
	for _, name := range templateFiles {
		ok, err := seedTemplate(workspaceDir, name)
		if err != nil {
			slog.Warn("bootstrap: failed to seed template", "file", name, "error", err)
			continue
		}
		if ok {
			created = append(created, name)
		}
	}
	return created, nil
}

// seedTemplate writes a template file to the workspace if it doesn't exist.
// Returns true if the file was created, false if it already exists.
func seedTemplate(workspaceDir, name string) (bool, error) {
	dstPath := filepath.Join(workspaceDir, name)

	// Only create if file doesn't exist (O_EXCL)
	f, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil // already exists, skip
		}
		return false, err
	}
	defer f.Close()

	content, err := templateFS.ReadFile(filepath.Join("templates", name))
	if err != nil {
		os.Remove(dstPath) // clean up empty file
		return false, err
	}

	if _, err := f.Write(content); err != nil {
		return false, err
	}
	return true, nil
}

// Load returns the workspace copy of name, falling back to the embedded
// template when the workspace is empty or the file is missing.
func Load(workspaceDir, name string) string {
	if workspaceDir != "" {
		if data, err := os.ReadFile(filepath.Join(workspaceDir, name)); err == nil {
			return string(data)
		}
	}
	content, _ := ReadTemplate(name)
	return content
}

// PromptData is the data available to the system prompt template.
type PromptData struct {
	Date string
}

// SystemPrompt renders the segment's system prompt for now, falling back to
// the general prompt when the segment has none. A template that fails to
// parse or execute is returned raw.
func SystemPrompt(workspaceDir string, segment Segment, now time.Time) string {
	name := SystemFileFor(segment)
	raw := Load(workspaceDir, name)
	if raw == "" && name != SystemFile {
		name, raw = SystemFile, Load(workspaceDir, SystemFile)
	}
	tmpl, err := template.New(name).Parse(raw)
	if err != nil {
		slog.Warn("bootstrap: invalid system prompt template", "file", name, "error", err)
		return strings.TrimSpace(raw)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, PromptData{Date: now.Format("2006-01-02")}); err != nil {
		slog.Warn("bootstrap: render system prompt", "file", name, "error", err)
		return strings.TrimSpace(raw)
	}
	return strings.TrimSpace(buf.String())
}

// Greeting returns the first-contact greeting.
func Greeting(workspaceDir string) string {
	return strings.TrimSpace(Load(workspaceDir, GreetingFile))
}
