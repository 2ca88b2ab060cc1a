// Package workflow runs the two top-level pipelines (analyzeWorkspace,
// analyzeFile) over a shared time budget, producing structured results
// and side effects in shared context (spec §4.H Workflow engine).
package workflow

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// baselineIgnorePatterns is the built-in ignore list applied regardless
// of any .gitignore (spec §6 "Ignore rules").
var baselineIgnorePatterns = []string{
	".git/**", ".hg/**", ".svn/**",
	"**/node_modules/**", "**/dist/**", "**/build/**", "**/.next/**",
	"**/__pycache__/**", "**/*.pyc",
	"**/.venv/**", "**/venv/**",
	"**/.idea/**", "**/.vscode/**",
	"**/.mypy_cache/**", "**/.pytest_cache/**",
	"**/*.egg-info/**", "**/.tox/**", "**/.cache/**",
	"**/coverage/**", "**/htmlcov/**",
	"**/.DS_Store", "**/*.log",
}

// ignoreSet evaluates the baseline ignore list plus any patterns read
// from a workspace's .gitignore using git-wildmatch-compatible glob
// matching (doublestar supports ** the same way gitignore does).
type ignoreSet struct {
	patterns []string
}

func newIgnoreSet(workspacePath string) *ignoreSet {
	set := &ignoreSet{patterns: append([]string(nil), baselineIgnorePatterns...)}
	set.patterns = append(set.patterns, readGitignore(workspacePath)...)
	return set
}

func readGitignore(workspacePath string) []string {
	f, err := os.Open(filepath.Join(workspacePath, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.Contains(line, "/") {
			line = "**/" + line
		}
		if strings.HasSuffix(line, "/") {
			line += "**"
		}
		patterns = append(patterns, line)
	}
	return patterns
}

func (s *ignoreSet) ignored(relPath string) bool {
	clean := filepath.ToSlash(relPath)
	for _, pattern := range s.patterns {
		if ok, _ := doublestar.Match(pattern, clean); ok {
			return true
		}
	}
	return false
}

// scanWorkspace walks workspacePath honoring the ignore set, returning
// file contents keyed by path relative to the workspace root, capped
// at maxFiles (spec §4.H stage 1, spec §9 Open Question on
// "workflow.maxFilesPerStage").
func scanWorkspace(workspacePath string, maxFiles int) (map[string]string, error) {
	ignore := newIgnoreSet(workspacePath)
	files := make(map[string]string)

	err := filepath.Walk(workspacePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		relPath, relErr := filepath.Rel(workspacePath, path)
		if relErr != nil {
			return relErr
		}
		if relPath == "." {
			return nil
		}
		if ignore.ignored(relPath) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if len(files) >= maxFiles {
			return nil
		}
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		files[filepath.ToSlash(relPath)] = string(content)
		return nil
	})
	return files, err
}
