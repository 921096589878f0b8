// Package preflight validates the environment before a session starts.
//
// Checks are advisory for the REPL (warnings) and fatal for headless runs:
// the caller decides what to do with a failed Result.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quillhq/quill/internal/config"
)

// Result is the outcome of the preflight checks plus whatever repository
// context could be extracted.
type Result struct {
	OK         bool     `json:"ok"`
	Reasons    []string `json:"reasons,omitempty"`
	GitHubRepo string   `json:"github_repo,omitempty"`
	Branch     string   `json:"branch,omitempty"`
}

// Run executes all checks against cfg.RepoPath. It never returns an error;
// failures are collected into the Result.
func Run(cfg *config.Config, logger zerolog.Logger) Result {
	log := logger.With().Str("component", "preflight").Logger()
	var reasons []string

	gitOK := true
	if _, err := exec.LookPath("git"); err != nil {
		reasons = append(reasons, "'git' binary not found on PATH")
		gitOK = false
	}

	if gitOK && !insideWorktree(cfg.RepoPath) {
		reasons = append(reasons, fmt.Sprintf("path %q is not inside a git worktree", cfg.RepoPath))
		gitOK = false
	}

	if len(cfg.AI.Profiles) == 0 {
		reasons = append(reasons, "no AI profile configured; set OPENAI_API_KEY or ANTHROPIC_API_KEY")
	} else {
		for _, p := range cfg.AI.Profiles {
			if p.APIKey == "" {
				reasons = append(reasons, fmt.Sprintf("profile %q has no API key", p.ID))
			}
		}
	}

	res := Result{OK: len(reasons) == 0, Reasons: reasons}
	if gitOK {
		res.GitHubRepo = githubRepo(cfg.RepoPath)
		res.Branch = branch(cfg.RepoPath)
	}

	if res.OK {
		log.Info().
			Str("github_repo", res.GitHubRepo).
			Str("branch", res.Branch).
			Msg("preflight checks passed")
	} else {
		log.Warn().Strs("reasons", res.Reasons).Msg("preflight checks failed")
	}
	return res
}

func insideWorktree(path string) bool {
	out, err := gitOutput(path, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// githubRepo extracts "owner/repo" from the origin remote. Empty when the
// remote is missing or unparseable.
func githubRepo(path string) string {
	out, err := gitOutput(path, "remote", "get-url", "origin")
	if err != nil || out == "" {
		return ""
	}
	return ParseRemote(out)
}

// branch returns the current branch name, falling back to GITHUB_REF when
// HEAD is detached (the common case on CI).
func branch(path string) string {
	out, err := gitOutput(path, "rev-parse", "--abbrev-ref", "HEAD")
	if err == nil && out != "" && out != "HEAD" {
		return out
	}
	if ref := os.Getenv("GITHUB_REF"); strings.Contains(ref, "/") {
		parts := strings.Split(ref, "/")
		return parts[len(parts)-1]
	}
	return ""
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// ParseRemote normalizes a git remote URL into "owner/repo" form. Both
// SSH (git@github.com:owner/repo.git) and HTTPS URLs are handled.
func ParseRemote(url string) string {
	url = strings.TrimSuffix(strings.TrimSpace(url), ".git")

	if strings.HasPrefix(url, "git@") {
		if _, path, ok := strings.Cut(url, ":"); ok {
			return path
		}
		return ""
	}

	for _, scheme := range []string{"https://", "http://", "ssh://"} {
		if rest, ok := strings.CutPrefix(url, scheme); ok {
			if _, path, found := strings.Cut(rest, "/"); found {
				return path
			}
			return ""
		}
	}
	return url
}
