package provider

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/mvp-joe/codegraphd/internal/store"
)

// Commit is one entry from the repository's recent history.
type Commit struct {
	Hash    string
	Message string
	Files   []string
}

// HistoryReader lists the last maxCommits commits touching repoPath.
// An interface so tests can substitute a fixed history without shelling
// out, the way the teacher's git.Operations is swapped for MockGitOps.
type HistoryReader interface {
	RecentCommits(ctx context.Context, repoPath string, maxCommits int) ([]Commit, error)
}

// execHistoryReader shells out to the git CLI, grounded on the
// teacher's internal/git/operations.go exec.Command pattern
// (cmd.Dir = projectPath, parse line-oriented plumbing output).
type execHistoryReader struct{}

// NewExecHistoryReader returns a HistoryReader backed by the git binary.
func NewExecHistoryReader() HistoryReader { return execHistoryReader{} }

const commitRecordSep = "\x1e"
const fieldSep = "\x1f"

func (execHistoryReader) RecentCommits(ctx context.Context, repoPath string, maxCommits int) ([]Commit, error) {
	if maxCommits <= 0 {
		maxCommits = 50
	}
	cmd := exec.CommandContext(ctx, "git", "log",
		"-n", strconv.Itoa(maxCommits),
		"--name-only",
		"--pretty=format:"+commitRecordSep+"%H"+fieldSep+"%s")
	cmd.Dir = repoPath

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git history: git log failed: %w", err)
	}

	var commits []Commit
	records := strings.Split(string(output), commitRecordSep)
	for _, rec := range records {
		rec = strings.TrimSpace(rec)
		if rec == "" {
			continue
		}
		lines := strings.Split(rec, "\n")
		header := strings.SplitN(lines[0], fieldSep, 2)
		if len(header) != 2 {
			continue
		}
		c := Commit{Hash: header[0], Message: header[1]}
		for _, f := range lines[1:] {
			f = strings.TrimSpace(f)
			if f != "" {
				c.Files = append(c.Files, f)
			}
		}
		commits = append(commits, c)
	}
	return commits, nil
}

// GitHistoryProvider scores chunks by recent-commit relevance: commits
// whose message matches query tokens contribute to every file they
// touched, and every chunk of a touched file inherits that file's
// accumulated score.
type GitHistoryProvider struct {
	Store      *store.Store
	Reader     HistoryReader
	RepoPath   string
	MaxCommits int
	DefaultK   int
}

func (p *GitHistoryProvider) Name() string { return "git-history" }

func (p *GitHistoryProvider) GetContext(ctx context.Context, q Query) ([]Snippet, error) {
	k := q.K
	if k <= 0 {
		k = p.DefaultK
	}

	tokens := tokenize(q.Text)
	if len(tokens) == 0 {
		return nil, nil
	}

	commits, err := p.Reader.RecentCommits(ctx, p.RepoPath, p.MaxCommits)
	if err != nil {
		return nil, fmt.Errorf("git history provider: %w", err)
	}

	fileScores := make(map[string]float64)
	for _, c := range commits {
		lowerMsg := strings.ToLower(c.Message)
		var hits int
		for _, tok := range tokens {
			if strings.Contains(lowerMsg, tok) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		for _, f := range c.Files {
			fileScores[f] += float64(hits)
		}
	}

	var snippets []Snippet
	for relPath, score := range fileScores {
		fs, err := store.GetFileStateByPath(p.Store.DB(), relPath)
		if err != nil {
			return nil, fmt.Errorf("git history provider: failed to load file state for %s: %w", relPath, err)
		}
		if fs == nil || fs.IsDeleted {
			continue
		}
		chunks, err := store.ListChunksByFile(p.Store.DB(), fs.ID)
		if err != nil {
			return nil, fmt.Errorf("git history provider: failed to list chunks for %s: %w", relPath, err)
		}
		for _, c := range chunks {
			if !matchesFilters(q.Filters, fs.Language, relPath, c.Kind) {
				continue
			}
			snippets = append(snippets, Snippet{
				ChunkID:   c.ID,
				Score:     score,
				FilePath:  relPath,
				Kind:      c.Kind,
				Text:      c.Content,
				Language:  fs.Language,
				Ordinal:   c.Ordinal,
				StartLine: c.StartLine,
				EndLine:   c.EndLine,
			})
		}
	}

	sortByScoreDescending(snippets)
	if len(snippets) > k {
		snippets = snippets[:k]
	}
	normalizeScores(snippets, true)
	return snippets, nil
}
