package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
)

// defaultFileExtensions selects documentation-like files when the
// source does not specify its own list.
var defaultFileExtensions = []string{".md", ".rst", ".txt"}

// treeEntry is one entry of the git trees API response.
type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "blob" or "tree"
}

// loadGitHubRepo lists a repository's tree via the GitHub API, filters
// it down to documentation files, and fetches each file's raw content.
func (l *Loader) loadGitHubRepo(ctx context.Context, src Config) ([]Document, error) {
	branch := src.Branch
	if branch == "" {
		branch = "main"
	}

	token := src.Token
	if token == "" {
		token = os.Getenv("GITHUB_PERSONAL_ACCESS_TOKEN")
	}

	entries, err := l.listTree(ctx, src.Repo, branch, token)
	if err != nil {
		return nil, fmt.Errorf("listing tree of %s@%s: %w", src.Repo, branch, err)
	}

	paths := filterTreePaths(entries, src.IncludePaths, src.FileExtensions)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no matching files in %s@%s", src.Repo, branch)
	}
	l.logger.Info("fetching repository files",
		"repo", src.Repo, "branch", branch, "files", len(paths))

	docs := make([]Document, 0, len(paths))
	for _, filePath := range paths {
		content, err := l.fetchRawFile(ctx, src.Repo, branch, filePath, token)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", filePath, err)
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		docs = append(docs, Document{
			Content: content,
			Metadata: map[string]any{
				"repo":           src.Repo,
				"file_path":      filePath,
				"file_extension": strings.ToLower(path.Ext(filePath)),
			},
		})
	}
	return docs, nil
}

// filterTreePaths keeps blob paths that match one of the wanted
// extensions and, if includePaths is set, live under one of them.
func filterTreePaths(entries []treeEntry, includePaths, extensions []string) []string {
	if len(extensions) == 0 {
		extensions = defaultFileExtensions
	}

	var paths []string
	for _, e := range entries {
		if e.Type != "blob" {
			continue
		}

		ext := strings.ToLower(path.Ext(e.Path))
		matched := false
		for _, want := range extensions {
			if ext == strings.ToLower(want) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		if len(includePaths) > 0 {
			allowed := false
			for _, prefix := range includePaths {
				if strings.HasPrefix(e.Path, prefix) {
					allowed = true
					break
				}
			}
			if !allowed {
				continue
			}
		}

		paths = append(paths, e.Path)
	}
	return paths
}

// listTree calls the git trees API with recursive listing.
func (l *Loader) listTree(ctx context.Context, repo, branch, token string) ([]treeEntry, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/git/trees/%s?recursive=1", l.githubAPI, repo, branch)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("GitHub API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tree struct {
		Tree      []treeEntry `json:"tree"`
		Truncated bool        `json:"truncated"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tree); err != nil {
		return nil, fmt.Errorf("decoding tree response: %w", err)
	}
	if tree.Truncated {
		l.logger.Warn("GitHub tree listing truncated, some files will be missed", "repo", repo)
	}
	return tree.Tree, nil
}

func (l *Loader) fetchRawFile(ctx context.Context, repo, branch, filePath, token string) (string, error) {
	rawURL := fmt.Sprintf("%s/%s/%s/%s", l.githubRaw, repo, branch, filePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading file body: %w", err)
	}
	return string(content), nil
}
