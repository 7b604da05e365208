package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lmarchetti/inkwell/internal/util"
)

type GitHubConfig struct {
	Owner   string
	Repo    string
	Branch  string
	Token   string
	BaseURL string // overridable for tests
}

// GitHub commits content to a repository through the contents API. It is
// path-addressed: Store requires the "path" metadata key and returns the
// commit SHA as identifier, while Retrieve and Exists address by path.
type GitHub struct { // implements Storage
	client  *http.Client
	baseURL string
	owner   string
	repo    string
	branch  string
	token   string
}

func NewGitHub(cfg GitHubConfig) *GitHub {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}

	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}

	return &GitHub{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		owner:   cfg.Owner,
		repo:    cfg.Repo,
		branch:  branch,
		token:   cfg.Token,
	}
}

func (g *GitHub) apiURL(path string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", g.baseURL, g.owner, g.repo, path)
}

func (g *GitHub) newRequest(ctx context.Context, method, url string, body io.Reader, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+g.token)
	req.Header.Set("Accept", accept)
	return req, nil
}

func (g *GitHub) Store(ctx context.Context, content []byte, metadata map[string]string) (*Result, error) {
	path, ok := metadata[MetaPath]
	if !ok || path == "" {
		return nil, ErrMissingPath
	}

	hash := util.ContentHash(content)

	message := metadata[MetaMessage]
	if message == "" {
		message = "Add content to " + path
	}

	payload, err := json.Marshal(map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  g.branch,
	})
	if err != nil {
		return nil, err
	}

	req, err := g.newRequest(ctx, http.MethodPut, g.apiURL(path), bytes.NewReader(payload), "application/vnd.github.v3+json")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github store failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github api error: %s", resp.Status)
	}

	var result struct {
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error decoding github response: %w", err)
	}
	if result.Commit.SHA == "" {
		return nil, fmt.Errorf("no commit sha in github response")
	}

	return &Result{
		ID:  result.Commit.SHA,
		URL: fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", g.owner, g.repo, g.branch, path),
		Metadata: Metadata{
			ID:          result.Commit.SHA,
			Hash:        hash,
			Size:        len(content),
			CreatedAt:   time.Now().UTC(),
			ContentType: contentTypeOf(metadata),
			Extra:       metadata,
		},
	}, nil
}

func (g *GitHub) Retrieve(ctx context.Context, id string) ([]byte, error) {
	req, err := g.newRequest(ctx, http.MethodGet, g.apiURL(id), nil, "application/vnd.github.v3.raw")
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github retrieve failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github api error: %s", resp.Status)
	}

	return io.ReadAll(resp.Body)
}

func (g *GitHub) Exists(ctx context.Context, id string) (bool, error) {
	req, err := g.newRequest(ctx, http.MethodHead, g.apiURL(id), nil, "application/vnd.github.v3+json")
	if err != nil {
		return false, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("github exists failed: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK, nil
}

// Delete would need the blob SHA of the current file version, which the commit
// identifier we hand out does not carry. Surfaced as a capability error until
// the identifier scheme records the path alongside the commit.
func (g *GitHub) Delete(ctx context.Context, id string) error {
	return fmt.Errorf("%w: github storage deletion not implemented", ErrImmutable)
}

func (g *GitHub) List(ctx context.Context, prefix string) ([]Metadata, error) {
	req, err := g.newRequest(ctx, http.MethodGet, g.apiURL(prefix), nil, "application/vnd.github.v3+json")
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github list failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github api error: %s", resp.Status)
	}

	var entries []struct {
		Name string `json:"name"`
		Path string `json:"path"`
		SHA  string `json:"sha"`
		Size int    `json:"size"`
		Type string `json:"type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("error decoding github response: %w", err)
	}

	metadataList := make([]Metadata, 0, len(entries))
	for _, entry := range entries {
		if entry.Type != "file" {
			continue
		}
		metadataList = append(metadataList, Metadata{
			ID:          entry.SHA,
			Size:        entry.Size,
			CreatedAt:   time.Now().UTC(),
			ContentType: DefaultContentType,
			Extra:       map[string]string{MetaPath: entry.Path},
		})
	}

	return metadataList, nil
}

func (g *GitHub) Kind() Kind {
	return KindGitHub
}
