package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/lmarchetti/inkwell/internal/util"
)

const DefaultIPFSAPIURL = "http://localhost:5001"

type IPFSConfig struct {
	APIURL  string
	Timeout time.Duration
}

// IPFS talks to a local or remote IPFS node over its HTTP API. Identifiers
// are network-assigned CIDs; stored content is pinned so the node keeps it.
// The network is content-addressed and append-only, so Delete always fails.
type IPFS struct { // implements Storage
	apiURL string
	client *http.Client
}

func NewIPFS(cfg IPFSConfig) *IPFS {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultIPFSAPIURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &IPFS{
		apiURL: apiURL,
		client: &http.Client{Timeout: timeout},
	}
}

func (i *IPFS) api(ctx context.Context, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.apiURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return i.client.Do(req)
}

func (i *IPFS) add(ctx context.Context, content []byte) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "file")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(content); err != nil {
		return "", err
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	resp, err := i.api(ctx, "/api/v0/add", &buf, form.FormDataContentType())
	if err != nil {
		return "", fmt.Errorf("ipfs add failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ipfs add failed: %s", resp.Status)
	}

	var result struct {
		Hash string `json:"Hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("error decoding ipfs add response: %w", err)
	}
	if result.Hash == "" {
		return "", fmt.Errorf("no hash in ipfs add response")
	}

	return result.Hash, nil
}

func (i *IPFS) pin(ctx context.Context, cid string) error {
	resp, err := i.api(ctx, "/api/v0/pin/add?arg="+cid, nil, "")
	if err != nil {
		return fmt.Errorf("ipfs pin failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ipfs pin failed: %s", resp.Status)
	}
	return nil
}

func (i *IPFS) Store(ctx context.Context, content []byte, metadata map[string]string) (*Result, error) {
	hash := util.ContentHash(content)

	cid, err := i.add(ctx, content)
	if err != nil {
		return nil, err
	}

	// Pinning is part of the store step; unpinned content may be garbage
	// collected by the node.
	if err := i.pin(ctx, cid); err != nil {
		return nil, err
	}

	return &Result{
		ID:  cid,
		URL: "ipfs://" + cid,
		Metadata: Metadata{
			ID:          cid,
			Hash:        hash,
			Size:        len(content),
			CreatedAt:   time.Now().UTC(),
			ContentType: contentTypeOf(metadata),
			Extra:       metadata,
		},
	}, nil
}

func (i *IPFS) Retrieve(ctx context.Context, id string) ([]byte, error) {
	resp, err := i.api(ctx, "/api/v0/cat?arg="+id, nil, "")
	if err != nil {
		return nil, fmt.Errorf("ipfs cat failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusInternalServerError || resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ipfs cat failed: %s", resp.Status)
	}

	return io.ReadAll(resp.Body)
}

func (i *IPFS) Exists(ctx context.Context, id string) (bool, error) {
	resp, err := i.api(ctx, "/api/v0/object/stat?arg="+id, nil, "")
	if err != nil {
		return false, fmt.Errorf("ipfs stat failed: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK, nil
}

func (i *IPFS) Delete(ctx context.Context, id string) error {
	return fmt.Errorf("%w: ipfs content cannot be deleted", ErrImmutable)
}

func (i *IPFS) List(ctx context.Context, prefix string) ([]Metadata, error) {
	resp, err := i.api(ctx, "/api/v0/pin/ls", nil, "")
	if err != nil {
		return nil, fmt.Errorf("ipfs pin ls failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ipfs pin ls failed: %s", resp.Status)
	}

	var result struct {
		Keys map[string]struct {
			Type string `json:"Type"`
		} `json:"Keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error decoding ipfs pin ls response: %w", err)
	}

	metadataList := make([]Metadata, 0, len(result.Keys))
	for cid := range result.Keys {
		metadataList = append(metadataList, Metadata{
			ID:          cid,
			CreatedAt:   time.Now().UTC(),
			ContentType: DefaultContentType,
			Extra:       map[string]string{},
		})
	}

	return metadataList, nil
}

func (i *IPFS) Kind() Kind {
	return KindIPFS
}
