// Package vectorindex wraps the OpenAI files and vector-store APIs as
// the retrieval backend. Files are uploaded once, then attached to a
// named index together with attribute metadata (owner id, session id);
// search filters on those attributes. The go-openai client covers file
// upload, index creation, and deletes; attach-with-attributes and
// attribute-filtered search have no wrapper in go-openai v1.41 and go
// through the raw endpoints with the same base URL and key.
package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

type Client struct {
	api     *openai.Client
	baseURL string
	apiKey  string
	httpCli *http.Client
}

// UploadResult carries the two references a document needs for a later
// delete: the provider file id and the index-scoped file id.
type UploadResult struct {
	FileID      string
	IndexFileID string
	Status      string
}

// SearchHit is one retrieved passage from an index query.
type SearchHit struct {
	FileID   string
	Filename string
	Excerpt  string
	Score    float64
}

func New(baseURL, apiKey string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  apiKey,
		httpCli: &http.Client{Timeout: 60 * time.Second},
	}
}

// CreateIndex creates a named vector store and returns its id. Used for
// the lazily created per-session indices.
func (c *Client) CreateIndex(ctx context.Context, name string) (string, error) {
	store, err := c.api.CreateVectorStore(ctx, openai.VectorStoreRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("create vector store %q failed: %w", name, err)
	}
	return store.ID, nil
}

// Upload pushes the file bytes to the provider and attaches the file to
// the given index with the attribute metadata. The mime type is carried
// for the caller's bookkeeping; the provider derives handling from the
// file name.
func (c *Client) Upload(ctx context.Context, data []byte, filename, mimeType, indexID string, attributes map[string]string) (*UploadResult, error) {
	_ = mimeType

	file, err := c.api.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    filename,
		Bytes:   data,
		Purpose: openai.PurposeAssistants,
	})
	if err != nil {
		return nil, fmt.Errorf("upload file %q failed: %w", filename, err)
	}

	attached, err := c.attachFile(ctx, indexID, file.ID, attributes)
	if err != nil {
		// The orphaned provider file would never be referenced; take it
		// back out before reporting failure.
		_ = c.api.DeleteFile(ctx, file.ID)
		return nil, err
	}

	return &UploadResult{
		FileID:      file.ID,
		IndexFileID: attached.ID,
		Status:      attached.Status,
	}, nil
}

// Delete removes the file from the index and then deletes the provider
// file itself. Both steps treat "already deleted" as success.
func (c *Client) Delete(ctx context.Context, indexID, indexFileID, fileID string) error {
	if indexID != "" && indexFileID != "" {
		if err := c.api.DeleteVectorStoreFile(ctx, indexID, indexFileID); err != nil && !isNotFound(err) {
			return fmt.Errorf("delete index file %s from %s failed: %w", indexFileID, indexID, err)
		}
	}
	if fileID != "" {
		if err := c.api.DeleteFile(ctx, fileID); err != nil && !isNotFound(err) {
			return fmt.Errorf("delete file %s failed: %w", fileID, err)
		}
	}
	return nil
}

// Search runs an attribute-filtered query over each index and merges the
// hits. An empty filter map queries the index unfiltered (public
// material such as regulations carries no owner attributes).
func (c *Client) Search(ctx context.Context, indexIDs []string, query string, filters map[string]string) ([]SearchHit, error) {
	var hits []SearchHit
	for _, indexID := range indexIDs {
		if indexID == "" {
			continue
		}
		indexHits, err := c.searchIndex(ctx, indexID, query, filters)
		if err != nil {
			return nil, err
		}
		hits = append(hits, indexHits...)
	}
	return hits, nil
}

type indexFile struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (c *Client) attachFile(ctx context.Context, indexID, fileID string, attributes map[string]string) (*indexFile, error) {
	body := map[string]any{"file_id": fileID}
	if len(attributes) > 0 {
		body["attributes"] = attributes
	}

	var out indexFile
	path := fmt.Sprintf("/vector_stores/%s/files", indexID)
	if err := c.post(ctx, path, body, &out); err != nil {
		return nil, fmt.Errorf("attach file %s to index %s failed: %w", fileID, indexID, err)
	}
	return &out, nil
}

type searchResponse struct {
	Data []struct {
		FileID   string  `json:"file_id"`
		Filename string  `json:"filename"`
		Score    float64 `json:"score"`
		Content  []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

func (c *Client) searchIndex(ctx context.Context, indexID, query string, filters map[string]string) ([]SearchHit, error) {
	body := map[string]any{"query": query}
	if filter := buildAttributeFilter(filters); filter != nil {
		body["filters"] = filter
	}

	var out searchResponse
	path := fmt.Sprintf("/vector_stores/%s/search", indexID)
	if err := c.post(ctx, path, body, &out); err != nil {
		return nil, fmt.Errorf("search index %s failed: %w", indexID, err)
	}

	hits := make([]SearchHit, 0, len(out.Data))
	for _, item := range out.Data {
		hit := SearchHit{
			FileID:   item.FileID,
			Filename: item.Filename,
			Score:    item.Score,
		}
		for _, part := range item.Content {
			if part.Type == "text" {
				hit.Excerpt = part.Text
				break
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// buildAttributeFilter renders the provider's comparison-filter tree:
// a single eq node, or an "and" over several.
func buildAttributeFilter(filters map[string]string) map[string]any {
	if len(filters) == 0 {
		return nil
	}
	nodes := make([]map[string]any, 0, len(filters))
	for key, value := range filters {
		nodes = append(nodes, map[string]any{
			"type":  "eq",
			"key":   key,
			"value": value,
		})
	}
	if len(nodes) == 1 {
		return nodes[0]
	}
	return map[string]any{"type": "and", "filters": nodes}
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, truncate(string(raw), 256))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response failed: %w", err)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr *openai.APIError
	return errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusNotFound
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
