package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/faq-assistant/internal/core/domain"
)

// Client stores corpus question vectors in a Qdrant collection using the
// Euclid metric. Point ids are corpus positions.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	mu        sync.Mutex
	ensured   bool
	dimension int
	count     int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Ping checks that the Qdrant API answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/collections", nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ping request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return statusError("ping", resp)
	}
	return nil
}

// Add recreates the collection on first use and upserts vectors after the
// ones already added.
func (c *Client) Add(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      int            `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	c.mu.Lock()
	offset := c.count
	c.mu.Unlock()

	points := make([]point, 0, len(vectors))
	for i, v := range vectors {
		if len(v) != len(vectors[0]) {
			return fmt.Errorf("vector %d dimension mismatch: expected %d, got %d", i, len(vectors[0]), len(v))
		}
		points = append(points, point{
			ID:      offset + i,
			Vector:  v,
			Payload: map[string]any{"corpus_index": offset + i},
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	if err := c.doJSON(ctx, http.MethodPut, url, map[string]any{"points": points}, nil, "upsert"); err != nil {
		return err
	}

	c.mu.Lock()
	c.count += len(vectors)
	c.mu.Unlock()
	return nil
}

// Nearest returns the top-1 point. Qdrant reports plain Euclidean distance as
// the score for Euclid collections; it is squared here so both backends share
// one distance scale.
func (c *Client) Nearest(ctx context.Context, query []float32) (domain.Neighbor, error) {
	reqBody := map[string]any{
		"vector":       query,
		"limit":        1,
		"with_payload": false,
	}

	var searchResp struct {
		Result []struct {
			ID    json.Number `json:"id"`
			Score float64     `json:"score"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	if err := c.doJSON(ctx, http.MethodPost, url, reqBody, &searchResp, "search"); err != nil {
		return domain.Neighbor{}, err
	}
	if len(searchResp.Result) == 0 {
		return domain.Neighbor{}, fmt.Errorf("qdrant search returned no points")
	}

	hit := searchResp.Result[0]
	id, err := hit.ID.Int64()
	if err != nil {
		return domain.Neighbor{}, fmt.Errorf("parse point id %q: %w", hit.ID, err)
	}
	return domain.Neighbor{Index: int(id), Distance: hit.Score * hit.Score}, nil
}

func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.mu.Lock()
	if c.ensured {
		dim := c.dimension
		c.mu.Unlock()
		if dim != vectorSize {
			return fmt.Errorf("collection dimension %d, got vectors of %d", dim, vectorSize)
		}
		return nil
	}
	c.mu.Unlock()

	// The corpus is rebuilt on every startup, so stale points must go.
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	if err := c.doJSON(ctx, http.MethodDelete, url, nil, nil, "delete collection"); err != nil && !isNotFound(err) {
		return err
	}

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Euclid",
		},
	}
	if err := c.doJSON(ctx, http.MethodPut, url, reqBody, nil, "ensure collection"); err != nil {
		return err
	}

	c.mu.Lock()
	c.ensured = true
	c.dimension = vectorSize
	c.count = 0
	c.mu.Unlock()
	return nil
}

type statusErr struct {
	operation  string
	statusCode int
	msg        string
}

func (e *statusErr) Error() string {
	return e.msg
}

func isNotFound(err error) bool {
	se, ok := err.(*statusErr)
	return ok && se.statusCode == http.StatusNotFound
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload any, out any, operation string) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(operation, resp)
	}
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := fmt.Sprintf("qdrant %s status: %s", operation, resp.Status)
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		msg += ": " + trimmed
	}
	return &statusErr{operation: operation, statusCode: resp.StatusCode, msg: msg}
}
