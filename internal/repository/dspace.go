package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/MITLibraries/dspace-submission-service/internal/metrics"
)

// DSpaceClient is the HTTP-backed Client implementation against a DSpace
// (or DSpace-compatible) REST API.
type DSpaceClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	authToken  string
}

// NewDSpaceClient builds a DSpaceClient against baseURL with the given
// per-call timeout.
func NewDSpaceClient(baseURL string, timeout time.Duration) *DSpaceClient {
	return &DSpaceClient{
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Login authenticates against the repository and stores the resulting
// session token for use by subsequent calls. Not retried. The start
// command logs in once per destination per process and reuses the
// session for every later batch; there is no new login per batch. A
// failure halts the loop for operator attention.
func (c *DSpaceClient) Login(user, password string) error {
	form := url.Values{"user": {user}, "password": {password}}
	resp, err := c.do(context.Background(), http.MethodPost, "login", nil, bytes.NewBufferString(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.authToken = resp.Header.Get("Authorization")
	return nil
}

// GetCollectionByHandle resolves a collection handle to its UUID.
func (c *DSpaceClient) GetCollectionByHandle(handle string) (Collection, error) {
	defer recordDuration("get_collection", time.Now())
	resp, err := c.do(context.Background(), http.MethodGet, "handle/"+handle, nil, nil, "")
	if err != nil {
		return Collection{}, err
	}
	defer resp.Body.Close()

	var parsed struct {
		UUID string `json:"uuid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Collection{}, fmt.Errorf("failed to decode collection response: %w", err)
	}
	return Collection{UUID: parsed.UUID}, nil
}

// CreateItem posts item to the named collection.
func (c *DSpaceClient) CreateItem(collectionUUID string, item ItemPayload) (CreatedItem, error) {
	defer recordDuration("create_item", time.Now())
	body, err := json.Marshal(map[string]any{"metadata": item.Metadata})
	if err != nil {
		return CreatedItem{}, fmt.Errorf("failed to encode item payload: %w", err)
	}

	resp, err := c.do(context.Background(), http.MethodPost, "collections/"+collectionUUID+"/items", nil, bytes.NewReader(body), "application/json")
	if err != nil {
		return CreatedItem{}, err
	}
	defer resp.Body.Close()

	var parsed struct {
		UUID         string `json:"uuid"`
		Handle       string `json:"handle"`
		LastModified string `json:"lastModified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return CreatedItem{}, fmt.Errorf("failed to decode created item response: %w", err)
	}
	return CreatedItem{UUID: parsed.UUID, Handle: parsed.Handle, LastModified: parsed.LastModified}, nil
}

// AttachBitstream uploads stream as a named bitstream on the item.
func (c *DSpaceClient) AttachBitstream(itemUUID, name, description string, stream io.Reader) (CreatedBitstream, error) {
	defer recordDuration("attach_bitstream", time.Now())
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return CreatedBitstream{}, fmt.Errorf("failed to build multipart request: %w", err)
	}
	if _, err := io.Copy(part, stream); err != nil {
		return CreatedBitstream{}, fmt.Errorf("failed to read bitstream content: %w", err)
	}
	if description != "" {
		_ = writer.WriteField("description", description)
	}
	if err := writer.Close(); err != nil {
		return CreatedBitstream{}, fmt.Errorf("failed to finalize multipart request: %w", err)
	}

	resp, err := c.do(context.Background(), http.MethodPost, "items/"+itemUUID+"/bitstreams", nil, &buf, writer.FormDataContentType())
	if err != nil {
		return CreatedBitstream{}, err
	}
	defer resp.Body.Close()

	var parsed struct {
		UUID     string `json:"uuid"`
		CheckSum struct {
			Value string `json:"value"`
		} `json:"checkSum"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return CreatedBitstream{}, fmt.Errorf("failed to decode created bitstream response: %w", err)
	}
	return CreatedBitstream{UUID: parsed.UUID, Checksum: parsed.CheckSum.Value}, nil
}

// DeleteBitstream deletes a bitstream by UUID, used during compensation.
func (c *DSpaceClient) DeleteBitstream(uuid string) error {
	defer recordDuration("delete_bitstream", time.Now())
	resp, err := c.do(context.Background(), http.MethodDelete, "bitstreams/"+uuid, nil, nil, "")
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// DeleteItem deletes an item by UUID, used during compensation.
func (c *DSpaceClient) DeleteItem(uuid string) error {
	defer recordDuration("delete_item", time.Now())
	resp, err := c.do(context.Background(), http.MethodDelete, "items/"+uuid, nil, nil, "")
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func recordDuration(operation string, start time.Time) {
	metrics.RecordRepositoryCall(operation, time.Since(start))
}

func (c *DSpaceClient) do(ctx context.Context, method, path string, headers map[string]string, body io.Reader, contentType string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", c.authToken)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, &TimeoutError{Err: err}
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{Err: err}
		}
		return nil, fmt.Errorf("request to '%s' failed: %w", path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return resp, nil
}
