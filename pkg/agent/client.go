package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mscrnt/panelcap/pkg/db"
)

// Client represents an agent client
type Client struct {
	config     ClientConfig
	baseURL    string
	httpClient *http.Client
}

// ParseFiles names the local artifacts to upload; empty paths are skipped
type ParseFiles struct {
	EDID string
	VBT  string
	DPCD string
}

// APIError is a non-2xx reply from the agent
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// NewClient creates a new agent client
func NewClient(config ClientConfig) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	tlsConfig, err := config.LoadClientTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS config: %w", err)
	}

	scheme := "http"
	transport := &http.Transport{}
	if tlsConfig != nil {
		scheme = "https"
		transport.TLSClientConfig = tlsConfig
	}

	return &Client{
		config:  config,
		baseURL: scheme + "://" + net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	}, nil
}

// Parse uploads the given artifacts. With save set the server stores the
// record under name and the response carries its IDs.
func (c *Client) Parse(ctx context.Context, files ParseFiles, save bool, name string) (*ParseResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	attached := 0
	for field, path := range map[string]string{FieldEDID: files.EDID, FieldVBT: files.VBT, FieldDPCD: files.DPCD} {
		if path == "" {
			continue
		}
		if err := attachFile(mw, field, path); err != nil {
			return nil, err
		}
		attached++
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode upload: %w", err)
	}
	if attached == 0 {
		return nil, fmt.Errorf("no input files given")
	}

	q := url.Values{}
	if save {
		q.Set("save", "1")
		if name != "" {
			q.Set("name", name)
		}
	}
	endpoint := "/parse"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var resp ParseResponse
	if err := c.do(ctx, http.MethodPost, endpoint, mw.FormDataContentType(), &body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPanel fetches a stored panel by numeric ID or parse UUID
func (c *Client) GetPanel(ctx context.Context, key string) (*db.Panel, error) {
	var panel db.Panel
	if err := c.do(ctx, http.MethodGet, "/panels/"+url.PathEscape(key), "", nil, &panel); err != nil {
		return nil, err
	}
	return &panel, nil
}

// ListPanels fetches stored panels, newest first
func (c *Client) ListPanels(ctx context.Context, filter db.PanelFilter) ([]*db.Panel, error) {
	q := url.Values{}
	if filter.Vendor != "" {
		q.Set("vendor", filter.Vendor)
	}
	if filter.Name != "" {
		q.Set("name", filter.Name)
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}
	endpoint := "/panels"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var panels []*db.Panel
	if err := c.do(ctx, http.MethodGet, endpoint, "", nil, &panels); err != nil {
		return nil, err
	}
	return panels, nil
}

// CheckHealth checks if the agent is healthy
func (c *Client) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || string(body) != "OK\n" {
		return fmt.Errorf("unexpected health response %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr ErrorResponse
		msg := string(bytes.TrimSpace(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func attachFile(mw *multipart.Writer, field, path string) error {
	f, err := os.Open(path) // #nosec G304 -- path is a user-selected artifact
	if err != nil {
		return fmt.Errorf("failed to open %s file: %w", field, err)
	}
	defer func() { _ = f.Close() }()

	part, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to encode upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read %s file: %w", field, err)
	}
	return nil
}
