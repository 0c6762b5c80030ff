package recordingclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"meetingminutes/pkg/domain"
)

// Client calls the recording service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// uploads stream large audio bodies, so they get their own client
	// with a much longer timeout.
	uploadClient *http.Client
}

// APIError represents a recording service error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewClient constructs a recording service client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		uploadClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// CreateProject creates a project for the token's user.
func (c *Client) CreateProject(token, name, description string) (domain.Project, error) {
	var project domain.Project
	err := c.doJSON(http.MethodPost, "/projects", token, map[string]string{
		"name":        name,
		"description": description,
	}, &project)
	return project, err
}

// ListProjects lists the token's projects.
func (c *Client) ListProjects(token string) ([]domain.Project, error) {
	var resp struct {
		Items []domain.Project `json:"items"`
	}
	if err := c.doJSON(http.MethodGet, "/projects", token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// CreateWorkspace creates a workspace under a project.
func (c *Client) CreateWorkspace(token, projectID, name, description string) (domain.Workspace, error) {
	var ws domain.Workspace
	err := c.doJSON(http.MethodPost, "/workspaces", token, map[string]string{
		"projectId":   projectID,
		"name":        name,
		"description": description,
	}, &ws)
	return ws, err
}

// ListWorkspaces lists every workspace of the token's user, joined with
// project metadata.
func (c *Client) ListWorkspaces(token string) ([]domain.WorkspaceListing, error) {
	var resp struct {
		Items []domain.WorkspaceListing `json:"items"`
	}
	if err := c.doJSON(http.MethodGet, "/workspaces", token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ListRecordings lists a workspace's recordings.
func (c *Client) ListRecordings(token, workspaceID string) ([]domain.Recording, error) {
	var resp struct {
		Items []domain.Recording `json:"items"`
	}
	path := fmt.Sprintf("/workspaces/%s/recordings", workspaceID)
	if err := c.doJSON(http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// GetRecording fetches one recording.
func (c *Client) GetRecording(token, id string) (domain.Recording, error) {
	var rec domain.Recording
	err := c.doJSON(http.MethodGet, "/recordings/"+id, token, nil, &rec)
	return rec, err
}

// UploadRecording streams a prepared multipart body to the intake
// endpoint without buffering it.
func (c *Client) UploadRecording(token, workspaceID, contentType string, body io.Reader) (domain.Recording, error) {
	path := fmt.Sprintf("%s/workspaces/%s/recordings", c.baseURL, workspaceID)
	req, err := http.NewRequest(http.MethodPost, path, body)
	if err != nil {
		return domain.Recording{}, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return domain.Recording{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return domain.Recording{}, decodeError(resp)
	}
	var rec domain.Recording
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return domain.Recording{}, err
	}
	return rec, nil
}

// Health probes the recording service health endpoint, bounded by the
// caller's ctx.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	return nil
}

func (c *Client) doJSON(method, path, token string, payload, out any) error {
	var body *bytes.Buffer
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(data)
	} else {
		body = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&errResp)
	msg := errResp.Error
	if msg == "" {
		msg = resp.Status
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
