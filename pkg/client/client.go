package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/toman-eng/devflow-metrics/internal/domain"
)

// Client is the API client for devflow-metrics
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// GetProjectReport retrieves the metric report for a project
func (c *Client) GetProjectReport(project string, days int, families []string) (*domain.Report, error) {
	path := fmt.Sprintf("/api/v1/projects/%s/report", url.PathEscape(project))
	params := buildReportParams(days, families)

	var response struct {
		Data *domain.Report `json:"data"`
	}
	if err := c.get(path, params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetDeveloperReport retrieves the metric report for a developer
// within a project
func (c *Client) GetDeveloperReport(project, username string, days int, families []string) (*domain.Report, error) {
	path := fmt.Sprintf("/api/v1/projects/%s/developers/%s/report",
		url.PathEscape(project), url.PathEscape(username))
	params := buildReportParams(days, families)

	var response struct {
		Data *domain.Report `json:"data"`
	}
	if err := c.get(path, params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetGroupReport retrieves the roll-up report for a group
func (c *Client) GetGroupReport(group string, days int) (*domain.RollupReport, error) {
	path := fmt.Sprintf("/api/v1/groups/%s/report", url.PathEscape(group))
	params := buildReportParams(days, nil)

	var response struct {
		Data *domain.RollupReport `json:"data"`
	}
	if err := c.get(path, params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// HealthCheck checks if the API is healthy
func (c *Client) HealthCheck() error {
	var response struct {
		Status string `json:"status"`
	}
	if err := c.get("/health", nil, &response); err != nil {
		return err
	}
	if response.Status != "ok" {
		return fmt.Errorf("unhealthy status: %s", response.Status)
	}
	return nil
}

func buildReportParams(days int, families []string) url.Values {
	params := url.Values{}
	if days > 0 {
		params.Set("days", strconv.Itoa(days))
	}
	if len(families) > 0 {
		params.Set("families", strings.Join(families, ","))
	}
	return params
}

func (c *Client) get(path string, params url.Values, result interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	resp, err := c.httpClient.Get(u.String())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(result)
}
