// Package instantly pushes enriched leads into an Instantly.ai campaign.
package instantly

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.instantly.ai/api/v2"

// Lead is the flat payload POST /leads expects. Custom variables ride along
// as top-level fields.
type Lead struct {
	Campaign        string            `json:"campaign"`
	Email           string            `json:"email"`
	FirstName       string            `json:"first_name,omitempty"`
	LastName        string            `json:"last_name,omitempty"`
	CompanyName     string            `json:"company_name,omitempty"`
	Personalization string            `json:"personalization,omitempty"`
	CompanyWebsite  string            `json:"company_website,omitempty"`
	LinkedInURL     string            `json:"linkedin_url,omitempty"`
	JobTitle        string            `json:"job_title,omitempty"`
	CompanyIndustry string            `json:"company_industry,omitempty"`
	Headline        string            `json:"headline,omitempty"`
	CustomVariables map[string]string `json:"custom_variables,omitempty"`
}

// BulkResult reports the outcome of a bulk push.
type BulkResult struct {
	Added  int
	Failed []string // emails that could not be pushed
}

// Client talks to the Instantly leads API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates an Instantly API client.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// AddLead pushes a single lead into the campaign named in the payload.
func (c *Client) AddLead(ctx context.Context, lead Lead) error {
	if c.apiKey == "" {
		return eris.New("instantly: api key not configured")
	}

	body, err := json.Marshal(lead)
	if err != nil {
		return eris.Wrap(err, "instantly: marshal lead")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/leads", bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "instantly: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "instantly: send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return eris.Errorf("instantly: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// AddLeads pushes every lead individually, continuing past per-lead failures.
func (c *Client) AddLeads(ctx context.Context, leads []Lead) (BulkResult, error) {
	if c.apiKey == "" {
		return BulkResult{}, eris.New("instantly: api key not configured")
	}

	var result BulkResult
	for _, lead := range leads {
		if err := ctx.Err(); err != nil {
			return result, eris.Wrap(err, "instantly: bulk push interrupted")
		}
		if err := c.AddLead(ctx, lead); err != nil {
			zap.L().Warn("instantly lead push failed",
				zap.String("email", lead.Email), zap.Error(err))
			result.Failed = append(result.Failed, lead.Email)
			continue
		}
		result.Added++
	}
	return result, nil
}
