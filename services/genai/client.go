// Package genai is a minimal client of the Generative Language REST API,
// used by the admin smoke commands.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/usajili/core"
)

const apiVersion = "v1beta"

var ErrMissingAPIKey = errors.New("generative language API key is not set")

type (
	Client struct {
		baseURL string
		apiKey  string
		model   string
		rc      *rest.Client
	}

	Model struct {
		Name                       string   `json:"name"`
		DisplayName                string   `json:"displayName"`
		Description                string   `json:"description"`
		InputTokenLimit            int      `json:"inputTokenLimit"`
		OutputTokenLimit           int      `json:"outputTokenLimit"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	}

	// APIError is returned when the API answers with an error status.
	APIError struct {
		StatusCode int
		Status     string `json:"status"`
		Message    string `json:"message"`
	}

	part struct {
		Text string `json:"text"`
	}

	content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}

	generateRequest struct {
		Contents []content `json:"contents"`
	}

	generateResponse struct {
		Candidates []struct {
			Content      content `json:"content"`
			FinishReason string  `json:"finishReason"`
		} `json:"candidates"`
	}

	listModelsResponse struct {
		Models        []Model `json:"models"`
		NextPageToken string  `json:"nextPageToken"`
	}
)

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("genai: %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("genai: %d: %s", e.StatusCode, e.Message)
}

// New returns a Client. The default http.Client is used when httpClient is not provided.
func New(conf core.GenAIConfig, httpClient ...*http.Client) *Client {
	hc := http.DefaultClient
	if len(httpClient) > 0 && httpClient[0] != nil {
		hc = httpClient[0]
	}
	return &Client{
		baseURL: strings.TrimRight(conf.BaseURL, "/"),
		apiKey:  conf.APIKey,
		model:   conf.Model,
		rc:      &rest.Client{HTTPClient: hc},
	}
}

func (c *Client) DefaultModel() string { return c.model }

func (c *Client) send(ctx context.Context, method rest.Method, path string, query map[string]string, body interface{}, dest interface{}) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}

	req := rest.Request{
		Method:      method,
		BaseURL:     c.baseURL + "/" + apiVersion + path,
		Headers:     map[string]string{"x-goog-api-key": c.apiKey},
		QueryParams: query,
	}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		req.Body = data
		req.Headers["Content-Type"] = "application/json"
	}

	res, err := c.rc.SendWithContext(ctx, req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return parseError(res)
	}
	if err = json.Unmarshal([]byte(res.Body), dest); err != nil {
		return errors.Wrap(err, "decoding response")
	}
	return nil
}

func parseError(res *rest.Response) error {
	apiErr := &APIError{StatusCode: res.StatusCode}
	var payload struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal([]byte(res.Body), &payload); err == nil && payload.Error != nil {
		apiErr.Status = payload.Error.Status
		apiErr.Message = payload.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(res.Body)
	}
	return apiErr
}

// ListModels lists the models available to the API key, following every result page.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var (
		models    []Model
		pageToken string
	)
	for {
		query := map[string]string{"pageSize": "1000"}
		if pageToken != "" {
			query["pageToken"] = pageToken
		}
		var res listModelsResponse
		if err := c.send(ctx, rest.Get, "/models", query, nil, &res); err != nil {
			return nil, errors.Wrap(err, "listing models")
		}
		models = append(models, res.Models...)
		if res.NextPageToken == "" || res.NextPageToken == pageToken {
			return models, nil
		}
		pageToken = res.NextPageToken
	}
}

// GenerateContent sends a single-turn prompt to model (the default model when empty) and returns the generated text.
func (c *Client) GenerateContent(ctx context.Context, model, prompt string) (string, error) {
	if model == "" {
		model = c.model
	}
	model = strings.TrimPrefix(model, "models/")

	body := generateRequest{Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}}}
	var res generateResponse
	if err := c.send(ctx, rest.Post, "/models/"+model+":generateContent", nil, body, &res); err != nil {
		return "", errors.Wrap(err, "generating content")
	}
	if len(res.Candidates) == 0 {
		return "", errors.New("generating content: no candidates returned")
	}

	var text strings.Builder
	for _, p := range res.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return text.String(), nil
}
