// Package gemini is a minimal HTTP client for a generateContent-style
// model endpoint, covering the two operations the pipeline needs:
// transcription of an audio payload and polishing of a raw transcript.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the remote transcription/polishing model.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a model client. timeout bounds each request; zero
// disables the per-request deadline.
func NewClient(baseURL, model, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// generateContent request/response bodies.
type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

const transcribePrompt = "Generate a complete, detailed transcript of this audio."

// polishPrompt is the fixed instruction for the polishing pass.
const polishPrompt = `Take this raw transcription and create a polished, well-formatted note.
Remove filler words (um, uh, like), repetitions, and false starts.
Format any lists or bullet points properly. Use markdown formatting for headings, lists, and emphasis.
Maintain all the original content and meaning.

Raw transcription:
`

// Transcribe sends the audio payload inline (base64) with its media type
// and returns the plain-text transcript.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	req := generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: transcribePrompt},
				{InlineData: &inlineData{
					MIMEType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(audio),
				}},
			},
		}},
	}
	return c.generate(ctx, req)
}

// Polish runs the fixed formatting instruction over a raw transcript and
// returns markdown-flavored text.
func (c *Client) Polish(ctx context.Context, raw string) (string, error) {
	req := generateRequest{
		Contents: []content{{
			Parts: []part{{Text: polishPrompt + raw}},
		}},
	}
	return c.generate(ctx, req)
}

// generate posts one request and extracts the first candidate's text.
func (c *Client) generate(ctx context.Context, body generateRequest) (string, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("model request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("model status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}

	var sb strings.Builder
	for _, cand := range result.Candidates {
		for _, p := range cand.Content.Parts {
			sb.WriteString(p.Text)
		}
		break
	}
	return strings.TrimSpace(sb.String()), nil
}
