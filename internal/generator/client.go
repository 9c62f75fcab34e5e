// Package generator produces roadmap content by calling an
// OpenAI-compatible chat-completion API.  The client is invoked only from
// the queue consumer, after the credit debit and the PROCESSING roadmap
// row are already durable.
package generator

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "strings"
    "time"

    "github.com/my-roadmap/roadmap-api/internal/model"
)

const systemPrompt = `You are a career coach who writes interview preparation roadmaps.
Produce a structured, week-by-week plan in plain text with clear section headings.
Tailor the plan to the target role and company, and calibrate depth to the
candidate's stated experience. Be specific: name topics, resources and
practice formats rather than generic advice.`

// Client calls the chat-completion endpoint.  BaseURL has no trailing
// slash (e.g. "https://api.openai.com/v1").
type Client struct {
    BaseURL string
    APIKey  string
    Model   string
    HTTP    *http.Client
}

// New returns a Client with a request timeout suited to long generations.
func New(baseURL, apiKey, modelName string) *Client {
    return &Client{
        BaseURL: strings.TrimRight(baseURL, "/"),
        APIKey:  apiKey,
        Model:   modelName,
        HTTP:    &http.Client{Timeout: 120 * time.Second},
    }
}

type chatMessage struct {
    Role    string `json:"role"`
    Content string `json:"content"`
}

type chatRequest struct {
    Model    string        `json:"model"`
    Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
    Choices []struct {
        Message chatMessage `json:"message"`
    } `json:"choices"`
}

// Generate produces roadmap content for the given request fields.  Any
// non-200 upstream answer or empty completion is an error; the caller
// marks the roadmap FAILED and the user keeps nothing worse than an
// already-spent credit tied to a FAILED row they can see.
func (c *Client) Generate(ctx context.Context, rm model.Roadmap) (string, error) {
    payload := chatRequest{
        Model: c.Model,
        Messages: []chatMessage{
            {Role: "system", Content: systemPrompt},
            {Role: "user", Content: buildPrompt(rm)},
        },
    }
    body, err := json.Marshal(payload)
    if err != nil {
        return "", fmt.Errorf("marshal request: %w", err)
    }

    req, err := http.NewRequestWithContext(ctx, http.MethodPost,
        c.BaseURL+"/chat/completions", bytes.NewReader(body))
    if err != nil {
        return "", fmt.Errorf("create request: %w", err)
    }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("Authorization", "Bearer "+c.APIKey)

    resp, err := c.HTTP.Do(req)
    if err != nil {
        return "", fmt.Errorf("call chat API: %w", err)
    }
    defer resp.Body.Close()

    if resp.StatusCode != http.StatusOK {
        raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
        return "", fmt.Errorf("chat API status %d: %s", resp.StatusCode, raw)
    }

    var result chatResponse
    if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
        return "", fmt.Errorf("decode response: %w", err)
    }
    if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
        return "", fmt.Errorf("empty completion")
    }
    return result.Choices[0].Message.Content, nil
}

// buildPrompt renders the user's request fields into the user message.
func buildPrompt(rm model.Roadmap) string {
    var b strings.Builder
    fmt.Fprintf(&b, "Target role: %s\n", rm.TargetRole)
    if rm.TargetCompany != "" {
        fmt.Fprintf(&b, "Target company: %s\n", rm.TargetCompany)
    }
    if rm.Experience != "" {
        fmt.Fprintf(&b, "Candidate background: %s\n", rm.Experience)
    }
    if rm.Focus != "" {
        fmt.Fprintf(&b, "Areas to emphasise: %s\n", rm.Focus)
    }
    b.WriteString("\nWrite the interview preparation roadmap.")
    return b.String()
}
