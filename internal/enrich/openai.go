package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const defaultAPIURL = "https://api.openai.com/v1/chat/completions"

const defaultModel = "gpt-4o-mini"

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	apiKey string
	model  string
	apiURL string
	http   *http.Client
}

func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{
		apiKey: apiKey,
		model:  model,
		apiURL: defaultAPIURL,
		http:   &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *Client) Summarize(ctx context.Context, title, company, description string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", nil
	}
	out, err := c.chat(ctx,
		"You summarize job postings in 2-3 plain sentences. No markdown, no preamble.",
		fmt.Sprintf("Title: %s\nCompany: %s\n\n%s", title, company, description))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

var scoreRe = regexp.MustCompile(`\b(10|[1-9])\b`)

func (c *Client) ScoreQuality(ctx context.Context, title, company, description string) (int, error) {
	out, err := c.chat(ctx,
		"Rate the job posting 1-10 for completeness and legitimacy. Reply with only the number.",
		fmt.Sprintf("Title: %s\nCompany: %s\n\n%s", title, company, description))
	if err != nil {
		return 0, err
	}
	m := scoreRe.FindString(out)
	if m == "" {
		return 0, fmt.Errorf("enrich: unparseable score %q", out)
	}
	score, _ := strconv.Atoi(m)
	return score, nil
}

func (c *Client) ExpandQueries(ctx context.Context, queries []string) ([]string, error) {
	out, err := c.chat(ctx,
		"Given job search queries, suggest up to 3 additional related queries. Reply one per line, nothing else.",
		strings.Join(queries, "\n"))
	if err != nil {
		return queries, err
	}

	expanded := append([]string{}, queries...)
	for _, line := range strings.Split(out, "\n") {
		q := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if q == "" {
			continue
		}
		dup := false
		for _, have := range expanded {
			if strings.EqualFold(have, q) {
				dup = true
				break
			}
		}
		if !dup {
			expanded = append(expanded, q)
		}
	}
	return expanded, nil
}

func (c *Client) chat(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("chat completion: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}
	return cr.Choices[0].Message.Content, nil
}
