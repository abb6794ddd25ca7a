package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tejaschuahan/job-scraper-bot/internal/domain"
)

const telegramAPIBase = "https://api.telegram.org"

type Telegram struct {
	token          string
	chatID         string
	baseURL        string
	disablePreview bool
	client         *http.Client
}

func NewTelegram(token, chatID string, disablePreview bool) *Telegram {
	return &Telegram{
		token:          token,
		chatID:         chatID,
		baseURL:        telegramAPIBase,
		disablePreview: disablePreview,
		client:         &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *Telegram) Deliver(ctx context.Context, l domain.Listing, e Enrichment) error {
	return t.send(ctx, formatListing(l, e))
}

func (t *Telegram) SendAlert(ctx context.Context, msg string) error {
	return t.send(ctx, "⚠️ "+escapeMarkdownV2(msg))
}

func (t *Telegram) send(ctx context.Context, text string) error {
	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "MarkdownV2")
	if t.disablePreview {
		form.Set("disable_web_page_preview", "true")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram send: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// formatListing renders a listing as a MarkdownV2 message. Pure so the
// formatting can be tested without a bot token.
func formatListing(l domain.Listing, e Enrichment) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\U0001f4bc *%s*\n", escapeMarkdownV2(l.Title))
	fmt.Fprintf(&b, "\U0001f3e2 %s\n", escapeMarkdownV2(l.Company))
	if l.Location != "" {
		fmt.Fprintf(&b, "\U0001f4cd %s\n", escapeMarkdownV2(l.Location))
	}
	if l.Salary != "" {
		fmt.Fprintf(&b, "\U0001f4b0 %s\n", escapeMarkdownV2(l.Salary))
	}
	if l.JobType != "" {
		fmt.Fprintf(&b, "\U0001f4c4 %s\n", escapeMarkdownV2(l.JobType))
	}
	if e.Score > 0 {
		fmt.Fprintf(&b, "⭐ %d/10\n", e.Score)
	}
	if e.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", escapeMarkdownV2(e.Summary))
	}
	fmt.Fprintf(&b, "\n\U0001f517 %s\n", escapeMarkdownV2(l.URL))
	fmt.Fprintf(&b, "_via %s_", escapeMarkdownV2(l.Source))

	return b.String()
}

// escapeMarkdownV2 escapes the characters the Telegram MarkdownV2
// parser treats as markup.
func escapeMarkdownV2(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
