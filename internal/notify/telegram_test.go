package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tejaschuahan/job-scraper-bot/internal/domain"
)

func TestEscapeMarkdownV2(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"C++ (Senior)", "C\\+\\+ \\(Senior\\)"},
		{"a_b*c", "a\\_b\\*c"},
		{"50k-60k!", "50k\\-60k\\!"},
		{"dots.and.bars|", "dots\\.and\\.bars\\|"},
	}
	for _, c := range cases {
		if got := escapeMarkdownV2(c.in); got != c.want {
			t.Errorf("escapeMarkdownV2(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatListing(t *testing.T) {
	l := domain.Listing{
		Title:    "Go Developer (Remote)",
		Company:  "Acme Inc.",
		URL:      "https://acme.example/jobs/1",
		Location: "Remote",
		Salary:   "$90k-120k",
		Source:   "remotive",
	}
	msg := formatListing(l, Enrichment{Summary: "Build services.", Score: 8})

	if !strings.Contains(msg, "*Go Developer \\(Remote\\)*") {
		t.Errorf("title missing or unescaped:\n%s", msg)
	}
	if !strings.Contains(msg, "Acme Inc\\.") {
		t.Errorf("company missing or unescaped:\n%s", msg)
	}
	if !strings.Contains(msg, "8/10") {
		t.Errorf("score missing:\n%s", msg)
	}
	if !strings.Contains(msg, "Build services\\.") {
		t.Errorf("summary missing:\n%s", msg)
	}
	if !strings.Contains(msg, "_via remotive_") {
		t.Errorf("source attribution missing:\n%s", msg)
	}
}

func TestFormatListingOmitsEmptyFields(t *testing.T) {
	l := domain.Listing{Title: "Dev", Company: "Acme", URL: "https://x.example/1", Source: "indeed"}
	msg := formatListing(l, Enrichment{})

	if strings.Contains(msg, "\U0001f4b0") {
		t.Errorf("salary line should be omitted:\n%s", msg)
	}
	if strings.Contains(msg, "/10") {
		t.Errorf("score line should be omitted:\n%s", msg)
	}
}

func TestTelegramDeliverPostsSendMessage(t *testing.T) {
	var gotPath, gotChat, gotMode string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = r.ParseForm()
		gotChat = r.FormValue("chat_id")
		gotMode = r.FormValue("parse_mode")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42", true)
	tg.baseURL = srv.URL

	err := tg.Deliver(context.Background(), domain.Listing{Title: "Dev", Company: "Acme", URL: "https://x.example/1", Source: "remotive"}, Enrichment{})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if gotPath != "/botTOKEN/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotChat != "42" {
		t.Errorf("chat_id = %q", gotChat)
	}
	if gotMode != "MarkdownV2" {
		t.Errorf("parse_mode = %q", gotMode)
	}
}

func TestTelegramDeliverReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false,"description":"Bad Request"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42", false)
	tg.baseURL = srv.URL

	err := tg.SendAlert(context.Background(), "boom")
	if err == nil {
		t.Fatalf("expected error on non-200 response")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error should carry the status code: %v", err)
	}
}
