package notify

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewNotifier(t *testing.T) {
	cfg := &WebhookConfig{
		Enabled:      true,
		DiscordURL:   "https://discord.com/api/webhooks/test",
		TelegramBot:  "bot_token",
		TelegramChat: "chat_id",
		GameName:     "Test Hunt",
		GameURL:      "https://hunt.example.com",
	}

	n := NewNotifier(cfg)

	if n == nil {
		t.Fatal("NewNotifier returned nil")
	}

	if n.cfg != cfg {
		t.Error("Notifier.cfg not set correctly")
	}

	if n.client == nil {
		t.Error("Notifier.client should not be nil")
	}

	if n.client.Timeout != 10*time.Second {
		t.Errorf("Client timeout = %v, want 10s", n.client.Timeout)
	}
}

func TestWebhookConfigStruct(t *testing.T) {
	cfg := WebhookConfig{
		DiscordURL:   "https://discord.com/api/webhooks/123/abc",
		TelegramURL:  "https://api.telegram.org",
		TelegramBot:  "123456:ABC",
		TelegramChat: "-100123456",
		Enabled:      true,
		GameName:     "Hunt Server",
		GameURL:      "https://hunt.example.com",
	}

	if cfg.DiscordURL != "https://discord.com/api/webhooks/123/abc" {
		t.Errorf("DiscordURL = %s, want https://discord.com/api/webhooks/123/abc", cfg.DiscordURL)
	}

	if cfg.TelegramBot != "123456:ABC" {
		t.Errorf("TelegramBot = %s, want 123456:ABC", cfg.TelegramBot)
	}

	if !cfg.Enabled {
		t.Error("Enabled should be true")
	}
}

func TestDiscordEmbedStruct(t *testing.T) {
	embed := DiscordEmbed{
		Title:       "Chest Found!",
		Description: "A player dug up the chest",
		URL:         "https://hunt.example.com",
		Color:       0x00FF00,
		Fields: []DiscordField{
			{Name: "Room", Value: "room-1", Inline: true},
			{Name: "Winner", Value: "0xabc123", Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Footer: &DiscordFooter{
			Text: "Test Hunt",
		},
	}

	if embed.Title != "Chest Found!" {
		t.Errorf("Embed.Title = %s, want Chest Found!", embed.Title)
	}

	if embed.Color != 0x00FF00 {
		t.Errorf("Embed.Color = %d, want %d", embed.Color, 0x00FF00)
	}

	if len(embed.Fields) != 2 {
		t.Errorf("Embed.Fields len = %d, want 2", len(embed.Fields))
	}

	if embed.Footer.Text != "Test Hunt" {
		t.Errorf("Embed.Footer.Text = %s, want Test Hunt", embed.Footer.Text)
	}
}

func TestDiscordMessageStruct(t *testing.T) {
	msg := DiscordMessage{
		Content: "Test content",
		Embeds: []DiscordEmbed{
			{Title: "Test", Description: "Test embed"},
		},
	}

	if msg.Content != "Test content" {
		t.Errorf("Message.Content = %s, want Test content", msg.Content)
	}

	if len(msg.Embeds) != 1 {
		t.Errorf("Message.Embeds len = %d, want 1", len(msg.Embeds))
	}
}

func TestTelegramMessageStruct(t *testing.T) {
	msg := TelegramMessage{
		ChatID:    "-100123456",
		Text:      "*Chest Found!*\nRoom: room-1",
		ParseMode: "Markdown",
	}

	if msg.ChatID != "-100123456" {
		t.Errorf("Message.ChatID = %s, want -100123456", msg.ChatID)
	}

	if msg.ParseMode != "Markdown" {
		t.Errorf("Message.ParseMode = %s, want Markdown", msg.ParseMode)
	}
}

func TestTruncateAddress(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"short", "short"},
		{"exactly16chars!!", "exactly16chars!!"},
		{"0x1234567890abcdef1234567890abcdef12345678", "0x123456...345678"},
	}

	for _, tt := range tests {
		result := truncateAddress(tt.input)
		if result != tt.expected {
			t.Errorf("truncateAddress(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestWinnerOrNone(t *testing.T) {
	if got := winnerOrNone(""); got != "none" {
		t.Errorf("winnerOrNone(\"\") = %q, want none", got)
	}
	if got := winnerOrNone("0xabc123"); got != "0xabc123" {
		t.Errorf("winnerOrNone(0xabc123) = %q, want 0xabc123", got)
	}
}

func TestNotifyGameEndedDisabled(t *testing.T) {
	cfg := &WebhookConfig{Enabled: false}
	n := NewNotifier(cfg)

	// Should not panic or block when disabled
	n.NotifyGameEnded("room-1", "chest found", "0xwinner")
}

func TestNotifyChestFoundDisabled(t *testing.T) {
	cfg := &WebhookConfig{Enabled: false}
	n := NewNotifier(cfg)

	n.NotifyChestFound("room-1", "0xwinner")
}

func TestNotifyPayoutCompleteDisabled(t *testing.T) {
	cfg := &WebhookConfig{Enabled: false}
	n := NewNotifier(cfg)

	n.NotifyPayoutComplete("room-1", "0xwinner", 10)
}

func TestNotifyPayoutFailedDisabled(t *testing.T) {
	cfg := &WebhookConfig{Enabled: false}
	n := NewNotifier(cfg)

	n.NotifyPayoutFailed("room-1", errors.New("broker unreachable"))
}

func TestDiscordGameEndedIntegration(t *testing.T) {
	var received DiscordMessage
	var callCount int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&callCount, 1)
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := &WebhookConfig{
		Enabled:    true,
		DiscordURL: server.URL,
		GameName:   "Test Hunt",
		GameURL:    "https://hunt.example.com",
	}
	n := NewNotifier(cfg)

	n.NotifyGameEnded("room-1", "chest found", "0xwinner")

	time.Sleep(200 * time.Millisecond)

	if atomic.LoadInt32(&callCount) != 1 {
		t.Errorf("Expected 1 call, got %d", atomic.LoadInt32(&callCount))
	}

	if len(received.Embeds) == 0 {
		t.Fatal("No embeds received")
	}

	if received.Embeds[0].Title != "Game Ended" {
		t.Errorf("Embed title = %s, want Game Ended", received.Embeds[0].Title)
	}
}

func TestDiscordChestFoundIntegration(t *testing.T) {
	var received DiscordMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := &WebhookConfig{
		Enabled:    true,
		DiscordURL: server.URL,
		GameName:   "Test Hunt",
	}
	n := NewNotifier(cfg)

	n.NotifyChestFound("room-1", "0xwinner")
	time.Sleep(200 * time.Millisecond)

	if len(received.Embeds) == 0 {
		t.Fatal("No embeds received")
	}

	if received.Embeds[0].Title != "Chest Found!" {
		t.Errorf("Embed title = %s, want Chest Found!", received.Embeds[0].Title)
	}

	if received.Embeds[0].Color != 0x00FF00 {
		t.Errorf("Embed color = %d, want green (0x00FF00)", received.Embeds[0].Color)
	}
}

func TestDiscordPayoutCompleteIntegration(t *testing.T) {
	var received DiscordMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := &WebhookConfig{
		Enabled:    true,
		DiscordURL: server.URL,
		GameName:   "Test Hunt",
	}
	n := NewNotifier(cfg)

	n.NotifyPayoutComplete("room-1", "0xwinner", 12.5)
	time.Sleep(200 * time.Millisecond)

	if len(received.Embeds) == 0 {
		t.Fatal("No embeds received")
	}

	if received.Embeds[0].Title != "Payout Complete" {
		t.Errorf("Embed title = %s, want Payout Complete", received.Embeds[0].Title)
	}

	if received.Embeds[0].Color != 0x0099FF {
		t.Errorf("Embed color = %d, want blue (0x0099FF)", received.Embeds[0].Color)
	}
}

func TestDiscordPayoutFailedIntegration(t *testing.T) {
	var received DiscordMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := &WebhookConfig{
		Enabled:    true,
		DiscordURL: server.URL,
		GameName:   "Test Hunt",
	}
	n := NewNotifier(cfg)

	n.NotifyPayoutFailed("room-1", errors.New("broker unreachable"))
	time.Sleep(200 * time.Millisecond)

	if len(received.Embeds) == 0 {
		t.Fatal("No embeds received")
	}

	if received.Embeds[0].Title != "Payout Failed" {
		t.Errorf("Embed title = %s, want Payout Failed", received.Embeds[0].Title)
	}

	if received.Embeds[0].Color != 0xFF0000 {
		t.Errorf("Embed color = %d, want red (0xFF0000)", received.Embeds[0].Color)
	}
}

func TestTelegramWebhookIntegration(t *testing.T) {
	cfg := &WebhookConfig{
		Enabled:      true,
		TelegramBot:  "test_token",
		TelegramChat: "-100123456",
		GameName:     "Test Hunt",
	}

	// We can't easily test Telegram since it constructs the URL internally;
	// this just exercises construction.
	n := NewNotifier(cfg)
	if n == nil {
		t.Fatal("NewNotifier returned nil")
	}
}

func TestDiscordRetryOnFailure(t *testing.T) {
	var callCount int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := atomic.AddInt32(&callCount, 1)
		if count < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := &WebhookConfig{
		Enabled:    true,
		DiscordURL: server.URL,
		GameName:   "Test Hunt",
	}
	n := NewNotifier(cfg)

	n.NotifyChestFound("room-1", "0xwinner")

	// Wait for retries
	time.Sleep(5 * time.Second)

	if atomic.LoadInt32(&callCount) < 2 {
		t.Errorf("Expected at least 2 calls (with retry), got %d", atomic.LoadInt32(&callCount))
	}
}

func TestDiscordRateLimitHandling(t *testing.T) {
	var callCount int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := atomic.AddInt32(&callCount, 1)
		if count == 1 {
			w.WriteHeader(http.StatusTooManyRequests) // 429
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := &WebhookConfig{
		Enabled:    true,
		DiscordURL: server.URL,
		GameName:   "Test Hunt",
	}
	n := NewNotifier(cfg)

	n.NotifyChestFound("room-1", "0xwinner")

	// Wait for rate limit handling (5s wait + retry delay)
	time.Sleep(10 * time.Second)

	count := atomic.LoadInt32(&callCount)
	// At minimum we should have had 1 call, and likely got a retry
	if count < 1 {
		t.Errorf("Expected at least 1 call, got %d calls", count)
	}
}

func TestConstants(t *testing.T) {
	if MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", MaxRetries)
	}

	if RetryBaseDelay != 2*time.Second {
		t.Errorf("RetryBaseDelay = %v, want 2s", RetryBaseDelay)
	}
}

func TestNotifyGameEndedWithNoWinner(t *testing.T) {
	var received DiscordMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := &WebhookConfig{
		Enabled:    true,
		DiscordURL: server.URL,
		GameName:   "Test Hunt",
	}
	n := NewNotifier(cfg)

	// Timeout with no winner - should handle gracefully
	n.NotifyGameEnded("room-1", "timeout", "")
	time.Sleep(200 * time.Millisecond)

	if len(received.Embeds) == 0 {
		t.Error("Should still send notification with no winner")
	}

	for _, field := range received.Embeds[0].Fields {
		if field.Name == "Winner" {
			t.Error("Winner field should be omitted when winnerID is empty")
		}
	}
}
