// Package notify sends Discord/Telegram webhooks for room lifecycle events.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/saltmark/hunt-server/internal/util"
)

// WebhookConfig holds webhook configuration
type WebhookConfig struct {
	DiscordURL   string `mapstructure:"discord_url"`
	TelegramURL  string `mapstructure:"telegram_url"`
	TelegramBot  string `mapstructure:"telegram_bot"`
	TelegramChat string `mapstructure:"telegram_chat"`
	Enabled      bool   `mapstructure:"enabled"`
	GameName     string
	GameURL      string `mapstructure:"game_url"`
}

// Retry configuration
const (
	MaxRetries     = 3
	RetryBaseDelay = 2 * time.Second
)

// Notifier handles sending notifications
type Notifier struct {
	cfg    *WebhookConfig
	client *http.Client
}

// NewNotifier creates a new notifier
func NewNotifier(cfg *WebhookConfig) *Notifier {
	return &Notifier{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NotifyGameEnded sends notifications when a room finishes, win or no-win.
func (n *Notifier) NotifyGameEnded(roomID, reason, winnerID string) {
	if !n.cfg.Enabled {
		return
	}

	if n.cfg.DiscordURL != "" {
		go n.sendDiscordGameEndedNotification(roomID, reason, winnerID)
	}

	if n.cfg.TelegramBot != "" && n.cfg.TelegramChat != "" {
		go n.sendTelegramGameEndedNotification(roomID, reason, winnerID)
	}
}

// NotifyChestFound sends notifications when a player digs up the chest.
func (n *Notifier) NotifyChestFound(roomID, winnerID string) {
	if !n.cfg.Enabled {
		return
	}

	if n.cfg.DiscordURL != "" {
		go n.sendDiscordChestFoundNotification(roomID, winnerID)
	}

	if n.cfg.TelegramBot != "" && n.cfg.TelegramChat != "" {
		go n.sendTelegramChestFoundNotification(roomID, winnerID)
	}
}

// NotifyPayoutComplete sends notifications once the broker confirms a payout.
func (n *Notifier) NotifyPayoutComplete(roomID, winnerID string, amount float64) {
	if !n.cfg.Enabled {
		return
	}

	if n.cfg.DiscordURL != "" {
		go n.sendDiscordPayoutNotification(roomID, winnerID, amount)
	}

	if n.cfg.TelegramBot != "" && n.cfg.TelegramChat != "" {
		go n.sendTelegramPayoutNotification(roomID, winnerID, amount)
	}
}

// NotifyPayoutFailed sends notifications when the broker rejects or drops a payout.
func (n *Notifier) NotifyPayoutFailed(roomID string, err error) {
	if !n.cfg.Enabled {
		return
	}

	if n.cfg.DiscordURL != "" {
		go n.sendDiscordPayoutFailedNotification(roomID, err)
	}

	if n.cfg.TelegramBot != "" && n.cfg.TelegramChat != "" {
		go n.sendTelegramPayoutFailedNotification(roomID, err)
	}
}

// DiscordEmbed represents a Discord embed object
type DiscordEmbed struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	URL         string         `json:"url,omitempty"`
	Color       int            `json:"color,omitempty"`
	Fields      []DiscordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Footer      *DiscordFooter `json:"footer,omitempty"`
}

// DiscordField represents a field in a Discord embed
type DiscordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// DiscordFooter represents the footer of a Discord embed
type DiscordFooter struct {
	Text string `json:"text"`
}

// DiscordMessage represents a Discord webhook message
type DiscordMessage struct {
	Content string         `json:"content,omitempty"`
	Embeds  []DiscordEmbed `json:"embeds,omitempty"`
}

// sendDiscordGameEndedNotification sends a room-ended notification to Discord
func (n *Notifier) sendDiscordGameEndedNotification(roomID, reason, winnerID string) {
	color := 0x0099FF // Blue
	description := fmt.Sprintf("**%s** room `%s` ended", n.cfg.GameName, roomID)

	fields := []DiscordField{
		{Name: "Room", Value: roomID, Inline: true},
		{Name: "Reason", Value: reason, Inline: true},
	}
	if winnerID != "" {
		fields = append(fields, DiscordField{Name: "Winner", Value: truncateAddress(winnerID), Inline: true})
	}

	embed := DiscordEmbed{
		Title:       "Game Ended",
		Description: description,
		Color:       color,
		Fields:      fields,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Footer:      &DiscordFooter{Text: n.cfg.GameName},
	}

	if n.cfg.GameURL != "" {
		embed.URL = n.cfg.GameURL
	}

	n.sendDiscordMessage(DiscordMessage{Embeds: []DiscordEmbed{embed}})
}

// sendDiscordChestFoundNotification sends a chest-found notification to Discord
func (n *Notifier) sendDiscordChestFoundNotification(roomID, winnerID string) {
	embed := DiscordEmbed{
		Title:       "Chest Found!",
		Description: fmt.Sprintf("A player dug up the chest in room `%s`", roomID),
		Color:       0x00FF00, // Green
		Fields: []DiscordField{
			{Name: "Room", Value: roomID, Inline: true},
			{Name: "Winner", Value: truncateAddress(winnerID), Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Footer:    &DiscordFooter{Text: n.cfg.GameName},
	}

	n.sendDiscordMessage(DiscordMessage{Embeds: []DiscordEmbed{embed}})
}

// sendDiscordPayoutNotification sends a payout-complete notification to Discord
func (n *Notifier) sendDiscordPayoutNotification(roomID, winnerID string, amount float64) {
	embed := DiscordEmbed{
		Title:       "Payout Complete",
		Description: fmt.Sprintf("**%s** settled room `%s`", n.cfg.GameName, roomID),
		Color:       0x0099FF, // Blue
		Fields: []DiscordField{
			{Name: "Winner", Value: truncateAddress(winnerID), Inline: true},
			{Name: "Amount", Value: fmt.Sprintf("%.4f", amount), Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Footer:    &DiscordFooter{Text: n.cfg.GameName},
	}

	n.sendDiscordMessage(DiscordMessage{Embeds: []DiscordEmbed{embed}})
}

// sendDiscordPayoutFailedNotification sends a payout-failure alert to Discord
func (n *Notifier) sendDiscordPayoutFailedNotification(roomID string, err error) {
	embed := DiscordEmbed{
		Title:       "Payout Failed",
		Description: fmt.Sprintf("**%s** could not settle room `%s`", n.cfg.GameName, roomID),
		Color:       0xFF0000, // Red
		Fields: []DiscordField{
			{Name: "Room", Value: roomID, Inline: true},
			{Name: "Error", Value: err.Error(), Inline: false},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Footer:    &DiscordFooter{Text: n.cfg.GameName},
	}

	n.sendDiscordMessageWithRetry(DiscordMessage{Embeds: []DiscordEmbed{embed}})
}

// sendDiscordMessage sends a message to Discord webhook, with the retry and
// backoff of sendDiscordMessageWithRetry
func (n *Notifier) sendDiscordMessage(msg DiscordMessage) {
	n.sendDiscordMessageWithRetry(msg)
}

// sendDiscordMessageWithRetry sends a message to Discord with exponential backoff retry
func (n *Notifier) sendDiscordMessageWithRetry(msg DiscordMessage) {
	body, err := json.Marshal(msg)
	if err != nil {
		util.Warnf("Failed to marshal Discord message: %v", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 2s, then 4s
			delay := RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			time.Sleep(delay)
		}

		resp, err := n.client.Post(n.cfg.DiscordURL, "application/json", bytes.NewReader(body))
		if err != nil {
			lastErr = err
			continue
		}

		resp.Body.Close()

		if resp.StatusCode < 400 {
			return // Success
		}

		// Rate limited - wait longer
		if resp.StatusCode == 429 {
			time.Sleep(5 * time.Second)
			continue
		}

		lastErr = fmt.Errorf("status %d", resp.StatusCode)
	}

	if lastErr != nil {
		util.Warnf("Failed to send Discord notification after %d retries: %v", MaxRetries, lastErr)
	}
}

// TelegramMessage represents a Telegram bot message
type TelegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// sendTelegramGameEndedNotification sends a room-ended notification to Telegram
func (n *Notifier) sendTelegramGameEndedNotification(roomID, reason, winnerID string) {
	text := fmt.Sprintf(
		"*Game Ended*\n\n"+
			"Room: `%s`\n"+
			"Reason: `%s`\n"+
			"Winner: `%s`",
		roomID, reason, winnerOrNone(winnerID),
	)

	n.sendTelegramMessage(text)
}

// sendTelegramChestFoundNotification sends a chest-found notification to Telegram
func (n *Notifier) sendTelegramChestFoundNotification(roomID, winnerID string) {
	text := fmt.Sprintf(
		"*Chest Found!*\n\n"+
			"Room: `%s`\n"+
			"Winner: `%s`",
		roomID, truncateAddress(winnerID),
	)

	n.sendTelegramMessage(text)
}

// sendTelegramPayoutNotification sends a payout-complete notification to Telegram
func (n *Notifier) sendTelegramPayoutNotification(roomID, winnerID string, amount float64) {
	text := fmt.Sprintf(
		"*Payout Complete*\n\n"+
			"Room: `%s`\n"+
			"Winner: `%s`\n"+
			"Amount: `%.4f`",
		roomID, truncateAddress(winnerID), amount,
	)

	n.sendTelegramMessage(text)
}

// sendTelegramPayoutFailedNotification sends a payout-failure alert to Telegram
func (n *Notifier) sendTelegramPayoutFailedNotification(roomID string, err error) {
	text := fmt.Sprintf(
		"*Payout Failed*\n\n"+
			"Room: `%s`\n"+
			"Error: `%s`",
		roomID, err.Error(),
	)

	n.sendTelegramMessageWithRetry(text)
}

// sendTelegramMessage sends a message via Telegram Bot API, with the retry
// and backoff of sendTelegramMessageWithRetry
func (n *Notifier) sendTelegramMessage(text string) {
	n.sendTelegramMessageWithRetry(text)
}

// sendTelegramMessageWithRetry sends a message via Telegram with exponential backoff retry
func (n *Notifier) sendTelegramMessageWithRetry(text string) {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.cfg.TelegramBot)

	msg := TelegramMessage{
		ChatID:    n.cfg.TelegramChat,
		Text:      text,
		ParseMode: "Markdown",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		util.Warnf("Failed to marshal Telegram message: %v", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			delay := RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			time.Sleep(delay)
		}

		resp, err := n.client.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			lastErr = err
			continue
		}

		resp.Body.Close()

		if resp.StatusCode < 400 {
			return // Success
		}

		// Rate limited
		if resp.StatusCode == 429 {
			time.Sleep(5 * time.Second)
			continue
		}

		lastErr = fmt.Errorf("status %d", resp.StatusCode)
	}

	if lastErr != nil {
		util.Warnf("Failed to send Telegram notification after %d retries: %v", MaxRetries, lastErr)
	}
}

// truncateAddress returns a shortened address for display
func truncateAddress(addr string) string {
	if len(addr) <= 16 {
		return addr
	}
	return addr[:8] + "..." + addr[len(addr)-6:]
}

// winnerOrNone returns a placeholder for an empty winner ID (a draw/timeout).
func winnerOrNone(winnerID string) string {
	if winnerID == "" {
		return "none"
	}
	return truncateAddress(winnerID)
}
