package broker

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/saltmark/hunt-server/internal/util"
)

// channelInfo describes one of the server's channels as reported by the
// broker's get_channels method.
type channelInfo struct {
	ChannelID string  `json:"channel_id"`
	Asset     string  `json:"asset"`
	Status    string  `json:"status"`
	Balance   float64 `json:"balance"`
}

// ensureChannel makes sure an open channel exists for the configured asset:
// it reuses the first open one the broker reports (its balance is not
// checked), or creates and resizes one if the broker reports none.
// Resize/allocation proofs are the broker's concern once the channel opens;
// this only establishes that a channel exists before gameplay payouts rely
// on it.
func (c *Client) ensureChannel(conn *websocket.Conn) error {
	raw, err := c.callOn(conn, "get_channels", struct{}{}, c.cfg.RequestTimeout)
	if err != nil {
		return fmt.Errorf("get_channels: %w", err)
	}

	var channels []channelInfo
	if err := json.Unmarshal(raw, &channels); err != nil {
		return fmt.Errorf("decode channels: %w", err)
	}

	for _, ch := range channels {
		if ch.Asset == c.cfg.Asset && ch.Status == "open" {
			util.Infof("broker: reusing open channel %s for asset %s", ch.ChannelID, ch.Asset)
			return nil
		}
	}

	util.Infof("broker: no open channel for asset %s, creating one", c.cfg.Asset)

	createParams := struct {
		Asset       string `json:"asset"`
		Custody     string `json:"custody"`
		Adjudicator string `json:"adjudicator"`
	}{
		Asset:       c.cfg.Asset,
		Custody:     c.cfg.Custody,
		Adjudicator: c.cfg.Adjudicator,
	}

	createRaw, err := c.callOn(conn, "create_channel", createParams, c.cfg.RequestTimeout)
	if err != nil {
		return fmt.Errorf("create_channel: %w", err)
	}

	var created channelInfo
	if err := json.Unmarshal(createRaw, &created); err != nil {
		return fmt.Errorf("decode created channel: %w", err)
	}

	resizeParams := struct {
		ChannelID string `json:"channel_id"`
	}{ChannelID: created.ChannelID}

	if _, err := c.callOn(conn, "resize_channel", resizeParams, c.cfg.RequestTimeout); err != nil {
		return fmt.Errorf("resize_channel: %w", err)
	}

	util.Infof("broker: channel %s opened and resized for asset %s", created.ChannelID, c.cfg.Asset)
	return nil
}
