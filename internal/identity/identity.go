// Package identity decides whether a sender is an internal operator or
// bot, or an external participant.
package identity

import (
	"strings"

	"github.com/zulandar/signalbox/internal/config"
)

// Classifier is an explicit internal-identity predicate: an allow-list of
// ids, a set of reserved prefixes, and literal system markers.
type Classifier struct {
	ids      map[string]bool
	prefixes []string
	markers  map[string]bool
	botID    string
}

// New builds a Classifier from the identity section of the config. The
// configured bot id always counts as internal.
func New(cfg config.IdentityConfig) *Classifier {
	c := &Classifier{
		ids:     make(map[string]bool, len(cfg.InternalIDs)+1),
		markers: make(map[string]bool, len(cfg.SystemMarkers)),
		botID:   cfg.BotID,
	}
	for _, id := range cfg.InternalIDs {
		if id = strings.TrimSpace(id); id != "" {
			c.ids[id] = true
		}
	}
	if cfg.BotID != "" {
		c.ids[cfg.BotID] = true
	}
	for _, p := range cfg.InternalPrefixes {
		if p != "" {
			c.prefixes = append(c.prefixes, p)
		}
	}
	for _, m := range cfg.SystemMarkers {
		if m != "" {
			c.markers[m] = true
		}
	}
	return c
}

// IsInternal reports whether senderID belongs to an operator or bot.
func (c *Classifier) IsInternal(senderID string) bool {
	if senderID == "" {
		return false
	}
	if c.ids[senderID] || c.markers[senderID] {
		return true
	}
	for _, p := range c.prefixes {
		if strings.HasPrefix(senderID, p) {
			return true
		}
	}
	return false
}

// BotID returns the sender id used for replies the engine posts itself.
func (c *Classifier) BotID() string {
	return c.botID
}
