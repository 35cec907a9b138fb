// Package webhook fires best-effort, rate-limited HTTP notifications for
// fault-injection events (chaos strikes, partition create/remove).
package webhook

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"golang.org/x/time/rate"
)

// NodeKilledPayload is sent when the chaos controller removes a node from
// the ring.
type NodeKilledPayload struct {
	Node      string `json:"node"`
	Timestamp string `json:"timestamp"`
	Remaining int    `json:"remaining_nodes"`
}

// PartitionPayload is sent when a partition is created or healed.
type PartitionPayload struct {
	A         string `json:"a"`
	B         string `json:"b"`
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"` // "created" or "removed"
}

// Formatter formats payloads for a specific target service (discord, slack, etc.).
type Formatter interface {
	FormatNodeKilled(NodeKilledPayload) ([]byte, error)
	FormatPartition(PartitionPayload) ([]byte, error)
}

// formatterRegistry maps target names to formatters. Add new targets here.
var formatterRegistry = map[string]Formatter{
	"default": defaultFormatter{},
	"discord": discordFormatter{},
}

// SupportedTargets returns the list of target names that have built-in formatters.
func SupportedTargets() []string {
	keys := make([]string, 0, len(formatterRegistry))
	for k := range formatterRegistry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Notifier fires webhooks on fault-injection events. A nil *Notifier is
// valid and every Fire method becomes a no-op, so callers need not guard on
// whether notifications are configured.
type Notifier struct {
	url       string
	client    *http.Client
	formatter Formatter
	limiter   *rate.Limiter // nil when rate limiting disabled (rateLimitPerMinute <= 0)
}

// NewNotifier creates a webhook notifier. An empty url makes every Fire method a no-op.
// target: service to format for ("default"=raw JSON, "discord"). Unknown targets use default.
// rateLimitPerMinute: max webhooks per minute; 0 or negative = unlimited.
func NewNotifier(url string, timeout time.Duration, target string, rateLimitPerMinute int) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	f, ok := formatterRegistry[target]
	if !ok {
		f = formatterRegistry["default"]
	}
	n := &Notifier{
		url:       url,
		client:    &http.Client{Timeout: timeout},
		formatter: f,
	}
	if rateLimitPerMinute > 0 {
		// Token bucket: refill at rateLimitPerMinute/60 per second, burst = limit/6 clamped to [1, 20]
		burst := rateLimitPerMinute / 6
		if burst < 1 {
			burst = 1
		}
		if burst > 20 {
			burst = 20
		}
		n.limiter = rate.NewLimiter(rate.Limit(rateLimitPerMinute)/60.0, burst)
	}
	return n
}

// defaultFormatter sends raw JSON.
type defaultFormatter struct{}

func (defaultFormatter) FormatNodeKilled(p NodeKilledPayload) ([]byte, error) {
	return json.Marshal(p)
}

func (defaultFormatter) FormatPartition(p PartitionPayload) ([]byte, error) {
	return json.Marshal(p)
}

// discordFormatter formats payloads for Discord webhooks (embeds).
type discordFormatter struct{}

func (discordFormatter) FormatNodeKilled(p NodeKilledPayload) ([]byte, error) {
	embed := map[string]any{
		"title": "Chaos strike",
		"color": 15158332, // red
		"fields": []map[string]any{
			{"name": "Node", "value": p.Node, "inline": true},
			{"name": "Remaining", "value": p.Remaining, "inline": true},
		},
		"timestamp": p.Timestamp,
	}
	return json.Marshal(map[string]any{"content": nil, "embeds": []map[string]any{embed}})
}

func (discordFormatter) FormatPartition(p PartitionPayload) ([]byte, error) {
	color := 16776960 // yellow
	if p.Event == "removed" {
		color = 3066993 // green
	}
	embed := map[string]any{
		"title": "Partition " + p.Event,
		"color": color,
		"fields": []map[string]any{
			{"name": "A", "value": p.A, "inline": true},
			{"name": "B", "value": p.B, "inline": true},
		},
		"timestamp": p.Timestamp,
	}
	return json.Marshal(map[string]any{"content": nil, "embeds": []map[string]any{embed}})
}

// FireNodeKilled sends a notification that the chaos controller removed
// node from the ring. Non-blocking; runs in a goroutine. Drops the webhook
// if the rate limit is exceeded.
func (n *Notifier) FireNodeKilled(node string, remaining int) {
	if n == nil || n.url == "" {
		return
	}
	if n.limiter != nil && !n.limiter.Allow() {
		return
	}
	payload := NodeKilledPayload{
		Node:      node,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Remaining: remaining,
	}
	body, err := n.formatter.FormatNodeKilled(payload)
	if err != nil {
		return
	}
	go n.post(body)
}

// FirePartition sends a notification that a partition was created or
// removed between a and b. Non-blocking; runs in a goroutine. event is
// "created" or "removed".
func (n *Notifier) FirePartition(a, b, event string) {
	if n == nil || n.url == "" {
		return
	}
	if n.limiter != nil && !n.limiter.Allow() {
		return
	}
	payload := PartitionPayload{
		A:         a,
		B:         b,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Event:     event,
	}
	body, err := n.formatter.FormatPartition(payload)
	if err != nil {
		return
	}
	go n.post(body)
}

func (n *Notifier) post(body []byte) {
	req, err := http.NewRequest(http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	_, _ = n.client.Do(req)
}
