// Package disposable keeps a TTL cache of throwaway email domains so that
// registration can reject them with a single point lookup. The cache is
// refilled from a public list on a schedule; entries that a reload stops
// refreshing expire on their own.
package disposable

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/keyxmakerx/accounts/internal/cache"
)

// keyPrefix namespaces disposable domain entries in the shared cache.
const keyPrefix = "disposable_domain:"

// marker is the value stored for each domain. Only presence matters.
type marker struct {
	Domain string `json:"domain"`
}

// Cache answers whether a domain is disposable.
type Cache struct {
	store    cache.TTLCache
	source   DomainSource
	entryTTL time.Duration
}

// NewCache creates a cache over store that reloads from source. Each entry
// lives for entryTTL unless refreshed by a later reload.
func NewCache(store cache.TTLCache, source DomainSource, entryTTL time.Duration) *Cache {
	return &Cache{
		store:    store,
		source:   source,
		entryTTL: entryTTL,
	}
}

// IsDisposable reports whether domain is a known throwaway domain. Matching
// is exact on the lower-cased domain. A cache failure is logged and treated
// as not disposable so an outage never blocks sign-ups.
func (c *Cache) IsDisposable(ctx context.Context, domain string) bool {
	domain = normalize(domain)
	if domain == "" {
		return false
	}

	_, found, err := c.store.Get(ctx, keyPrefix+domain)
	if err != nil {
		slog.Warn("disposable domain lookup failed",
			slog.String("domain", domain),
			slog.Any("error", err),
		)
		return false
	}
	return found
}

// Reload fetches the list and rewrites every entry with a fresh TTL. On
// error the previous entries stay until they expire.
func (c *Cache) Reload(ctx context.Context) error {
	raw, err := c.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetching disposable domains: %w", err)
	}

	domains := ParseList(raw)
	if len(domains) == 0 {
		slog.Warn("disposable domain list is empty, keeping existing entries")
		return nil
	}

	entries := make(map[string][]byte, len(domains))
	for _, d := range domains {
		value, err := json.Marshal(marker{Domain: d})
		if err != nil {
			return fmt.Errorf("encoding marker for %s: %w", d, err)
		}
		entries[keyPrefix+d] = value
	}

	if err := c.store.SetMany(ctx, entries, c.entryTTL); err != nil {
		return fmt.Errorf("storing disposable domains: %w", err)
	}

	slog.Info("disposable domains reloaded", slog.Int("domains", len(entries)))
	return nil
}

// ParseList splits a newline-delimited list into normalized domains.
// Blank lines and lines starting with '#' are skipped; duplicates are kept
// once.
func ParseList(raw string) []string {
	var out []string
	seen := make(map[string]struct{})

	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		line := normalize(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}

// normalize trims whitespace and lower-cases a domain.
func normalize(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

// DomainOf returns the part of an email address after the last '@', or ""
// when there is none.
func DomainOf(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return normalize(email[at+1:])
}
