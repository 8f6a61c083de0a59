// Package safety screens destination URLs against a local domain blocklist
// and an optional remote phishing classifier. It is consulted when links are
// created or updated, never on the click path.
//
// Every failure mode here is fail-open: an unreachable feed, a broken store
// or a dead classifier logs and reports "not blocked". Blocking legitimate
// redirects over an infrastructure fault is the worse outcome, and that
// tradeoff is accepted.
package safety

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhortlabs/zhort/internal/models"
)

const (
	refreshInterval = 24 * time.Hour
	fetchTimeout    = 30 * time.Second
)

// Checker maintains the in-memory blocklist mirror. All lookups are
// thread-safe; the list is refreshed in the background and bulk-replaced
// (the upstream feed is redistributed wholesale, not diffed).
type Checker struct {
	mu          sync.RWMutex
	domains     map[string]bool
	initialized bool

	db        *sql.DB
	log       *zap.Logger
	client    *http.Client
	feedURL   string
	lookupURL string

	stop chan struct{}
	done chan struct{}
}

// NewChecker seeds the in-memory set from the blocked_domains table and, when
// a feed URL is configured, starts a goroutine that refreshes it every 24h.
func NewChecker(db *sql.DB, log *zap.Logger, feedURL, lookupURL string) *Checker {
	c := &Checker{
		domains:   make(map[string]bool),
		db:        db,
		log:       log,
		client:    &http.Client{Timeout: fetchTimeout},
		feedURL:   feedURL,
		lookupURL: lookupURL,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	if hostnames, err := models.LoadBlockedDomains(db); err != nil {
		log.Warn("safety: load blocklist from store failed", zap.Error(err))
	} else if len(hostnames) > 0 {
		for _, h := range hostnames {
			c.domains[h] = true
		}
		c.initialized = true
	}

	go c.run()
	return c
}

// IsBlocked reports whether the URL's hostname matches the blocklist by exact
// value or by any parent suffix, falling back to the remote phishing lookup
// when the local table is initialized but has no match.
func (c *Checker) IsBlocked(rawURL string) bool {
	host := hostnameOf(rawURL)
	if host == "" {
		return false
	}

	c.mu.RLock()
	blocked, initialized := c.matchLocked(host), c.initialized
	c.mu.RUnlock()

	if blocked {
		return true
	}
	if !initialized || c.lookupURL == "" {
		return false
	}
	return c.remoteLookup(rawURL)
}

// Shutdown stops the background refresh and waits for it to finish.
func (c *Checker) Shutdown() {
	close(c.stop)
	<-c.done
}

// matchLocked walks host and each parent suffix against the set. Caller holds
// at least a read lock.
func (c *Checker) matchLocked(host string) bool {
	labels := strings.Split(host, ".")
	for i := 0; i < len(labels); i++ {
		if c.domains[strings.Join(labels[i:], ".")] {
			return true
		}
	}
	return false
}

func (c *Checker) remoteLookup(rawURL string) bool {
	resp, err := c.client.Get(c.lookupURL + "?url=" + url.QueryEscape(rawURL))
	if err != nil {
		c.log.Warn("safety: phishing lookup failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("safety: phishing lookup bad status", zap.Int("status", resp.StatusCode))
		return false
	}

	var result struct {
		Matches bool `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.log.Warn("safety: phishing lookup decode failed", zap.Error(err))
		return false
	}
	return result.Matches
}

func (c *Checker) run() {
	defer close(c.done)
	if c.feedURL == "" {
		<-c.stop
		return
	}

	c.refresh()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.refresh()
		case <-c.stop:
			return
		}
	}
}

func (c *Checker) refresh() {
	hostnames, err := c.fetchFeed()
	if err != nil {
		c.log.Warn("safety: blocklist refresh failed, keeping previous list", zap.Error(err))
		return
	}
	if len(hostnames) == 0 {
		c.log.Warn("safety: blocklist feed returned no entries, keeping previous list")
		return
	}

	if err := models.ReplaceBlockedDomains(c.db, hostnames); err != nil {
		c.log.Warn("safety: blocklist store replace failed", zap.Error(err))
		// The in-memory set still gets the fresh list.
	}

	set := make(map[string]bool, len(hostnames))
	for _, h := range hostnames {
		set[h] = true
	}

	c.mu.Lock()
	c.domains = set
	c.initialized = true
	c.mu.Unlock()

	c.log.Info("safety: blocklist refreshed", zap.Int("domains", len(set)))
}

// fetchFeed downloads the plain-text feed, one hostname per line.
func (c *Checker) fetchFeed() ([]string, error) {
	resp, err := c.client.Get(c.feedURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed status %d", resp.StatusCode)
	}

	var hostnames []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if h := normalizeHost(line); h != "" {
			hostnames = append(hostnames, h)
		}
	}
	return hostnames, scanner.Err()
}

func hostnameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return normalizeHost(u.Host)
}

func normalizeHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.TrimSuffix(host, "."))
}
