package safety

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zhortlabs/zhort/internal/db"
	"github.com/zhortlabs/zhort/internal/models"
)

// testChecker builds a Checker with a manually loaded set and no background
// goroutine work.
func testChecker(t *testing.T, blocked []string, lookupURL string) *Checker {
	t.Helper()
	c := &Checker{
		domains:     make(map[string]bool),
		log:         zap.NewNop(),
		client:      &http.Client{Timeout: time.Second},
		lookupURL:   lookupURL,
		initialized: len(blocked) > 0,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, h := range blocked {
		c.domains[h] = true
	}
	go c.run()
	t.Cleanup(c.Shutdown)
	return c
}

func TestIsBlocked_ExactMatch(t *testing.T) {
	c := testChecker(t, []string{"evil.com"}, "")
	if !c.IsBlocked("https://evil.com/login") {
		t.Error("exact match not blocked")
	}
}

func TestIsBlocked_ParentSuffixMatch(t *testing.T) {
	c := testChecker(t, []string{"evil.com"}, "")
	if !c.IsBlocked("https://sub.evil.com/x") {
		t.Error("sub.evil.com not blocked with evil.com listed")
	}
	if !c.IsBlocked("https://a.b.sub.evil.com/") {
		t.Error("deep subdomain not blocked")
	}
}

func TestIsBlocked_NoMatch(t *testing.T) {
	c := testChecker(t, []string{"evil.com"}, "")
	for _, u := range []string{
		"https://example.com",
		"https://notevil.com",   // no label boundary
		"https://evil.com.safe.org", // evil.com is not a suffix here
	} {
		if c.IsBlocked(u) {
			t.Errorf("IsBlocked(%q) = true, want false", u)
		}
	}
}

func TestIsBlocked_NormalizesHost(t *testing.T) {
	c := testChecker(t, []string{"evil.com"}, "")
	if !c.IsBlocked("https://EVIL.com:8443/x") {
		t.Error("uppercase host with port not blocked")
	}
}

func TestIsBlocked_BadURLFailsOpen(t *testing.T) {
	c := testChecker(t, []string{"evil.com"}, "")
	if c.IsBlocked("not a url") {
		t.Error("unparseable URL should not block")
	}
}

func TestIsBlocked_RemoteLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("url") == "https://phish.example/steal" {
			fmt.Fprint(w, `{"matches":true}`)
			return
		}
		fmt.Fprint(w, `{"matches":false}`)
	}))
	defer srv.Close()

	c := testChecker(t, []string{"evil.com"}, srv.URL)
	if !c.IsBlocked("https://phish.example/steal") {
		t.Error("remote match not blocked")
	}
	if c.IsBlocked("https://clean.example/") {
		t.Error("remote non-match blocked")
	}
}

func TestIsBlocked_RemoteLookupSkippedWhenUninitialized(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		fmt.Fprint(w, `{"matches":true}`)
	}))
	defer srv.Close()

	c := testChecker(t, nil, srv.URL)
	if c.IsBlocked("https://phish.example/") {
		t.Error("uninitialized checker should not block")
	}
	if called {
		t.Error("remote lookup called before local table was initialized")
	}
}

func TestIsBlocked_RemoteFailureFailsOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testChecker(t, []string{"evil.com"}, srv.URL)
	if c.IsBlocked("https://anything.example/") {
		t.Error("remote failure should fail open")
	}
}

func TestRefresh_BulkReplacesStoreAndMemory(t *testing.T) {
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	if err := models.ReplaceBlockedDomains(database, []string{"old.example"}); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "# comment line\nevil.com\nScam.Org.\n\n")
	}))
	defer srv.Close()

	c := NewChecker(database, zap.NewNop(), srv.URL, "")
	defer c.Shutdown()

	// NewChecker triggers an immediate refresh; wait for it to land.
	deadline := time.After(2 * time.Second)
	for !c.IsBlocked("https://evil.com/") {
		select {
		case <-deadline:
			t.Fatal("refresh did not load the feed in time")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if !c.IsBlocked("https://scam.org/") {
		t.Error("normalized feed entry not blocked")
	}
	if c.IsBlocked("https://old.example/") {
		t.Error("stale entry survived the bulk replace")
	}

	hostnames, err := models.LoadBlockedDomains(database)
	if err != nil {
		t.Fatal(err)
	}
	if len(hostnames) != 2 {
		t.Errorf("store has %d domains, want 2: %v", len(hostnames), hostnames)
	}
}
