package webhooks

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zhortlabs/zhort/internal/db"
	"github.com/zhortlabs/zhort/internal/models"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func createHook(t *testing.T, database *sql.DB, url string, events []string, active bool) *models.Webhook {
	t.Helper()
	h := &models.Webhook{
		OwnerID:  1,
		URL:      url,
		Secret:   "whsec_test",
		Events:   events,
		IsActive: active,
	}
	if err := models.CreateWebhook(database, h); err != nil {
		t.Fatalf("create webhook: %v", err)
	}
	return h
}

func TestDispatcher_DeliversSignedPayload(t *testing.T) {
	database := testDB(t)

	type received struct {
		body      []byte
		event     string
		signature string
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{
			body:      body,
			event:     r.Header.Get("X-Zhort-Event"),
			signature: r.Header.Get("X-Zhort-Signature"),
		}
	}))
	defer srv.Close()

	hook := createHook(t, database, srv.URL, []string{models.EventLinkClicked}, true)

	d := NewDispatcher(database, zap.NewNop(), 16, 2*time.Second)
	d.Dispatch(1, models.EventLinkClicked, map[string]any{"code": "abc123"})
	d.Shutdown()

	select {
	case r := <-got:
		if r.event != models.EventLinkClicked {
			t.Errorf("event header = %q, want %q", r.event, models.EventLinkClicked)
		}
		if !Verify(hook.Secret, r.body, r.signature) {
			t.Error("signature does not verify against body")
		}
		var p payload
		if err := json.Unmarshal(r.body, &p); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if p.Event != models.EventLinkClicked {
			t.Errorf("payload event = %q, want %q", p.Event, models.EventLinkClicked)
		}
		if _, err := time.Parse("2006-01-02T15:04:05.000Z07:00", p.Timestamp); err != nil {
			t.Errorf("timestamp %q lacks millisecond precision: %v", p.Timestamp, err)
		}
	default:
		t.Fatal("no delivery received")
	}

	hooks, err := models.WebhooksForOwner(database, 1)
	if err != nil {
		t.Fatalf("reload webhooks: %v", err)
	}
	if hooks[0].LastTriggeredAt == nil {
		t.Error("last_triggered_at not set after successful delivery")
	}
}

func TestDispatcher_SkipsUnsubscribedAndInactive(t *testing.T) {
	database := testDB(t)

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	createHook(t, database, srv.URL, []string{models.EventLinkCreated}, true)
	createHook(t, database, srv.URL, []string{models.EventLinkClicked}, false)

	d := NewDispatcher(database, zap.NewNop(), 16, 2*time.Second)
	d.Dispatch(1, models.EventLinkClicked, nil)
	d.Shutdown()

	if n := calls.Load(); n != 0 {
		t.Errorf("deliveries = %d, want 0", n)
	}
}

func TestDispatcher_FailedDeliveryNotTouched(t *testing.T) {
	database := testDB(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	createHook(t, database, srv.URL, []string{models.EventLinkExpired}, true)

	d := NewDispatcher(database, zap.NewNop(), 16, 2*time.Second)
	d.Dispatch(1, models.EventLinkExpired, nil)
	d.Shutdown()

	hooks, err := models.WebhooksForOwner(database, 1)
	if err != nil {
		t.Fatalf("reload webhooks: %v", err)
	}
	if hooks[0].LastTriggeredAt != nil {
		t.Error("last_triggered_at set after failed delivery")
	}
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	database := testDB(t)

	// Queue of size 1 and no running worker consuming fast enough to matter;
	// extra dispatches must not block.
	d := NewDispatcher(database, zap.NewNop(), 1, time.Second)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			d.Dispatch(1, models.EventLinkClicked, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatch blocked on full queue")
	}
	d.Shutdown()
}

func TestVerify(t *testing.T) {
	body := []byte(`{"event":"link.clicked"}`)
	sig := Sign("secret", body)
	if !Verify("secret", body, sig) {
		t.Error("valid signature rejected")
	}
	if Verify("secret", []byte(`tampered`), sig) {
		t.Error("tampered body accepted")
	}
	if Verify("other", body, sig) {
		t.Error("wrong secret accepted")
	}
}
