// Package clicks buffers raw click context and turns it into immutable
// analytics facts off the redirect path. Enrichment and persistence are
// best-effort: a full buffer or failed flush costs analytics rows, never a
// redirect.
package clicks

import (
	"database/sql"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/zhortlabs/zhort/internal/geo"
	"github.com/zhortlabs/zhort/internal/models"
	"github.com/zhortlabs/zhort/internal/uainfo"
)

type Raw struct {
	LinkID    int64
	ClickedAt time.Time
	IP        string
	UserAgent string
	Referer   string
}

type Recorder struct {
	ch   chan Raw
	stop chan struct{}
	done chan struct{}
	db   *sql.DB
	geo  *geo.Reader
	log  *zap.Logger
}

func NewRecorder(db *sql.DB, geoReader *geo.Reader, log *zap.Logger, bufferSize int, flushInterval time.Duration) *Recorder {
	r := &Recorder{
		ch:   make(chan Raw, bufferSize),
		stop: make(chan struct{}),
		done: make(chan struct{}),
		db:   db,
		geo:  geoReader,
		log:  log,
	}
	go r.run(flushInterval)
	return r
}

// Record enqueues a click non-blocking. Drops the click if the buffer is
// full.
func (r *Recorder) Record(raw Raw) {
	select {
	case r.ch <- raw:
	default:
		// buffer full, drop event
	}
}

// Shutdown flushes remaining clicks and returns.
func (r *Recorder) Shutdown() {
	close(r.stop)
	<-r.done
}

func (r *Recorder) run(interval time.Duration) {
	defer close(r.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.flush()
		case <-r.stop:
			r.flush()
			return
		}
	}
}

func (r *Recorder) flush() {
	var batch []Raw
	for {
		select {
		case raw := <-r.ch:
			batch = append(batch, raw)
		default:
			goto done
		}
	}
done:
	if len(batch) == 0 {
		return
	}

	facts := make([]models.Click, 0, len(batch))
	for _, raw := range batch {
		// Link-preview fetchers and crawlers get redirects, not analytics
		// rows.
		if uainfo.IsBot(raw.UserAgent) {
			continue
		}
		facts = append(facts, r.enrich(raw))
	}
	if len(facts) == 0 {
		return
	}

	if err := models.BatchInsertClicks(r.db, facts); err != nil {
		r.log.Warn("click flush failed", zap.Int("clicks", len(facts)), zap.Error(err))
	} else {
		r.log.Info("clicks flushed", zap.Int("clicks", len(facts)))
	}
}

func (r *Recorder) enrich(raw Raw) models.Click {
	info := uainfo.Parse(raw.UserAgent)

	var refererDomain string
	if raw.Referer != "" {
		if u, err := url.Parse(raw.Referer); err == nil {
			refererDomain = u.Host
		}
	}

	// Lookup failures yield empty country/city rather than failing the fact.
	geoResult := r.geo.Lookup(raw.IP)

	return models.Click{
		LinkID:        raw.LinkID,
		ClickedAt:     raw.ClickedAt,
		IP:            raw.IP,
		UserAgent:     raw.UserAgent,
		Referer:       raw.Referer,
		RefererDomain: refererDomain,
		Country:       geoResult.Country,
		City:          geoResult.City,
		Browser:       info.Browser,
		OS:            info.OS,
		DeviceType:    info.Device,
	}
}
