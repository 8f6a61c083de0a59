// Package resolver orchestrates a single redirect: link lookup, access
// control, schedule, smart rules, variant selection and masking, then the
// async side effects (hit count, click fact, webhook). Target precedence is
// schedule fallback, then first matching rule, then A/B variant, then the
// stored destination.
package resolver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zhortlabs/zhort/internal/access"
	"github.com/zhortlabs/zhort/internal/cache"
	"github.com/zhortlabs/zhort/internal/clicks"
	"github.com/zhortlabs/zhort/internal/geo"
	"github.com/zhortlabs/zhort/internal/masking"
	"github.com/zhortlabs/zhort/internal/models"
	"github.com/zhortlabs/zhort/internal/schedule"
	"github.com/zhortlabs/zhort/internal/smartrules"
	"github.com/zhortlabs/zhort/internal/variants"
	"github.com/zhortlabs/zhort/internal/webhooks"
)

var (
	ErrNotFound = errors.New("link not found")
	// ErrExpired is returned when a schedule places the link outside its
	// activation window and no fallback URL is configured.
	ErrExpired = errors.New("link not active")
)

// DeniedError carries the access decision that refused the resolution.
type DeniedError struct {
	Decision access.Decision
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access denied: %s", e.Decision.Reason)
}

// Source names where the resolved target came from.
type Source string

const (
	SourceDestination Source = "destination"
	SourceFallback    Source = "schedule_fallback"
	SourceRule        Source = "rule"
	SourceVariant     Source = "variant"
)

type Request struct {
	IP        string
	UserAgent string
	Referer   string
	Password  string
}

type Resolution struct {
	Link         *models.Link
	TargetURL    string
	Source       Source
	Presentation masking.Instruction
}

type Pipeline struct {
	db       *sql.DB
	links    *cache.LinkCache
	configs  *cache.ConfigCache
	access   *access.Controller
	variants *variants.Selector
	rules    *smartrules.Resolver
	geo      *geo.Reader
	recorder *clicks.Recorder
	hooks    *webhooks.Dispatcher
	log      *zap.Logger
	now      func() time.Time
}

func New(
	db *sql.DB,
	links *cache.LinkCache,
	configs *cache.ConfigCache,
	ac *access.Controller,
	sel *variants.Selector,
	rules *smartrules.Resolver,
	geoReader *geo.Reader,
	recorder *clicks.Recorder,
	hooks *webhooks.Dispatcher,
	log *zap.Logger,
) *Pipeline {
	return &Pipeline{
		db:       db,
		links:    links,
		configs:  configs,
		access:   ac,
		variants: sel,
		rules:    rules,
		geo:      geoReader,
		recorder: recorder,
		hooks:    hooks,
		log:      log,
		now:      time.Now,
	}
}

// Resolve runs the full pipeline for one request. A non-nil Resolution is
// always redirectable; errors are ErrNotFound, ErrExpired or *DeniedError.
func (p *Pipeline) Resolve(ctx context.Context, code string, req Request) (*Resolution, error) {
	link, err := p.lookup(code)
	if err != nil {
		return nil, err
	}

	decision := p.access.Authorize(link, access.Request{IP: req.IP, Password: req.Password})
	if !decision.Allowed {
		if decision.Reason == access.ReasonExpired {
			p.notifyExpired(link)
		}
		return nil, &DeniedError{Decision: decision}
	}

	target, source, err := p.pickTarget(link, req)
	if err != nil {
		return nil, err
	}

	p.record(link, req)

	return &Resolution{
		Link:         link,
		TargetURL:    target,
		Source:       source,
		Presentation: masking.Decide(link.Masking, target),
	}, nil
}

func (p *Pipeline) lookup(code string) (*models.Link, error) {
	if link, ok := p.links.Get(code); ok {
		return link, nil
	}
	link, err := models.GetLinkByCode(p.db, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load link: %w", err)
	}
	p.links.Set(code, link)
	return link, nil
}

func (p *Pipeline) pickTarget(link *models.Link, req Request) (string, Source, error) {
	cfg, err := p.config(link.ID)
	if err != nil {
		return "", "", err
	}

	eval := schedule.Evaluate(cfg.Schedule, p.now())
	if !eval.IsActive {
		if eval.FallbackURL == "" {
			return "", "", ErrExpired
		}
		// Fallback overrides rules and variants while the window is closed.
		return eval.FallbackURL, SourceFallback, nil
	}

	facts := smartrules.Facts{
		UserAgent: req.UserAgent,
		Country:   p.geo.Lookup(req.IP).Country,
	}
	if target := p.rules.Match(cfg.Rules, facts); target != "" {
		return target, SourceRule, nil
	}

	if target, err := p.variants.Select(link.ID); err != nil {
		p.log.Warn("variant selection failed", zap.Int64("link_id", link.ID), zap.Error(err))
	} else if target != "" {
		return target, SourceVariant, nil
	}

	return link.Destination, SourceDestination, nil
}

func (p *Pipeline) config(linkID int64) (*cache.LinkConfig, error) {
	if cfg, ok := p.configs.Get(linkID); ok {
		return cfg, nil
	}
	sched, err := models.ActiveScheduleForLink(p.db, linkID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	rules, err := models.RulesForLink(p.db, linkID)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	cfg := &cache.LinkConfig{Schedule: sched, Rules: rules}
	p.configs.Set(linkID, cfg)
	return cfg, nil
}

// record performs the post-resolution side effects. None of them can fail
// the redirect.
func (p *Pipeline) record(link *models.Link, req Request) {
	if err := models.IncrementHitCount(p.db, link.ID); err != nil {
		p.log.Warn("hit count increment failed", zap.Int64("link_id", link.ID), zap.Error(err))
	}

	p.recorder.Record(clicks.Raw{
		LinkID:    link.ID,
		ClickedAt: p.now().UTC(),
		IP:        req.IP,
		UserAgent: req.UserAgent,
		Referer:   req.Referer,
	})

	if link.OwnerID != nil {
		p.hooks.Dispatch(*link.OwnerID, models.EventLinkClicked, map[string]any{
			"code":        link.Code,
			"destination": link.Destination,
		})
	}
}

func (p *Pipeline) notifyExpired(link *models.Link) {
	if link.OwnerID == nil {
		return
	}
	p.hooks.Dispatch(*link.OwnerID, models.EventLinkExpired, map[string]any{
		"code": link.Code,
	})
}
