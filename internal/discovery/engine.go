// Package discovery builds the relationship graph from the interaction
// log. Each extractor scans one feed, aggregates pair evidence, and
// merges it into stored edges; the orchestrator runs them all in a fixed
// order with per-extractor failure isolation.
package discovery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kithlabs/kith/internal/config"
	"github.com/kithlabs/kith/internal/graph"
	"github.com/kithlabs/kith/internal/interactions"
	"github.com/kithlabs/kith/internal/links"
	"github.com/kithlabs/kith/internal/people"
)

// Source type values as written by the sync pipeline.
const (
	sourceCalendar = "calendar"
	sourceGmail    = "gmail"
	sourceVault    = "vault"
	sourceWhatsapp = "whatsapp"
	sourceIMessage = "imessage"
	sourceSMS      = "sms"
	sourcePhone    = "phone"
	sourceSlack    = "slack"
	sourceLinkedIn = "linkedin"
	sourcePhotos   = "photos"
)

// whatsappGroupPrefix marks group traffic in whatsapp interaction
// titles. Direct counts exclude it; group discovery requires it.
const whatsappGroupPrefix = "WhatsApp group:"

// Sentinel errors returned by the read-side operations.
var (
	ErrPersonNotFound = errors.New("person not found")
	ErrUnknownSource  = errors.New("unknown discovery source")
)

// PersonDirectory is the slice of the person directory the engine reads.
type PersonDirectory interface {
	GetAll() ([]people.Person, error)
	GetByID(id string) (*people.Person, error)
}

// InteractionLog is the slice of the interaction log the engine reads.
type InteractionLog interface {
	BySource(ctx context.Context, sourceTypes []string, since time.Time, includeUndated bool) ([]interactions.Record, error)
	DirectCounts(ctx context.Context, q interactions.DirectQuery) ([]interactions.DirectCount, error)
}

// EdgeStore is the slice of the relationship store the engine writes.
type EdgeStore interface {
	GetBetween(a, b string) (*graph.Relationship, error)
	Upsert(c graph.Contribution) (*graph.Relationship, bool, error)
	GetConnections(personID string) ([]string, error)
}

// LinkSource is the slice of the platform-identity link table the
// slack and linkedin extractors read.
type LinkSource interface {
	LinkedPersonIDs(sourceType string) (map[string]string, error)
	UnlinkedNames(sourceType string) (map[string]string, error)
}

// Engine runs relationship discovery over one database.
type Engine struct {
	people PersonDirectory
	log    InteractionLog
	edges  EdgeStore
	links  LinkSource

	owner  string
	cfg    config.DiscoveryConfig
	logger *log.Logger
}

// New creates an Engine over an open database. owner is the configured
// owner person id and may be empty, in which case the extractors that
// need it skip with a warning.
func New(db *sql.DB, owner string, cfg config.DiscoveryConfig, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		people: people.NewDirectory(db),
		log:    interactions.NewLog(db),
		edges:  graph.NewStore(db),
		links:  links.NewStore(db),
		owner:  owner,
		cfg:    cfg.WithDefaults(),
		logger: logger,
	}
}

// Report summarizes one full discovery run.
type Report struct {
	BySource map[string]int    `json:"by_source"`
	Errors   map[string]string `json:"errors,omitempty"`
	Total    int               `json:"total"`
}

// extractor names, also the Report.BySource keys.
const (
	nameCalendar        = "calendar"
	nameCalendarDirect  = "calendar_direct"
	nameEmail           = "email"
	nameVault           = "vault"
	nameMessagingGroups = "messaging_groups"
	nameIMessageDirect  = "imessage_direct"
	nameWhatsappDirect  = "whatsapp_direct"
	namePhoneCalls      = "phone_calls"
	nameSlackDirect     = "slack_direct"
	nameLinkedIn        = "linkedin"
	namePhotos          = "photos"
)

type step struct {
	name string
	fn   func(context.Context) (int, error)
}

// steps returns the extractors in execution order. The group extractors
// come first so the typed edges they create win the default-type race
// against the direct feeds.
func (e *Engine) steps() []step {
	return []step{
		{nameCalendar, e.discoverFromCalendar},
		{nameCalendarDirect, e.discoverFromCalendarDirect},
		{nameEmail, e.discoverFromEmailThreads},
		{nameVault, e.discoverFromVaultCoMentions},
		{nameMessagingGroups, e.discoverFromMessagingGroups},
		{nameIMessageDirect, e.discoverFromIMessageDirect},
		{nameWhatsappDirect, e.discoverFromWhatsappDirect},
		{namePhoneCalls, e.discoverFromPhoneCalls},
		{nameSlackDirect, e.discoverFromSlackDirect},
		{nameLinkedIn, e.discoverLinkedInConnections},
		{namePhotos, e.discoverFromSharedPhotos},
	}
}

// RunFullDiscovery runs every extractor in order. A failing extractor is
// recorded in Report.Errors and never stops the ones after it.
func (e *Engine) RunFullDiscovery(ctx context.Context) (*Report, error) {
	report := &Report{
		BySource: make(map[string]int),
		Errors:   make(map[string]string),
	}

	for _, s := range e.steps() {
		n, err := e.runStep(ctx, s.name, s.fn)
		report.BySource[s.name] = n
		if err != nil {
			report.Errors[s.name] = err.Error()
			e.logger.Error("extractor failed", "extractor", s.name, "error", err)
			continue
		}
		report.Total += n
	}

	if len(report.Errors) == 0 {
		report.Errors = nil
	}
	e.logger.Info("full discovery complete", "total", report.Total)
	return report, nil
}

// RunSource runs one extractor by its report name. The name set matches
// the keys RunFullDiscovery reports under.
func (e *Engine) RunSource(ctx context.Context, name string) (*Report, error) {
	for _, s := range e.steps() {
		if s.name != name {
			continue
		}
		report := &Report{BySource: map[string]int{s.name: 0}}
		n, err := e.runStep(ctx, s.name, s.fn)
		report.BySource[s.name] = n
		if err != nil {
			report.Errors = map[string]string{s.name: err.Error()}
			e.logger.Error("extractor failed", "extractor", s.name, "error", err)
			return report, nil
		}
		report.Total = n
		return report, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
}

// runStep isolates one extractor: a panic inside it becomes an error on
// the report instead of taking down the run.
func (e *Engine) runStep(ctx context.Context, name string, fn func(context.Context) (int, error)) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", name, r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return fn(ctx)
}

func (e *Engine) cutoff() time.Time {
	return time.Now().UTC().AddDate(0, 0, -e.cfg.LookbackDays)
}

// pairAggregate accumulates evidence for one pair during an extractor's
// scan.
type pairAggregate struct {
	pair  [2]string
	count int
	first *time.Time
	last  *time.Time
}

func (a *pairAggregate) observe(t *time.Time) {
	a.count++
	if t == nil {
		return
	}
	if a.first == nil || t.Before(*a.first) {
		tc := *t
		a.first = &tc
	}
	if a.last == nil || t.After(*a.last) {
		tc := *t
		a.last = &tc
	}
}

// pairMap keys aggregates by canonical pair.
type pairMap map[string]*pairAggregate

func (m pairMap) get(a, b string) *pairAggregate {
	pair := [2]string{a, b}
	if pair[0] > pair[1] {
		pair[0], pair[1] = pair[1], pair[0]
	}
	key := pair[0] + "\x00" + pair[1]
	agg, ok := m[key]
	if !ok {
		agg = &pairAggregate{pair: pair}
		m[key] = agg
	}
	return agg
}
