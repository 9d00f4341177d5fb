// Package agent runs one conversational turn: it classifies the utterance,
// consults and updates the session, calls the lookups the intent needs and
// composes the reply.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/antoniostano/bolota/internal/articles"
	"github.com/antoniostano/bolota/internal/extract"
	"github.com/antoniostano/bolota/internal/intent"
	"github.com/antoniostano/bolota/internal/inventory"
	"github.com/antoniostano/bolota/internal/observability"
	"github.com/antoniostano/bolota/internal/policy"
	"github.com/antoniostano/bolota/internal/session"
)

// Name is the display name of the assistant.
const Name = "Bolota"

const (
	DefaultLookupTimeout = 5 * time.Second

	serviceArticles  = "articles"
	serviceInventory = "inventory"
)

// Result is the outcome of one turn.
type Result struct {
	Reply  string        `json:"reply"`
	Intent intent.Intent `json:"intent"`
}

// Classifier maps an utterance to an intent.
type Classifier interface {
	Detect(message string) intent.Intent
}

// Extractor pulls a medication name out of a question.
type Extractor interface {
	FromInfo(message string) (string, bool)
	FromAvailability(message string) (string, bool)
}

// Dependencies are the collaborators of an Orchestrator. Articles and
// Inventory may be nil, in which case the matching replies take the
// not-found branch.
type Dependencies struct {
	Classifier    Classifier
	Extractor     Extractor
	Sessions      session.Store
	Articles      articles.Finder
	Inventory     inventory.Finder
	Logger        *slog.Logger
	Metrics       *observability.Metrics
	LookupTimeout time.Duration
}

// Orchestrator is safe for concurrent use across sessions. Turns of the same
// session are expected to arrive one at a time.
type Orchestrator struct {
	classifier    Classifier
	extractor     Extractor
	sessions      session.Store
	articles      articles.Finder
	inventory     inventory.Finder
	logger        *slog.Logger
	metrics       *observability.Metrics
	lookupTimeout time.Duration
}

var (
	errNoArticleFinder   = errors.New("article lookup not configured")
	errNoInventoryFinder = errors.New("inventory lookup not configured")
)

func New(deps Dependencies) (*Orchestrator, error) {
	if deps.Classifier == nil {
		return nil, errors.New("agent: classifier is required")
	}
	if deps.Extractor == nil {
		return nil, errors.New("agent: extractor is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("agent: session store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := deps.LookupTimeout
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Orchestrator{
		classifier:    deps.Classifier,
		extractor:     deps.Extractor,
		sessions:      deps.Sessions,
		articles:      deps.Articles,
		inventory:     deps.Inventory,
		logger:        logger.With("component", "agent"),
		metrics:       deps.Metrics,
		lookupTimeout: timeout,
	}, nil
}

// Handle runs one turn for sessionID. It never fails: lookup and storage
// problems are logged and folded into the reply.
func (o *Orchestrator) Handle(ctx context.Context, sessionID, message string) Result {
	start := time.Now()
	detected := o.classifier.Detect(message)
	sess := o.loadSession(ctx, sessionID)

	res, br := o.dispatch(ctx, sess, detected, message)

	o.metrics.ObserveIntent(string(res.Intent))
	o.metrics.ObserveReply(string(br))
	o.metrics.ObserveTurn(time.Since(start))
	o.logger.Info("turn handled",
		"session_id", sessionID,
		"intent", res.Intent,
		"detected", detected,
		"branch", br,
		"message", policy.Redact(message),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return res
}

func (o *Orchestrator) dispatch(ctx context.Context, sess session.Session, detected intent.Intent, message string) (Result, branch) {
	switch detected {
	case intent.Greetings:
		return fixed(detected, replyGreeting, branchGreeting)
	case intent.Goodbye:
		return fixed(detected, replyGoodbye, branchGoodbye)
	case intent.Help:
		return fixed(detected, replyHelp, branchHelp)
	case intent.Negate:
		return fixed(detected, replyNegate, branchNegate)
	case intent.AskForMedName:
		return fixed(detected, replyAskName, branchAskName)
	case intent.MedicineNameOnly:
		name := extract.Clean(message)
		if sess.Step == session.StepAwaitingMedForAvailability {
			return o.availability(ctx, sess.ID, name)
		}
		return o.info(ctx, detected, sess.ID, name)
	case intent.MedicineInfo:
		name, _ := o.extractor.FromInfo(message)
		return o.info(ctx, detected, sess.ID, name)
	case intent.CheckAvailability, intent.Confirm:
		name, ok := o.extractor.FromAvailability(message)
		if !ok {
			name = sess.LastMedication
		}
		res, br := o.availability(ctx, sess.ID, name)
		res.Intent = detected
		return res, br
	case intent.Unknown:
		return fixed(detected, replyUnknown, branchUnknown)
	default:
		return fixed(intent.Unknown, replyUnknown, branchUnknown)
	}
}

func fixed(i intent.Intent, reply string, br branch) (Result, branch) {
	return Result{Reply: reply, Intent: i}, br
}

// info answers what a medication is and records it as the last one
// discussed.
func (o *Orchestrator) info(ctx context.Context, detected intent.Intent, sessionID, name string) (Result, branch) {
	name = strings.TrimSpace(name)
	if name == "" {
		o.patch(ctx, sessionID, session.Patch{}.WithStep(session.StepNone))
		return Result{Reply: askNameReply(), Intent: detected}, branchInfoAskName
	}

	o.patch(ctx, sessionID, session.Patch{}.WithLastMedication(name).WithStep(session.StepNone))

	found := o.findArticles(ctx, name)
	br := branchInfo
	if len(found) == 0 {
		br = branchInfoEmpty
	}
	return Result{Reply: infoReply(name, found), Intent: detected}, br
}

// availability answers price and stock. Without a name it asks for one and
// leaves the session waiting for it.
func (o *Orchestrator) availability(ctx context.Context, sessionID, name string) (Result, branch) {
	name = strings.TrimSpace(name)
	if name == "" {
		o.patch(ctx, sessionID, session.Patch{}.WithStep(session.StepAwaitingMedForAvailability))
		return Result{Reply: askNameReply(), Intent: intent.CheckAvailability}, branchAvailabilityAsk
	}

	o.patch(ctx, sessionID, session.Patch{}.WithLastMedication(name).WithStep(session.StepNone))

	items := o.findMedication(ctx, name)
	if len(items) == 0 {
		return Result{Reply: notFoundReply(name), Intent: intent.CheckAvailability}, branchAvailabilityNone
	}
	item := items[0]
	if item.Status() == inventory.StatusOutOfStock {
		return Result{Reply: outOfStockReply(item), Intent: intent.CheckAvailability}, branchAvailabilityOut
	}
	return Result{Reply: inStockReply(item), Intent: intent.CheckAvailability}, branchAvailabilityInStock
}

func (o *Orchestrator) loadSession(ctx context.Context, id string) session.Session {
	sess, err := o.sessions.Get(ctx, id)
	if err != nil {
		o.logger.Warn("session load failed", "session_id", id, "error", err)
		return session.Default(id)
	}
	sess.ID = id
	return sess
}

func (o *Orchestrator) patch(ctx context.Context, id string, p session.Patch) {
	if _, err := o.sessions.Set(ctx, id, p); err != nil {
		o.logger.Warn("session update failed", "session_id", id, "error", err)
	}
}

// lookupContext detaches a lookup from the caller so a started request runs
// to completion or to its own deadline.
func (o *Orchestrator) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), o.lookupTimeout)
}

func (o *Orchestrator) findArticles(ctx context.Context, name string) []articles.Article {
	if o.articles == nil {
		o.lookupFailed(serviceArticles, name, 0, errNoArticleFinder)
		return nil
	}
	lctx, cancel := o.lookupContext(ctx)
	defer cancel()

	start := time.Now()
	found, err := o.articles.FindArticles(lctx, name)
	if err != nil {
		o.lookupFailed(serviceArticles, name, time.Since(start), err)
		return nil
	}
	o.metrics.ObserveLookup(serviceArticles, lookupOutcome(len(found)), time.Since(start))
	return found
}

func (o *Orchestrator) findMedication(ctx context.Context, name string) []inventory.Item {
	if o.inventory == nil {
		o.lookupFailed(serviceInventory, name, 0, errNoInventoryFinder)
		return nil
	}
	lctx, cancel := o.lookupContext(ctx)
	defer cancel()

	start := time.Now()
	items, err := o.inventory.FindMedication(lctx, name)
	if err != nil {
		o.lookupFailed(serviceInventory, name, time.Since(start), err)
		return nil
	}
	o.metrics.ObserveLookup(serviceInventory, lookupOutcome(len(items)), time.Since(start))
	return items
}

func (o *Orchestrator) lookupFailed(service, term string, elapsed time.Duration, err error) {
	outcome := "error"
	if errors.Is(err, context.DeadlineExceeded) {
		outcome = "timeout"
	}
	o.metrics.ObserveLookup(service, outcome, elapsed)
	o.logger.Warn("lookup failed", "service", service, "term", term, "outcome", outcome, "error", err)
}

func lookupOutcome(n int) string {
	if n == 0 {
		return "empty"
	}
	return "ok"
}
