// Package conversation is the event-driven dialogue engine: it routes
// inbound chat events by user role, walks store users through request
// composition step by step, and turns pharmacist button taps into
// arbitration calls. One engine instance serves every user; per-user
// state lives in the session store.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yakushift/staffing-platform/internal/chat"
	"github.com/yakushift/staffing-platform/internal/directory"
	"github.com/yakushift/staffing-platform/internal/dispatch"
	"github.com/yakushift/staffing-platform/internal/observability/metrics"
	"github.com/yakushift/staffing-platform/internal/session"
	"github.com/yakushift/staffing-platform/internal/staffing"
	"github.com/yakushift/staffing-platform/internal/textparse"
	"github.com/yakushift/staffing-platform/pkg/logging"
)

// Dispatcher fans a stored request out to available pharmacists. The
// inline matcher and the queue-backed enqueuer both satisfy this.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *staffing.Request) (*dispatch.Result, error)
}

// Recorder mirrors request lifecycle events into long-term storage.
// All calls are best-effort; the registry stays the source of truth.
type Recorder interface {
	RecordRequest(ctx context.Context, req *staffing.Request) error
	RecordApplication(ctx context.Context, requestID, pharmacistID string) error
	RecordConfirmation(ctx context.Context, requestID, pharmacistID string) error
	RecordStatus(ctx context.Context, requestID string, status staffing.Status) error
}

// Transcript appends dialogue lines to the chat log, best-effort.
type Transcript interface {
	AppendInbound(ctx context.Context, userID, text string) error
	AppendOutbound(ctx context.Context, userID, text string) error
}

// Archiver stores terminal request snapshots.
type Archiver interface {
	ArchiveRequest(ctx context.Context, req *staffing.Request) error
}

// Alerter raises operator notifications for notable request moments.
type Alerter interface {
	RequestSubmitted(ctx context.Context, req *staffing.Request, notified int) error
	RequestFilled(ctx context.Context, req *staffing.Request) error
}

// Engine handles one inbound chat event at a time per user.
type Engine struct {
	sessions  session.Store
	registry  staffing.Registry
	arbiter   *staffing.Arbiter
	directory directory.Directory
	notifier  chat.Notifier

	dispatcher Dispatcher
	recorder   Recorder
	transcript Transcript
	archiver   Archiver
	alerts     Alerter

	metrics    *metrics.ConversationMetrics
	arbMetrics *metrics.ArbitrationMetrics
	log        *logging.Logger
	now        func() time.Time
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithDispatcher wires request fan-out.
func WithDispatcher(d Dispatcher) Option {
	return func(e *Engine) { e.dispatcher = d }
}

// WithRecorder wires the records store.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithTranscript wires the chat log.
func WithTranscript(t Transcript) Option {
	return func(e *Engine) { e.transcript = t }
}

// WithArchiver wires the request archive.
func WithArchiver(a Archiver) Option {
	return func(e *Engine) { e.archiver = a }
}

// WithAlerter wires operator alerts.
func WithAlerter(a Alerter) Option {
	return func(e *Engine) { e.alerts = a }
}

// WithMetrics wires conversation and arbitration metrics.
func WithMetrics(cm *metrics.ConversationMetrics, am *metrics.ArbitrationMetrics) Option {
	return func(e *Engine) {
		e.metrics = cm
		e.arbMetrics = am
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine builds the dialogue engine. Sessions, registry, arbiter,
// directory and notifier are required; everything else is optional.
func NewEngine(sessions session.Store, registry staffing.Registry, arbiter *staffing.Arbiter,
	dir directory.Directory, notifier chat.Notifier, logger *logging.Logger, opts ...Option) *Engine {
	if sessions == nil {
		panic("conversation: session store cannot be nil")
	}
	if registry == nil {
		panic("conversation: registry cannot be nil")
	}
	if arbiter == nil {
		panic("conversation: arbiter cannot be nil")
	}
	if dir == nil {
		panic("conversation: directory cannot be nil")
	}
	if notifier == nil {
		panic("conversation: notifier cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	e := &Engine{
		sessions:  sessions,
		registry:  registry,
		arbiter:   arbiter,
		directory: dir,
		notifier:  notifier,
		log:       logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleEvent processes one inbound event. It never returns an error
// and never panics outward: anything escaping a handler is logged and
// converted into one generic apology to the same user.
func (e *Engine) HandleEvent(ctx context.Context, ev chat.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("conversation: handler panic", "panic", r,
				"user_id", ev.UserID, "kind", string(ev.Kind))
			chat.TryReply(ctx, e.notifier, e.log, ev.ReplyToken, ev.UserID, chat.Text(textGenericError))
		}
	}()

	if ev.UserID == "" {
		e.log.Warn("conversation: event without user id", "kind", string(ev.Kind))
		return
	}

	sess, err := e.sessions.GetOrCreate(ctx, ev.UserID)
	if err != nil {
		e.log.Error("conversation: session load failed", "error", err, "user_id", ev.UserID)
		e.reply(ctx, ev, chat.Text(textGenericError))
		return
	}
	role := e.resolveRole(ctx, sess)
	e.metrics.ObserveEvent(string(ev.Kind), string(role))

	switch ev.Kind {
	case chat.EventText:
		e.appendInbound(ctx, ev.UserID, ev.Text)
		e.handleText(ctx, ev, sess, role)
	case chat.EventAction:
		e.appendInbound(ctx, ev.UserID, ev.ActionToken)
		e.handleAction(ctx, ev, sess, role)
	case chat.EventFollow:
		e.handleFollow(ctx, ev, role)
	case chat.EventUnfollow:
		e.log.Info("user unfollowed", "user_id", ev.UserID)
	default:
		e.log.Warn("conversation: unhandled event kind", "kind", string(ev.Kind), "user_id", ev.UserID)
	}
}

func (e *Engine) handleText(ctx context.Context, ev chat.Event, sess *session.Session, role session.Role) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}
	if e.handleRegistration(ctx, ev, text) {
		return
	}
	switch role {
	case session.RoleStore:
		e.handleStoreText(ctx, ev, sess, text)
	case session.RolePharmacist:
		e.handlePharmacistText(ctx, ev, text)
	default:
		e.reply(ctx, ev, chat.Text(textWelcomeGuide))
	}
}

func (e *Engine) handleAction(ctx context.Context, ev chat.Event, sess *session.Session, role session.Role) {
	act := chat.ParseAction(ev.ActionToken)
	if act.Verb == chat.ActionUnknown {
		e.log.Warn("conversation: unknown action token", "token", act.Raw, "user_id", ev.UserID)
		e.reply(ctx, ev, chat.Text(textUnknownAction))
		return
	}

	switch act.Verb {
	case chat.ActionPharmacistApply, chat.ActionPharmacistDecline, chat.ActionPharmacistDetails:
		if role != session.RolePharmacist {
			e.reply(ctx, ev, chat.Text(textUnknownAction))
			return
		}
		e.handlePharmacistAction(ctx, ev, act)
	case chat.ActionConfirmAccept, chat.ActionConfirmReject:
		if role != session.RoleStore {
			e.reply(ctx, ev, chat.Text(textUnknownAction))
			return
		}
		e.handleConfirmAction(ctx, ev, act)
	default:
		// composition verbs
		switch role {
		case session.RoleStore:
			e.handleComposeAction(ctx, ev, sess, act)
		case session.RolePharmacist:
			e.reply(ctx, ev, chat.Text(textPharmacistComposeBarred))
		default:
			e.reply(ctx, ev, chat.Text(textWelcomeGuide))
		}
	}
}

func (e *Engine) handleFollow(ctx context.Context, ev chat.Event, role session.Role) {
	switch role {
	case session.RoleStore:
		name := ""
		if id, err := e.directory.FindByUserID(ctx, ev.UserID); err == nil && id != nil {
			name = id.Name
		}
		e.reply(ctx, ev, chat.Text(storeWelcome(name)))
	case session.RolePharmacist:
		e.reply(ctx, ev, chat.Text(pharmacistWelcome()))
	default:
		e.reply(ctx, ev, chat.Text(textWelcomeGuide))
	}
}

func (e *Engine) handlePharmacistText(ctx context.Context, ev chat.Event, text string) {
	if textparse.IsRequestTrigger(text) {
		e.reply(ctx, ev, chat.Text(textPharmacistComposeBarred))
		return
	}
	e.reply(ctx, ev, chat.Text(textPharmacistMenu))
}

// resolveRole returns the cached role, falling back to a directory
// lookup for first contact. The lookup result is cached on the session
// best-effort.
func (e *Engine) resolveRole(ctx context.Context, sess *session.Session) session.Role {
	if sess.Role != session.RoleUnknown {
		return sess.Role
	}
	id, err := e.directory.FindByUserID(ctx, sess.UserID)
	if err != nil {
		e.log.Warn("conversation: role lookup failed", "error", err, "user_id", sess.UserID)
		return session.RoleUnknown
	}
	if id == nil {
		return session.RoleUnknown
	}
	role := session.RoleStore
	if id.Kind == directory.KindPharmacist {
		role = session.RolePharmacist
	}
	if err := e.sessions.SetRole(ctx, sess.UserID, role); err != nil {
		e.log.Warn("conversation: role cache failed", "error", err, "user_id", sess.UserID)
	}
	sess.Role = role
	return role
}

// reply answers the inbound event, preferring its reply token.
func (e *Engine) reply(ctx context.Context, ev chat.Event, msg chat.Message) {
	ok := chat.TryReply(ctx, e.notifier, e.log, ev.ReplyToken, ev.UserID, msg)
	outcome := "sent"
	if !ok {
		outcome = "failed"
	}
	e.metrics.ObserveReply(outcome)
	if ok {
		e.appendOutbound(ctx, ev.UserID, msg)
	}
}

// notify pushes to a user unrelated to the inbound event.
func (e *Engine) notify(ctx context.Context, userID string, msg chat.Message) bool {
	ok := chat.TryNotify(ctx, e.notifier, e.log, userID, msg)
	if ok {
		e.appendOutbound(ctx, userID, msg)
	}
	return ok
}

// tryHook runs a best-effort side effect and logs its failure. Every
// collaborator call whose outcome must not disturb the dialogue goes
// through here.
func (e *Engine) tryHook(name string, fn func() error) {
	if fn == nil {
		return
	}
	if err := fn(); err != nil {
		e.log.Warn("conversation: "+name+" failed", "error", err)
	}
}

func (e *Engine) appendInbound(ctx context.Context, userID, text string) {
	if e.transcript == nil || text == "" {
		return
	}
	e.tryHook("transcript append", func() error {
		return e.transcript.AppendInbound(ctx, userID, text)
	})
}

func (e *Engine) appendOutbound(ctx context.Context, userID string, msg chat.Message) {
	if e.transcript == nil {
		return
	}
	text := msg.Body
	if msg.Title != "" {
		text = msg.Title + "\n" + msg.Body
	}
	e.tryHook("transcript append", func() error {
		return e.transcript.AppendOutbound(ctx, userID, text)
	})
}

// setStep moves the session to step and records the transition.
func (e *Engine) setStep(ctx context.Context, sess *session.Session, step session.Step) error {
	if err := e.sessions.SetStep(ctx, sess.UserID, step); err != nil {
		return fmt.Errorf("conversation: set step %s: %w", step, err)
	}
	e.metrics.ObserveTransition(sess.Step.String(), step.String())
	sess.Step = step
	return nil
}

// setFields writes draft key/value pairs in order.
func (e *Engine) setFields(ctx context.Context, userID string, kv ...string) error {
	for i := 0; i+1 < len(kv); i += 2 {
		if err := e.sessions.SetDraftField(ctx, userID, kv[i], kv[i+1]); err != nil {
			return fmt.Errorf("conversation: save draft %s: %w", kv[i], err)
		}
	}
	return nil
}

// failStep logs an internal step failure and sends its user-facing
// text. The session is left as it was.
func (e *Engine) failStep(ctx context.Context, ev chat.Event, userText string, err error) {
	e.log.Error("conversation: step failed", "error", err, "user_id", ev.UserID)
	e.reply(ctx, ev, chat.Text(userText))
}
