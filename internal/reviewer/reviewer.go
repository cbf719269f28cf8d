// Package reviewer gates generated content behind human approval over
// Telegram. Each submission is sent to every configured reviewer with
// inline approve/reject buttons; the first verdict wins.
package reviewer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "aisocials/pkg/logx"
)

// Verdict is the outcome of one review.
type Verdict string

const (
	VerdictApproved Verdict = "approved"
	VerdictRejected Verdict = "rejected"
	VerdictExpired  Verdict = "expired"
)

// Submission is one piece of content awaiting review.
type Submission struct {
	ID       string
	Caption  string
	Score    float64
	Warnings []string
}

// Config for the review bot.
type Config struct {
	Token           string
	ReviewerIDs     []int64
	PollTimeout     time.Duration
	DecisionTimeout time.Duration
}

type Bot struct {
	cfg Config
	bot *tele.Bot
	log logx.Logger

	mu      sync.Mutex
	pending map[string]chan Verdict
	running bool
}

func New(cfg Config, log logx.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("reviewer token is empty")
	}
	if len(cfg.ReviewerIDs) == 0 {
		return nil, errors.New("at least one reviewer id is required")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	if cfg.DecisionTimeout <= 0 {
		cfg.DecisionTimeout = time.Hour
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
	})
	if err != nil {
		return nil, err
	}

	r := &Bot{
		cfg:     cfg,
		bot:     b,
		log:     log,
		pending: map[string]chan Verdict{},
	}
	r.registerHandlers()
	return r, nil
}

var (
	btnApprove = tele.Btn{Unique: "review_approve", Text: "Approve"}
	btnReject  = tele.Btn{Unique: "review_reject", Text: "Reject"}
)

func (r *Bot) registerHandlers() {
	r.bot.Handle(&btnApprove, func(c tele.Context) error {
		return r.decide(c, VerdictApproved)
	})
	r.bot.Handle(&btnReject, func(c tele.Context) error {
		return r.decide(c, VerdictRejected)
	})
}

func (r *Bot) decide(c tele.Context, v Verdict) error {
	if !r.isReviewer(c.Sender().ID) {
		return c.Respond(&tele.CallbackResponse{Text: "not authorized"})
	}
	id := strings.TrimSpace(c.Data())

	r.mu.Lock()
	ch, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	r.mu.Unlock()

	if !ok {
		return c.Respond(&tele.CallbackResponse{Text: "already decided"})
	}
	ch <- v

	r.log.Info("review verdict received",
		logx.String("submission", id),
		logx.String("verdict", string(v)),
		logx.Int64("reviewer", c.Sender().ID),
	)
	_ = c.Edit(c.Message().Text + "\n\nVerdict: " + string(v))
	return c.Respond(&tele.CallbackResponse{Text: string(v)})
}

func (r *Bot) isReviewer(id int64) bool {
	for _, rid := range r.cfg.ReviewerIDs {
		if rid == id {
			return true
		}
	}
	return false
}

// Start begins long polling in the background.
func (r *Bot) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()
	go r.bot.Start()
	r.log.Info("review bot started", logx.Int("reviewers", len(r.cfg.ReviewerIDs)))
}

// Stop halts polling and expires every pending submission.
func (r *Bot) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	pending := r.pending
	r.pending = map[string]chan Verdict{}
	r.mu.Unlock()

	for id, ch := range pending {
		ch <- VerdictExpired
		r.log.Debug("pending review expired on shutdown", logx.String("submission", id))
	}
	r.bot.Stop()
}

// Submit sends the content to all reviewers and blocks until a verdict,
// the decision timeout or ctx cancellation. Timeout yields VerdictExpired,
// not an error.
func (r *Bot) Submit(ctx context.Context, sub Submission) (Verdict, error) {
	ch := make(chan Verdict, 1)
	r.mu.Lock()
	if _, exists := r.pending[sub.ID]; exists {
		r.mu.Unlock()
		return "", fmt.Errorf("submission %q already pending", sub.ID)
	}
	r.pending[sub.ID] = ch
	r.mu.Unlock()

	markup := r.bot.NewMarkup()
	approve := markup.Data(btnApprove.Text, btnApprove.Unique, sub.ID)
	reject := markup.Data(btnReject.Text, btnReject.Unique, sub.ID)
	markup.Inline(markup.Row(approve, reject))

	text := fmt.Sprintf("Content review %s (score %.2f)\n\n%s", sub.ID, sub.Score, sub.Caption)
	if len(sub.Warnings) > 0 {
		text += "\n\nWarnings:\n- " + strings.Join(sub.Warnings, "\n- ")
	}

	sent := 0
	for _, rid := range r.cfg.ReviewerIDs {
		if _, err := r.bot.Send(&tele.User{ID: rid}, text, markup); err != nil {
			r.log.Warn("review message send failed", logx.Int64("reviewer", rid), logx.Err(err))
			continue
		}
		sent++
	}
	if sent == 0 {
		r.mu.Lock()
		delete(r.pending, sub.ID)
		r.mu.Unlock()
		return "", fmt.Errorf("could not reach any reviewer")
	}

	timer := time.NewTimer(r.cfg.DecisionTimeout)
	defer timer.Stop()

	select {
	case v := <-ch:
		return v, nil
	case <-timer.C:
		r.mu.Lock()
		delete(r.pending, sub.ID)
		r.mu.Unlock()
		r.log.Warn("review timed out", logx.String("submission", sub.ID))
		return VerdictExpired, nil
	case <-ctx.Done():
		r.mu.Lock()
		delete(r.pending, sub.ID)
		r.mu.Unlock()
		return "", ctx.Err()
	}
}
