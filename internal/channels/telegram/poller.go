package telegram

import (
	"context"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wolfman30/clinic-booking-bot/internal/bot"
	"github.com/wolfman30/clinic-booking-bot/pkg/logging"
)

// Handler consumes platform-neutral updates.
type Handler interface {
	Handle(ctx context.Context, u bot.Update)
}

// Poller long-polls Telegram. Each user gets a FIFO lane drained by one
// goroutine, so a user's updates are handled strictly in arrival order while
// different users proceed concurrently.
type Poller struct {
	api     BotAPI
	handler Handler
	timeout time.Duration
	logger  *logging.Logger
}

// NewPoller builds a poller. timeout is the long-poll wait per request.
func NewPoller(api BotAPI, handler Handler, timeout time.Duration, logger *logging.Logger) *Poller {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Poller{api: api, handler: handler, timeout: timeout, logger: logger}
}

// Run blocks until ctx is cancelled or the updates channel closes, then
// waits for in-flight handlers to finish.
func (p *Poller) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = int(p.timeout / time.Second)
	updates := p.api.GetUpdatesChan(cfg)

	// Handlers outlive cancellation so a started dialog step can complete.
	lanes := newUserLanes(context.WithoutCancel(ctx), p.handler)
	defer lanes.wait()

	p.logger.Info("telegram: polling started", "timeout", p.timeout.String())
	for {
		select {
		case <-ctx.Done():
			p.api.StopReceivingUpdates()
			p.logger.Info("telegram: polling stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				p.logger.Info("telegram: updates channel closed")
				return nil
			}
			u, ok := ConvertUpdate(upd)
			if !ok {
				p.logger.Debug("telegram: skipping non-message update", "update_id", upd.UpdateID)
				continue
			}
			lanes.push(u)
		}
	}
}

// userLanes queues updates per user. A lane's goroutine exits once its queue
// is empty and the lane is removed, so idle users hold no resources.
type userLanes struct {
	ctx     context.Context
	handler Handler

	mu      sync.Mutex
	pending map[string][]bot.Update
	wg      sync.WaitGroup
}

func newUserLanes(ctx context.Context, handler Handler) *userLanes {
	return &userLanes{ctx: ctx, handler: handler, pending: make(map[string][]bot.Update)}
}

func (l *userLanes) push(u bot.Update) {
	l.mu.Lock()
	defer l.mu.Unlock()
	queue, active := l.pending[u.UserID]
	l.pending[u.UserID] = append(queue, u)
	if active {
		return
	}
	l.wg.Add(1)
	go l.drain(u.UserID)
}

func (l *userLanes) drain(userID string) {
	defer l.wg.Done()
	for {
		l.mu.Lock()
		queue := l.pending[userID]
		if len(queue) == 0 {
			delete(l.pending, userID)
			l.mu.Unlock()
			return
		}
		u := queue[0]
		l.pending[userID] = queue[1:]
		l.mu.Unlock()

		l.handler.Handle(l.ctx, u)
	}
}

func (l *userLanes) active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *userLanes) wait() {
	l.wg.Wait()
}

// ConvertUpdate maps a Telegram update to a bot.Update. Only plain messages
// with a sender are accepted.
func ConvertUpdate(upd tgbotapi.Update) (bot.Update, bool) {
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return bot.Update{}, false
	}
	u := bot.Update{
		ID:     int64(upd.UpdateID),
		UserID: strconv.FormatInt(msg.From.ID, 10),
		ChatID: msg.Chat.ID,
		Text:   msg.Text,
	}
	if msg.Contact != nil {
		c := &bot.Contact{PhoneNumber: msg.Contact.PhoneNumber}
		if msg.Contact.UserID != 0 {
			c.UserID = strconv.FormatInt(msg.Contact.UserID, 10)
		}
		u.Contact = c
	}
	if msg.Location != nil {
		u.Location = &bot.Location{Latitude: msg.Location.Latitude, Longitude: msg.Location.Longitude}
	}
	return u, true
}
