package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking-bot/internal/bot"
	"github.com/wolfman30/clinic-booking-bot/internal/conversation"
	"github.com/wolfman30/clinic-booking-bot/internal/geocode"
	"github.com/wolfman30/clinic-booking-bot/internal/storage"
	"github.com/wolfman30/clinic-booking-bot/pkg/logging"
)

type fakeAPI struct {
	mu      sync.Mutex
	updates chan tgbotapi.Update
	sent    []tgbotapi.Chattable
	sendErr error
	stopped bool
	config  tgbotapi.UpdateConfig
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 10)}
}

func (f *fakeAPI) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	f.mu.Lock()
	f.config = cfg
	f.mu.Unlock()
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

type recordingHandler struct {
	mu      sync.Mutex
	updates []bot.Update
	done    chan struct{}
}

func (h *recordingHandler) Handle(_ context.Context, u bot.Update) {
	h.mu.Lock()
	h.updates = append(h.updates, u)
	h.mu.Unlock()
	h.done <- struct{}{}
}

func TestSender_SendTextWithContactKeyboard(t *testing.T) {
	api := newFakeAPI()
	s := NewSender(api, logging.Default())

	err := s.SendText(context.Background(), 7, "share", bot.PhoneKeyboard)
	require.NoError(t, err)

	require.Len(t, api.sent, 1)
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(7), msg.ChatID)
	assert.Equal(t, "share", msg.Text)
	markup, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.True(t, markup.ResizeKeyboard)
	assert.True(t, markup.Keyboard[0][0].RequestContact)
}

func TestSender_SendTextLocationAndRemove(t *testing.T) {
	api := newFakeAPI()
	s := NewSender(api, nil)

	require.NoError(t, s.SendText(context.Background(), 1, "loc", bot.LocationKeyboard))
	require.NoError(t, s.SendText(context.Background(), 1, "bye", bot.RemoveKeyboard))
	require.NoError(t, s.SendText(context.Background(), 1, "plain", nil))

	loc := api.sent[0].(tgbotapi.MessageConfig).ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	assert.True(t, loc.Keyboard[0][0].RequestLocation)
	_, ok := api.sent[1].(tgbotapi.MessageConfig).ReplyMarkup.(tgbotapi.ReplyKeyboardRemove)
	assert.True(t, ok)
	assert.Nil(t, api.sent[2].(tgbotapi.MessageConfig).ReplyMarkup)
}

func TestSender_AdminMenuLayout(t *testing.T) {
	api := newFakeAPI()
	s := NewSender(api, nil)

	require.NoError(t, s.SendText(context.Background(), 1, "menu", bot.AdminMenu))

	markup := api.sent[0].(tgbotapi.MessageConfig).ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.Len(t, markup.Keyboard, 2)
	assert.Equal(t, bot.LabelAllUsers, markup.Keyboard[0][0].Text)
	assert.Equal(t, bot.LabelAllBookings, markup.Keyboard[1][2].Text)
}

func TestSender_SendDocument(t *testing.T) {
	api := newFakeAPI()
	s := NewSender(api, nil)

	require.NoError(t, s.SendDocument(context.Background(), 9, "exports/users.xlsx", "users: 2 rows"))

	doc, ok := api.sent[0].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	assert.Equal(t, int64(9), doc.ChatID)
	assert.Equal(t, "users: 2 rows", doc.Caption)
	assert.Equal(t, tgbotapi.FilePath("exports/users.xlsx"), doc.File)
}

func TestSender_SendError(t *testing.T) {
	api := newFakeAPI()
	api.sendErr = errors.New("forbidden")
	s := NewSender(api, nil)

	err := s.SendText(context.Background(), 1, "hi", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, api.sendErr)
}

func TestConvertUpdate(t *testing.T) {
	upd := tgbotapi.Update{
		UpdateID: 11,
		Message: &tgbotapi.Message{
			From:    &tgbotapi.User{ID: 42},
			Chat:    &tgbotapi.Chat{ID: 4242},
			Contact: &tgbotapi.Contact{PhoneNumber: "998901112233", UserID: 42},
		},
	}

	u, ok := ConvertUpdate(upd)
	require.True(t, ok)
	assert.Equal(t, int64(11), u.ID)
	assert.Equal(t, "42", u.UserID)
	assert.Equal(t, int64(4242), u.ChatID)
	require.NotNil(t, u.Contact)
	assert.Equal(t, "42", u.Contact.UserID)
	assert.Equal(t, bot.KindContact, u.Kind())

	upd.Message.Contact = nil
	upd.Message.Location = &tgbotapi.Location{Latitude: 41.31, Longitude: 69.28}
	u, ok = ConvertUpdate(upd)
	require.True(t, ok)
	assert.Equal(t, bot.KindLocation, u.Kind())
	assert.Equal(t, 41.31, u.Location.Latitude)

	_, ok = ConvertUpdate(tgbotapi.Update{UpdateID: 12})
	assert.False(t, ok)
}

func TestPoller_DispatchesUntilCancelled(t *testing.T) {
	api := newFakeAPI()
	h := &recordingHandler{done: make(chan struct{}, 10)}
	p := NewPoller(api, h, 30*time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	api.updates <- tgbotapi.Update{UpdateID: 1}
	api.updates <- tgbotapi.Update{UpdateID: 2, Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 42},
		Chat: &tgbotapi.Chat{ID: 42},
		Text: "/davay",
	}}

	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.True(t, api.stopped)
	assert.Equal(t, 30, api.config.Timeout)
	require.Len(t, h.updates, 1)
	assert.Equal(t, "/davay", h.updates[0].Text)
}

func textUpdate(id int, userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{UpdateID: id, Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: text,
	}}
}

// orderHandler records update ids per user. The first update of each user
// is the slowest so a reordering dispatcher would be caught.
type orderHandler struct {
	mu    sync.Mutex
	seen  map[string][]int64
	block map[string]chan struct{}
}

func (h *orderHandler) Handle(_ context.Context, u bot.Update) {
	if gate, ok := h.block[u.UserID]; ok {
		<-gate
	}
	h.mu.Lock()
	first := len(h.seen[u.UserID]) == 0
	h.mu.Unlock()
	if first {
		time.Sleep(20 * time.Millisecond)
	}
	h.mu.Lock()
	h.seen[u.UserID] = append(h.seen[u.UserID], u.ID)
	h.mu.Unlock()
}

func (h *orderHandler) ids(userID string) []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int64(nil), h.seen[userID]...)
}

func TestPoller_PreservesPerUserOrder(t *testing.T) {
	api := newFakeAPI()
	h := &orderHandler{seen: make(map[string][]int64)}
	p := NewPoller(api, h, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	for i := 1; i <= 8; i++ {
		api.updates <- textUpdate(i, 42, "msg")
	}

	want := []int64{1, 2, 3, 4, 5, 6, 7, 8}
	require.Eventually(t, func() bool { return len(h.ids("42")) == len(want) }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, h.ids("42"))
}

func TestPoller_SlowUserDoesNotBlockOthers(t *testing.T) {
	api := newFakeAPI()
	gate := make(chan struct{})
	h := &orderHandler{seen: make(map[string][]int64), block: map[string]chan struct{}{"1": gate}}
	p := NewPoller(api, h, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	api.updates <- textUpdate(1, 1, "slow")
	api.updates <- textUpdate(2, 1, "queued")
	api.updates <- textUpdate(3, 2, "fast")

	require.Eventually(t, func() bool { return len(h.ids("2")) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, h.ids("1"))

	close(gate)
	require.Eventually(t, func() bool { return len(h.ids("1")) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int64{1, 2}, h.ids("1"))

	cancel()
	require.NoError(t, <-errCh)
}

func TestUserLanes_ReapsIdleLanes(t *testing.T) {
	h := &orderHandler{seen: make(map[string][]int64)}
	lanes := newUserLanes(context.Background(), h)

	lanes.push(bot.Update{ID: 1, UserID: "1"})
	lanes.push(bot.Update{ID: 2, UserID: "2"})
	lanes.push(bot.Update{ID: 3, UserID: "1"})
	lanes.wait()

	assert.Equal(t, 0, lanes.active())
	assert.Equal(t, []int64{1, 3}, h.ids("1"))

	lanes.push(bot.Update{ID: 4, UserID: "1"})
	lanes.wait()
	assert.Equal(t, []int64{1, 3, 4}, h.ids("1"))
	assert.Equal(t, 0, lanes.active())
}

// slowUserStore answers GetUser slowly, the only store call the start step makes.
type slowUserStore struct {
	bot.Store
}

func (slowUserStore) GetUser(context.Context, string) (*storage.User, bool, error) {
	time.Sleep(30 * time.Millisecond)
	return nil, false, nil
}

type unusedGeocoder struct{ geocode.Geocoder }

type unusedExporter struct{ bot.Exporter }

func TestPoller_DispatcherKeepsRegistrationSteps(t *testing.T) {
	api := newFakeAPI()
	sessions := conversation.NewMemoryStore(time.Minute)
	d, err := bot.NewDispatcher(bot.Config{
		StartCommand: "/davay",
		Store:        slowUserStore{},
		Sessions:     sessions,
		Geocoder:     unusedGeocoder{},
		Exporter:     unusedExporter{},
		Sender:       NewSender(api, logging.Default()),
		Logger:       logging.Default(),
	})
	require.NoError(t, err)
	p := NewPoller(api, d, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	api.updates <- textUpdate(1, 42, "/davay")
	api.updates <- textUpdate(2, 42, "Aziz Karimov")

	// Start sends two messages and the name step one more.
	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return len(api.sent) == 3
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)

	s, err := sessions.Load(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, conversation.StateAwaitingPhone, s.State)
	assert.Equal(t, "Aziz Karimov", s.FullName)
}
