package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/clinic-booking-bot/internal/compliance"
	"github.com/wolfman30/clinic-booking-bot/internal/conversation"
	"github.com/wolfman30/clinic-booking-bot/internal/export"
	"github.com/wolfman30/clinic-booking-bot/internal/geocode"
	"github.com/wolfman30/clinic-booking-bot/internal/storage"
	"github.com/wolfman30/clinic-booking-bot/pkg/logging"
)

type stubStore struct {
	mu        sync.Mutex
	users     map[string]storage.User
	hospitals []storage.Hospital
	doctors   []storage.Doctor
	bookings  []storage.Booking
	slots     [][2]int64

	getUserErr error
	addUserErr error
	addUsers   int

	addHospitalErr error
	addDoctorErr   error
	// failSlots makes the next n AddDoctorTime calls fail.
	failSlots int
}

func newStubStore() *stubStore {
	return &stubStore{users: make(map[string]storage.User)}
}

func (s *stubStore) AddUser(_ context.Context, u storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addUsers++
	if s.addUserErr != nil {
		return s.addUserErr
	}
	for _, existing := range s.users {
		if existing.UserID == u.UserID || existing.Phone == u.Phone {
			return fmt.Errorf("%w: users_phone_key", storage.ErrUserExists)
		}
	}
	u.ID = int64(len(s.users) + 1)
	s.users[u.UserID] = u
	return nil
}

func (s *stubStore) GetUser(_ context.Context, userID string) (*storage.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getUserErr != nil {
		return nil, false, s.getUserErr
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, false, nil
	}
	return &u, true, nil
}

func (s *stubStore) AddHospital(_ context.Context, h storage.Hospital) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addHospitalErr != nil {
		return 0, s.addHospitalErr
	}
	h.ID = int64(len(s.hospitals) + 1)
	s.hospitals = append(s.hospitals, h)
	return h.ID, nil
}

func (s *stubStore) GetHospital(_ context.Context, id int64) (*storage.Hospital, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.hospitals {
		if h.ID == id {
			return &h, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *stubStore) ListHospitals(context.Context) ([]storage.Hospital, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.Hospital(nil), s.hospitals...), nil
}

func (s *stubStore) AddDoctor(_ context.Context, d storage.Doctor) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for _, h := range s.hospitals {
		if h.ID == d.HospitalID {
			found = true
		}
	}
	if !found {
		return 0, storage.ErrInvalidReference
	}
	if s.addDoctorErr != nil {
		return 0, s.addDoctorErr
	}
	d.ID = int64(len(s.doctors) + 1)
	s.doctors = append(s.doctors, d)
	return d.ID, nil
}

func (s *stubStore) GetDoctor(_ context.Context, id int64) (*storage.Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.doctors {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *stubStore) GetDoctors(_ context.Context, hospitalID int64) ([]storage.Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.Doctor
	for _, d := range s.doctors {
		if d.HospitalID == hospitalID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *stubStore) AddBooking(_ context.Context, b storage.Booking) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = int64(len(s.bookings) + 1)
	s.bookings = append(s.bookings, b)
	return b.ID, nil
}

func (s *stubStore) AddDoctorTime(_ context.Context, doctorID, bookingID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSlots > 0 {
		s.failSlots--
		return 0, errors.New("connection reset")
	}
	s.slots = append(s.slots, [2]int64{doctorID, bookingID})
	return int64(len(s.slots)), nil
}

func (s *stubStore) GetBookings(_ context.Context, userID string) ([]storage.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.Booking
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

type sentMessage struct {
	ChatID   int64
	Text     string
	Keyboard *Keyboard
	Document string
	Caption  string
}

type stubSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (s *stubSender) SendText(_ context.Context, chatID int64, text string, kb *Keyboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{ChatID: chatID, Text: text, Keyboard: kb})
	return nil
}

func (s *stubSender) SendDocument(_ context.Context, chatID int64, path, caption string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{ChatID: chatID, Document: path, Caption: caption})
	return nil
}

func (s *stubSender) last() sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return sentMessage{}
	}
	return s.sent[len(s.sent)-1]
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type stubGeocoder struct {
	address string
	err     error
	calls   int
	hook    func()
}

func (g *stubGeocoder) Reverse(context.Context, float64, float64) (string, error) {
	g.calls++
	if g.hook != nil {
		g.hook()
	}
	if g.err != nil {
		return "", g.err
	}
	if g.address == "" {
		return "", geocode.ErrNotFound
	}
	return g.address, nil
}

type stubExporter struct {
	results map[string]export.Result
	err     error
	tables  []string
}

func (e *stubExporter) Export(_ context.Context, table string) (export.Result, error) {
	e.tables = append(e.tables, table)
	if e.err != nil {
		return export.Result{}, e.err
	}
	if r, ok := e.results[table]; ok {
		return r, nil
	}
	return export.Result{Table: table, Empty: true}, nil
}

type auditEntry struct {
	EventType compliance.AuditEventType
	UserID    string
}

type stubAuditor struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *stubAuditor) Log(_ context.Context, eventType compliance.AuditEventType, userID string, _ any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{EventType: eventType, UserID: userID})
	return nil
}

func (a *stubAuditor) has(eventType compliance.AuditEventType) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.entries {
		if e.EventType == eventType {
			return true
		}
	}
	return false
}

type harness struct {
	d        *Dispatcher
	store    *stubStore
	sessions *conversation.MemoryStore
	sender   *stubSender
	geocoder *stubGeocoder
	exporter *stubExporter
	audit    *stubAuditor
}

const (
	testAdminID = "1000"
	testUserID  = "42"
	testChatID  = int64(4242)
)

func newHarness(t interface{ Fatalf(string, ...any) }) *harness {
	h := &harness{
		store:    newStubStore(),
		sessions: conversation.NewMemoryStore(30 * time.Minute),
		sender:   &stubSender{},
		geocoder: &stubGeocoder{address: "Tashkent, Uzbekistan"},
		exporter: &stubExporter{results: map[string]export.Result{}},
		audit:    &stubAuditor{},
	}
	d, err := NewDispatcher(Config{
		StartCommand: "/davay",
		AdminUserID:  testAdminID,
		Store:        h.store,
		Sessions:     h.sessions,
		Geocoder:     h.geocoder,
		Exporter:     h.exporter,
		Sender:       h.sender,
		Audit:        h.audit,
		Logger:       logging.Default(),
		Now:          func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	h.d = d
	return h
}

func (h *harness) text(userID, text string) {
	h.d.Handle(context.Background(), Update{UserID: userID, ChatID: testChatID, Text: text})
}

func (h *harness) contact(userID, phone, owner string) {
	h.d.Handle(context.Background(), Update{
		UserID:  userID,
		ChatID:  testChatID,
		Contact: &Contact{PhoneNumber: phone, UserID: owner},
	})
}

func (h *harness) location(userID string, lat, lon float64) {
	h.d.Handle(context.Background(), Update{
		UserID:   userID,
		ChatID:   testChatID,
		Location: &Location{Latitude: lat, Longitude: lon},
	})
}

func (h *harness) state(userID string) conversation.State {
	s, _ := h.sessions.Load(context.Background(), userID)
	return s.State
}
