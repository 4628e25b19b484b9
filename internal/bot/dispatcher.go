package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-booking-bot/internal/compliance"
	"github.com/wolfman30/clinic-booking-bot/internal/conversation"
	"github.com/wolfman30/clinic-booking-bot/internal/export"
	"github.com/wolfman30/clinic-booking-bot/internal/geocode"
	"github.com/wolfman30/clinic-booking-bot/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking-bot/internal/storage"
	"github.com/wolfman30/clinic-booking-bot/pkg/logging"
)

// Store is the persistence the dialogs need.
type Store interface {
	AddUser(ctx context.Context, u storage.User) error
	GetUser(ctx context.Context, userID string) (*storage.User, bool, error)
	AddHospital(ctx context.Context, h storage.Hospital) (int64, error)
	GetHospital(ctx context.Context, id int64) (*storage.Hospital, error)
	ListHospitals(ctx context.Context) ([]storage.Hospital, error)
	AddDoctor(ctx context.Context, d storage.Doctor) (int64, error)
	GetDoctor(ctx context.Context, id int64) (*storage.Doctor, error)
	GetDoctors(ctx context.Context, hospitalID int64) ([]storage.Doctor, error)
	AddBooking(ctx context.Context, b storage.Booking) (int64, error)
	AddDoctorTime(ctx context.Context, doctorID, bookingID int64) (int64, error)
	GetBookings(ctx context.Context, userID string) ([]storage.Booking, error)
}

// Exporter writes a table to a spreadsheet file.
type Exporter interface {
	Export(ctx context.Context, table string) (export.Result, error)
}

// Auditor records sensitive actions. Failures are logged and otherwise ignored.
type Auditor interface {
	Log(ctx context.Context, eventType compliance.AuditEventType, userID string, details any) error
}

// Sender delivers replies to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string, keyboard *Keyboard) error
	SendDocument(ctx context.Context, chatID int64, path, caption string) error
}

// Config wires a Dispatcher.
type Config struct {
	StartCommand string
	AdminUserID  string

	Store    Store
	Sessions conversation.Store
	Geocoder geocode.Geocoder
	Exporter Exporter
	Sender   Sender
	Audit    Auditor
	Metrics  *metrics.BotMetrics
	Logger   *logging.Logger
	Tracer   trace.Tracer
	Now      func() time.Time
}

type handlerFunc func(ctx context.Context, u Update, s conversation.Session) error

type route struct {
	name   string
	handle handlerFunc
}

// Dispatcher selects exactly one handler per update. Handle is safe for
// concurrent use across users; callers deliver one user's updates one at a
// time and in order (see the telegram Poller).
type Dispatcher struct {
	startCommand string
	adminUserID  string

	store    Store
	sessions conversation.Store
	geocoder geocode.Geocoder
	exporter Exporter
	sender   Sender
	audit    Auditor
	metrics  *metrics.BotMetrics
	logger   *logging.Logger
	tracer   trace.Tracer
	now      func() time.Time


	commands map[string]route
}

// NewDispatcher validates cfg and builds the routing table.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	switch {
	case strings.TrimSpace(cfg.StartCommand) == "":
		return nil, fmt.Errorf("bot: start command required")
	case cfg.Store == nil:
		return nil, fmt.Errorf("bot: store required")
	case cfg.Sessions == nil:
		return nil, fmt.Errorf("bot: session store required")
	case cfg.Geocoder == nil:
		return nil, fmt.Errorf("bot: geocoder required")
	case cfg.Exporter == nil:
		return nil, fmt.Errorf("bot: exporter required")
	case cfg.Sender == nil:
		return nil, fmt.Errorf("bot: sender required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("clinicbot.internal.bot")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	d := &Dispatcher{
		startCommand: strings.TrimSpace(cfg.StartCommand),
		adminUserID:  strings.TrimSpace(cfg.AdminUserID),
		store:        cfg.Store,
		sessions:     cfg.Sessions,
		geocoder:     cfg.Geocoder,
		exporter:     cfg.Exporter,
		sender:       cfg.Sender,
		audit:        cfg.Audit,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		tracer:       cfg.Tracer,
		now:          cfg.Now,
	}

	d.commands = map[string]route{
		d.startCommand:       {"start", d.handleStart},
		LabelAllUsers:        {"export_users", d.adminOnly(d.exportHandler(storage.TableUsers, "users"))},
		LabelAllHospitals:    {"export_hospitals", d.adminOnly(d.exportHandler(storage.TableHospitals, "hospitals"))},
		LabelAllDoctors:      {"export_doctors", d.adminOnly(d.exportHandler(storage.TableDoctors, "doctors"))},
		LabelAllBookings:     {"export_bookings", d.adminOnly(d.exportHandler(storage.TableBookings, "bookings"))},
		LabelAddHospital:     {"add_hospital", d.adminOnly(d.handleAddHospital)},
		LabelAddDoctor:       {"add_doctor", d.adminOnly(d.handleAddDoctor)},
		LabelBookAppointment: {"book", d.registeredOnly(d.handleBook)},
		LabelMyBookings:      {"my_bookings", d.registeredOnly(d.handleMyBookings)},
	}
	return d, nil
}

// IsAdmin reports whether userID is the configured administrator.
func (d *Dispatcher) IsAdmin(userID string) bool {
	return d.adminUserID != "" && userID == d.adminUserID
}

// Handle processes one update. Handler failures are answered with a generic
// reply and never propagate, so the polling loop keeps running.
func (d *Dispatcher) Handle(ctx context.Context, u Update) {
	if u.UserID == "" {
		d.logger.Debug("update without user ignored", "update_id", u.ID)
		return
	}

	ctx, span := d.tracer.Start(ctx, "bot.handle_update", trace.WithAttributes(
		attribute.Int64("update_id", u.ID),
		attribute.String("user_id", u.UserID),
		attribute.String("kind", string(u.Kind())),
	))
	defer span.End()

	logger := d.logger.With(
		"correlation_id", uuid.NewString(),
		"update_id", u.ID,
		"user_id", u.UserID,
		"kind", string(u.Kind()),
	)
	routeName := "unresolved"
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panic", "route", routeName, "panic", r, "stack", string(debug.Stack()))
			d.metrics.ObserveHandlerError(routeName)
			d.reply(ctx, logger, u.ChatID, msgGenericFailure, nil)
		}
	}()

	session, err := d.sessions.Load(ctx, u.UserID)
	if err != nil {
		span.RecordError(err)
		logger.Error("failed to load session", "error", err)
		d.metrics.ObserveHandlerError("session_load")
		d.reply(ctx, logger, u.ChatID, msgGenericFailure, nil)
		return
	}

	r, ok := d.resolve(u, session)
	if !ok {
		d.metrics.ObserveInbound(string(u.Kind()), "dropped")
		logger.Info("update dropped, no handler matched", "state", session.State.String())
		return
	}
	routeName = r.name
	span.SetAttributes(attribute.String("route", r.name))
	d.metrics.ObserveInbound(string(u.Kind()), r.name)

	err = r.handle(ctx, u, session)
	d.metrics.ObserveLatency(r.name, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		logger.Error("handler failed", "route", r.name, "state", session.State.String(), "error", err)
		d.metrics.ObserveHandlerError(r.name)
		d.reply(ctx, logger, u.ChatID, msgGenericFailure, nil)
		return
	}
	logger.Debug("update handled", "route", r.name)
}

// resolve applies the routing precedence: exact commands regardless of state,
// then state handlers whose payload shape matches, then a re-prompt for a
// shape mismatch inside an active dialog. Idle updates that match nothing are dropped.
func (d *Dispatcher) resolve(u Update, s conversation.Session) (route, bool) {
	if u.Kind() == KindText {
		if r, ok := d.commands[strings.TrimSpace(u.Text)]; ok {
			return r, true
		}
	}

	kind := u.Kind()
	switch s.State {
	case conversation.StateAwaitingFullName:
		if kind == KindText {
			return route{"full_name", d.handleFullName}, true
		}
	case conversation.StateAwaitingPhone:
		if kind == KindContact {
			return route{"phone", d.handlePhone}, true
		}
	case conversation.StateAwaitingLocation:
		if kind == KindLocation {
			return route{"location", d.handleLocation}, true
		}
	case conversation.StateHospitalName:
		if kind == KindText {
			return route{"hospital_name", d.handleHospitalName}, true
		}
	case conversation.StateHospitalLocation:
		if kind == KindLocation {
			return route{"hospital_location", d.handleHospitalLocation}, true
		}
	case conversation.StateDoctorName:
		if kind == KindText {
			return route{"doctor_name", d.handleDoctorName}, true
		}
	case conversation.StateDoctorSpecialty:
		if kind == KindText {
			return route{"doctor_specialty", d.handleDoctorSpecialty}, true
		}
	case conversation.StateDoctorAvailableTimes:
		if kind == KindText {
			return route{"doctor_available_times", d.handleDoctorAvailableTimes}, true
		}
	case conversation.StateDoctorHospital:
		if kind == KindText {
			return route{"doctor_hospital", d.handleDoctorHospital}, true
		}
	case conversation.StateBookingHospital:
		if kind == KindText {
			return route{"booking_hospital", d.handleBookingHospital}, true
		}
	case conversation.StateBookingDoctor:
		if kind == KindText {
			return route{"booking_doctor", d.handleBookingDoctor}, true
		}
	case conversation.StateBookingDate:
		if kind == KindText {
			return route{"booking_date", d.handleBookingDate}, true
		}
	case conversation.StateBookingTime:
		if kind == KindText {
			return route{"booking_time", d.handleBookingTime}, true
		}
	}

	if !s.State.IsIdle() {
		return route{"reprompt", d.handleReprompt}, true
	}
	return route{}, false
}

// handleReprompt tells the user which payload the current step expects.
// The session is left exactly as it was.
func (d *Dispatcher) handleReprompt(ctx context.Context, u Update, s conversation.Session) error {
	switch s.State {
	case conversation.StateAwaitingPhone:
		return d.send(ctx, u.ChatID, msgUsePhoneButton, PhoneKeyboard)
	case conversation.StateAwaitingLocation, conversation.StateHospitalLocation:
		return d.send(ctx, u.ChatID, msgUseLocationButton, LocationKeyboard)
	default:
		return d.send(ctx, u.ChatID, msgReplyWithText, nil)
	}
}

func (d *Dispatcher) adminOnly(next handlerFunc) handlerFunc {
	return func(ctx context.Context, u Update, s conversation.Session) error {
		if !d.IsAdmin(u.UserID) {
			d.logAudit(ctx, compliance.EventAdminDenied, u.UserID, map[string]string{"command": strings.TrimSpace(u.Text)})
			return d.send(ctx, u.ChatID, msgAdminOnly, nil)
		}
		return next(ctx, u, s)
	}
}

func (d *Dispatcher) registeredOnly(next handlerFunc) handlerFunc {
	return func(ctx context.Context, u Update, s conversation.Session) error {
		_, ok, err := d.store.GetUser(ctx, u.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return d.send(ctx, u.ChatID, fmt.Sprintf(msgNotRegistered, d.startCommand), nil)
		}
		return next(ctx, u, s)
	}
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, text string, kb *Keyboard) error {
	if err := d.sender.SendText(ctx, chatID, text, kb); err != nil {
		return fmt.Errorf("bot: send reply: %w", err)
	}
	return nil
}

// reply is a best-effort send used on failure paths.
func (d *Dispatcher) reply(ctx context.Context, logger *logging.Logger, chatID int64, text string, kb *Keyboard) {
	if err := d.sender.SendText(ctx, chatID, text, kb); err != nil {
		logger.Warn("failed to send reply", "error", err)
	}
}

func (d *Dispatcher) saveSession(ctx context.Context, s conversation.Session) error {
	if err := d.sessions.Save(ctx, s); err != nil {
		return fmt.Errorf("bot: save session: %w", err)
	}
	return nil
}

func (d *Dispatcher) clearSession(ctx context.Context, userID string) error {
	if err := d.sessions.Clear(ctx, userID); err != nil {
		return fmt.Errorf("bot: clear session: %w", err)
	}
	return nil
}

func (d *Dispatcher) logAudit(ctx context.Context, eventType compliance.AuditEventType, userID string, details any) {
	if d.audit == nil {
		return
	}
	if err := d.audit.Log(ctx, eventType, userID, details); err != nil {
		d.logger.Warn("audit log failed", "event_type", string(eventType), "user_id", userID, "error", err)
	}
}
