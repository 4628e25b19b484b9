package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/wolfman30/clinic-booking-bot/internal/compliance"
	"github.com/wolfman30/clinic-booking-bot/internal/conversation"
	"github.com/wolfman30/clinic-booking-bot/internal/geocode"
	"github.com/wolfman30/clinic-booking-bot/internal/storage"
)

// maxTextLength bounds names and other free-text answers, in characters.
const maxTextLength = 100

func tooLong(text string) bool {
	return utf8.RuneCountInString(text) > maxTextLength
}

func (d *Dispatcher) sendTooLong(ctx context.Context, chatID int64) error {
	return d.send(ctx, chatID, fmt.Sprintf(msgTooLong, maxTextLength), nil)
}

// discardTooLong ends a flow whose stored values were rejected by the
// database, so the user is not left re-sending the same answer.
func (d *Dispatcher) discardTooLong(ctx context.Context, u Update, keyboard *Keyboard) error {
	if err := d.clearSession(ctx, u.UserID); err != nil {
		return err
	}
	return d.send(ctx, u.ChatID, fmt.Sprintf(msgDetailsTooLong, d.startCommand), keyboard)
}

// handleStart greets admins and known users without touching their session;
// anyone else is put at the start of registration.
func (d *Dispatcher) handleStart(ctx context.Context, u Update, s conversation.Session) error {
	if d.IsAdmin(u.UserID) {
		return d.send(ctx, u.ChatID, msgAdminWelcome, AdminMenu)
	}

	_, registered, err := d.store.GetUser(ctx, u.UserID)
	if err != nil {
		return err
	}
	if registered {
		return d.send(ctx, u.ChatID, msgWelcomeBack, UserMenu)
	}

	if err := d.saveSession(ctx, s.BeginRegistration()); err != nil {
		return err
	}
	d.metrics.ObserveRegistration("started")
	if err := d.send(ctx, u.ChatID, msgRegisterFirst, nil); err != nil {
		return err
	}
	return d.send(ctx, u.ChatID, msgAskFullName, RemoveKeyboard)
}

func (d *Dispatcher) handleFullName(ctx context.Context, u Update, s conversation.Session) error {
	name := strings.TrimSpace(u.Text)
	if name == "" {
		return d.send(ctx, u.ChatID, msgAskFullName, nil)
	}
	if tooLong(name) {
		return d.sendTooLong(ctx, u.ChatID)
	}
	if err := d.saveSession(ctx, s.WithFullName(name)); err != nil {
		return err
	}
	return d.send(ctx, u.ChatID, msgAskPhone, PhoneKeyboard)
}

func (d *Dispatcher) handlePhone(ctx context.Context, u Update, s conversation.Session) error {
	c := u.Contact
	if c.UserID != "" && c.UserID != u.UserID {
		return d.send(ctx, u.ChatID, msgOwnContactOnly, PhoneKeyboard)
	}
	phone := normalizePhone(c.PhoneNumber)
	if phone == "" {
		return d.send(ctx, u.ChatID, msgUsePhoneButton, PhoneKeyboard)
	}
	if err := d.saveSession(ctx, s.WithPhone(phone)); err != nil {
		return err
	}
	return d.send(ctx, u.ChatID, msgAskLocation, LocationKeyboard)
}

// handleLocation finishes registration. A location that cannot be resolved
// leaves the session in place so the user can send another one.
func (d *Dispatcher) handleLocation(ctx context.Context, u Update, s conversation.Session) error {
	loc := u.Location
	address, err := d.geocoder.Reverse(ctx, loc.Latitude, loc.Longitude)
	d.metrics.ObserveGeocode(err == nil)
	if err != nil {
		if !errors.Is(err, geocode.ErrNotFound) {
			d.logger.Warn("reverse geocoding failed", "user_id", u.UserID, "error", err)
		}
		return d.send(ctx, u.ChatID, msgAddressNotFound, LocationKeyboard)
	}

	user := storage.User{
		UserID:    u.UserID,
		FullName:  s.FullName,
		Phone:     s.Phone,
		Location:  address,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
	}
	if err := d.store.AddUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			d.metrics.ObserveRegistration("duplicate")
			if err := d.clearSession(ctx, u.UserID); err != nil {
				return err
			}
			return d.send(ctx, u.ChatID, msgAlreadyExists, RemoveKeyboard)
		}
		d.metrics.ObserveRegistration("failed")
		if errors.Is(err, storage.ErrValueTooLong) {
			d.logger.Warn("registration rejected, value too long", "user_id", u.UserID, "error", err)
			return d.discardTooLong(ctx, u, RemoveKeyboard)
		}
		return fmt.Errorf("bot: add user: %w", err)
	}

	if err := d.clearSession(ctx, u.UserID); err != nil {
		return err
	}
	d.metrics.ObserveRegistration("completed")
	d.logAudit(ctx, compliance.EventUserRegistered, u.UserID, map[string]string{"location": address})

	reply := fmt.Sprintf(msgRegistrationDone, user.FullName, user.Phone, user.Location)
	return d.send(ctx, u.ChatID, reply, UserMenu)
}

// normalizePhone strips formatting and prefixes bare international numbers
// with '+'. Clients send contact numbers both with and without it.
func normalizePhone(raw string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return ""
		}
	}
	phone := b.String()
	if phone == "" || phone == "+" {
		return ""
	}
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return phone
}
