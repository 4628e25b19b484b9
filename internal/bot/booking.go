package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-booking-bot/internal/compliance"
	"github.com/wolfman30/clinic-booking-bot/internal/conversation"
	"github.com/wolfman30/clinic-booking-bot/internal/storage"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

func (d *Dispatcher) handleBook(ctx context.Context, u Update, s conversation.Session) error {
	hospitals, err := d.store.ListHospitals(ctx)
	if err != nil {
		return fmt.Errorf("bot: list hospitals: %w", err)
	}
	if len(hospitals) == 0 {
		return d.send(ctx, u.ChatID, msgNoHospitalsToBook, UserMenu)
	}
	if err := d.saveSession(ctx, s.BeginBooking()); err != nil {
		return err
	}
	return d.send(ctx, u.ChatID, msgChooseHospital, hospitalKeyboard(hospitals))
}

func (d *Dispatcher) handleBookingHospital(ctx context.Context, u Update, s conversation.Session) error {
	id, ok := parseChoiceID(u.Text)
	if !ok {
		return d.send(ctx, u.ChatID, msgUnknownHospital, nil)
	}
	if _, err := d.store.GetHospital(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return d.send(ctx, u.ChatID, msgUnknownHospital, nil)
		}
		return fmt.Errorf("bot: get hospital: %w", err)
	}

	doctors, err := d.store.GetDoctors(ctx, id)
	if err != nil {
		return fmt.Errorf("bot: list doctors: %w", err)
	}
	if len(doctors) == 0 {
		return d.send(ctx, u.ChatID, msgNoDoctorsAtHospital, nil)
	}
	if err := d.saveSession(ctx, s.WithBookingHospital(id)); err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString(msgChooseDoctor)
	for _, doc := range doctors {
		fmt.Fprintf(&b, "\n%d. %s (%s): %s", doc.ID, doc.Name, doc.Specialty, doc.AvailableTimes)
	}
	return d.send(ctx, u.ChatID, b.String(), doctorKeyboard(doctors))
}

func (d *Dispatcher) handleBookingDoctor(ctx context.Context, u Update, s conversation.Session) error {
	id, ok := parseChoiceID(u.Text)
	if !ok {
		return d.send(ctx, u.ChatID, msgUnknownDoctor, nil)
	}
	doc, err := d.store.GetDoctor(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return d.send(ctx, u.ChatID, msgUnknownDoctor, nil)
		}
		return fmt.Errorf("bot: get doctor: %w", err)
	}
	if doc.HospitalID != s.HospitalID {
		return d.send(ctx, u.ChatID, msgUnknownDoctor, nil)
	}
	if err := d.saveSession(ctx, s.WithBookingDoctor(id)); err != nil {
		return err
	}
	return d.send(ctx, u.ChatID, msgAskDate, RemoveKeyboard)
}

func (d *Dispatcher) handleBookingDate(ctx context.Context, u Update, s conversation.Session) error {
	date, err := time.ParseInLocation(dateLayout, strings.TrimSpace(u.Text), time.UTC)
	if err != nil {
		return d.send(ctx, u.ChatID, msgInvalidDate, nil)
	}
	now := d.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if date.Before(today) {
		return d.send(ctx, u.ChatID, msgInvalidDate, nil)
	}
	if err := d.saveSession(ctx, s.WithBookingDate(date.Format(dateLayout))); err != nil {
		return err
	}
	return d.send(ctx, u.ChatID, msgAskTime, nil)
}

// handleBookingTime creates the booking and then links it to the doctor. If
// the link fails the booking id is kept in the session, and the next message
// only retries the link.
func (d *Dispatcher) handleBookingTime(ctx context.Context, u Update, s conversation.Session) error {
	bookingID, clock := s.BookingID, s.BookingTime
	if bookingID == 0 {
		parsed, err := time.Parse(timeLayout, strings.TrimSpace(u.Text))
		if err != nil {
			return d.send(ctx, u.ChatID, msgInvalidTime, nil)
		}
		clock = parsed.Format(timeLayout)
	}
	date, err := time.ParseInLocation(dateLayout, s.BookingDate, time.UTC)
	if err != nil {
		return fmt.Errorf("bot: stored booking date %q: %w", s.BookingDate, err)
	}

	doc, err := d.store.GetDoctor(ctx, s.DoctorID)
	if err != nil {
		return fmt.Errorf("bot: get doctor: %w", err)
	}

	if bookingID == 0 {
		bookingID, err = d.store.AddBooking(ctx, storage.Booking{
			UserID: u.UserID,
			Date:   date,
			Time:   clock,
			Doctor: doc.Name,
		})
		if err != nil {
			return fmt.Errorf("bot: add booking: %w", err)
		}
		if err := d.saveSession(ctx, s.WithPendingBooking(bookingID, clock)); err != nil {
			return err
		}
	} else {
		d.logger.Info("retrying doctor link for booking", "user_id", u.UserID, "booking_id", bookingID)
	}

	if _, err := d.store.AddDoctorTime(ctx, doc.ID, bookingID); err != nil {
		return fmt.Errorf("bot: reserve doctor time for booking %d: %w", bookingID, err)
	}
	if err := d.clearSession(ctx, u.UserID); err != nil {
		return err
	}
	d.logAudit(ctx, compliance.EventBookingCreated, u.UserID, map[string]any{
		"booking_id": bookingID,
		"doctor_id":  doc.ID,
		"date":       s.BookingDate,
		"time":       clock,
	})
	return d.send(ctx, u.ChatID, fmt.Sprintf(msgBookingDone, doc.Name, s.BookingDate, clock), UserMenu)
}

func (d *Dispatcher) handleMyBookings(ctx context.Context, u Update, _ conversation.Session) error {
	bookings, err := d.store.GetBookings(ctx, u.UserID)
	if err != nil {
		return fmt.Errorf("bot: list bookings: %w", err)
	}
	if len(bookings) == 0 {
		return d.send(ctx, u.ChatID, msgNoBookings, UserMenu)
	}
	var b strings.Builder
	b.WriteString("Your bookings:\n")
	for i, bk := range bookings {
		fmt.Fprintf(&b, "\n%d. %s %s, %s", i+1, bk.Date.Format(dateLayout), bk.Time, bk.Doctor)
	}
	return d.send(ctx, u.ChatID, b.String(), UserMenu)
}
