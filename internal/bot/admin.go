package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wolfman30/clinic-booking-bot/internal/compliance"
	"github.com/wolfman30/clinic-booking-bot/internal/conversation"
	"github.com/wolfman30/clinic-booking-bot/internal/geocode"
	"github.com/wolfman30/clinic-booking-bot/internal/storage"
)

// exportHandler regenerates the spreadsheet for table and sends it back.
// An empty table produces a short notice instead of a file.
func (d *Dispatcher) exportHandler(table, noun string) handlerFunc {
	return func(ctx context.Context, u Update, _ conversation.Session) error {
		d.logAudit(ctx, compliance.EventExport, u.UserID, map[string]string{"table": table})

		res, err := d.exporter.Export(ctx, table)
		if err != nil {
			d.metrics.ObserveExport(table, "error")
			return fmt.Errorf("bot: export %s: %w", table, err)
		}
		if res.Empty {
			d.metrics.ObserveExport(table, "empty")
			return d.send(ctx, u.ChatID, fmt.Sprintf(msgExportEmpty, noun), nil)
		}

		d.metrics.ObserveExport(table, "ok")
		caption := fmt.Sprintf("%s: %d rows", table, res.Rows)
		if err := d.sender.SendDocument(ctx, u.ChatID, res.Path, caption); err != nil {
			return fmt.Errorf("bot: send export: %w", err)
		}
		return nil
	}
}

func (d *Dispatcher) handleAddHospital(ctx context.Context, u Update, s conversation.Session) error {
	if err := d.saveSession(ctx, s.BeginAddHospital()); err != nil {
		return err
	}
	return d.send(ctx, u.ChatID, msgAskHospitalName, RemoveKeyboard)
}

func (d *Dispatcher) handleHospitalName(ctx context.Context, u Update, s conversation.Session) error {
	name := strings.TrimSpace(u.Text)
	if name == "" {
		return d.send(ctx, u.ChatID, msgAskHospitalName, nil)
	}
	if tooLong(name) {
		return d.sendTooLong(ctx, u.ChatID)
	}
	if err := d.saveSession(ctx, s.WithHospitalName(name)); err != nil {
		return err
	}
	return d.send(ctx, u.ChatID, msgAskHospitalLocation, LocationKeyboard)
}

func (d *Dispatcher) handleHospitalLocation(ctx context.Context, u Update, s conversation.Session) error {
	loc := u.Location
	address, err := d.geocoder.Reverse(ctx, loc.Latitude, loc.Longitude)
	d.metrics.ObserveGeocode(err == nil)
	if err != nil {
		if !errors.Is(err, geocode.ErrNotFound) {
			d.logger.Warn("reverse geocoding failed", "user_id", u.UserID, "error", err)
		}
		return d.send(ctx, u.ChatID, msgAddressNotFound, LocationKeyboard)
	}

	h := storage.Hospital{
		Name:      s.HospitalName,
		Address:   address,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
	}
	id, err := d.store.AddHospital(ctx, h)
	if errors.Is(err, storage.ErrValueTooLong) {
		d.logger.Warn("hospital rejected, value too long", "error", err)
		return d.discardTooLong(ctx, u, AdminMenu)
	}
	if err != nil {
		return fmt.Errorf("bot: add hospital: %w", err)
	}
	if err := d.clearSession(ctx, u.UserID); err != nil {
		return err
	}
	d.logAudit(ctx, compliance.EventHospitalAdded, u.UserID, map[string]any{"hospital_id": id, "name": h.Name})
	return d.send(ctx, u.ChatID, fmt.Sprintf(msgHospitalAdded, id, h.Name, h.Address), AdminMenu)
}

func (d *Dispatcher) handleAddDoctor(ctx context.Context, u Update, s conversation.Session) error {
	hospitals, err := d.store.ListHospitals(ctx)
	if err != nil {
		return fmt.Errorf("bot: list hospitals: %w", err)
	}
	if len(hospitals) == 0 {
		return d.send(ctx, u.ChatID, msgNoHospitals, AdminMenu)
	}
	if err := d.saveSession(ctx, s.BeginAddDoctor()); err != nil {
		return err
	}
	return d.send(ctx, u.ChatID, msgAskDoctorName, RemoveKeyboard)
}

func (d *Dispatcher) handleDoctorName(ctx context.Context, u Update, s conversation.Session) error {
	name := strings.TrimSpace(u.Text)
	if name == "" {
		return d.send(ctx, u.ChatID, msgAskDoctorName, nil)
	}
	if tooLong(name) {
		return d.sendTooLong(ctx, u.ChatID)
	}
	if err := d.saveSession(ctx, s.WithDoctorName(name)); err != nil {
		return err
	}
	return d.send(ctx, u.ChatID, msgAskSpecialty, nil)
}

func (d *Dispatcher) handleDoctorSpecialty(ctx context.Context, u Update, s conversation.Session) error {
	specialty := strings.TrimSpace(u.Text)
	if specialty == "" {
		return d.send(ctx, u.ChatID, msgAskSpecialty, nil)
	}
	if tooLong(specialty) {
		return d.sendTooLong(ctx, u.ChatID)
	}
	if err := d.saveSession(ctx, s.WithSpecialty(specialty)); err != nil {
		return err
	}
	return d.send(ctx, u.ChatID, msgAskAvailableTimes, nil)
}

func (d *Dispatcher) handleDoctorAvailableTimes(ctx context.Context, u Update, s conversation.Session) error {
	times := strings.TrimSpace(u.Text)
	if times == "" {
		return d.send(ctx, u.ChatID, msgAskAvailableTimes, nil)
	}
	if tooLong(times) {
		return d.sendTooLong(ctx, u.ChatID)
	}
	hospitals, err := d.store.ListHospitals(ctx)
	if err != nil {
		return fmt.Errorf("bot: list hospitals: %w", err)
	}
	if err := d.saveSession(ctx, s.WithAvailableTimes(times)); err != nil {
		return err
	}
	return d.send(ctx, u.ChatID, msgAskDoctorHospital, hospitalKeyboard(hospitals))
}

func (d *Dispatcher) handleDoctorHospital(ctx context.Context, u Update, s conversation.Session) error {
	hospitalID, ok := parseChoiceID(u.Text)
	if !ok {
		return d.send(ctx, u.ChatID, msgUnknownHospital, nil)
	}

	doc := storage.Doctor{
		Name:           s.DoctorName,
		Specialty:      s.Specialty,
		AvailableTimes: s.AvailableTimes,
		HospitalID:     hospitalID,
	}
	id, err := d.store.AddDoctor(ctx, doc)
	if errors.Is(err, storage.ErrInvalidReference) {
		return d.send(ctx, u.ChatID, msgUnknownHospital, nil)
	}
	if errors.Is(err, storage.ErrValueTooLong) {
		d.logger.Warn("doctor rejected, value too long", "error", err)
		return d.discardTooLong(ctx, u, AdminMenu)
	}
	if err != nil {
		return fmt.Errorf("bot: add doctor: %w", err)
	}
	if err := d.clearSession(ctx, u.UserID); err != nil {
		return err
	}
	d.logAudit(ctx, compliance.EventDoctorAdded, u.UserID, map[string]any{"doctor_id": id, "hospital_id": hospitalID})
	return d.send(ctx, u.ChatID, fmt.Sprintf(msgDoctorAdded, id, doc.Name, doc.Specialty, hospitalID), AdminMenu)
}

func hospitalKeyboard(hospitals []storage.Hospital) *Keyboard {
	labels := make([]string, 0, len(hospitals))
	for _, h := range hospitals {
		labels = append(labels, fmt.Sprintf("%d. %s", h.ID, h.Name))
	}
	return choiceKeyboard(labels)
}

func doctorKeyboard(doctors []storage.Doctor) *Keyboard {
	labels := make([]string, 0, len(doctors))
	for _, doc := range doctors {
		labels = append(labels, fmt.Sprintf("%d. %s (%s)", doc.ID, doc.Name, doc.Specialty))
	}
	return choiceKeyboard(labels)
}

// parseChoiceID reads the leading id of a "12. Name" keyboard label. A bare
// number is accepted too.
func parseChoiceID(text string) (int64, bool) {
	text = strings.TrimSpace(text)
	end := 0
	for end < len(text) && text[end] >= '0' && text[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(text[:end], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
