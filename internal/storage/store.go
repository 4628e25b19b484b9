package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/clinic-booking-bot/migrations"
)

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides persistence for users, hospitals, doctors and bookings.
// Every method runs exactly one statement; nothing spans a transaction.
type Store struct {
	db db
}

// NewStore creates a store backed by a pgx pool (or any compatible querier).
func NewStore(db db) *Store {
	if db == nil {
		panic("storage: database required")
	}
	return &Store{db: db}
}

// CreateSchema creates all tables if they do not exist. Safe to call repeatedly.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, migrations.InitSchema); err != nil {
		return fmt.Errorf("storage: create schema: %w", err)
	}
	return nil
}

// Ping runs a trivial query to check connectivity.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("storage: ping: %w", err)
	}
	return nil
}

// AddUser inserts a registered user. ErrUserExists is returned when the user id
// or phone number is taken; the existing row is left untouched.
func (s *Store) AddUser(ctx context.Context, u User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO users (user_id, full_name, phone, location, latitude, longitude, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.Exec(ctx, query, u.UserID, u.FullName, u.Phone, u.Location, u.Latitude, u.Longitude, u.CreatedAt)
	if err != nil {
		if tooLong := valueTooLong(err); tooLong != nil {
			return tooLong
		}
		if pgErrorCode(err) == pgUniqueViolation {
			return fmt.Errorf("%w: %s", ErrUserExists, constraintName(err))
		}
		return fmt.Errorf("storage: insert user: %w", err)
	}
	return nil
}

// GetUser looks a user up by platform id. A missing user yields ok=false and no error.
func (s *Store) GetUser(ctx context.Context, userID string) (*User, bool, error) {
	query := `
		SELECT id, user_id, full_name, phone, location, latitude, longitude, created_at
		FROM users
		WHERE user_id = $1
	`
	var u User
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&u.ID, &u.UserID, &u.FullName, &u.Phone, &u.Location, &u.Latitude, &u.Longitude, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: get user: %w", err)
	}
	return &u, true, nil
}

// AddHospital inserts a hospital and returns its id.
func (s *Store) AddHospital(ctx context.Context, h Hospital) (int64, error) {
	query := `
		INSERT INTO hospitals (name, address, latitude, longitude)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	var id int64
	if err := s.db.QueryRow(ctx, query, h.Name, h.Address, h.Latitude, h.Longitude).Scan(&id); err != nil {
		if tooLong := valueTooLong(err); tooLong != nil {
			return 0, tooLong
		}
		return 0, fmt.Errorf("storage: insert hospital: %w", err)
	}
	return id, nil
}

// GetHospital returns ErrNotFound when the id is unknown.
func (s *Store) GetHospital(ctx context.Context, id int64) (*Hospital, error) {
	query := `SELECT id, name, address, latitude, longitude FROM hospitals WHERE id = $1`
	var h Hospital
	err := s.db.QueryRow(ctx, query, id).Scan(&h.ID, &h.Name, &h.Address, &h.Latitude, &h.Longitude)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get hospital: %w", err)
	}
	return &h, nil
}

// ListHospitals returns every hospital ordered by id.
func (s *Store) ListHospitals(ctx context.Context) ([]Hospital, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, address, latitude, longitude FROM hospitals ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list hospitals: %w", err)
	}
	defer rows.Close()

	var out []Hospital
	for rows.Next() {
		var h Hospital
		if err := rows.Scan(&h.ID, &h.Name, &h.Address, &h.Latitude, &h.Longitude); err != nil {
			return nil, fmt.Errorf("storage: scan hospital: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list hospitals: %w", err)
	}
	return out, nil
}

// AddDoctor inserts a doctor. ErrInvalidReference is returned when the hospital is unknown.
func (s *Store) AddDoctor(ctx context.Context, d Doctor) (int64, error) {
	query := `
		INSERT INTO doctors (name, specialty, available_times, hospital_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	var id int64
	err := s.db.QueryRow(ctx, query, d.Name, d.Specialty, d.AvailableTimes, d.HospitalID).Scan(&id)
	if err != nil {
		if tooLong := valueTooLong(err); tooLong != nil {
			return 0, tooLong
		}
		if pgErrorCode(err) == pgForeignKeyViolation {
			return 0, fmt.Errorf("%w: hospital %d", ErrInvalidReference, d.HospitalID)
		}
		return 0, fmt.Errorf("storage: insert doctor: %w", err)
	}
	return id, nil
}

// GetDoctor returns ErrNotFound when the id is unknown.
func (s *Store) GetDoctor(ctx context.Context, id int64) (*Doctor, error) {
	query := `SELECT id, name, specialty, available_times, hospital_id FROM doctors WHERE id = $1`
	var d Doctor
	err := s.db.QueryRow(ctx, query, id).Scan(&d.ID, &d.Name, &d.Specialty, &d.AvailableTimes, &d.HospitalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get doctor: %w", err)
	}
	return &d, nil
}

// GetDoctors lists the doctors of one hospital.
func (s *Store) GetDoctors(ctx context.Context, hospitalID int64) ([]Doctor, error) {
	query := `
		SELECT id, name, specialty, available_times, hospital_id
		FROM doctors
		WHERE hospital_id = $1
		ORDER BY id
	`
	rows, err := s.db.Query(ctx, query, hospitalID)
	if err != nil {
		return nil, fmt.Errorf("storage: get doctors: %w", err)
	}
	defer rows.Close()

	var out []Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialty, &d.AvailableTimes, &d.HospitalID); err != nil {
			return nil, fmt.Errorf("storage: scan doctor: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: get doctors: %w", err)
	}
	return out, nil
}

// AddBooking inserts a booking and returns its id. The doctor name is stored as given.
func (s *Store) AddBooking(ctx context.Context, b Booking) (int64, error) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO bookings (user_id, booking_date, booking_time, doctor, created_at)
		VALUES ($1, $2, $3::time, $4, $5)
		RETURNING id
	`
	var id int64
	err := s.db.QueryRow(ctx, query, b.UserID, b.Date, b.Time, b.Doctor, b.CreatedAt).Scan(&id)
	if err != nil {
		if tooLong := valueTooLong(err); tooLong != nil {
			return 0, tooLong
		}
		if pgErrorCode(err) == pgForeignKeyViolation {
			return 0, fmt.Errorf("%w: user %s", ErrInvalidReference, b.UserID)
		}
		return 0, fmt.Errorf("storage: insert booking: %w", err)
	}
	return id, nil
}

// GetBookings lists one user's bookings, soonest first.
func (s *Store) GetBookings(ctx context.Context, userID string) ([]Booking, error) {
	query := `
		SELECT id, user_id, booking_date, to_char(booking_time, 'HH24:MI'), doctor, created_at
		FROM bookings
		WHERE user_id = $1
		ORDER BY booking_date, booking_time
	`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("storage: get bookings: %w", err)
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.UserID, &b.Date, &b.Time, &b.Doctor, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan booking: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: get bookings: %w", err)
	}
	return out, nil
}

// AddDoctorTime links a doctor to a booking. Double-booking is not prevented.
func (s *Store) AddDoctorTime(ctx context.Context, doctorID, bookingID int64) (int64, error) {
	query := `
		INSERT INTO doctor_times (doctor_id, appointment_id)
		VALUES ($1, $2)
		RETURNING id
	`
	var id int64
	if err := s.db.QueryRow(ctx, query, doctorID, bookingID).Scan(&id); err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return 0, fmt.Errorf("%w: doctor %d booking %d", ErrInvalidReference, doctorID, bookingID)
		}
		return 0, fmt.Errorf("storage: insert doctor time: %w", err)
	}
	return id, nil
}

// DumpTable reads a whole table. Columns keep their table order and rows are ordered by id.
func (s *Store) DumpTable(ctx context.Context, table string) (Table, error) {
	if !IsKnownTable(table) {
		return Table{}, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	rows, err := s.db.Query(ctx, "SELECT * FROM "+pgx.Identifier{table}.Sanitize()+" ORDER BY id")
	if err != nil {
		return Table{}, fmt.Errorf("storage: dump %s: %w", table, err)
	}
	defer rows.Close()

	out := Table{Name: table}
	for _, fd := range rows.FieldDescriptions() {
		out.Columns = append(out.Columns, fd.Name)
	}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return Table{}, fmt.Errorf("storage: dump %s: %w", table, err)
		}
		out.Rows = append(out.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return Table{}, fmt.Errorf("storage: dump %s: %w", table, err)
	}
	return out, nil
}

func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName != "" {
		return pgErr.ConstraintName
	}
	return strings.TrimSpace(err.Error())
}
