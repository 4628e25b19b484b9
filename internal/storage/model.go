package storage

import "time"

// User is a registered bot user.
type User struct {
	ID        int64
	UserID    string
	FullName  string
	Phone     string
	Location  string
	Latitude  float64
	Longitude float64
	CreatedAt time.Time
}

// Hospital is a clinic location doctors belong to.
type Hospital struct {
	ID        int64
	Name      string
	Address   string
	Latitude  float64
	Longitude float64
}

// Doctor works at exactly one hospital.
type Doctor struct {
	ID             int64
	Name           string
	Specialty      string
	AvailableTimes string
	HospitalID     int64
}

// Booking is an appointment request. Doctor holds the doctor's display name
// and is not a foreign key.
type Booking struct {
	ID        int64
	UserID    string
	Date      time.Time
	Time      string // HH:MM
	Doctor    string
	CreatedAt time.Time
}

// DoctorTime links a doctor to a booking.
type DoctorTime struct {
	ID        int64
	DoctorID  int64
	BookingID int64
}

// Table is a whole-table snapshot with columns in table order.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Table names known to the store.
const (
	TableUsers       = "users"
	TableHospitals   = "hospitals"
	TableDoctors     = "doctors"
	TableBookings    = "bookings"
	TableDoctorTimes = "doctor_times"
)

// KnownTables lists the tables DumpTable accepts, in schema order.
var KnownTables = []string{TableUsers, TableHospitals, TableDoctors, TableBookings, TableDoctorTimes}

// IsKnownTable reports whether name is one of the store's tables.
func IsKnownTable(name string) bool {
	for _, t := range KnownTables {
		if t == name {
			return true
		}
	}
	return false
}
