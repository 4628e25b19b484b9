package conversation

import "time"

// Session holds one user's dialog state and the fields collected so far.
// It lives only in the session store and is dropped when a flow completes.
type Session struct {
	UserID string `json:"user_id"`
	State  State  `json:"state"`

	// Registration
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`

	// Add hospital
	HospitalName string `json:"hospital_name,omitempty"`

	// Add doctor
	DoctorName     string `json:"doctor_name,omitempty"`
	Specialty      string `json:"specialty,omitempty"`
	AvailableTimes string `json:"available_times,omitempty"`

	// Booking
	HospitalID  int64  `json:"hospital_id,omitempty"`
	DoctorID    int64  `json:"doctor_id,omitempty"`
	BookingDate string `json:"booking_date,omitempty"`

	// Set once the booking row exists but its doctor link is not yet saved.
	BookingID   int64  `json:"booking_id,omitempty"`
	BookingTime string `json:"booking_time,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession returns an idle session for userID.
func NewSession(userID string) Session {
	return Session{UserID: userID, State: StateIdle}
}

// Reset drops all collected data and returns to idle.
func (s Session) Reset() Session {
	return NewSession(s.UserID)
}

// BeginRegistration starts the registration dialog from scratch.
func (s Session) BeginRegistration() Session {
	next := s.Reset()
	next.State = StateAwaitingFullName
	return next
}

// WithFullName records the name and asks for the phone.
func (s Session) WithFullName(name string) Session {
	s.FullName = name
	s.State = StateAwaitingPhone
	return s
}

// WithPhone records the phone and asks for the location.
func (s Session) WithPhone(phone string) Session {
	s.Phone = phone
	s.State = StateAwaitingLocation
	return s
}

// BeginAddHospital starts the admin add-hospital dialog.
func (s Session) BeginAddHospital() Session {
	next := s.Reset()
	next.State = StateHospitalName
	return next
}

// WithHospitalName records the hospital name and asks for its location.
func (s Session) WithHospitalName(name string) Session {
	s.HospitalName = name
	s.State = StateHospitalLocation
	return s
}

// BeginAddDoctor starts the admin add-doctor dialog.
func (s Session) BeginAddDoctor() Session {
	next := s.Reset()
	next.State = StateDoctorName
	return next
}

// WithDoctorName records the doctor's name.
func (s Session) WithDoctorName(name string) Session {
	s.DoctorName = name
	s.State = StateDoctorSpecialty
	return s
}

// WithSpecialty records the doctor's specialty.
func (s Session) WithSpecialty(specialty string) Session {
	s.Specialty = specialty
	s.State = StateDoctorAvailableTimes
	return s
}

// WithAvailableTimes records the free-text availability.
func (s Session) WithAvailableTimes(times string) Session {
	s.AvailableTimes = times
	s.State = StateDoctorHospital
	return s
}

// BeginBooking starts the appointment booking dialog.
func (s Session) BeginBooking() Session {
	next := s.Reset()
	next.State = StateBookingHospital
	return next
}

// WithBookingHospital records the chosen hospital.
func (s Session) WithBookingHospital(id int64) Session {
	s.HospitalID = id
	s.State = StateBookingDoctor
	return s
}

// WithBookingDoctor records the chosen doctor.
func (s Session) WithBookingDoctor(id int64) Session {
	s.DoctorID = id
	s.State = StateBookingDate
	return s
}

// WithBookingDate records the chosen date (YYYY-MM-DD).
func (s Session) WithBookingDate(date string) Session {
	s.BookingDate = date
	s.State = StateBookingTime
	return s
}

// WithPendingBooking records a created booking whose doctor link still has to
// be written. The state stays at StateBookingTime.
func (s Session) WithPendingBooking(id int64, clock string) Session {
	s.BookingID = id
	s.BookingTime = clock
	return s
}
