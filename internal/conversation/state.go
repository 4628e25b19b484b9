package conversation

// State is the current step of a user's dialog.
type State string

const (
	StateIdle State = "idle"

	// Registration.
	StateAwaitingFullName State = "awaiting_full_name"
	StateAwaitingPhone    State = "awaiting_phone"
	StateAwaitingLocation State = "awaiting_location"

	// Admin: add hospital.
	StateHospitalName     State = "hospital_name"
	StateHospitalLocation State = "hospital_location"

	// Admin: add doctor.
	StateDoctorName           State = "doctor_name"
	StateDoctorSpecialty      State = "doctor_specialty"
	StateDoctorAvailableTimes State = "doctor_available_times"
	StateDoctorHospital       State = "doctor_hospital"

	// Booking.
	StateBookingHospital State = "booking_hospital"
	StateBookingDoctor   State = "booking_doctor"
	StateBookingDate     State = "booking_date"
	StateBookingTime     State = "booking_time"
)

// Flow groups states into the dialog they belong to.
type Flow string

const (
	FlowNone         Flow = ""
	FlowRegistration Flow = "registration"
	FlowAddHospital  Flow = "add_hospital"
	FlowAddDoctor    Flow = "add_doctor"
	FlowBooking      Flow = "booking"
)

// Flow reports which dialog s is part of.
func (s State) Flow() Flow {
	switch s {
	case StateAwaitingFullName, StateAwaitingPhone, StateAwaitingLocation:
		return FlowRegistration
	case StateHospitalName, StateHospitalLocation:
		return FlowAddHospital
	case StateDoctorName, StateDoctorSpecialty, StateDoctorAvailableTimes, StateDoctorHospital:
		return FlowAddDoctor
	case StateBookingHospital, StateBookingDoctor, StateBookingDate, StateBookingTime:
		return FlowBooking
	default:
		return FlowNone
	}
}

// IsIdle is true for the zero value and StateIdle.
func (s State) IsIdle() bool {
	return s == "" || s == StateIdle
}

func (s State) String() string {
	if s == "" {
		return string(StateIdle)
	}
	return string(s)
}
