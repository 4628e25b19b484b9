package bot

// Button is one reply-keyboard button.
type Button struct {
	Text            string
	RequestContact  bool
	RequestLocation bool
}

// Keyboard is a reply keyboard attached to an outbound message. Remove asks
// the client to hide any keyboard currently shown.
type Keyboard struct {
	Rows   [][]Button
	Resize bool
	Remove bool
}

// Admin menu labels.
const (
	LabelAllUsers     = "All users"
	LabelAddHospital  = "Add hospital"
	LabelAllHospitals = "All hospitals"
	LabelAddDoctor    = "Add doctor"
	LabelAllDoctors   = "All doctors"
	LabelAllBookings  = "All bookings"
)

// User menu labels.
const (
	LabelBookAppointment = "Book appointment"
	LabelMyBookings      = "My bookings"
)

var (
	PhoneKeyboard = &Keyboard{
		Rows:   [][]Button{{{Text: "Share phone number", RequestContact: true}}},
		Resize: true,
	}

	LocationKeyboard = &Keyboard{
		Rows:   [][]Button{{{Text: "Share location", RequestLocation: true}}},
		Resize: true,
	}

	AdminMenu = &Keyboard{
		Rows: [][]Button{
			{{Text: LabelAllUsers}, {Text: LabelAddHospital}, {Text: LabelAllHospitals}},
			{{Text: LabelAddDoctor}, {Text: LabelAllDoctors}, {Text: LabelAllBookings}},
		},
	}

	UserMenu = &Keyboard{
		Rows:   [][]Button{{{Text: LabelBookAppointment}, {Text: LabelMyBookings}}},
		Resize: true,
	}

	RemoveKeyboard = &Keyboard{Remove: true}
)

// choiceKeyboard lays labels out one per row.
func choiceKeyboard(labels []string) *Keyboard {
	rows := make([][]Button, 0, len(labels))
	for _, l := range labels {
		rows = append(rows, []Button{{Text: l}})
	}
	return &Keyboard{Rows: rows, Resize: true}
}
