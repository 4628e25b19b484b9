package bot

const (
	msgAdminWelcome    = "Welcome to the admin panel!"
	msgWelcomeBack     = "Welcome back! Which type of doctor would you like to see?"
	msgRegisterFirst   = "Please register first."
	msgAskFullName     = "To register, enter your full name:"
	msgAskPhone        = "Please share your phone number"
	msgAskLocation     = "Please share your location"
	msgAddressNotFound = "Could not determine the address, please send another location."
	msgAlreadyExists   = "This account or phone number is already registered."
	msgGenericFailure  = "Something went wrong, please try again later."
	msgAdminOnly       = "This command is only available to the administrator."

	msgUsePhoneButton    = "Please use the button below to share your phone number."
	msgUseLocationButton = "Please use the button below to share your location."
	msgOwnContactOnly    = "Please share your own phone number using the button below."
	msgReplyWithText     = "Please reply with text."
	msgTooLong           = "That is too long, please keep it within %d characters."
	msgDetailsTooLong    = "Some of these details are too long to save. Send %s to start over."

	msgAskHospitalName     = "Enter the hospital name:"
	msgAskHospitalLocation = "Send the hospital location:"
	msgAskDoctorName       = "Enter the doctor's full name:"
	msgAskSpecialty        = "Enter the doctor's specialty:"
	msgAskAvailableTimes   = "Enter the doctor's available times (for example Mon-Fri 09:00-17:00):"
	msgAskDoctorHospital   = "Choose the hospital (send its number):"
	msgNoHospitals         = "There are no hospitals yet. Add a hospital first."
	msgUnknownHospital     = "No hospital with that number, please choose from the list."

	msgNotRegistered       = "You are not registered yet. Send %s to register."
	msgNoHospitalsToBook   = "No hospitals are available for booking yet."
	msgChooseHospital      = "Choose a hospital:"
	msgNoDoctorsAtHospital = "This hospital has no doctors yet, please choose another one."
	msgChooseDoctor        = "Choose a doctor:"
	msgUnknownDoctor       = "No doctor with that number, please choose from the list."
	msgAskDate             = "Enter the appointment date (YYYY-MM-DD)."
	msgInvalidDate         = "Please enter a valid date that is not in the past, formatted as YYYY-MM-DD."
	msgAskTime             = "Enter the appointment time (HH:MM):"
	msgInvalidTime         = "Please enter a valid time formatted as HH:MM."
	msgNoBookings          = "You have no bookings yet."

	msgRegistrationDone = "Registration completed successfully!\n\nFull Name: %s\nPhone: %s\nLocation: %s"
	msgHospitalAdded    = "Hospital added: #%d %s\nAddress: %s"
	msgDoctorAdded      = "Doctor added: #%d %s (%s), hospital #%d"
	msgBookingDone      = "Your appointment is booked!\n\nDoctor: %s\nDate: %s\nTime: %s"
	msgExportEmpty      = "No %s found."
)
