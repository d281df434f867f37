package model

// bookingTransitions is the closed set of legal status changes.
// CANCELED and DONE are terminal: they key to nothing.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingNew:       {BookingConfirmed, BookingCanceled, BookingDone},
	BookingConfirmed: {BookingCanceled, BookingDone},
}

// CanTransition reports whether a booking may move from one status to another.
// Self-transitions are not legal, terminal statuses allow nothing.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseBookingStatus validates a status token coming in over the wire.
func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(s) {
	case BookingNew, BookingConfirmed, BookingCanceled, BookingDone:
		return BookingStatus(s), true
	}
	return "", false
}
