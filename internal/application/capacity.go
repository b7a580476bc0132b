package application

// CapacityOK reports whether the room holds the organizer plus
// participantCount participants.
func CapacityOK(room Room, participantCount int) bool {
	return 1+participantCount <= room.Capacity
}
