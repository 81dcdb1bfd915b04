package realtime

const (
	scorePrefix = "score."
	bidPrefix   = "bid."
	salesPrefix = "sales."
)

func ScoreKey(matchID string) string {
	return scorePrefix + matchID
}

func BidKey(tournamentID, lotID string) string {
	return bidPrefix + tournamentID + "." + lotID
}

func SalesKey(tournamentID string) string {
	return salesPrefix + tournamentID
}

// ValidID reports whether id can be used as a key segment. Key segments are
// restricted to the characters NATS KV accepts, minus the separator.
func ValidID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}
