package world

// Relationship tier labels, from warmest to coldest. TierStranger is
// only ever assigned at creation; the classifier never derives it.
const (
	TierStranger    = "Stranger"
	TierCloseFriend = "Close Friend"
	TierFriend      = "Friend"
	TierAcquaint    = "Acquaintance"
	TierNeutral     = "Neutral"
	TierDislike     = "Dislike"
	TierRival       = "Rival"
	TierEnemy       = "Enemy"
)

const (
	minAffection = -100
	maxAffection = 100
)

// CategoryForAffection maps a clamped affection score to its tier label.
// Thresholds are evaluated top to bottom; first match wins.
func CategoryForAffection(affection int) string {
	switch {
	case affection > 70:
		return TierCloseFriend
	case affection > 40:
		return TierFriend
	case affection > 10:
		return TierAcquaint
	case affection > -10:
		return TierNeutral
	case affection > -40:
		return TierDislike
	case affection > -70:
		return TierRival
	default:
		return TierEnemy
	}
}

func clampAffection(v int) int {
	if v < minAffection {
		return minAffection
	}
	if v > maxAffection {
		return maxAffection
	}
	return v
}
