package world

import "fmt"

const (
	minutesPerHour = 60
	minutesPerDay  = 24 * minutesPerHour
	daysPerSeason  = 30

	// The campaign clock opens at 08:00 on the 1st of Spring, Year 1.
	// A zero counter therefore reads as Morning, not midnight.
	campaignEpochMinutes = 8 * minutesPerHour
)

var seasons = [...]string{"Spring", "Summer", "Autumn", "Winter"}

// ClockReading is the derived view of the accumulated minute counter.
// It is recomputed on every read and never stored on its own.
type ClockReading struct {
	Hour      int    `json:"hour"`
	TimeOfDay string `json:"time_of_day"`
	Date      string `json:"date"`
}

// DeriveClock maps total accumulated minutes to the in-world time of day
// and calendar date. Pure; the same counter always yields the same reading.
func DeriveClock(totalMinutes int) ClockReading {
	if totalMinutes < 0 {
		totalMinutes = 0
	}
	m := totalMinutes + campaignEpochMinutes

	hour := (m / minutesPerHour) % 24
	var timeOfDay string
	switch {
	case hour < 6:
		timeOfDay = "Night"
	case hour < 12:
		timeOfDay = "Morning"
	case hour < 18:
		timeOfDay = "Afternoon"
	default:
		timeOfDay = "Evening"
	}

	days := m / minutesPerDay
	day := days%daysPerSeason + 1
	season := seasons[(days/daysPerSeason)%len(seasons)]
	year := days/(daysPerSeason*len(seasons)) + 1

	return ClockReading{
		Hour:      hour,
		TimeOfDay: timeOfDay,
		Date:      fmt.Sprintf("%d%s of %s, Year %d", day, ordinalSuffix(day), season, year),
	}
}

// ordinalSuffix follows English rules: 11-13 always take "th", otherwise
// the suffix depends on the last digit.
func ordinalSuffix(day int) string {
	if day >= 11 && day <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}
