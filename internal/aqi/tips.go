package aqi

// GuidanceTopic is a fixed piece of detailed guidance shown alongside the tips.
type GuidanceTopic struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

var guidance = []GuidanceTopic{
	{
		Title: "When to wear a mask",
		Body:  "Wear a fitted N95/FFP2 when AQI >100 for prolonged outdoor activities. Avoid strenuous exercise outdoors when AQI >150.",
	},
	{
		Title: "Indoor air actions",
		Body:  "Keep windows closed on high AQI days, run an air purifier with a HEPA filter, and avoid indoor sources of pollution (smoking, frying).",
	},
	{
		Title: "Vulnerable groups",
		Body:  "Children, elderly and people with lung/cardiac conditions should limit time outdoors and keep medications handy during poor air days.",
	},
}

// Tips returns short health recommendations for the given AQI.
// Negative values are treated as 0.
func Tips(aqi int) []string {
	switch {
	case aqi <= 50:
		return []string{
			"Air quality is good — enjoy outdoor activities.",
			"Keep windows open if indoors and ventilated.",
		}
	case aqi <= 100:
		return []string{
			"Acceptable for most people. Sensitive groups should reduce long outdoor exertion.",
		}
	case aqi <= 150:
		return []string{
			"Sensitive groups: reduce prolonged or heavy exertion outdoors.",
			"Consider using an N95/FFP2 mask for extended outdoor exposure.",
		}
	case aqi <= 200:
		return []string{
			"Everyone may begin to experience health effects; minimize outdoor activities.",
			"Use indoor air purifiers (HEPA) and avoid exercise outdoors.",
		}
	default:
		return []string{
			"Emergency condition: avoid all outdoor exertion.",
			"Seek medical attention if you experience respiratory symptoms.",
		}
	}
}

// Guidance returns the detailed guidance topics.
func Guidance() []GuidanceTopic {
	out := make([]GuidanceTopic, len(guidance))
	copy(out, guidance)
	return out
}

// DayAdvice is the one-line advisory shown for a single forecast day.
func DayAdvice(aqi int) string {
	if aqi > 100 {
		return "Consider limiting outdoor activities and wearing a mask if you have respiratory issues."
	}
	return "Air quality is acceptable. Enjoy your outdoor activities!"
}
