package forecast

import (
	"errors"
	"strings"
)

// ErrUnknownCondition is returned by ParseCondition for text it cannot categorise.
var ErrUnknownCondition = errors.New("unknown weather condition")

// Condition is the categorised sky state of a forecast day.
type Condition string

const (
	ConditionSunny   Condition = "sunny"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionDrizzle Condition = "drizzle"
	ConditionFog     Condition = "fog"
	ConditionUnknown Condition = "unknown"
)

// conditions is the generator's index table; order matters.
var conditions = [...]Condition{
	ConditionSunny,
	ConditionCloudy,
	ConditionRain,
	ConditionDrizzle,
	ConditionFog,
}

// Conditions returns the generator's conditions in index order.
func Conditions() []Condition {
	return conditions[:]
}

// Icon names the dashboard icon for the condition.
func (c Condition) Icon() string {
	switch c {
	case ConditionSunny:
		return "sun"
	case ConditionCloudy:
		return "cloud"
	case ConditionRain:
		return "cloud-rain"
	case ConditionDrizzle:
		return "cloud-drizzle"
	case ConditionFog:
		return "cloud-fog"
	default:
		return "wind"
	}
}

// ParseCondition categorises a condition string from an upstream forecast.
// Unrecognised text yields ConditionUnknown and ErrUnknownCondition.
func ParseCondition(s string) (Condition, error) {
	lower := strings.ToLower(strings.TrimSpace(s))

	for _, c := range conditions {
		if lower == string(c) {
			return c, nil
		}
	}

	// Drizzle before rain: "rain" would otherwise swallow "light rain drizzle"
	if strings.Contains(lower, "drizzle") {
		return ConditionDrizzle, nil
	}
	if strings.Contains(lower, "rain") || strings.Contains(lower, "shower") ||
		strings.Contains(lower, "storm") {
		return ConditionRain, nil
	}
	if strings.Contains(lower, "fog") || strings.Contains(lower, "mist") ||
		strings.Contains(lower, "haze") || strings.Contains(lower, "smog") {
		return ConditionFog, nil
	}
	if strings.Contains(lower, "cloud") || strings.Contains(lower, "overcast") {
		return ConditionCloudy, nil
	}
	if strings.Contains(lower, "sun") || strings.Contains(lower, "clear") {
		return ConditionSunny, nil
	}

	return ConditionUnknown, ErrUnknownCondition
}
