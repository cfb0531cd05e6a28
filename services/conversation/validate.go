package conversation

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// vehicleTypes is the accepted vocabulary for the first availability step.
var vehicleTypes = []string{"turbo", "sencillo", "dobletroque", "mula", "volqueta", "furgón"}

// Colombian plates: three letters, two or three digits, optional trailing
// letter (motorcycles). ABC12 and ABC123A are valid, AB123 and ABC1234 are not.
var placaPattern = regexp.MustCompile(`^[A-Z]{3}\d{2,3}[A-Z]?$`)

var yearPattern = regexp.MustCompile(`^\d{4}$`)

func validVehicleType(s string) bool {
	for _, t := range vehicleTypes {
		if t == s {
			return true
		}
	}
	return false
}

func validPlaca(s string) bool {
	return placaPattern.MatchString(strings.ToUpper(s))
}

func validYear(s string) bool {
	if !yearPattern.MatchString(s) {
		return false
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	return year >= 1900 && year <= time.Now().Year()
}

// parsePositiveNumber accepts any float strictly greater than zero.
func parsePositiveNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}

func vehicleTypeExamples() (string, string) {
	return strings.Join(vehicleTypes[:3], ", "), strings.Join(vehicleTypes[3:], ", ")
}
