package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"
)

var (
	// AB12CD3456, AB1C234, AB121234
	standardRe = regexp.MustCompile(`^([A-Z]{2})(\d{1,2})([A-Z]{0,3})(\d{1,4})$`)
	// 22BH1234AA
	bharatRe    = regexp.MustCompile(`^(\d{2})BH(\d{4})([A-Z]{1,2})$`)
	separatorRe = regexp.MustCompile(`[\s\-_.·/]+`)
	plateRe     = regexp.MustCompile(`^[A-Z0-9]{4,15}$`)

	upper = cases.Upper(language.Und)
)

// PlateFormat names the registration scheme a plate was recognized as.
type PlateFormat string

const (
	FormatStandard     PlateFormat = "standard"
	FormatBharat       PlateFormat = "bharat"
	FormatUnstructured PlateFormat = "unstructured"
)

// ParsedPlate holds the structured data parsed from a registration number.
type ParsedPlate struct {
	Plate    string
	Format   PlateFormat
	Region   string
	District int
	Series   string
	Number   int
}

// NormalizePlate folds full-width characters, upper-cases, and strips
// separators so that "ab 12-cd 3456" and "ＡＢ１２ＣＤ３４５６" both become
// "AB12CD3456".
func NormalizePlate(raw string) string {
	s := width.Fold.String(strings.TrimSpace(raw))
	s = upper.String(s)
	return separatorRe.ReplaceAllString(s, "")
}

// ParsePlate normalizes raw and splits it into its components. Plates that
// are alphanumeric but follow no known scheme are accepted as unstructured.
func ParsePlate(raw string) (ParsedPlate, error) {
	plate := NormalizePlate(raw)
	if plate == "" {
		return ParsedPlate{}, fmt.Errorf("plate number is empty")
	}
	if !plateRe.MatchString(plate) {
		return ParsedPlate{}, fmt.Errorf("unable to parse plate number: %q", raw)
	}

	if m := bharatRe.FindStringSubmatch(plate); m != nil {
		number, _ := strconv.Atoi(m[2])
		return ParsedPlate{Plate: plate, Format: FormatBharat, Region: "BH", Series: m[3], Number: number}, nil
	}

	if m := standardRe.FindStringSubmatch(plate); m != nil {
		district, _ := strconv.Atoi(m[2])
		number, _ := strconv.Atoi(m[4])
		return ParsedPlate{
			Plate:    plate,
			Format:   FormatStandard,
			Region:   m[1],
			District: district,
			Series:   m[3],
			Number:   number,
		}, nil
	}

	return ParsedPlate{Plate: plate, Format: FormatUnstructured}, nil
}
