package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePlate(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  ParsedPlate
		expectErr bool
	}{
		{
			name:     "Standard plate",
			raw:      "AB12CD3456",
			expected: ParsedPlate{Plate: "AB12CD3456", Format: FormatStandard, Region: "AB", District: 12, Series: "CD", Number: 3456},
		},
		{
			name:     "Lower case with separators",
			raw:      " ka-05 mh 0042 ",
			expected: ParsedPlate{Plate: "KA05MH0042", Format: FormatStandard, Region: "KA", District: 5, Series: "MH", Number: 42},
		},
		{
			name:     "Full width characters",
			raw:      "ＤＬ３Ｃ１２３４",
			expected: ParsedPlate{Plate: "DL3C1234", Format: FormatStandard, Region: "DL", District: 3, Series: "C", Number: 1234},
		},
		{
			name:     "Bharat series",
			raw:      "22 BH 1234 AA",
			expected: ParsedPlate{Plate: "22BH1234AA", Format: FormatBharat, Region: "BH", Series: "AA", Number: 1234},
		},
		{
			name:     "Unstructured but valid",
			raw:      "CAMPUS007",
			expected: ParsedPlate{Plate: "CAMPUS007", Format: FormatUnstructured},
		},
		{
			name:      "Empty",
			raw:       "  - ",
			expectErr: true,
		},
		{
			name:      "Illegal characters",
			raw:       "AB12#3456",
			expectErr: true,
		},
		{
			name:      "Too short",
			raw:       "A1",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := ParsePlate(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, parsed)
			}
		})
	}
}

func TestNormalizePlate(t *testing.T) {
	assert.Equal(t, "AB12CD3456", NormalizePlate("ab12cd3456"))
	assert.Equal(t, "AB12CD3456", NormalizePlate("AB.12.CD.3456"))
	assert.Equal(t, "", NormalizePlate("   "))
}
