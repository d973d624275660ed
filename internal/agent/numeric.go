package agent

import "regexp"

// fullyWrittenIntegerPattern accepts an optional leading '-', digits
// with optional thousands separators, and an optional exact ".00"
// fractional part — never a suffix letter.
var fullyWrittenIntegerPattern = regexp.MustCompile(`^-?[0-9]{1,3}(,[0-9]{3})*(\.00)?$|^-?[0-9]+(\.00)?$`)

// abbreviatedSuffixPattern rejects values with a trailing magnitude
// letter, e.g. "394.3B", "394328M", "1.2K".
var abbreviatedSuffixPattern = regexp.MustCompile(`(?i)[0-9](b|m|k|bn|mm)$`)

// isFullyWrittenNumber reports whether value is a fully written
// absolute integer acceptable for update_excel_cell. A dash ("-")
// alone represents an intentional blank and is accepted as a
// pass-through sentinel, not a numeric value.
func isFullyWrittenNumber(value string) bool {
	if value == "-" || value == "" {
		return true
	}
	if abbreviatedSuffixPattern.MatchString(value) {
		return false
	}
	if !fullyWrittenIntegerPattern.MatchString(value) {
		return false
	}
	return true
}
