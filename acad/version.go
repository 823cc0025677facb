package acad

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var acadVerPattern = regexp.MustCompile(`(\d+)\.(\d+)`)

// ParseVersionMajor extracts the major version from an ACADVER value,
// e.g. "23.1s (LMS Tech)" -> 23, "24.0" -> 24.
func ParseVersionMajor(value interface{}) (int, bool) {
	if value == nil {
		return 0, false
	}
	s := strings.Trim(strings.TrimSpace(fmt.Sprint(value)), `"'`)
	match := acadVerPattern.FindStringSubmatch(s)
	if match == nil {
		return 0, false
	}
	major, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return major, true
}
