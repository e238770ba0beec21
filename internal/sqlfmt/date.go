package sqlfmt

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// LocalTimeZone renders times in the process time zone.
const LocalTimeZone = "local"

var offsetRe = regexp.MustCompile(`([+\-\s])(\d\d):?(\d\d)?`)

// DateToString renders t as a quoted 'YYYY-MM-DD HH:mm:ss.mmm' literal.
//
// timeZone is "local" (or empty) for the process zone, "Z" for UTC, or a
// "+HH:MM" / "-HHMM" / "+HH" offset applied to the UTC instant. A malformed
// offset renders the UTC instant without any shift.
func DateToString(t time.Time, timeZone string) string {
	if timeZone == "" || timeZone == LocalTimeZone {
		t = t.In(time.Local)
	} else {
		t = t.UTC()
		if minutes, ok := convertTimeZone(timeZone); ok && minutes != 0 {
			t = t.Add(time.Duration(minutes) * time.Minute)
		}
	}

	return escapeString(fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%03d",
		t.Year(), int(t.Month()), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
		t.Nanosecond()/int(time.Millisecond)))
}

// convertTimeZone returns the offset of tz in minutes.
func convertTimeZone(tz string) (int, bool) {
	if tz == "Z" {
		return 0, true
	}

	m := offsetRe.FindStringSubmatch(tz)
	if m == nil {
		return 0, false
	}
	hours, _ := strconv.Atoi(m[2])
	minutes := 0
	if m[3] != "" {
		minutes, _ = strconv.Atoi(m[3])
	}
	total := hours*60 + minutes
	if m[1] == "-" {
		total = -total
	}
	return total, true
}
