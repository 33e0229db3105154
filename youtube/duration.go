package youtube

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var isoDurationRegex = regexp.MustCompile(`^P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseISODuration parses the ISO 8601 durations returned by the Data API,
// such as "PT1H2M3S", "P1DT2H" or "P0D".
func ParseISODuration(s string) (time.Duration, error) {
	m := isoDurationRegex.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("youtube: invalid ISO 8601 duration %q", s)
	}

	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute}
	var d time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("youtube: invalid ISO 8601 duration %q: %w", s, err)
		}
		d += time.Duration(n) * unit
	}
	if m[5] != "" {
		secs, err := strconv.ParseFloat(m[5], 64)
		if err != nil {
			return 0, fmt.Errorf("youtube: invalid ISO 8601 duration %q: %w", s, err)
		}
		d += time.Duration(secs * float64(time.Second))
	}
	return d, nil
}
