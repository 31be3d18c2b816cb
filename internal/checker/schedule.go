package checker

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule yields the next round start after t. cron.Schedule satisfies it.
type Schedule = cron.Schedule

var (
	reHHMM     = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)
	cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// ParseSchedule accepts:
//   - cron: "*/1 * * * *", "*/20 * * * * *", "@every 20s", "@hourly"
//   - Go duration: "45s", "2m"
//   - HH:MM interval: "00:05" (five minutes)
//
// An empty string yields a fixed interval of def.
func ParseSchedule(raw string, def time.Duration) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		if def <= 0 {
			return nil, fmt.Errorf("%w: default interval must be > 0", ErrBadSchedule)
		}
		return cron.Every(def), nil
	}
	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		sch, err := cronParser.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrBadSchedule, raw, err)
		}
		return sch, nil
	}
	if m := reHHMM.FindStringSubmatch(s); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return nil, fmt.Errorf("%w %q: minutes out of range", ErrBadSchedule, raw)
		}
		d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
		if d <= 0 {
			return nil, fmt.Errorf("%w %q: interval must be > 0", ErrBadSchedule, raw)
		}
		return cron.Every(d), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, fmt.Errorf("%w %q (use cron like '*/1 * * * *', HH:MM like '00:05', or duration like '45s')", ErrBadSchedule, raw)
	}
	if d <= 0 {
		return nil, fmt.Errorf("%w %q: interval must be > 0", ErrBadSchedule, raw)
	}
	return cron.Every(d), nil
}
