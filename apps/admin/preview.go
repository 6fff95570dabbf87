package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nageo/backend/core/schedule"
)

// preview expands a recurrence rule and prints the occurrence dates,
// so the office can sanity-check a plan before creating sessions.
func (cli *commandLine) preview(start, freq string, interval, count int, weekDays string) error {
	base, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return fmt.Errorf("parsing -start: %v", err)
	}

	rule := schedule.Rule{
		Frequency: schedule.Frequency(freq),
		Interval:  interval,
		Count:     count,
	}
	if weekDays != "" {
		for _, s := range strings.Split(weekDays, ",") {
			wd, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil || wd < 0 || wd > 6 {
				return fmt.Errorf("parsing -weekdays: %q is not a weekday", s)
			}
			rule.WeekDays = append(rule.WeekDays, time.Weekday(wd))
		}
	}

	dates, err := schedule.Expand(base.UTC(), rule)
	if err != nil {
		return err
	}
	for i, d := range dates {
		fmt.Printf("%3d. %s\n", i+1, d.Format("Mon, 02 Jan 2006 15:04 MST"))
	}
	return nil
}
