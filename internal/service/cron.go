package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// ParseFlexible parses a cron expression with 5 or 6 fields and reports
// the field count, so a caller can tell the scheduler whether the
// expression carries seconds. Macros like @hourly count as 5 fields.
func ParseFlexible(expr string) (int, error) {
	e := strings.TrimSpace(expr)
	if e == "" {
		return 0, errors.New("empty cron expression")
	}

	// Macros and @every are handled by ParseStandard.
	if strings.HasPrefix(e, "@") {
		if _, err := cron.ParseStandard(e); err != nil {
			return 0, err
		}
		return 5, nil
	}

	switch n := len(strings.Fields(e)); n {
	case 5:
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(e); err != nil {
			return 0, err
		}
		return 5, nil
	case 6:
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(e); err != nil {
			return 0, err
		}
		return 6, nil
	default:
		return 0, fmt.Errorf("invalid field count: got %d (want 5 or 6)", n)
	}
}
