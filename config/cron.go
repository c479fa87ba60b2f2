package config

import (
	"github.com/robfig/cron/v3"
)

// CronParser accepts 5 fields, or 6 with leading seconds, and descriptors
// such as @hourly or @every 30s.
var CronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func checkCron(field, expr string) error {
	if _, err := CronParser.Parse(expr); err != nil {
		return invalid(field, expr, err)
	}
	return nil
}
