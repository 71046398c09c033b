package health

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// cronParser принимает стандартные выражения и дескрипторы (@every 30s, @hourly).
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSpec проверяет расписание probe.
func ValidateSpec(spec string) error {
	if _, err := cronParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid health schedule %q: %w", spec, err)
	}
	return nil
}
