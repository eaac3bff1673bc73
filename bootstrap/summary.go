package bootstrap

import (
	"time"

	"github.com/kbukum/pipedeploy/component"
	"github.com/kbukum/pipedeploy/logger"
)

// logSummary reports the started components at debug level. The summary
// goes through the logger so stdout stays reserved for command output.
func (a *App[C]) logSummary(took time.Duration) {
	for _, c := range a.Components.All() {
		fields := logger.Fields(logger.FieldComponent, c.Name())
		if d, ok := c.(component.Describable); ok {
			desc := d.Describe()
			fields["type"] = desc.Type
			if desc.Details != "" {
				fields["details"] = desc.Details
			}
		}
		a.Logger.Debug("component ready", fields)
	}
	a.Logger.Debug("startup complete", logger.Fields(
		"components", len(a.Components.All()),
		logger.FieldDuration, took.Milliseconds(),
	))
}
