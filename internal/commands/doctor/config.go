package doctor

import (
	"context"
	"errors"

	"github.com/hay-kot/criterio"

	"github.com/hay-kot/scribble/internal/core/config"
)

// ConfigCheck validates the loaded configuration and reports its warnings.
type ConfigCheck struct {
	cfg  *config.Config
	path string
}

func NewConfigCheck(cfg *config.Config, path string) *ConfigCheck {
	return &ConfigCheck{cfg: cfg, path: path}
}

func (c *ConfigCheck) Name() string { return "Configuration" }

func (c *ConfigCheck) Run(context.Context) Result {
	result := Result{Name: c.Name()}

	if c.cfg == nil {
		result.add(Fail("Config loaded", "configuration not loaded"))
		return result
	}

	items := ConfigItems(c.cfg.Validate(), c.cfg.Warnings())
	if len(items) == 0 {
		items = []CheckItem{Pass("Config valid", c.path)}
	}
	result.add(items...)
	return result
}

// ConfigItems turns a validation error and config warnings into check items:
// one failure per field error followed by one warning per warning.
func ConfigItems(validationErr error, warnings []config.Warning) []CheckItem {
	var items []CheckItem

	if validationErr != nil {
		var fieldErrs criterio.FieldErrors
		if !errors.As(validationErr, &fieldErrs) {
			fieldErrs = criterio.FieldErrors{{Err: validationErr}}
		}
		for _, fe := range fieldErrs {
			label := fe.Field
			if label == "" {
				label = "validation"
			}
			items = append(items, Fail(label, fe.Err.Error()))
		}
	}

	for _, w := range warnings {
		label := w.Category
		if w.Item != "" {
			label += " (" + w.Item + ")"
		}
		items = append(items, Warn(label, w.Message))
	}

	return items
}
