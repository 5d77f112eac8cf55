package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata" // timezone validation must not depend on the host zoneinfo

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/ralf-homelab/ralf/pkg/engine"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// cronParser accepts standard five-field expressions and descriptors such as @daily.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// newValidator creates the profile validator with document field names and the
// profile-specific tags registered.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "identifier", func(fl validator.FieldLevel) bool {
		return identifierPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "cron", func(fl validator.FieldLevel) bool {
		_, err := cronParser.Parse(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "timezone", func(fl validator.FieldLevel) bool {
		_, err := time.LoadLocation(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "retention", func(fl validator.FieldLevel) bool {
		_, err := engine.ParseRetention(fl.Field().String())
		return err == nil
	})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		var trigger TriggerConfig
		switch t := sl.Current().Interface().(type) {
		case TriggerConfig:
			trigger = t
		case *TriggerConfig:
			trigger = *t
		}
		if trigger.Cron == "" && trigger.IntervalSeconds == 0 {
			sl.ReportError(trigger.Cron, "cron", "Cron", "cron_or_interval", "")
		}
	}, TriggerConfig{})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %v", tag, err))
	}
}

// validateDocument checks the document schema, then the cross-references that
// struct tags cannot express.
func validateDocument(v *validator.Validate, doc *ProfileDocument) error {
	if err := v.Struct(doc); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return toSchemaViolation(verrs[0])
		}
		return engine.NewSchemaViolationError("", err.Error())
	}
	return checkReferences(doc)
}

// checkReferences enforces unique identifiers and that expected guests name components.
func checkReferences(doc *ProfileDocument) error {
	components := make(map[string]int, len(doc.Components))
	tasks := make(map[string]string)

	for i, c := range doc.Components {
		path := indexPath("components", i)
		if first, exists := components[c.ID]; exists {
			return engine.NewSchemaViolationError(path+".id",
				fmt.Sprintf("duplicate component id %q (first declared at %s)", c.ID, indexPath("components", first))).
				WithIdentifier(c.ID)
		}
		components[c.ID] = i

		for j, t := range c.Tasks {
			taskPath := path + indexPath(".tasks", j)
			if first, exists := tasks[t.ID]; exists {
				return engine.NewSchemaViolationError(taskPath+".id",
					fmt.Sprintf("duplicate task id %q (first declared at %s)", t.ID, first)).
					WithIdentifier(t.ID)
			}
			tasks[t.ID] = taskPath
		}
	}

	for i, b := range doc.Backups {
		for j, guest := range b.ExpectedGuests {
			if _, exists := components[guest]; !exists {
				return engine.NewSchemaViolationError(
					indexPath("backups", i)+indexPath(".expected_guests", j),
					fmt.Sprintf("expected guest %q is not a declared component", guest)).
					WithIdentifier(guest)
			}
		}
	}

	return nil
}

// toSchemaViolation converts a validator field error into a classified error whose
// path is the document location, e.g. components[0].tasks[1].action.
func toSchemaViolation(fe validator.FieldError) *engine.Error {
	path := fe.Namespace()
	if i := strings.Index(path, "."); i >= 0 {
		path = path[i+1:]
	}

	var message string
	switch fe.Tag() {
	case "required":
		message = "is required"
	case "oneof":
		if fe.Field() == "action" {
			message = fmt.Sprintf("unknown action kind %q (expected one of %s)", fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
		} else {
			message = fmt.Sprintf("must be one of %s", fe.Param())
		}
	case "identifier":
		message = fmt.Sprintf("invalid identifier %q", fe.Value())
	case "cron":
		message = fmt.Sprintf("invalid cron expression %q", fe.Value())
	case "timezone":
		message = fmt.Sprintf("unknown timezone %q", fe.Value())
	case "retention":
		message = fmt.Sprintf("invalid retention %q", fe.Value())
		if _, err := engine.ParseRetention(fmt.Sprint(fe.Value())); err != nil {
			message = err.Error()
		}
	case "cron_or_interval":
		message = "trigger needs a cron expression, interval_seconds, or both"
	case "gte":
		message = fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	default:
		message = fmt.Sprintf("failed %q validation", fe.Tag())
	}

	return engine.NewSchemaViolationError(path, message)
}

func indexPath(field string, i int) string {
	return fmt.Sprintf("%s[%d]", field, i)
}
