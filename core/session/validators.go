package session

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/coachingcentre/platform/core"
)

var (
	frequencyTag  = "frequency"
	frequencyText = "frequency must be one of daily, weekly or monthly"

	weekdaysTag  = "weekdays"
	weekdaysText = "days of week must be between 0 (sunday) and 6 (saturday)"

	sessionStatusTag  = "sessionstatus"
	sessionStatusText = "invalid session status"

	attendanceStatusTag  = "attendancestatus"
	attendanceStatusText = "attendance status must be one of present, absent, late or excused"

	rosterStatusTag  = "rosterstatus"
	rosterStatusText = "roster status must be one of enrolled, attended, completed or dropped"
)

// InitValidators registers the session validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(frequencyTag, func(fl validator.FieldLevel) bool {
		f := Frequency(fl.Field().String())
		for _, freq := range Frequencies {
			if f == freq {
				return true
			}
		}
		return false
	})
	core.RegisterCustomTranslation(validate, translator, frequencyTag, frequencyText)

	_ = validate.RegisterValidation(weekdaysTag, func(fl validator.FieldLevel) bool {
		days, ok := fl.Field().Interface().([]time.Weekday)
		if !ok {
			return false
		}
		for _, d := range days {
			if d < time.Sunday || d > time.Saturday {
				return false
			}
		}
		return true
	})
	core.RegisterCustomTranslation(validate, translator, weekdaysTag, weekdaysText)

	_ = validate.RegisterValidation(sessionStatusTag, func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(validate, translator, sessionStatusTag, sessionStatusText)

	_ = validate.RegisterValidation(attendanceStatusTag, func(fl validator.FieldLevel) bool {
		st := AttendanceStatus(fl.Field().String())
		for _, s := range AttendanceStatuses {
			if st == s {
				return true
			}
		}
		return false
	})
	core.RegisterCustomTranslation(validate, translator, attendanceStatusTag, attendanceStatusText)

	_ = validate.RegisterValidation(rosterStatusTag, func(fl validator.FieldLevel) bool {
		st := RosterStatus(fl.Field().String())
		for _, s := range RosterStatuses {
			if st == s {
				return true
			}
		}
		return false
	})
	core.RegisterCustomTranslation(validate, translator, rosterStatusTag, rosterStatusText)
}
