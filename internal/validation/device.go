package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"mds-backend/internal/models"
	appErrors "mds-backend/pkg/errors"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// ValidateStruct runs the struct tags of s and converts the first failure to an MDS error.
func ValidateStruct(s interface{}) *appErrors.MDSError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return appErrors.BadParam("%s", err.Error())
	}

	fe := fieldErrors[0]
	if fe.Tag() == "required" {
		return appErrors.MissingParam("missing %s", fe.Field())
	}
	return appErrors.BadParam("invalid %s %v", fe.Field(), fe.Value())
}

// ValidateDevice checks a registration. An empty modality is set to micromobility.
func ValidateDevice(d *models.Device) *appErrors.MDSError {
	if d == nil {
		return appErrors.MissingParam("missing device")
	}
	if d.Modality == "" {
		d.Modality = models.ModalityMicromobility
	}
	if err := ValidateStruct(d); err != nil {
		return err
	}
	if !isUUID(d.DeviceID) {
		return appErrors.BadParam("invalid device_id %s", d.DeviceID)
	}
	return nil
}
