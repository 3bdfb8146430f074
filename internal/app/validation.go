package app

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/go-playground/validator/v10"

	"github.com/neuroti/Psi/internal/config"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type fieldRule struct {
	code    string
	message string
}

// fieldRules maps struct fields to the coded error their validation failure
// produces.
var fieldRules = map[string]fieldRule{
	"UserID":      {CodeMissingField, "A user id is required."},
	"Variability": {CodeHRVOutOfRange, "HRV must be between 10.0 and 200.0 ms. Please check your wearable device."},
	"Rate":        {CodeRateOutOfRange, "Heart rate must be between 30 and 220 bpm. Please check your wearable device."},
	"Limit":       {CodeInvalidLimit, "Limit must be between 1 and 100."},
	"Offset":      {CodeInvalidLimit, "Offset cannot be negative."},
	"Days":        {CodeInvalidRange, "Days must be between 1 and 90."},
	"Period":      {CodeInvalidRange, "Period must be one of week, month or year."},
	"ID":          {CodeMissingField, "A recipe id is required."},
}

// validateStruct runs the struct tags of req and translates the first
// failure into a coded validation error.
func validateStruct(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return newError(CategoryValidation, CodeMissingField, "The request is invalid.", err)
	}

	fe := fieldErrs[0]
	rule, ok := fieldRules[fe.Field()]
	if !ok {
		return newError(CategoryValidation, CodeMissingField,
			fmt.Sprintf("%s is invalid.", fe.Field()), err)
	}
	return newError(CategoryValidation, rule.code, rule.message, err)
}

// validateImage checks size, format and dimensions.
func validateImage(data []byte, limits config.LimitsConfig) error {
	if limits.MaxImageBytes > 0 && int64(len(data)) > limits.MaxImageBytes {
		return newError(CategoryValidation, CodeFileTooLarge,
			fmt.Sprintf("Image file is too large. Maximum size is %dMB.", limits.MaxImageBytes/(1024*1024)), nil)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if errors.Is(err, image.ErrFormat) {
		return newError(CategoryValidation, CodeUnsupportedType, "Please upload a JPEG or PNG image file.", err)
	}
	if err != nil {
		return newError(CategoryValidation, CodeFileCorrupted, "The image file appears to be corrupted.", err)
	}
	if format != "jpeg" && format != "png" {
		return newError(CategoryValidation, CodeUnsupportedType, "Please upload a JPEG or PNG image file.", nil)
	}

	if cfg.Width < limits.MinImageDimension || cfg.Height < limits.MinImageDimension {
		return newError(CategoryValidation, CodeInvalidDimensions,
			fmt.Sprintf("Image must be at least %dx%d pixels.", limits.MinImageDimension, limits.MinImageDimension), nil)
	}
	return nil
}
