package middleware

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rybaukrainy/portal/internal/apperr"
	"github.com/rybaukrainy/portal/internal/logger"
)

// Validator is a struct that holds the validator instance
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	v := validator.New()
	// Report json names so field errors match the request payload
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate validates s and returns an apperr validation error listing the
// offending fields
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return apperr.Validation(fields)
}

var defaultValidator = NewValidator()

var errBadBody = apperr.New(apperr.KindValidation, "Некоректний запит")

// Bind parses the request body into dst and validates it
func Bind(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return apperr.Wrap(apperr.KindValidation, errBadBody.Message, err)
	}
	return defaultValidator.Validate(dst)
}

// BindQuery parses the query string into dst and validates it
func BindQuery(c *fiber.Ctx, dst interface{}) error {
	if err := c.QueryParser(dst); err != nil {
		return apperr.Wrap(apperr.KindValidation, "Некоректні параметри запиту", err)
	}
	return defaultValidator.Validate(dst)
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error    string            `json:"error"`
	Notice   apperr.Notice     `json:"notice"`
	Redirect string            `json:"redirect,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// StatusFor maps err onto the response status
func StatusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return apperr.KindOf(err).Status()
}

// ErrorHandler converts every error into a JSON notice so no failure
// reaches the client unformatted
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := StatusFor(err)

	resp := ErrorResponse{
		Error:    apperr.KindOf(err).String(),
		Notice:   apperr.NoticeFor(err),
		Redirect: apperr.RedirectFor(err),
	}

	var fe *fiber.Error
	var ae *apperr.Error
	switch {
	case errors.As(err, &fe):
		resp.Error = "http_error"
		resp.Notice.Message = fe.Message
	case errors.As(err, &ae):
		resp.Fields = ae.Fields
	}

	if code >= fiber.StatusInternalServerError {
		logger.Get().Error().
			Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", code).
			Msg("HTTP error")
	}

	return c.Status(code).JSON(resp)
}
