// Package email delivers transactional email through an ordered chain of
// providers and degrades to a mailto link when none of them can send.
//
// Providers are tried strictly one after another: Brevo first, then Resend.
// The first accepted send wins and later providers are never contacted, so a
// recipient cannot receive the same message twice. A provider that answers
// with a non-2xx status, or whose circuit breaker is open, hands over to the
// next one. When the chain is exhausted the caller gets a ready-made mailto
// link instead of an error.
package email

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FallbackError is the message returned alongside the mailto fallback.
const FallbackError = "No email provider configured."

// mailtoBodyLimit caps the body carried in the mailto link, in characters.
const mailtoBodyLimit = 500

// Request is the JSON payload accepted by POST /send-email.
type Request struct {
	ToEmail  string `json:"to_email" validate:"required"`
	ToName   string `json:"to_name"`
	Subject  string `json:"subject" validate:"required"`
	Body     string `json:"body" validate:"required"`
	FromName string `json:"from_name"`
}

// Outcome is the JSON answer for a send attempt that reached the provider chain.
type Outcome struct {
	OK       bool   `json:"ok"`
	Method   string `json:"method,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
	Error    string `json:"error,omitempty"`
	Mailto   string `json:"mailto,omitempty"`
}

// ValidationError lists the required fields missing from a Request.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// validatorInstance returns the shared validator, reporting fields by their JSON names.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the mandatory fields. It returns a *ValidationError when any is empty.
func (r *Request) Validate() error {
	err := validatorInstance().Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate email request: %w", err)
	}

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field())
	}
	return &ValidationError{Fields: fields}
}

// FallbackOutcome builds the mailto degradation answer for r.
func FallbackOutcome(r *Request) *Outcome {
	return &Outcome{
		OK:       false,
		Fallback: true,
		Error:    FallbackError,
		Mailto:   MailtoLink(r.ToEmail, r.Subject, r.Body),
	}
}

// MailtoLink returns a mailto URL with subject and body encoded the way
// browsers' encodeURIComponent does. The body is cut to 500 characters
// before encoding; the address is used as given.
func MailtoLink(to, subject, body string) string {
	return "mailto:" + to +
		"?subject=" + encodeURIComponent(subject) +
		"&body=" + encodeURIComponent(truncateRunes(body, mailtoBodyLimit))
}

// uriComponentUnreserved undoes QueryEscape for the marks encodeURIComponent leaves alone.
var uriComponentUnreserved = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func encodeURIComponent(s string) string {
	return uriComponentUnreserved.Replace(url.QueryEscape(s))
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
