// Package schema declares the registration validation rules. Evaluation is
// total: every violated rule is reported, not just the first per record.
package schema

import (
	"context"
	"net/mail"
	"regexp"
	"strings"

	goskema "github.com/reoring/goskema"
	g "github.com/reoring/goskema/dsl"

	"signupd/internal/registration"
	"signupd/internal/registration/validators"
)

// Scope restricts validation to one step's field set, or to the whole record.
type Scope int

// ScopeAll evaluates every field plus all cross-field refinements.
const ScopeAll Scope = -1

// StepScope scopes validation to the fields declared for a step. Cross-field
// refinements whose target field is outside the step stay suppressed.
func StepScope(s registration.Step) Scope { return Scope(s) }

// Field messages, matching the user-facing copy of the form.
const (
	MsgEmailInvalid     = "Enter a valid email address"
	MsgEmailDisposable  = "Disposable email addresses are not allowed"
	MsgUsernameTooShort = "Username must be at least 3 characters"
	MsgUsernameTooLong  = "Username cannot exceed 20 characters"
	MsgUsernamePattern  = "Username can include letters, numbers, and underscores only"
	MsgPasswordTooShort = "Password must be at least 8 characters long"
	MsgPasswordVariety  = "Password must include uppercase, lowercase, number, and special character"
	MsgPasswordsMatch   = "Passwords must match"
	MsgPasswordWeak     = "Password is too weak. Please strengthen it."
	MsgFirstNameLong    = "First name is too long"
	MsgLastNameLong     = "Last name is too long"
	MsgPhoneInvalid     = "Enter a valid international phone number"
	MsgUnderage         = "You must be at least 18 years old"
	MsgTermsRequired    = "You must accept the terms and conditions"
)

// MinStrengthScore is the weakest password score accepted at submission.
const MinStrengthScore = 3

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	phonePattern    = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)
)

// Validator evaluates the declarative rules against full or partial records.
// It is stateless and safe for concurrent use.
type Validator struct {
	record goskema.Schema[map[string]any]
}

// New builds the registration schema. Rules are attached as named refinements
// in precedence order: structural checks, then semantic refinements, then
// whole-object refinements.
func New() (*Validator, error) {
	record, err := g.Object().
		Field(registration.FieldEmail, g.StringOf[string]()).
		Field(registration.FieldUsername, g.StringOf[string]()).
		Field(registration.FieldPassword, g.StringOf[string]()).
		Field(registration.FieldConfirmPassword, g.StringOf[string]()).
		Field(registration.FieldFirstName, g.StringOf[string]()).
		Field(registration.FieldLastName, g.StringOf[string]()).
		Field(registration.FieldPhoneNumber, g.StringOf[string]()).
		Field(registration.FieldDateOfBirth, g.StringOf[string]()).
		Field(registration.FieldCountry, g.StringOf[string]()).
		Field(registration.FieldNewsletter, g.BoolOf[bool]()).
		Field(registration.FieldTerms, g.BoolOf[bool]()).
		UnknownStrip().
		Refine("account", refineAccount).
		Refine("profile", refineProfile).
		Refine("terms", refineTerms).
		Refine("passwords-match", refinePasswordsMatch).
		Refine("password-strength", refinePasswordStrength).
		Build()
	if err != nil {
		return nil, err
	}
	return &Validator{record: record}, nil
}

// MustNew is New for wiring paths where a build error is programmer error.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Validate evaluates the record under the given scope. It returns the record
// with normalized fields (phone number) and a field-to-message map that is
// nil when every scoped rule passes. Evaluation is idempotent and
// side-effect free.
func (v *Validator) Validate(ctx context.Context, d registration.Data, scope Scope) (registration.Data, map[string]string) {
	_, err := v.record.Parse(ctx, recordToMap(d))

	var all map[string]string
	if err != nil {
		if issues, ok := goskema.AsIssues(err); ok {
			all = foldIssues(issues)
		} else {
			// Non-issue errors should not happen with well-typed input;
			// surface them on the record rather than dropping silently.
			all = map[string]string{"_record": err.Error()}
		}
	}

	errs := filterScope(all, scope)

	if len(errs) == 0 {
		d.PhoneNumber = validators.NormalizePhone(d.PhoneNumber)
		return d, nil
	}
	return d, errs
}

func refineAccount(_ context.Context, m map[string]any) error {
	var iss goskema.Issues

	email := str(m, registration.FieldEmail)
	if !isEmail(email) {
		iss = appendIssue(iss, registration.FieldEmail, goskema.CodeInvalidFormat, MsgEmailInvalid)
	} else if validators.IsDisposableEmail(email) {
		iss = appendIssue(iss, registration.FieldEmail, goskema.CodeBusinessRule, MsgEmailDisposable)
	}

	username := str(m, registration.FieldUsername)
	switch {
	case len([]rune(username)) < 3:
		iss = appendIssue(iss, registration.FieldUsername, goskema.CodeTooShort, MsgUsernameTooShort)
	case len([]rune(username)) > 20:
		iss = appendIssue(iss, registration.FieldUsername, goskema.CodeTooLong, MsgUsernameTooLong)
	case !usernamePattern.MatchString(username):
		iss = appendIssue(iss, registration.FieldUsername, goskema.CodePattern, MsgUsernamePattern)
	}

	password := str(m, registration.FieldPassword)
	if len([]rune(password)) < 8 {
		iss = appendIssue(iss, registration.FieldPassword, goskema.CodeTooShort, MsgPasswordTooShort)
	} else if !meetsAllRequirements(password) {
		iss = appendIssue(iss, registration.FieldPassword, goskema.CodeBusinessRule, MsgPasswordVariety)
	}

	if len(iss) > 0 {
		return iss
	}
	return nil
}

func refineProfile(_ context.Context, m map[string]any) error {
	var iss goskema.Issues

	if len([]rune(str(m, registration.FieldFirstName))) > 50 {
		iss = appendIssue(iss, registration.FieldFirstName, goskema.CodeTooLong, MsgFirstNameLong)
	}
	if len([]rune(str(m, registration.FieldLastName))) > 50 {
		iss = appendIssue(iss, registration.FieldLastName, goskema.CodeTooLong, MsgLastNameLong)
	}

	if phone := str(m, registration.FieldPhoneNumber); phone != "" {
		if !phonePattern.MatchString(validators.NormalizePhone(phone)) {
			iss = appendIssue(iss, registration.FieldPhoneNumber, goskema.CodeInvalidFormat, MsgPhoneInvalid)
		}
	}

	if dob := str(m, registration.FieldDateOfBirth); dob != "" && !validators.IsAdult(dob) {
		iss = appendIssue(iss, registration.FieldDateOfBirth, goskema.CodeBusinessRule, MsgUnderage)
	}

	if len(iss) > 0 {
		return iss
	}
	return nil
}

func refineTerms(_ context.Context, m map[string]any) error {
	if accepted, _ := m[registration.FieldTerms].(bool); !accepted {
		return goskema.Issues{{
			Path:    "/" + registration.FieldTerms,
			Code:    goskema.CodeBusinessRule,
			Message: MsgTermsRequired,
		}}
	}
	return nil
}

func refinePasswordsMatch(_ context.Context, m map[string]any) error {
	if str(m, registration.FieldPassword) != str(m, registration.FieldConfirmPassword) {
		return goskema.Issues{{
			Path:    "/" + registration.FieldConfirmPassword,
			Code:    goskema.CodeBusinessRule,
			Message: MsgPasswordsMatch,
		}}
	}
	return nil
}

func refinePasswordStrength(_ context.Context, m map[string]any) error {
	strength := validators.PasswordStrength(str(m, registration.FieldPassword))
	if strength.Score < MinStrengthScore {
		return goskema.Issues{{
			Path:    "/" + registration.FieldPassword,
			Code:    goskema.CodeBusinessRule,
			Message: MsgPasswordWeak,
		}}
	}
	return nil
}

func meetsAllRequirements(password string) bool {
	for _, req := range validators.Requirements {
		if !req.Test(password) {
			return false
		}
	}
	return true
}

func isEmail(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	// mail.ParseAddress accepts local-only addresses; the form requires a
	// dotted domain.
	_, domain, _ := strings.Cut(s, "@")
	return strings.Contains(domain, ".")
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func appendIssue(iss goskema.Issues, field, code, message string) goskema.Issues {
	return goskema.AppendIssues(iss, goskema.Issue{
		Path:    "/" + field,
		Code:    code,
		Message: message,
	})
}

// foldIssues keeps the first message reported per field, preserving the
// structural-before-semantic precedence of the refinement order.
func foldIssues(issues goskema.Issues) map[string]string {
	out := make(map[string]string, len(issues))
	for _, issue := range issues {
		field := strings.TrimPrefix(issue.Path, "/")
		if field == "" {
			field = "_record"
		}
		if _, seen := out[field]; !seen {
			out[field] = issue.Message
		}
	}
	return out
}

func filterScope(all map[string]string, scope Scope) map[string]string {
	if len(all) == 0 {
		return nil
	}
	if scope == ScopeAll {
		return all
	}

	fields := registration.StepFields(registration.Step(scope))
	scoped := make(map[string]string)
	for _, f := range fields {
		if msg, ok := all[f]; ok {
			scoped[f] = msg
		}
	}
	if len(scoped) == 0 {
		return nil
	}
	return scoped
}

func recordToMap(d registration.Data) map[string]any {
	return map[string]any{
		registration.FieldEmail:           d.Email,
		registration.FieldUsername:        d.Username,
		registration.FieldPassword:        d.Password,
		registration.FieldConfirmPassword: d.ConfirmPassword,
		registration.FieldFirstName:       d.FirstName,
		registration.FieldLastName:        d.LastName,
		registration.FieldPhoneNumber:     d.PhoneNumber,
		registration.FieldDateOfBirth:     d.DateOfBirth,
		registration.FieldCountry:         d.Country,
		registration.FieldNewsletter:      d.Newsletter,
		registration.FieldTerms:           d.Terms,
	}
}
