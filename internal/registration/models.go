// Package registration defines the record accumulated across the multi-step
// signup flow and the fixed step layout.
package registration

// Field names shared by the schema, the form machine, and the snapshot
// adapter. They match the JSON wire names.
const (
	FieldEmail           = "email"
	FieldUsername        = "username"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldFirstName       = "firstName"
	FieldLastName        = "lastName"
	FieldPhoneNumber     = "phoneNumber"
	FieldDateOfBirth     = "dateOfBirth"
	FieldCountry         = "country"
	FieldNewsletter      = "newsletter"
	FieldTerms           = "terms"
)

// Data is the single record accumulated across steps. Optional profile fields
// default to empty strings.
type Data struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	PhoneNumber     string `json:"phoneNumber"`
	DateOfBirth     string `json:"dateOfBirth"`
	Country         string `json:"country"`
	Newsletter      bool   `json:"newsletter"`
	Terms           bool   `json:"terms"`
}

// Partial is a sparse update merged into Data by the form machine. Nil fields
// are left untouched.
type Partial struct {
	Email           *string
	Username        *string
	Password        *string
	ConfirmPassword *string
	FirstName       *string
	LastName        *string
	PhoneNumber     *string
	DateOfBirth     *string
	Country         *string
	Newsletter      *bool
	Terms           *bool
}

// Apply merges the partial into d.
func (p Partial) Apply(d *Data) {
	if p.Email != nil {
		d.Email = *p.Email
	}
	if p.Username != nil {
		d.Username = *p.Username
	}
	if p.Password != nil {
		d.Password = *p.Password
	}
	if p.ConfirmPassword != nil {
		d.ConfirmPassword = *p.ConfirmPassword
	}
	if p.FirstName != nil {
		d.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		d.LastName = *p.LastName
	}
	if p.PhoneNumber != nil {
		d.PhoneNumber = *p.PhoneNumber
	}
	if p.DateOfBirth != nil {
		d.DateOfBirth = *p.DateOfBirth
	}
	if p.Country != nil {
		d.Country = *p.Country
	}
	if p.Newsletter != nil {
		d.Newsletter = *p.Newsletter
	}
	if p.Terms != nil {
		d.Terms = *p.Terms
	}
}

// Step identifies one of the three sequential sections of the flow.
type Step int

const (
	StepAccount Step = iota
	StepProfile
	StepConfirmation
)

// StepCount is fixed: Account, Profile, Confirmation.
const StepCount = 3

// StepFields returns the field set owned by a step, in declaration order.
// Unknown steps return nil.
func StepFields(s Step) []string {
	switch s {
	case StepAccount:
		return []string{FieldEmail, FieldUsername, FieldPassword, FieldConfirmPassword}
	case StepProfile:
		return []string{FieldFirstName, FieldLastName, FieldPhoneNumber, FieldDateOfBirth, FieldCountry, FieldNewsletter}
	case StepConfirmation:
		return []string{FieldTerms}
	}
	return nil
}

// SensitiveFields are never written to durable snapshots.
var SensitiveFields = []string{FieldPassword, FieldConfirmPassword, FieldTerms}
