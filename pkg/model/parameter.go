package model

import (
	"strings"
	"time"
)

// Requirement tells whether a parameter must be present on a contact.
type Requirement int

const (
	Required Requirement = iota
	Optional
)

func (r Requirement) String() string {
	if r == Required {
		return "required"
	}
	return "optional"
}

// Parameter is one editable field of a contact. The set of parameters is closed.
type Parameter int

const (
	FirstName Parameter = iota
	LastName
	DateOfBirth
	ZipCode
	PhoneNumber
)

var parameterLabels = [...]string{"First", "Last", "Birth Date", "Zip", "Phone"}

var parameterKeys = [...]string{"firstname", "lastname", "birthday", "zipcode", "phone"}

// All returns the parameters in display order, which is also the order in which they are
// validated.
func All() []Parameter {
	return []Parameter{FirstName, LastName, DateOfBirth, ZipCode, PhoneNumber}
}

// String returns the label shown next to the parameter in the contact form.
func (p Parameter) String() string {
	if !p.valid() {
		return "Unknown"
	}
	return parameterLabels[p]
}

// Key returns the name of the parameter in JSON documents and database columns.
func (p Parameter) Key() string {
	if !p.valid() {
		return ""
	}
	return parameterKeys[p]
}

// Requirement tells whether the parameter must be present on every stored contact.
func (p Parameter) Requirement() Requirement {
	switch p {
	case FirstName, LastName:
		return Required
	default:
		return Optional
	}
}

// Required is shorthand for Requirement() == Required.
func (p Parameter) Required() bool {
	return p.Requirement() == Required
}

func (p Parameter) valid() bool {
	return p >= FirstName && p <= PhoneNumber
}

// ParseParameter looks up a parameter by its key.
func ParseParameter(key string) (Parameter, bool) {
	for _, p := range All() {
		if strings.EqualFold(p.Key(), key) {
			return p, true
		}
	}
	return 0, false
}

// Field is the typed accessor of one parameter. The type parameter is the value type of the
// parameter, so a value of the wrong type cannot be assigned.
type Field[T any] struct {
	param Parameter
	get   func(c *Contact) (T, bool)
	set   func(c *Contact, v T)
	clear func(c *Contact)
}

var (
	FirstNameField = Field[string]{
		param: FirstName,
		get:   func(c *Contact) (string, bool) { return c.FirstName, !blank(c.FirstName) },
		set:   func(c *Contact, v string) { c.FirstName = v },
	}
	LastNameField = Field[string]{
		param: LastName,
		get:   func(c *Contact) (string, bool) { return c.LastName, !blank(c.LastName) },
		set:   func(c *Contact, v string) { c.LastName = v },
	}
	DateOfBirthField = Field[time.Time]{
		param: DateOfBirth,
		get: func(c *Contact) (time.Time, bool) {
			if c.DateOfBirth == nil {
				return time.Time{}, false
			}
			return *c.DateOfBirth, true
		},
		set: func(c *Contact, v time.Time) {
			date := CalendarDate(v)
			c.DateOfBirth = &date
		},
		clear: func(c *Contact) { c.DateOfBirth = nil },
	}
	ZipCodeField = Field[string]{
		param: ZipCode,
		get:   func(c *Contact) (string, bool) { return deref(c.ZipCode) },
		set:   func(c *Contact, v string) { c.ZipCode = &v },
		clear: func(c *Contact) { c.ZipCode = nil },
	}
	PhoneNumberField = Field[string]{
		param: PhoneNumber,
		get:   func(c *Contact) (string, bool) { return deref(c.PhoneNumber) },
		set:   func(c *Contact, v string) { c.PhoneNumber = &v },
		clear: func(c *Contact) { c.PhoneNumber = nil },
	}
)

// schema lists the accessors in the order of All().
var schema = [...]accessor{FirstNameField, LastNameField, DateOfBirthField, ZipCodeField, PhoneNumberField}

// TextField returns the accessor of a text parameter. It reports false for DateOfBirth.
func TextField(p Parameter) (Field[string], bool) {
	switch p {
	case FirstName:
		return FirstNameField, true
	case LastName:
		return LastNameField, true
	case ZipCode:
		return ZipCodeField, true
	case PhoneNumber:
		return PhoneNumberField, true
	default:
		return Field[string]{}, false
	}
}

// Parameter returns the parameter the field gives access to.
func (f Field[T]) Parameter() Parameter {
	return f.param
}

// Get returns the value of the field on the contact, or false if it is absent.
func (f Field[T]) Get(c Contact) (T, bool) {
	return f.get(&c)
}

// Set stores a present value on the contact.
func (f Field[T]) Set(c *Contact, v T) {
	f.set(c, v)
}

// Clear removes the value from the contact. Required fields cannot be cleared.
func (f Field[T]) Clear(c *Contact) error {
	if f.param.Required() || f.clear == nil {
		return &MissingParametersError{Parameters: []Parameter{f.param}}
	}
	f.clear(c)
	return nil
}

// accessor is the untyped view of a Field used when walking the whole schema.
type accessor interface {
	Parameter() Parameter
	value(c Contact) (any, bool)
	transfer(dto *DTO, c *Contact) error
	project(c Contact, dto *DTO)
	present(dto *DTO) bool
}

func accessorFor(p Parameter) accessor {
	return schema[p]
}

func (f Field[T]) value(c Contact) (any, bool) {
	v, ok := f.Get(c)
	if !ok {
		return nil, false
	}
	return v, true
}

func (f Field[T]) transfer(dto *DTO, c *Contact) error {
	if v, ok := Value(dto, f); ok {
		f.Set(c, v)
		return nil
	}
	return f.Clear(c)
}

func (f Field[T]) project(c Contact, dto *DTO) {
	if v, ok := f.Get(c); ok {
		SetValue(dto, f, v)
		return
	}
	dto.Clear(f.param)
}

// present reports whether the DTO holds a usable value. Blank text counts as absent.
func (f Field[T]) present(dto *DTO) bool {
	v, ok := Value(dto, f)
	if !ok {
		return false
	}
	if s, isText := any(v).(string); isText {
		return !blank(s)
	}
	return true
}

// CalendarDate drops the time of day and the zone of t, keeping its calendar day.
func CalendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// blank reports whether text has nothing but white space. Blank text counts as absent.
func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func deref(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}
