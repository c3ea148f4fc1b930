package model

import "time"

// Contact is the data structure for a person that we know.
// FirstName, LastName and Color are present on every stored contact. The pointer fields are
// optional and nil when absent.
type Contact struct {
	Id          int64      `json:"id"`
	FirstName   string     `json:"firstname"`
	LastName    string     `json:"lastname"`
	Color       Color      `json:"color"`
	DateOfBirth *time.Time `json:"birthday,omitempty"`
	ZipCode     *string    `json:"zipcode,omitempty"`
	PhoneNumber *string    `json:"phone,omitempty"`
}

// Configure validates the DTO and then copies every parameter value and the color of the DTO
// onto the contact. Parameters absent in the DTO are cleared on the contact. The contact is left
// untouched if validation fails.
func (c *Contact) Configure(dto *DTO) error {
	if err := Validate(dto); err != nil {
		return err
	}
	configured := *c
	for _, b := range schema {
		if err := b.transfer(dto, &configured); err != nil {
			return err
		}
	}
	configured.Color = dto.Color()
	*c = configured
	return nil
}

// Get returns the current value of a parameter on the contact, or false if it is absent. The
// value is a string for text parameters and a time.Time for DateOfBirth.
func (c Contact) Get(p Parameter) (any, bool) {
	if !p.valid() {
		return nil, false
	}
	return accessorFor(p).value(c)
}

// Initial is the first character of the first name, or the empty string if there is none.
func (c Contact) Initial() string {
	for _, r := range c.FirstName {
		return string(r)
	}
	return ""
}
