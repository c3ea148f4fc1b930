package model

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	domain "gitlab.com/dirk.krummacker/contacts/pkg/model"
)

// DateLayout is the format of the birthday column.
const DateLayout = "2006-01-02"

// Columns lists the columns of the contacts table in the order of the Contact fields.
const Columns = "id, firstname, lastname, firstname_key, lastname_key, " +
	"color_red, color_green, color_blue, color_alpha, birthday, zipcode, phone"

// Contact is a row of the contacts table. Besides the contact data it carries the folded
// search keys of both names.
type Contact struct {
	Id           int64          `db:"id"`
	FirstName    string         `db:"firstname"`
	LastName     string         `db:"lastname"`
	FirstNameKey string         `db:"firstname_key"`
	LastNameKey  string         `db:"lastname_key"`
	ColorRed     uint8          `db:"color_red"`
	ColorGreen   uint8          `db:"color_green"`
	ColorBlue    uint8          `db:"color_blue"`
	ColorAlpha   uint8          `db:"color_alpha"`
	Birthday     sql.NullString `db:"birthday"`
	ZipCode      sql.NullString `db:"zipcode"`
	Phone        sql.NullString `db:"phone"`
}

// FromContact builds the row for a contact.
func FromContact(c domain.Contact) Contact {
	row := Contact{
		Id:           c.Id,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		FirstNameKey: SearchKey(c.FirstName),
		LastNameKey:  SearchKey(c.LastName),
		ColorRed:     c.Color.Red,
		ColorGreen:   c.Color.Green,
		ColorBlue:    c.Color.Blue,
		ColorAlpha:   c.Color.Alpha,
		ZipCode:      nullString(c.ZipCode),
		Phone:        nullString(c.PhoneNumber),
	}
	if c.DateOfBirth != nil {
		row.Birthday = sql.NullString{String: c.DateOfBirth.Format(DateLayout), Valid: true}
	}
	return row
}

// ToContact converts the row back into a contact.
func (r Contact) ToContact() (domain.Contact, error) {
	c := domain.Contact{
		Id:        r.Id,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Color: domain.Color{
			Red:   r.ColorRed,
			Green: r.ColorGreen,
			Blue:  r.ColorBlue,
			Alpha: r.ColorAlpha,
		},
		ZipCode:     stringPtr(r.ZipCode),
		PhoneNumber: stringPtr(r.Phone),
	}
	if r.Birthday.Valid {
		birthday, err := time.Parse(DateLayout, r.Birthday.String)
		if err != nil {
			return domain.Contact{}, fmt.Errorf("contact %d: invalid birthday %q: %w", r.Id, r.Birthday.String, err)
		}
		c.DateOfBirth = &birthday
	}
	return c, nil
}

// SearchKey folds a name for case- and diacritic-insensitive matching: "Zoë" and "ZOE" both
// become "zoe".
func SearchKey(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	return cases.Fold().String(strings.TrimSpace(folded))
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
