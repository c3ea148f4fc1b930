package service

import (
	"fmt"
	"strings"

	"gitlab.com/dirk.krummacker/contacts/internal/model"
)

// Predicate selects the contacts a fetch or delete applies to.
type Predicate interface {
	where() (string, []interface{})
}

type predicate struct {
	clause string
	args   []interface{}
}

func (p predicate) where() (string, []interface{}) {
	return p.clause, p.args
}

// All matches every contact.
func All() Predicate {
	return predicate{clause: "1 = 1"}
}

// NameContains matches contacts whose first name or last name contains the search term,
// ignoring case and diacritics. An empty term matches every contact.
func NameContains(term string) Predicate {
	pattern := "%" + escapeLike(model.SearchKey(term)) + "%"
	return predicate{
		clause: "(firstname_key LIKE ? ESCAPE '!' OR lastname_key LIKE ? ESCAPE '!')",
		args:   []interface{}{pattern, pattern},
	}
}

// NameEquals matches contacts whose first name and last name both equal the given names. The
// comparison is exact: names that differ in case or accents do not match.
func NameEquals(firstName, lastName string) Predicate {
	return predicate{
		clause: "(firstname = ? AND lastname = ?)",
		args:   []interface{}{firstName, lastName},
	}
}

// IDs matches the contacts with the given ids.
func IDs(ids ...int64) Predicate {
	if len(ids) == 0 {
		return predicate{clause: "1 = 0"}
	}
	return predicate{clause: "id IN (?)", args: []interface{}{ids}}
}

// escapeLike escapes the LIKE wildcards of s with '!'.
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

// maxInt is the largest possible int value
const maxInt = int(^uint(0) >> 1)

// allowedOrderby maps the allowed sort columns to the columns that are actually sorted on.
// Names sort by their folded keys so that "émile" sorts next to "emma".
var allowedOrderby = map[string]string{
	"id":        "id",
	"firstname": "firstname_key",
	"lastname":  "lastname_key",
	"birthday":  "birthday",
	"zipcode":   "zipcode",
	"phone":     "phone",
}

// FetchOption adjusts how fetched contacts are returned.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	orderby   string
	ascending bool
	limit     int
	offset    int
}

// OrderBy sorts the result by one of the columns id, firstname, lastname, birthday, zipcode or
// phone. Results are sorted by ascending id by default.
func OrderBy(column string, ascending bool) FetchOption {
	return func(o *fetchOptions) {
		o.orderby = column
		o.ascending = ascending
	}
}

// Page skips the first offset contacts of the sorted result and returns at most limit contacts.
// A limit below one returns all remaining contacts.
func Page(limit, offset int) FetchOption {
	return func(o *fetchOptions) {
		o.limit = limit
		o.offset = offset
	}
}

// IsOrderable reports whether a fetch can be sorted by column.
func IsOrderable(column string) bool {
	_, ok := allowedOrderby[column]
	return ok
}

// pageClause returns the LIMIT and OFFSET part of the query and its arguments.
func (o fetchOptions) pageClause() (string, []interface{}) {
	if o.limit < 1 && o.offset < 1 {
		return "", nil
	}
	limit := o.limit
	if limit < 1 {
		limit = maxInt
	}
	return " LIMIT ? OFFSET ?", []interface{}{limit, max(o.offset, 0)}
}

func (o fetchOptions) orderClause() (string, error) {
	column, ok := allowedOrderby[o.orderby]
	if !ok {
		return "", fmt.Errorf("unsupported orderby column %q", o.orderby)
	}
	direction := "ASC"
	if !o.ascending {
		direction = "DESC"
	}
	if column == "id" {
		return "id " + direction, nil
	}
	return fmt.Sprintf("%s %s, id %s", column, direction, direction), nil
}
