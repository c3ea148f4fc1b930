package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"gitlab.com/dirk.krummacker/contacts/internal/async"
	row "gitlab.com/dirk.krummacker/contacts/internal/model"
	"gitlab.com/dirk.krummacker/contacts/pkg/model"
)

const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
	opLaunch = "launch"
	opFetch  = "fetch"
)

// launchedKey marks in app_meta that the store has been launched before.
const launchedKey = "has_launched"

const insertContact = `
	INSERT INTO contacts (firstname, lastname, firstname_key, lastname_key,
		color_red, color_green, color_blue, color_alpha, birthday, zipcode, phone)
	VALUES (:firstname, :lastname, :firstname_key, :lastname_key,
		:color_red, :color_green, :color_blue, :color_alpha, :birthday, :zipcode, :phone)
`

const updateContact = `
	UPDATE contacts
	SET firstname = :firstname, lastname = :lastname,
		firstname_key = :firstname_key, lastname_key = :lastname_key,
		color_red = :color_red, color_green = :color_green,
		color_blue = :color_blue, color_alpha = :color_alpha,
		birthday = :birthday, zipcode = :zipcode, phone = :phone
	WHERE id = :id
`

// CreateContact validates the DTO and stores a new contact configured from it. The DTO is
// copied, so edits made after the call do not affect the stored contact. On failure nothing is
// stored: the future fails with a *model.MissingParametersError if validation fails and with a
// *TransactionError if the database rejects the insert or the commit.
func (g *Gateway) CreateContact(dto *model.DTO) *async.Future[model.Contact] {
	staged := dto.Clone()
	return perform(g, opCreate, func() (model.Contact, error) {
		if err := model.Validate(staged); err != nil {
			return model.Contact{}, err
		}
		return transact(g, opCreate, func(tx *sqlx.Tx) (model.Contact, error) {
			var contact model.Contact
			if err := contact.Configure(staged); err != nil {
				return model.Contact{}, err
			}
			r := row.FromContact(contact)
			result, err := tx.NamedExec(insertContact, &r)
			if err != nil {
				return model.Contact{}, &TransactionError{Op: opCreate, Err: err}
			}
			id, err := result.LastInsertId()
			if err != nil {
				return model.Contact{}, &TransactionError{Op: opCreate, Err: err}
			}
			contact.Id = id
			return contact, nil
		})
	}, func(c model.Contact) {
		g.events.publish(Event{Kind: Created, Ids: []int64{c.Id}})
	})
}

// FetchContacts returns the contacts matching the predicate as currently committed. It fails
// with ErrUnavailable only if the store cannot be read.
func (g *Gateway) FetchContacts(ctx context.Context, p Predicate, opts ...FetchOption) ([]model.Contact, error) {
	options := fetchOptions{orderby: "id", ascending: true}
	for _, opt := range opts {
		opt(&options)
	}
	order, err := options.orderClause()
	if err != nil {
		return nil, err
	}
	where, args := p.where()
	page, pageArgs := options.pageClause()
	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM contacts WHERE %s ORDER BY %s%s", row.Columns, where, order, page), append(args, pageArgs...)...)
	if err != nil {
		return nil, err
	}
	var rows []row.Contact
	if err := g.db.SelectContext(ctx, &rows, g.db.Rebind(query), args...); err != nil {
		g.metrics.ObserveFetch("error")
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	g.metrics.ObserveFetch("success")
	return toContacts(rows)
}

// UpdateContact loads the stored version of the existing contact inside a transaction, lets the
// mutator change it and writes it back. The future fails with ErrNotFound if the contact was
// deleted in the meantime. Errors of the mutator are passed through and nothing is written; a
// panicking mutator fails the future with a *TransactionError. A nil mutator fails with
// ErrNoMutation.
func (g *Gateway) UpdateContact(existing model.Contact, mutate func(c *model.Contact) error) *async.Future[model.Contact] {
	id := existing.Id
	if mutate == nil {
		return async.Failed[model.Contact](g.dispatcher, ErrNoMutation)
	}
	return perform(g, opUpdate, func() (model.Contact, error) {
		return transact(g, opUpdate, func(tx *sqlx.Tx) (model.Contact, error) {
			contact, err := loadContact(tx, id)
			if err != nil {
				return model.Contact{}, err
			}
			if err := mutate(&contact); err != nil {
				return model.Contact{}, err
			}
			contact.Id = id
			if err := model.ValidateContact(contact); err != nil {
				return model.Contact{}, err
			}
			r := row.FromContact(contact)
			if _, err := tx.NamedExec(updateContact, &r); err != nil {
				return model.Contact{}, &TransactionError{Op: opUpdate, Err: err}
			}
			return contact, nil
		})
	}, func(c model.Contact) {
		g.events.publish(Event{Kind: Updated, Ids: []int64{c.Id}})
	})
}

// DeleteContacts removes the given contacts. Contacts that are already gone are ignored.
func (g *Gateway) DeleteContacts(contacts []model.Contact) *async.Future[struct{}] {
	ids := make([]int64, 0, len(contacts))
	for _, c := range contacts {
		ids = append(ids, c.Id)
	}
	return g.DeleteWhere(IDs(ids...))
}

// DeleteWhere removes every contact matching the predicate. Matching nothing is a success.
func (g *Gateway) DeleteWhere(p Predicate) *async.Future[struct{}] {
	var deleted []int64
	return perform(g, opDelete, func() (struct{}, error) {
		deleted = nil
		return transact(g, opDelete, func(tx *sqlx.Tx) (struct{}, error) {
			where, args := p.where()
			query, args, err := sqlx.In("SELECT id FROM contacts WHERE "+where, args...)
			if err != nil {
				return struct{}{}, &TransactionError{Op: opDelete, Err: err}
			}
			var ids []int64
			if err := tx.Select(&ids, tx.Rebind(query), args...); err != nil {
				return struct{}{}, &TransactionError{Op: opDelete, Err: err}
			}
			if len(ids) == 0 {
				return struct{}{}, nil
			}
			query, args, err = sqlx.In("DELETE FROM contacts WHERE id IN (?)", ids)
			if err != nil {
				return struct{}{}, &TransactionError{Op: opDelete, Err: err}
			}
			if _, err := tx.Exec(tx.Rebind(query), args...); err != nil {
				return struct{}{}, &TransactionError{Op: opDelete, Err: err}
			}
			deleted = ids
			return struct{}{}, nil
		})
	}, func(struct{}) {
		if len(deleted) > 0 {
			g.events.publish(Event{Kind: Deleted, Ids: deleted})
		}
	})
}

// FirstLaunch records that the store has been launched. It resolves to true only for the very
// first call against a database.
func (g *Gateway) FirstLaunch() *async.Future[bool] {
	return perform(g, opLaunch, func() (bool, error) {
		return transact(g, opLaunch, func(tx *sqlx.Tx) (bool, error) {
			var count int
			if err := tx.Get(&count, `SELECT COUNT(*) FROM app_meta WHERE meta_key = ?`, launchedKey); err != nil {
				return false, &TransactionError{Op: opLaunch, Err: err}
			}
			if count > 0 {
				return false, nil
			}
			_, err := tx.Exec(`INSERT INTO app_meta (meta_key, meta_value) VALUES (?, ?)`,
				launchedKey, time.Now().UTC().Format(time.RFC3339))
			if err != nil {
				return false, &TransactionError{Op: opLaunch, Err: err}
			}
			return true, nil
		})
	}, nil)
}

// loadContact reads the transactional view of a contact.
func loadContact(tx *sqlx.Tx, id int64) (model.Contact, error) {
	var r row.Contact
	err := tx.Get(&r, fmt.Sprintf("SELECT %s FROM contacts WHERE id = ?", row.Columns), id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contact{}, ErrNotFound
	}
	if err != nil {
		return model.Contact{}, &TransactionError{Op: opUpdate, Err: err}
	}
	contact, err := r.ToContact()
	if err != nil {
		return model.Contact{}, &TransactionError{Op: opUpdate, Err: err}
	}
	return contact, nil
}

func toContacts(rows []row.Contact) ([]model.Contact, error) {
	contacts := make([]model.Contact, 0, len(rows))
	for _, r := range rows {
		c, err := r.ToContact()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", opFetch, err)
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}
