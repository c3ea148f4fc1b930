package service

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/dirk.krummacker/contacts/internal/async"
	"gitlab.com/dirk.krummacker/contacts/internal/config"
	"gitlab.com/dirk.krummacker/contacts/pkg/model"
)

// storeConfig returns the configuration of an embedded store in a fresh temporary directory.
func storeConfig(t *testing.T) config.Store {
	return config.Store{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "data", "Database.sqlite")}
}

// openGateway opens an embedded store that is closed when the test ends.
func openGateway(t *testing.T, cfg config.Store, opts ...Option) *Gateway {
	gw, err := Open(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })
	return gw
}

// createContact stores a contact with the given names and fails the test on error.
func createContact(t *testing.T, gw *Gateway, first, last string) model.Contact {
	contact, err := wait(t, gw.CreateContact(stagedDTO(first, last)))
	require.NoError(t, err)
	return contact
}

// fetch runs a fetch and fails the test on error.
func fetch(t *testing.T, gw *Gateway, p Predicate, opts ...FetchOption) []model.Contact {
	contacts, err := gw.FetchContacts(context.Background(), p, opts...)
	require.NoError(t, err)
	return contacts
}

// names returns "first last" for every contact.
func names(contacts []model.Contact) []string {
	result := make([]string, 0, len(contacts))
	for _, c := range contacts {
		result = append(result, c.FirstName+" "+c.LastName)
	}
	return result
}

// TestSearchTerm inserts two contacts and searches case-insensitively for "and".
func TestSearchTerm(t *testing.T) {
	gw := openGateway(t, storeConfig(t))
	createContact(t, gw, "Anders", "Melen")
	createContact(t, gw, "Jane", "Goodall")

	assert.Equal(t, []string{"Anders Melen"}, names(fetch(t, gw, NameContains("and"))))
	assert.Equal(t, []string{"Anders Melen"}, names(fetch(t, gw, NameContains("AND"))))
	assert.Equal(t, []string{"Jane Goodall"}, names(fetch(t, gw, NameContains("dall"))))
	assert.Len(t, fetch(t, gw, NameContains("")), 2)
	assert.Empty(t, fetch(t, gw, NameContains("Einstein")))
}

// TestSearchTermDiacritics matches names regardless of accents, and treats wildcards literally.
func TestSearchTermDiacritics(t *testing.T) {
	gw := openGateway(t, storeConfig(t))
	createContact(t, gw, "Zoë", "Ångström")
	createContact(t, gw, "Rudi", "Völler")

	assert.Equal(t, []string{"Zoë Ångström"}, names(fetch(t, gw, NameContains("zoe"))))
	assert.Equal(t, []string{"Zoë Ångström"}, names(fetch(t, gw, NameContains("ANGST"))))
	assert.Equal(t, []string{"Rudi Völler"}, names(fetch(t, gw, NameContains("vöL"))))
	assert.Empty(t, fetch(t, gw, NameContains("%")))
	assert.Empty(t, fetch(t, gw, NameContains("_")))
}

// TestNameEqualsRequiresBothNames is the regression test for matching first AND last name; a
// contact that shares only one of the names must not be returned.
func TestNameEqualsRequiresBothNames(t *testing.T) {
	gw := openGateway(t, storeConfig(t))
	createContact(t, gw, "Anders", "Melen")
	createContact(t, gw, "Anders", "Celsius")
	createContact(t, gw, "Jane", "Melen")

	assert.Equal(t, []string{"Anders Melen"}, names(fetch(t, gw, NameEquals("Anders", "Melen"))))
	assert.Empty(t, fetch(t, gw, NameEquals("Jane", "Celsius")))
}

// TestNameEqualsIsExact does not match names that differ only in case or accents; the mysql
// schema declares both name columns with a binary collation to behave the same.
func TestNameEqualsIsExact(t *testing.T) {
	gw := openGateway(t, storeConfig(t))
	createContact(t, gw, "Ada", "Lovelace")
	createContact(t, gw, "ada", "LOVELACE")
	createContact(t, gw, "Adà", "Lovelace")

	assert.Equal(t, []string{"Ada Lovelace"}, names(fetch(t, gw, NameEquals("Ada", "Lovelace"))))

	_, err := wait(t, gw.DeleteWhere(NameEquals("Ada", "Lovelace")))
	require.NoError(t, err)
	assert.Equal(t, []string{"ada LOVELACE", "Adà Lovelace"}, names(fetch(t, gw, All())))
}

// TestCreateMissingFirstName expects a validation error listing exactly the missing parameter and
// no stored contact.
func TestCreateMissingFirstName(t *testing.T) {
	gw := openGateway(t, storeConfig(t))

	_, err := wait(t, gw.CreateContact(stagedDTO("", "Melen")))
	var missing *model.MissingParametersError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []model.Parameter{model.FirstName}, missing.Parameters)

	_, err = wait(t, gw.CreateContact(model.NewDTO()))
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []model.Parameter{model.FirstName, model.LastName}, missing.Parameters)

	assert.Empty(t, fetch(t, gw, All()))
}

// TestCreateMatchesDTO checks that the stored contact equals the DTO, with absent optional
// values staying absent.
func TestCreateMatchesDTO(t *testing.T) {
	gw := openGateway(t, storeConfig(t))
	dto := model.NewDTO()
	model.SetValue(dto, model.FirstNameField, "Lise")
	model.SetValue(dto, model.LastNameField, "Meitner")

	created, err := wait(t, gw.CreateContact(dto))
	require.NoError(t, err)
	assert.Equal(t, "Lise", created.FirstName)
	assert.Equal(t, "Meitner", created.LastName)
	assert.Equal(t, dto.Color(), created.Color)
	assert.Nil(t, created.DateOfBirth)
	assert.Nil(t, created.ZipCode)
	assert.Nil(t, created.PhoneNumber)

	stored := fetch(t, gw, IDs(created.Id))
	require.Len(t, stored, 1)
	assert.Equal(t, created, stored[0])
}

// TestRoundTrip projects a stored contact into a DTO and commits it unchanged, both as an update
// and as a new contact. All fields must come back identical.
func TestRoundTrip(t *testing.T) {
	gw := openGateway(t, storeConfig(t))
	dto := stagedDTO("Flossie", "Wong-Staal")
	model.SetValue(dto, model.DateOfBirthField, time.Date(1946, time.August, 27, 15, 4, 5, 0, time.Local))
	model.SetValue(dto, model.ZipCodeField, "92093")
	model.SetValue(dto, model.PhoneNumberField, "+1 858 534 2230")
	original, err := wait(t, gw.CreateContact(dto))
	require.NoError(t, err)

	updated, err := wait(t, gw.UpdateContact(original, func(c *model.Contact) error {
		return c.Configure(model.DTOFromContact(original))
	}))
	require.NoError(t, err)
	assert.Equal(t, original, updated)

	copied, err := wait(t, gw.CreateContact(model.DTOFromContact(original)))
	require.NoError(t, err)
	copied.Id = original.Id
	assert.Equal(t, original, copied)

	stored := fetch(t, gw, IDs(original.Id))
	require.Len(t, stored, 1)
	assert.Equal(t, original, stored[0])
}

// TestAdaLovelaceScenario creates a contact, adds a zip code, finds it by name, deletes it by
// name and finally expects an empty result.
func TestAdaLovelaceScenario(t *testing.T) {
	gw := openGateway(t, storeConfig(t))
	ada := createContact(t, gw, "Ada", "Lovelace")

	_, err := wait(t, gw.UpdateContact(ada, func(c *model.Contact) error {
		dto := model.DTOFromContact(*c)
		model.SetValue(dto, model.ZipCodeField, "10001")
		return c.Configure(dto)
	}))
	require.NoError(t, err)

	found := fetch(t, gw, NameEquals("Ada", "Lovelace"))
	require.Len(t, found, 1)
	require.NotNil(t, found[0].ZipCode)
	assert.Equal(t, "10001", *found[0].ZipCode)

	_, err = wait(t, gw.DeleteWhere(NameEquals("Ada", "Lovelace")))
	require.NoError(t, err)
	found = fetch(t, gw, NameEquals("Ada", "Lovelace"))
	assert.NotNil(t, found)
	assert.Empty(t, found)
}

// TestUpdateAfterConcurrentDelete submits a delete and an update of the same contact without
// waiting in between. The update must fail with ErrNotFound and leave nothing behind.
func TestUpdateAfterConcurrentDelete(t *testing.T) {
	gw := openGateway(t, storeConfig(t))
	niels := createContact(t, gw, "Niels", "Bohr")

	deleted := gw.DeleteContacts([]model.Contact{niels})
	updated := gw.UpdateContact(niels, func(c *model.Contact) error {
		c.LastName = "Bohr-Changed"
		return nil
	})

	_, err := wait(t, deleted)
	require.NoError(t, err)
	_, err = wait(t, updated)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, fetch(t, gw, All()))
	assert.Empty(t, fetch(t, gw, NameContains("Changed")))
}

// TestUpdateFailureLeavesRecord expects no partial mutation when the mutator or the validation
// fails.
func TestUpdateFailureLeavesRecord(t *testing.T) {
	gw := openGateway(t, storeConfig(t))
	planck := createContact(t, gw, "Max", "Planck")

	_, err := wait(t, gw.UpdateContact(planck, func(c *model.Contact) error {
		model.ZipCodeField.Set(c, "80539")
		c.LastName = ""
		return nil
	}))
	assert.ErrorIs(t, err, model.ErrParametersRequired)

	_, err = wait(t, gw.UpdateContact(planck, func(c *model.Contact) error {
		model.ZipCodeField.Set(c, "80539")
		return c.Configure(model.NewDTO())
	}))
	assert.ErrorIs(t, err, model.ErrParametersRequired)

	stored := fetch(t, gw, IDs(planck.Id))
	require.Len(t, stored, 1)
	assert.Equal(t, planck, stored[0])
}

// TestUpdatePanickingMutator fails the future instead of the writer, rolls the transaction back
// and keeps the gateway usable.
func TestUpdatePanickingMutator(t *testing.T) {
	gw := openGateway(t, storeConfig(t))
	isaac := createContact(t, gw, "Isaac", "Newton")

	_, err := wait(t, gw.UpdateContact(isaac, func(c *model.Contact) error {
		c.LastName = "Leibniz"
		var counts map[string]int
		counts["x"] = 1
		return nil
	}))
	assert.ErrorIs(t, err, ErrTransaction)
	assert.Contains(t, err.Error(), "panic")

	_, err = wait(t, gw.UpdateContact(isaac, nil))
	assert.ErrorIs(t, err, ErrNoMutation)

	assert.Equal(t, []model.Contact{isaac}, fetch(t, gw, All()))
	createContact(t, gw, "Gottfried", "Leibniz")
	assert.Len(t, fetch(t, gw, All()), 2)
}

// TestDeleteWhereNoMatchKeepsRecords succeeds without changing the stored contacts.
func TestDeleteWhereNoMatchKeepsRecords(t *testing.T) {
	gw := openGateway(t, storeConfig(t))
	createContact(t, gw, "Albert", "Einstein")
	createContact(t, gw, "Enrico", "Fermi")
	before := fetch(t, gw, All())

	_, err := wait(t, gw.DeleteWhere(NameEquals("Albert", "Fermi")))
	require.NoError(t, err)
	_, err = wait(t, gw.DeleteContacts(nil))
	require.NoError(t, err)
	assert.Equal(t, before, fetch(t, gw, All()))
}

// TestDeleteAll clears the whole store.
func TestDeleteAll(t *testing.T) {
	gw := openGateway(t, storeConfig(t))
	createContact(t, gw, "Albert", "Einstein")
	createContact(t, gw, "Enrico", "Fermi")

	_, err := wait(t, gw.DeleteWhere(All()))
	require.NoError(t, err)
	assert.Empty(t, fetch(t, gw, All()))
}

// TestOrderBy sorts by last name in both directions.
func TestOrderBy(t *testing.T) {
	gw := openGateway(t, storeConfig(t))
	createContact(t, gw, "Isaac", "Newton")
	createContact(t, gw, "Niels", "Bohr")
	createContact(t, gw, "Émile", "Borel")

	assert.Equal(t, []string{"Niels Bohr", "Émile Borel", "Isaac Newton"}, names(fetch(t, gw, All(), OrderBy("lastname", true))))
	assert.Equal(t, []string{"Isaac Newton", "Émile Borel", "Niels Bohr"}, names(fetch(t, gw, All(), OrderBy("lastname", false))))
	assert.Equal(t, []string{"Émile Borel", "Isaac Newton", "Niels Bohr"}, names(fetch(t, gw, All(), OrderBy("firstname", true))))
}

// TestPage returns a window of the sorted result.
func TestPage(t *testing.T) {
	gw := openGateway(t, storeConfig(t))
	createContact(t, gw, "Isaac", "Newton")
	createContact(t, gw, "Niels", "Bohr")
	createContact(t, gw, "Émile", "Borel")

	assert.Equal(t, []string{"Émile Borel"}, names(fetch(t, gw, All(), OrderBy("lastname", true), Page(1, 1))))
	assert.Equal(t, []string{"Émile Borel", "Isaac Newton"}, names(fetch(t, gw, All(), OrderBy("lastname", true), Page(0, 1))))
	assert.Equal(t, []string{"Isaac Newton", "Niels Bohr"}, names(fetch(t, gw, All(), Page(2, 0))))
	assert.Empty(t, fetch(t, gw, All(), Page(5, 3)))
}

// TestSubscribe receives a notification for every committed write.
func TestSubscribe(t *testing.T) {
	gw := openGateway(t, storeConfig(t))
	events, cancel := gw.Subscribe()
	defer cancel()

	werner := createContact(t, gw, "Werner", "Heisenberg")
	_, err := wait(t, gw.CreateContact(stagedDTO("", "")))
	require.Error(t, err)
	_, err = wait(t, gw.UpdateContact(werner, func(c *model.Contact) error { return nil }))
	require.NoError(t, err)
	_, err = wait(t, gw.DeleteContacts([]model.Contact{werner}))
	require.NoError(t, err)
	gw.Publish(Event{Kind: Reload})

	expected := []Event{
		{Kind: Created, Ids: []int64{werner.Id}},
		{Kind: Updated, Ids: []int64{werner.Id}},
		{Kind: Deleted, Ids: []int64{werner.Id}},
		{Kind: Reload},
	}
	for _, want := range expected {
		select {
		case got := <-events:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("missing %s event", want.Kind)
		}
	}

	cancel()
	_, open := <-events
	assert.False(t, open)
}

// TestCallbacksOnQueue checks that completion callbacks run exactly once on the dispatcher.
func TestCallbacksOnQueue(t *testing.T) {
	queue := async.NewQueue()
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go queue.Run(ctx)
	gw := openGateway(t, storeConfig(t), WithDispatcher(queue))

	var calls atomic.Int32
	results := make(chan error, 2)
	gw.CreateContact(stagedDTO("Jane", "Goodall")).OnComplete(func(c model.Contact, err error) {
		calls.Add(1)
		results <- err
	})
	gw.CreateContact(stagedDTO("Jane", "")).OnComplete(func(c model.Contact, err error) {
		calls.Add(1)
		results <- err
	})

	var errs []error
	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			errs = append(errs, err)
		case <-time.After(5 * time.Second):
			t.Fatal("callback was not dispatched")
		}
	}
	assert.ElementsMatch(t, []bool{true, false}, []bool{errs[0] == nil, errs[1] == nil})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

// TestFirstLaunch is true only once per database, also across reopening.
func TestFirstLaunch(t *testing.T) {
	cfg := storeConfig(t)
	gw, err := Open(cfg)
	require.NoError(t, err)
	first, err := wait(t, gw.FirstLaunch())
	require.NoError(t, err)
	assert.True(t, first)
	again, err := wait(t, gw.FirstLaunch())
	require.NoError(t, err)
	assert.False(t, again)
	require.NoError(t, gw.Close())

	reopened := openGateway(t, cfg)
	again, err = wait(t, reopened.FirstLaunch())
	require.NoError(t, err)
	assert.False(t, again)
}

// TestReopenKeepsContacts persists contacts across gateways on the same file.
func TestReopenKeepsContacts(t *testing.T) {
	cfg := storeConfig(t)
	gw, err := Open(cfg)
	require.NoError(t, err)
	created := createContact(t, gw, "Lise", "Meitner")
	require.NoError(t, gw.Close())

	reopened := openGateway(t, cfg)
	assert.Equal(t, []model.Contact{created}, fetch(t, reopened, All()))
}

// TestSchemaVersionMismatch refuses to open a database that carries another schema version.
func TestSchemaVersionMismatch(t *testing.T) {
	cfg := storeConfig(t)
	db, err := OpenDatabase(cfg)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	_, err = db.Exec(`UPDATE schema_version SET version = 'V0'`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(cfg)
	assert.ErrorIs(t, err, ErrInitialization)
}

// TestOpenUnsupportedDriver fails initialization for an unknown driver.
func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(config.Store{Driver: "oracle"})
	assert.ErrorIs(t, err, ErrInitialization)
}
