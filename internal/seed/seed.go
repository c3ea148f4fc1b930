package seed

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"gitlab.com/dirk.krummacker/contacts/internal/async"
	"gitlab.com/dirk.krummacker/contacts/internal/service"
	"gitlab.com/dirk.krummacker/contacts/pkg/model"
)

// Store is the part of the gateway the seeder needs.
type Store interface {
	FirstLaunch() *async.Future[bool]
	CreateContact(dto *model.DTO) *async.Future[model.Contact]
	Publish(e service.Event)
}

// Samples are the contacts stored on the first launch of an empty database.
var Samples = []struct{ FirstName, LastName string }{
	{"Anders", "Melen"},
	{"Albert", "Einstein"},
	{"Jane", "Goodall"},
	{"Enrico", "Fermi"},
	{"Flossie", "Wong-Staal"},
	{"Lise", "Meitner"},
	{"Niels", "Bohr"},
	{"Werner", "Heisenberg"},
	{"Max", "Planck"},
	{"Isaac", "Newton"},
}

// Seed stores the sample contacts if this is the first launch of the store. All samples are
// submitted at once; after every one of them has been stored a single Reload event tells the
// subscribers to fetch again. Later launches do nothing and return false.
func Seed(ctx context.Context, store Store, logger *slog.Logger) (bool, error) {
	first, err := store.FirstLaunch().Wait(ctx)
	if err != nil {
		return false, fmt.Errorf("check first launch: %w", err)
	}
	if !first {
		logger.Debug("contacts already seeded")
		return false, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, sample := range Samples {
		dto := model.NewDTO()
		model.SetValue(dto, model.FirstNameField, sample.FirstName)
		model.SetValue(dto, model.LastNameField, sample.LastName)
		future := store.CreateContact(dto)
		g.Go(func() error {
			if _, err := future.Wait(ctx); err != nil {
				return fmt.Errorf("seed %s %s: %w", sample.FirstName, sample.LastName, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return true, err
	}

	store.Publish(service.Event{Kind: service.Reload})
	logger.Info("seeded sample contacts", "count", len(Samples))
	return true, nil
}
