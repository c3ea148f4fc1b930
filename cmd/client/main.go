package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"gitlab.com/dirk.krummacker/contacts/internal/config"
	"gitlab.com/dirk.krummacker/contacts/internal/service"
	"gitlab.com/dirk.krummacker/contacts/pkg/model"
)

// Usage example on the command line:
// > go run main.go
// > go run main.go -dir=/tmp/bench
func main() {
	dirPtr := flag.String("dir", "", "the directory for the benchmark database (default: a temporary directory)")
	flag.Parse()

	dir := *dirPtr
	if dir == "" {
		var err error
		dir, err = os.MkdirTemp("", "contacts-bench")
		if err != nil {
			fmt.Println("could not create temporary directory", err)
			panic(err)
		}
		defer os.RemoveAll(dir)
	}
	cfg := config.Store{Driver: "sqlite", Path: filepath.Join(dir, "Database.sqlite")}
	gw, err := service.Open(cfg, service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		fmt.Println("could not open store", err)
		panic(err)
	}
	defer gw.Close()

	fmt.Println()
	fmt.Println("  Elements    CREATE    UPDATE     FETCH    DELETE ")
	fmt.Println("---------------------------------------------------")
	sizes := []int{100, 500, 1000, 5000}
	for _, loops := range sizes {
		fmt.Printf("%10d", loops)
		contacts := make([]model.Contact, 0, loops)
		{
			// create transactions
			var duration time.Duration
			for i := 0; i < loops; i++ {
				contact, d := create(gw)
				contacts = append(contacts, contact)
				duration += d
			}
			printAverage(duration, loops)
		}
		{
			// update transactions
			f := func(c model.Contact) time.Duration {
				before := time.Now()
				must(gw.UpdateContact(c, func(c *model.Contact) error {
					model.PhoneNumberField.Set(c, "+39 999 777 555")
					return nil
				}).Wait(context.Background()))
				return time.Since(before)
			}
			callInLoop(contacts, f)
		}
		{
			// fetches by name
			f := func(c model.Contact) time.Duration {
				before := time.Now()
				must(gw.FetchContacts(context.Background(), service.NameEquals(c.FirstName, c.LastName)))
				return time.Since(before)
			}
			callInLoop(contacts, f)
		}
		{
			// delete transactions
			f := func(c model.Contact) time.Duration {
				before := time.Now()
				must(gw.DeleteContacts([]model.Contact{c}).Wait(context.Background()))
				return time.Since(before)
			}
			callInLoop(contacts, f)
		}
		fmt.Println()
	}
}

func create(gw *service.Gateway) (model.Contact, time.Duration) {
	dto := model.NewDTO()
	model.SetValue(dto, model.FirstNameField, "Marcus")
	model.SetValue(dto, model.LastNameField, fmt.Sprintf("Antonius %d", rand.IntN(1_000_000)))
	model.SetValue(dto, model.DateOfBirthField, time.Date(27, time.November, 9, 0, 0, 0, 0, time.UTC))
	before := time.Now()
	contact := must(gw.CreateContact(dto).Wait(context.Background()))
	return contact, time.Since(before)
}

// callInLoop runs f once for every contact, in random order, and prints the average duration.
func callInLoop(contacts []model.Contact, f func(c model.Contact) time.Duration) {
	shuffled := make([]model.Contact, len(contacts))
	copy(shuffled, contacts)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	var duration time.Duration
	for _, c := range shuffled {
		duration += f(c)
	}
	printAverage(duration, len(contacts))
}

// printAverage prints the average duration in microseconds.
func printAverage(duration time.Duration, loops int) {
	fmt.Printf("%10d", duration.Microseconds()/int64(loops))
}

func must[T any](value T, err error) T {
	if err != nil {
		fmt.Println("benchmark operation failed", err)
		panic(err)
	}
	return value
}
