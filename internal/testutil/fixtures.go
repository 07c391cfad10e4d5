package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/export"
)

// ReferenceTime is the fixed "now" used across tests.
var ReferenceTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// Clock is a settable test clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock stopped at t.
func NewClock(t time.Time) *Clock { return &Clock{now: t} }

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SequentialIDs returns a generator yielding prefix-1, prefix-2, ...
func SequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// SnackProfile returns a small Food & Beverage exporter of dried fruit
// snacks. Tests mutate the returned copy freely.
func SnackProfile(id string) *business.Profile {
	return &business.Profile{
		ID:               id,
		Name:             "Sunny Snacks Ltd",
		Website:          "https://sunnysnacks.example",
		Industry:         "Food & Beverage",
		Size:             business.SizeSmall,
		ExportExperience: business.ExperienceLimited,
		Products: []business.Product{
			{ID: "p-mango", Name: "Dried Mango", Category: "Snacks"},
		},
		Certifications: []business.Certification{
			{ID: "c-haccp", Name: "HACCP"},
		},
	}
}

// ElectronicsProfile returns a profile with nothing in common with
// SnackProfile.
func ElectronicsProfile(id string) *business.Profile {
	return &business.Profile{
		ID:               id,
		Name:             "Volt Components",
		Industry:         "Electronics",
		Size:             business.SizeLarge,
		ExportExperience: business.ExperienceExtensive,
		Products: []business.Product{
			{ID: "p-pcb", Name: "Printed circuit boards", Category: "Components"},
		},
	}
}

// Outcome returns a valid outcome for profile in market.
func Outcome(profile *business.Profile, market, strategy string, successful bool, timelineDays int, factors ...string) *export.Outcome {
	return &export.Outcome{
		BusinessID:      profile.ID,
		BusinessProfile: profile,
		Market:          market,
		Products:        []string{"p-mango"},
		EntryStrategy:   strategy,
		LogisticsModel:  "3PL",
		Results: export.Results{
			Successful:     successful,
			TimelineDays:   timelineDays,
			SuccessFactors: factors,
		},
	}
}
