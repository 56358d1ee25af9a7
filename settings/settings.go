// Package settings holds the car pool's shared configuration: the cars that
// can be booked, the usual destinations and the price per kilometre.
package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type Car struct {
	ID   string `toml:"id" json:"id"`
	Name string `toml:"name" json:"name"`
}

// Destination is a frequent trip target. Distance is the one-way trip in km.
type Destination struct {
	ID        string  `toml:"id" json:"id"`
	Name      string  `toml:"name" json:"name"`
	ShortName string  `toml:"short_name" json:"shortName"`
	Distance  float64 `toml:"distance" json:"distance"`
}

type Settings struct {
	CostPerKm    float64       `toml:"cost_per_km"`
	Cars         []Car         `toml:"cars"`
	Destinations []Destination `toml:"destinations"`
}

// Car returns the car with the given id.
func (s Settings) Car(id string) (Car, bool) {
	for _, c := range s.Cars {
		if c.ID == id {
			return c, true
		}
	}
	return Car{}, false
}

// CarIDs returns the car ids in configured order.
func (s Settings) CarIDs() []string {
	ids := make([]string, 0, len(s.Cars))
	for _, c := range s.Cars {
		ids = append(ids, c.ID)
	}
	return ids
}

// Destination looks a destination up by id or by name, ignoring case.
func (s Settings) Destination(name string) (Destination, bool) {
	for _, d := range s.Destinations {
		if d.ID == name || strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return Destination{}, false
}

// Validate checks ids are present and unique and that amounts are not
// negative.
func (s Settings) Validate() error {
	var errs []error
	if s.CostPerKm < 0 {
		errs = append(errs, errors.New("cost_per_km cannot be negative"))
	}

	cars := make(map[string]bool, len(s.Cars))
	for i, c := range s.Cars {
		switch {
		case c.ID == "":
			errs = append(errs, fmt.Errorf("cars[%d]: id is required", i))
		case cars[c.ID]:
			errs = append(errs, fmt.Errorf("cars[%d]: duplicate id %q", i, c.ID))
		}
		cars[c.ID] = true
	}

	dests := make(map[string]bool, len(s.Destinations))
	for i, d := range s.Destinations {
		switch {
		case d.ID == "":
			errs = append(errs, fmt.Errorf("destinations[%d]: id is required", i))
		case dests[d.ID]:
			errs = append(errs, fmt.Errorf("destinations[%d]: duplicate id %q", i, d.ID))
		}
		dests[d.ID] = true
		if d.Distance < 0 {
			errs = append(errs, fmt.Errorf("destinations[%d]: distance cannot be negative", i))
		}
	}

	return errors.Join(errs...)
}

// Parse decodes and validates a TOML settings document.
func Parse(data []byte) (Settings, error) {
	var s Settings
	if err := toml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parsing settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// Source yields the current settings. Handlers load them per request so a
// changed file takes effect without a restart.
type Source interface {
	Load(ctx context.Context) (Settings, error)
}

// File reads settings from a TOML file on every Load.
type File struct {
	Path string
}

func (f File) Load(_ context.Context) (Settings, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Settings{}, fmt.Errorf("reading settings: %w", err)
	}
	return Parse(data)
}

// Static always returns the same settings.
type Static Settings

func (s Static) Load(_ context.Context) (Settings, error) {
	return Settings(s), nil
}
