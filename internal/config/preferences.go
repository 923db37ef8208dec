package config

import (
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"taskcal/internal/model"
)

// Preferences are the calendar display settings a client persists between
// sessions. The scheduler never reads them.
type Preferences struct {
	// BadgeVariant is "colored" (default) or "dot".
	BadgeVariant string `yaml:"badge_variant" json:"badge_variant"`
	// View is the last active calendar view.
	View model.View `yaml:"view" json:"view"`
	// Use24Hour selects 24-hour time display.
	Use24Hour bool `yaml:"use_24_hour" json:"use_24_hour"`
	// AgendaGroupBy is "date" (default) or "color".
	AgendaGroupBy string `yaml:"agenda_group_by" json:"agenda_group_by"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		BadgeVariant:  "colored",
		View:          model.ViewDay,
		Use24Hour:     true,
		AgendaGroupBy: "date",
	}
}

// Normalize replaces unknown values with defaults.
func (p *Preferences) Normalize() {
	def := DefaultPreferences()
	if p.BadgeVariant != "dot" && p.BadgeVariant != "colored" {
		p.BadgeVariant = def.BadgeVariant
	}
	if _, err := model.ParseView(string(p.View)); err != nil {
		p.View = def.View
	}
	if p.AgendaGroupBy != "date" && p.AgendaGroupBy != "color" {
		p.AgendaGroupBy = def.AgendaGroupBy
	}
}

// LoadPreferences reads preferences from path, returning defaults when the
// file does not exist yet.
func LoadPreferences(path string) (Preferences, error) {
	if path == "" {
		return Preferences{}, errors.New("preferences path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultPreferences(), nil
		}
		return Preferences{}, err
	}

	prefs := DefaultPreferences()
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return Preferences{}, err
	}
	prefs.Normalize()
	return prefs, nil
}

// SavePreferences normalizes and atomically writes prefs to path.
func SavePreferences(path string, prefs Preferences) (Preferences, error) {
	if path == "" {
		return prefs, errors.New("preferences path is empty")
	}
	prefs.Normalize()
	data, err := yaml.Marshal(prefs)
	if err != nil {
		return prefs, err
	}
	return prefs, writeFileAtomic(path, data)
}
