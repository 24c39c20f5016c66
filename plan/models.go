// Package plan defines the subscription tiers a subject can hold and the
// immutable registry they are served from.
package plan

import (
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/xraph/entitle/types"
)

// FreeID is the id of the tier every subject starts on and falls back to.
const FreeID = "free"

// Term is how long a purchase of a plan lasts.
type Term string

const (
	TermMonthly   Term = "monthly"
	TermAnnual    Term = "annual"
	TermPerpetual Term = "perpetual"
)

// Valid reports whether t is a known term.
func (t Term) Valid() bool {
	switch t {
	case TermMonthly, TermAnnual, TermPerpetual:
		return true
	}
	return false
}

// Mode is a simplification mode requested by the client.
type Mode string

const (
	ModeSimple    Mode = "simple"
	ModeShort     Mode = "short"
	ModeKeyPoints Mode = "key_points"
	ModeExamples  Mode = "examples"
)

// AllModes lists the modes the service understands.
var AllModes = []Mode{ModeSimple, ModeShort, ModeKeyPoints, ModeExamples}

// Plan is a tier definition. Plans are values; once placed in a Registry
// they are never mutated.
type Plan struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	MaxChars          int         `json:"max_chars"`
	MaxRequests       int         `json:"max_requests"`
	AISettingsEnabled bool        `json:"ai_settings_enabled"`
	Price             types.Money `json:"price"`
	Term              Term        `json:"term"`
	// Modes restricts the simplification modes; empty allows all.
	Modes []Mode `json:"modes,omitempty"`
}

// IsFree reports whether p is the fallback tier.
func (p Plan) IsFree() bool { return p.ID == FreeID }

// AllowsMode reports whether the plan permits mode m.
func (p Plan) AllowsMode(m Mode) bool {
	if len(p.Modes) == 0 {
		return true
	}
	return slices.Contains(p.Modes, m)
}

// AllowsLength reports whether text fits within MaxChars, counted in runes.
func (p Plan) AllowsLength(text string) bool {
	return utf8.RuneCountInString(text) <= p.MaxChars
}

// Remaining returns how many requests are left after used, never negative.
func (p Plan) Remaining(used int) int {
	return max(0, p.MaxRequests-used)
}

func (p Plan) validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("plan: empty id")
	case p.MaxChars < 0:
		return fmt.Errorf("plan %q: negative max_chars", p.ID)
	case p.MaxRequests < 0:
		return fmt.Errorf("plan %q: negative max_requests", p.ID)
	case p.Price.Amount < 0:
		return fmt.Errorf("plan %q: negative price", p.ID)
	case !p.Term.Valid():
		return fmt.Errorf("plan %q: unknown term %q", p.ID, p.Term)
	}
	for _, m := range p.Modes {
		if !slices.Contains(AllModes, m) {
			return fmt.Errorf("plan %q: unknown mode %q", p.ID, m)
		}
	}
	return nil
}

// Definition is the configuration shape of a plan. Prices are written in
// major units ("199.00") so catalog files stay readable.
type Definition struct {
	ID                string   `json:"id" yaml:"id" mapstructure:"id"`
	Name              string   `json:"name" yaml:"name" mapstructure:"name"`
	MaxChars          int      `json:"max_chars" yaml:"max_chars" mapstructure:"max_chars"`
	MaxRequests       int      `json:"max_requests" yaml:"max_requests" mapstructure:"max_requests"`
	AISettingsEnabled bool     `json:"ai_settings_enabled" yaml:"ai_settings_enabled" mapstructure:"ai_settings_enabled"`
	Price             string   `json:"price" yaml:"price" mapstructure:"price"`
	Currency          string   `json:"currency" yaml:"currency" mapstructure:"currency"`
	Term              string   `json:"term" yaml:"term" mapstructure:"term"`
	Modes             []string `json:"modes,omitempty" yaml:"modes,omitempty" mapstructure:"modes"`
}

// Plan converts the definition into a Plan. Currency defaults to RUB and
// term to monthly.
func (d Definition) Plan() (Plan, error) {
	currency := d.Currency
	if currency == "" {
		currency = "rub"
	}
	price, err := types.ParseMajor(d.Price, currency)
	if err != nil {
		return Plan{}, fmt.Errorf("plan %q: %w", d.ID, err)
	}
	term := Term(d.Term)
	if term == "" {
		term = TermMonthly
	}

	p := Plan{
		ID:                d.ID,
		Name:              d.Name,
		MaxChars:          d.MaxChars,
		MaxRequests:       d.MaxRequests,
		AISettingsEnabled: d.AISettingsEnabled,
		Price:             price,
		Term:              term,
	}
	for _, m := range d.Modes {
		p.Modes = append(p.Modes, Mode(m))
	}
	return p, p.validate()
}

// DefinitionOf converts p back into its configuration shape.
func DefinitionOf(p Plan) Definition {
	d := Definition{
		ID:                p.ID,
		Name:              p.Name,
		MaxChars:          p.MaxChars,
		MaxRequests:       p.MaxRequests,
		AISettingsEnabled: p.AISettingsEnabled,
		Price:             p.Price.FormatMajor(),
		Currency:          p.Price.Currency,
		Term:              string(p.Term),
	}
	for _, m := range p.Modes {
		d.Modes = append(d.Modes, string(m))
	}
	return d
}
