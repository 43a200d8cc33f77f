package meanstest

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"bankruptcy-workers/internal/common/errors"
	"bankruptcy-workers/internal/models"
)

//go:embed tables/default.yaml
var defaultTablesYAML []byte

// DefaultStatutoryFloor is the 60-month disposable income floor used when the
// tables do not carry one. It is revised periodically by statute.
var DefaultStatutoryFloor = decimal.NewFromInt(8175)

// Tables holds every statutory lookup the calculator needs. Median income,
// housing and utilities lists are indexed by household size starting at 1;
// transportation is indexed by vehicle count starting at 0.
type Tables struct {
	EffectiveDate     string                     `yaml:"effectiveDate"`
	StatutoryFloor    decimal.Decimal            `yaml:"statutoryFloor"`
	MedianIncome      MedianIncomeTable          `yaml:"medianIncome"`
	NationalStandards []models.NationalStandards `yaml:"nationalStandards"`
	LocalStandards    LocalStandardsTable        `yaml:"localStandards"`
}

type MedianIncomeTable struct {
	Default []decimal.Decimal            `yaml:"default"`
	States  map[string][]decimal.Decimal `yaml:"states"`
}

type LocalSchedule struct {
	Housing        []decimal.Decimal `yaml:"housing"`
	Utilities      []decimal.Decimal `yaml:"utilities"`
	Transportation []decimal.Decimal `yaml:"transportation"`
}

type StateLocalStandards struct {
	Default  *LocalSchedule           `yaml:"default"`
	Counties map[string]LocalSchedule `yaml:"counties"`
}

type LocalStandardsTable struct {
	National LocalSchedule                  `yaml:"national"`
	States   map[string]StateLocalStandards `yaml:"states"`
}

// DefaultTables returns the embedded tables.
func DefaultTables() (*Tables, error) {
	return ParseTables(defaultTablesYAML)
}

// LoadTables reads tables from path, or the embedded defaults when path is
// empty.
func LoadTables(path string) (*Tables, error) {
	if path == "" {
		return DefaultTables()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewStatutoryTablesInvalidError(fmt.Sprintf("read %s: %v", path, err))
	}
	return ParseTables(data)
}

func ParseTables(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.NewStatutoryTablesInvalidError(err.Error())
	}
	t.normalizeKeys()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// WithStatutoryFloor returns a copy of t using floor when it is positive.
func (t *Tables) WithStatutoryFloor(floor decimal.Decimal) *Tables {
	if !floor.IsPositive() {
		return t
	}
	cp := *t
	cp.StatutoryFloor = floor
	return &cp
}

func (t *Tables) Floor() decimal.Decimal {
	if t.StatutoryFloor.IsPositive() {
		return t.StatutoryFloor
	}
	return DefaultStatutoryFloor
}

func (t *Tables) Validate() error {
	var problems []string
	if len(t.MedianIncome.Default) == 0 {
		problems = append(problems, "medianIncome.default is empty")
	}
	for state, row := range t.MedianIncome.States {
		if len(row) == 0 {
			problems = append(problems, fmt.Sprintf("medianIncome.states.%s is empty", state))
		}
	}
	if len(t.NationalStandards) == 0 {
		problems = append(problems, "nationalStandards is empty")
	}
	if err := t.LocalStandards.National.validate(); err != nil {
		problems = append(problems, "localStandards.national: "+err.Error())
	}
	for state, s := range t.LocalStandards.States {
		if s.Default != nil {
			if err := s.Default.validate(); err != nil {
				problems = append(problems, fmt.Sprintf("localStandards.states.%s.default: %v", state, err))
			}
		}
		for county, c := range s.Counties {
			if err := c.validate(); err != nil {
				problems = append(problems, fmt.Sprintf("localStandards.states.%s.counties.%s: %v", state, county, err))
			}
		}
	}
	if t.StatutoryFloor.IsNegative() {
		problems = append(problems, "statutoryFloor is negative")
	}
	if len(problems) > 0 {
		return errors.NewStatutoryTablesInvalidError(strings.Join(problems, "; "))
	}
	return nil
}

func (s LocalSchedule) validate() error {
	switch {
	case len(s.Housing) == 0:
		return fmt.Errorf("housing is empty")
	case len(s.Utilities) == 0:
		return fmt.Errorf("utilities is empty")
	case len(s.Transportation) == 0:
		return fmt.Errorf("transportation is empty")
	}
	return nil
}

func (t *Tables) normalizeKeys() {
	medians := make(map[string][]decimal.Decimal, len(t.MedianIncome.States))
	for k, v := range t.MedianIncome.States {
		medians[stateKey(k)] = v
	}
	t.MedianIncome.States = medians

	states := make(map[string]StateLocalStandards, len(t.LocalStandards.States))
	for k, v := range t.LocalStandards.States {
		counties := make(map[string]LocalSchedule, len(v.Counties))
		for ck, cv := range v.Counties {
			counties[countyKey(ck)] = cv
		}
		v.Counties = counties
		states[stateKey(k)] = v
	}
	t.LocalStandards.States = states
}

func stateKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func countyKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, " county")
	return strings.Join(strings.Fields(s), " ")
}

// pick returns row[i] clamped into range and whether clamping happened.
func pick(row []decimal.Decimal, i int) (decimal.Decimal, bool) {
	if len(row) == 0 {
		return decimal.Zero, true
	}
	if i < 0 {
		return row[0], true
	}
	if i >= len(row) {
		return row[len(row)-1], true
	}
	return row[i], false
}
