package schedule

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk layout read by LoadRulesYAML:
//
//	rules:
//	  - day: 1
//	    start: "18:00"
//	    end: "19:00"
//	    label: Evening class
type ruleFile struct {
	Rules []struct {
		Day    int     `yaml:"day"`
		Start  string  `yaml:"start"`
		End    string  `yaml:"end"`
		Active *bool   `yaml:"active"`
		Label  *string `yaml:"label"`
	} `yaml:"rules"`
}

// LoadRulesYAML decodes and validates rules from r. Rules are active unless
// stated otherwise; an end of "24:00" means the following midnight.
func LoadRulesYAML(r io.Reader) ([]Rule, error) {
	var f ruleFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}

	rules := make([]Rule, 0, len(f.Rules))
	for i, raw := range f.Rules {
		start, err := parseClock(raw.Start)
		if err != nil {
			return nil, fmt.Errorf("rule %d start: %w", i, err)
		}
		end, err := parseClock(raw.End)
		if err != nil {
			return nil, fmt.Errorf("rule %d end: %w", i, err)
		}
		rule := Rule{
			DayOfWeek:    raw.Day,
			StartMinutes: start,
			EndMinutes:   end,
			Active:       raw.Active == nil || *raw.Active,
			Label:        raw.Label,
		}
		if err := Validate(rule); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// parseClock converts HH:MM into minutes after midnight.
func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidRule, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("%w: hour in %q", ErrInvalidRule, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: minute in %q", ErrInvalidRule, s)
	}
	if h < 0 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("%w: hour in %q", ErrInvalidRule, s)
	}
	return h*60 + m, nil
}
