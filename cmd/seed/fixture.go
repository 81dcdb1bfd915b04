package main

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

type Fixture struct {
	Tournaments []TournamentFixture `yaml:"tournaments"`
	// Practice matches belong to no tournament.
	Matches []MatchFixture `yaml:"matches"`
}

type TournamentFixture struct {
	Name     string         `yaml:"name"`
	PurseCap int64          `yaml:"purse_cap"`
	Teams    []string       `yaml:"teams"`
	Lots     []LotFixture   `yaml:"lots"`
	Matches  []MatchFixture `yaml:"matches"`
}

type LotFixture struct {
	Player    string `yaml:"player"`
	BasePrice int64  `yaml:"base_price"`
}

type MatchFixture struct {
	TeamA []string `yaml:"team_a"`
	TeamB []string `yaml:"team_b"`
}

// Seeded lists the ids created for a fixture, in fixture order.
type Seeded struct {
	Tournaments []SeededTournament `yaml:"tournaments"`
	Matches     []string           `yaml:"matches,omitempty"`
}

type SeededTournament struct {
	ID      string            `yaml:"id"`
	Name    string            `yaml:"name"`
	Teams   map[string]string `yaml:"teams"`
	Lots    map[string]string `yaml:"lots"`
	Matches []string          `yaml:"matches,omitempty"`
}

func parseFixture(data []byte) (*Fixture, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f Fixture
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Fixture) validate() error {
	if len(f.Tournaments) == 0 && len(f.Matches) == 0 {
		return errors.New("fixture is empty")
	}
	for i, t := range f.Tournaments {
		if t.Name == "" {
			return fmt.Errorf("tournament %d: name is required", i)
		}
		if t.PurseCap < 0 {
			return fmt.Errorf("tournament %q: purse_cap must be non-negative", t.Name)
		}
		seen := map[string]bool{}
		for _, team := range t.Teams {
			if seen[team] {
				return fmt.Errorf("tournament %q: duplicate team %q", t.Name, team)
			}
			seen[team] = true
		}
		for _, lot := range t.Lots {
			if lot.Player == "" || lot.BasePrice < 0 {
				return fmt.Errorf("tournament %q: lot needs a player and a non-negative base_price", t.Name)
			}
		}
		for j, m := range t.Matches {
			if err := m.validate(); err != nil {
				return fmt.Errorf("tournament %q match %d: %w", t.Name, j, err)
			}
		}
	}
	for j, m := range f.Matches {
		if err := m.validate(); err != nil {
			return fmt.Errorf("match %d: %w", j, err)
		}
	}
	return nil
}

func (m MatchFixture) validate() error {
	if len(m.TeamA) == 0 || len(m.TeamB) == 0 {
		return errors.New("team_a and team_b need at least one player")
	}
	return nil
}
