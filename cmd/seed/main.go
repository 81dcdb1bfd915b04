// Command seed loads tournaments, teams, lots and matches from a YAML fixture
// and prints the created ids as YAML.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"courtpulse/internal/config"
	"courtpulse/internal/logging"
	"courtpulse/internal/store"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type seedStore interface {
	CreateTournament(ctx context.Context, name string, purseCap int64) (*store.Tournament, error)
	CreateTeam(ctx context.Context, tournamentID, name string) (*store.Team, error)
	CreateLot(ctx context.Context, tournamentID, playerName string, basePrice int64) (*store.Lot, error)
	CreateMatch(ctx context.Context, p store.CreateMatchParams) (*store.Match, error)
}

func main() {
	path := flag.String("f", "fixtures/seed.yaml", "fixture file")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(logCfg); err != nil {
		panic(err)
	}
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal().Err(err).Msg("load server config failed")
	}

	data, err := os.ReadFile(*path)
	if err != nil {
		log.Fatal().Err(err).Str("path", *path).Msg("read fixture failed")
	}
	fixture, err := parseFixture(data)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid fixture")
	}

	st, err := store.New(cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer st.Close()

	out, err := seed(context.Background(), st, fixture)
	if err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		log.Fatal().Err(err).Msg("write result failed")
	}
	_ = enc.Close()
}

func seed(ctx context.Context, st seedStore, f *Fixture) (*Seeded, error) {
	out := &Seeded{}
	for _, tf := range f.Tournaments {
		t, err := st.CreateTournament(ctx, tf.Name, tf.PurseCap)
		if err != nil {
			return nil, fmt.Errorf("tournament %q: %w", tf.Name, err)
		}
		seeded := SeededTournament{ID: t.ID, Name: t.Name, Teams: map[string]string{}, Lots: map[string]string{}}
		for _, name := range tf.Teams {
			team, err := st.CreateTeam(ctx, t.ID, name)
			if err != nil {
				return nil, fmt.Errorf("team %q: %w", name, err)
			}
			seeded.Teams[name] = team.ID
		}
		for _, lf := range tf.Lots {
			lot, err := st.CreateLot(ctx, t.ID, lf.Player, lf.BasePrice)
			if err != nil {
				return nil, fmt.Errorf("lot %q: %w", lf.Player, err)
			}
			seeded.Lots[lf.Player] = lot.ID
		}
		for _, mf := range tf.Matches {
			m, err := st.CreateMatch(ctx, store.CreateMatchParams{TournamentID: t.ID, TeamA: mf.TeamA, TeamB: mf.TeamB})
			if err != nil {
				return nil, fmt.Errorf("match in %q: %w", tf.Name, err)
			}
			seeded.Matches = append(seeded.Matches, m.ID)
		}
		log.Info().
			Str("tournament_id", t.ID).
			Int("teams", len(seeded.Teams)).
			Int("lots", len(seeded.Lots)).
			Int("matches", len(seeded.Matches)).
			Msg("tournament seeded")
		out.Tournaments = append(out.Tournaments, seeded)
	}
	for _, mf := range f.Matches {
		m, err := st.CreateMatch(ctx, store.CreateMatchParams{TeamA: mf.TeamA, TeamB: mf.TeamB})
		if err != nil {
			return nil, fmt.Errorf("practice match: %w", err)
		}
		out.Matches = append(out.Matches, m.ID)
	}
	return out, nil
}
