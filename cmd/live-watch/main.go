// Command live-watch follows a match or lot over the public websocket and
// prints every frame it receives.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"courtpulse/internal/config"
	"courtpulse/internal/logging"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type frame struct {
	Type     string          `json:"type"`
	Key      string          `json:"key"`
	Revision uint64          `json:"revision"`
	Data     json.RawMessage `json:"data"`
}

func main() {
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
	cfg, err := config.LoadWatch()
	if err != nil {
		log.Fatal().Err(err).Msg("load watch config failed")
	}
	target, err := streamURL(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid watch target")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backoff := time.Second
	for ctx.Err() == nil {
		err := watch(ctx, target)
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Dur("retry_in", backoff).Msg("stream disconnected")
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func streamURL(cfg config.WatchConfig) (string, error) {
	var collection string
	switch cfg.Kind {
	case "match":
		collection = "matches"
	case "lot":
		collection = "lots"
	default:
		return "", fmt.Errorf("WATCH_KIND must be match or lot, got %q", cfg.Kind)
	}
	if cfg.ID == "" {
		return "", fmt.Errorf("WATCH_ID is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return "", err
	}
	switch base.Scheme {
	case "http":
		base.Scheme = "ws"
	case "https":
		base.Scheme = "wss"
	}
	base.Path += "/api/public/" + collection + "/" + url.PathEscape(cfg.ID) + "/ws"
	return base.String(), nil
}

func watch(ctx context.Context, target string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Info().Str("url", target).Msg("watching")

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Warn().Err(err).Msg("undecodable frame")
			continue
		}
		log.Info().
			Str("type", f.Type).
			Str("key", f.Key).
			Uint64("revision", f.Revision).
			RawJSON("data", nonEmpty(f.Data)).
			Msg("frame")
	}
}

func nonEmpty(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}
