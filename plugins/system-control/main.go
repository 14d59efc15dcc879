// Command system-control is a mudra plugin for volume, brightness and media
// playback. It presses the corresponding media keys.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-vgo/robotgo"

	"github.com/ayusman/mudra/internal/plugin"
)

// Config is the per-binding configuration.
type Config struct {
	// Repeat presses the key this many times; useful for volume steps.
	Repeat int `json:"repeat"`
}

// actionKeys maps action names to robotgo key names.
var actionKeys = map[string]string{
	"volume-up":        "audio_vol_up",
	"volume-down":      "audio_vol_down",
	"volume-mute":      "audio_mute",
	"brightness-up":    "lights_mon_up",
	"brightness-down":  "lights_mon_down",
	"media-play-pause": "audio_play",
	"media-next":       "audio_next",
	"media-prev":       "audio_prev",
}

func main() {
	if err := plugin.Serve(os.Stdin, os.Stdout, handle); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func handle(req *plugin.Request) (any, error) {
	key, ok := actionKeys[req.Action]
	if !ok {
		return nil, fmt.Errorf("unknown action %q (have %v)", req.Action, actions())
	}

	cfg := Config{Repeat: 1}
	if err := plugin.DecodeConfig(req.Config, &cfg); err != nil {
		return nil, fmt.Errorf("bad config: %w", err)
	}
	if cfg.Repeat < 1 || cfg.Repeat > 20 {
		return nil, fmt.Errorf("repeat %d out of range 1..20", cfg.Repeat)
	}

	for i := 0; i < cfg.Repeat; i++ {
		if err := robotgo.KeyTap(key); err != nil {
			return nil, err
		}
	}
	return map[string]any{"key": key, "presses": cfg.Repeat}, nil
}

func actions() []string {
	names := make([]string, 0, len(actionKeys))
	for name := range actionKeys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
