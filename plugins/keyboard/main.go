// Command keyboard is a mudra plugin that sends keyboard shortcuts.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-vgo/robotgo"

	"github.com/ayusman/mudra/internal/plugin"
)

// Shortcut is the per-binding configuration.
type Shortcut struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"`
}

// modifierMap maps accepted modifier spellings to robotgo names.
var modifierMap = map[string]string{
	"command": "cmd",
	"cmd":     "cmd",
	"super":   "cmd",
	"option":  "alt",
	"alt":     "alt",
	"control": "ctrl",
	"ctrl":    "ctrl",
	"shift":   "shift",
}

func main() {
	if err := plugin.Serve(os.Stdin, os.Stdout, handle); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func handle(req *plugin.Request) (any, error) {
	if req.Action != "shortcut" && req.Action != "keystroke" {
		return nil, fmt.Errorf("unknown action %q", req.Action)
	}

	var s Shortcut
	if err := plugin.DecodeConfig(req.Config, &s); err != nil {
		return nil, fmt.Errorf("bad config: %w", err)
	}
	mods, err := s.robotgoModifiers()
	if err != nil {
		return nil, err
	}

	if len(mods) == 0 {
		err = robotgo.KeyTap(s.Key)
	} else {
		err = robotgo.KeyTap(s.Key, mods)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"key": s.Key, "modifiers": mods}, nil
}

func (s Shortcut) robotgoModifiers() ([]string, error) {
	if s.Key == "" {
		return nil, fmt.Errorf("key is required")
	}
	mods := make([]string, 0, len(s.Modifiers))
	for _, m := range s.Modifiers {
		name, ok := modifierMap[strings.ToLower(m)]
		if !ok {
			return nil, fmt.Errorf("unknown modifier %q", m)
		}
		mods = append(mods, name)
	}
	return mods, nil
}
