// Package config loads client configuration and login profiles from YAML
// files, merging file contents over built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/moodclient/mudterm/classify"
)

// Connection holds the target server address and text encoding.
type Connection struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Charset is an IANA character set name, defaulting to UTF-8.
	Charset string `yaml:"charset"`
}

// GMCP holds the subscription list sent in the GMCP handshake and the
// payload paths the vitals and status panes read from.
type GMCP struct {
	Subscriptions []string          `yaml:"subscriptions"`
	Vitals        map[string]string `yaml:"vitals"`
	Status        map[string]string `yaml:"status"`
	Attributes    []string          `yaml:"attributes"`
}

// MapPatterns configures map block and room metadata detection.
type MapPatterns struct {
	StartTag   string `yaml:"start_tag"`
	EndTag     string `yaml:"end_tag"`
	RdescStart string `yaml:"rdesc_start"`
	RdescEnd   string `yaml:"rdesc_end"`
	Coords     string `yaml:"coords"`
	Exits      string `yaml:"exits"`
}

// InfoPatterns configures the info channel prefix.
type InfoPatterns struct {
	Prefix string `yaml:"prefix"`
}

// HelpPatterns configures help block detection.
type HelpPatterns struct {
	StartTag  string `yaml:"start_tag"`
	EndTag    string `yaml:"end_tag"`
	BodyStart string `yaml:"body_start"`
	BodyEnd   string `yaml:"body_end"`
	Tags      string `yaml:"tags"`
}

// ConversationPattern is one speech pattern plus its display label.
type ConversationPattern struct {
	Pattern string `yaml:"pattern"`
	Label   string `yaml:"label"`
}

// Patterns groups all recognition patterns.
type Patterns struct {
	Map          MapPatterns           `yaml:"map"`
	Info         InfoPatterns          `yaml:"info"`
	Help         HelpPatterns          `yaml:"help"`
	Conversation []ConversationPattern `yaml:"conversation"`
}

// ConversationTimers controls the speech overlay lifetime.
type ConversationTimers struct {
	AutoClose float64 `yaml:"auto_close"`
}

// InfoTimers controls the info ticker lifetime.
type InfoTimers struct {
	MinDisplay float64 `yaml:"min_display"`
	AutoHide   float64 `yaml:"auto_hide"`
	MaxHistory int     `yaml:"max_history"`
}

// Timers groups the timer settings.
type Timers struct {
	Conversation ConversationTimers `yaml:"conversation"`
	Info         InfoTimers         `yaml:"info"`
}

// History selects which content kinds remain visible when scrolled up.
type History struct {
	Conversations bool `yaml:"conversations"`
	Help          bool `yaml:"help"`
	Maps          bool `yaml:"maps"`
	Info          bool `yaml:"info"`
}

// UI holds layout and scrollback sizing.
type UI struct {
	RightPanelMaxWidth int     `yaml:"right_panel_max_width"`
	RightPanelRatio    float64 `yaml:"right_panel_ratio"`
	MaxOutputLines     int     `yaml:"max_output_lines"`
	History            History `yaml:"history"`
}

// Hooks lists commands sent automatically on session events.
type Hooks struct {
	PostLogin []string `yaml:"post_login"`
	OnExit    []string `yaml:"on_exit"`
}

// Profile carries auto-login credentials.
type Profile struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config is the complete client configuration.
type Config struct {
	Connection Connection `yaml:"connection"`
	GMCP       GMCP       `yaml:"gmcp"`
	Patterns   Patterns   `yaml:"patterns"`
	Timers     Timers     `yaml:"timers"`
	UI         UI         `yaml:"ui"`
	Hooks      Hooks      `yaml:"hooks"`
	Profile    Profile    `yaml:"profile"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		GMCP: GMCP{
			Subscriptions: []string{
				"char 1",
				"char.vitals 1",
				"char.stats 1",
				"char.status 1",
				"char.maxstats 1",
			},
			Vitals: map[string]string{
				"hp":        "vitals.hp",
				"max_hp":    "maxstats.maxhp",
				"mana":      "vitals.mana",
				"max_mana":  "maxstats.maxmana",
				"moves":     "vitals.moves",
				"max_moves": "maxstats.maxmoves",
			},
			Status: map[string]string{
				"level":    "status.level",
				"tnl":      "status.tnl",
				"position": "status.position",
				"enemy":    "status.enemy",
			},
			Attributes: []string{"str", "int", "wis", "dex", "con", "luck"},
		},
		Patterns: Patterns{
			Map: MapPatterns{
				StartTag:   `<MAPSTART>`,
				EndTag:     `<MAPEND>`,
				RdescStart: `\{rdesc\}`,
				RdescEnd:   `\{/rdesc\}`,
				Coords:     `\{coords\}(\S+)`,
				Exits:      `(?i)^\s*\[?\s*Exits:\s*.*\]?\s*$`,
			},
			Info: InfoPatterns{
				Prefix: `^INFO:\s+`,
			},
			Help: HelpPatterns{
				StartTag:  `\{help\}`,
				EndTag:    `\{/help\}`,
				BodyStart: `\{helpbody\}`,
				BodyEnd:   `\{/helpbody\}`,
				Tags:      `\{helptags\}(.*)$`,
			},
			Conversation: []ConversationPattern{
				{Pattern: `^(?P<speaker>[\w'-]+)\s+says?,?\s+(?P<quote>['"])(?P<message>.+)`, Label: "says"},
				{Pattern: `^(?P<speaker>[\w'-]+)\s+tells?\s+you,?\s+(?P<quote>['"])(?P<message>.+)`, Label: "tells"},
				{Pattern: `^(?P<speaker>[\w'-]+)\s+whispers?,?\s+(?P<quote>['"])(?P<message>.+)`, Label: "whispers"},
				{Pattern: `^(?P<speaker>[\w'-]+)\s+(?:yells?|shouts?),?\s+(?P<quote>['"])(?P<message>.+)`, Label: "yells"},
				{Pattern: `^(?P<speaker>[\w'-]+)\s+(?:asks?|exclaims?|questions?),?\s+(?P<quote>['"])(?P<message>.+)`, Label: "asks"},
			},
		},
		Timers: Timers{
			Conversation: ConversationTimers{AutoClose: 8.0},
			Info:         InfoTimers{MinDisplay: 10.0, AutoHide: 40.0, MaxHistory: 200},
		},
		UI: UI{
			RightPanelMaxWidth: 70,
			RightPanelRatio:    0.40,
			MaxOutputLines:     5000,
			History:            History{Conversations: true},
		},
		Hooks: Hooks{
			PostLogin: []string{"map", "look"},
		},
	}
}

// ClassifyPatterns converts the configured pattern strings into the form
// the classifier compiles.
func (c Config) ClassifyPatterns() classify.PatternConfig {
	pc := classify.PatternConfig{
		MapStart:      c.Patterns.Map.StartTag,
		MapEnd:        c.Patterns.Map.EndTag,
		RdescStart:    c.Patterns.Map.RdescStart,
		RdescEnd:      c.Patterns.Map.RdescEnd,
		Coords:        c.Patterns.Map.Coords,
		Exits:         c.Patterns.Map.Exits,
		InfoPrefix:    c.Patterns.Info.Prefix,
		HelpStart:     c.Patterns.Help.StartTag,
		HelpEnd:       c.Patterns.Help.EndTag,
		HelpBodyStart: c.Patterns.Help.BodyStart,
		HelpBodyEnd:   c.Patterns.Help.BodyEnd,
		HelpTags:      c.Patterns.Help.Tags,
	}
	for _, cp := range c.Patterns.Conversation {
		pc.Conversation = append(pc.Conversation, classify.ConversationPatternConfig{
			Label:   cp.Label,
			Pattern: cp.Pattern,
		})
	}
	return pc
}

func userDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".mudterm")
}

func looksLikePath(name string) bool {
	return strings.ContainsAny(name, `/\`) || strings.HasSuffix(name, ".yml") || strings.HasSuffix(name, ".yaml")
}

func findFile(name, subdir string) string {
	if looksLikePath(name) {
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			return name
		}
		return ""
	}

	candidates := searchPaths(name, subdir)
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func searchPaths(name, subdir string) []string {
	filename := name + ".yml"
	var paths []string
	if dataDir := userDataDir(); dataDir != "" {
		paths = append(paths, filepath.Join(dataDir, subdir, filename))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, subdir, filename))
	}
	return paths
}

// Load reads a config by name or path and merges it over the defaults.
// An empty name loads "default", which tolerates a missing file; any
// other missing config is an error.
func Load(nameOrPath string) (Config, error) {
	if nameOrPath == "" {
		nameOrPath = "default"
	}

	cfg := Default()

	path := findFile(nameOrPath, "configs")
	if path == "" {
		if nameOrPath == "default" {
			return cfg, nil
		}
		return cfg, notFoundError("config", nameOrPath, "configs")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadProfile reads a login profile by name or path.
func LoadProfile(nameOrPath string) (Profile, error) {
	var profile Profile

	path := findFile(nameOrPath, "profiles")
	if path == "" {
		return profile, notFoundError("profile", nameOrPath, "profiles")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("read profile %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return profile, fmt.Errorf("parse profile %s: %w", path, err)
	}

	return profile, nil
}

func notFoundError(kind, name, subdir string) error {
	if looksLikePath(name) {
		return fmt.Errorf("%s file not found: %s", kind, name)
	}
	return fmt.Errorf("%s %q not found, searched: %s", kind, name,
		strings.Join(searchPaths(name, subdir), ", "))
}
