package config

import (
	"flag"
	"os"
)

// Config carries the process-level settings: listen port, feature flags
// and the static client directory.
type Config struct {
	Port          string
	ClientDir     string
	Chat          bool
	PowerUps      bool
	Accessibility bool
}

// FeatureFlags is the payload of the featureFlags hello message.
type FeatureFlags struct {
	Chat          bool `json:"chat"`
	PowerUps      bool `json:"powerups"`
	Accessibility bool `json:"accessibility"`
}

func (c *Config) Flags() FeatureFlags {
	return FeatureFlags{Chat: c.Chat, PowerUps: c.PowerUps, Accessibility: c.Accessibility}
}

// Load builds the configuration from command-line switches and the
// environment. Env vars override switches: ENABLE_CHAT, ENABLE_POWERUPS,
// ENABLE_ACCESSIBILITY ("true"/"false"), PORT.
func Load(args []string) *Config {
	fs := flag.NewFlagSet("snake-server", flag.ContinueOnError)
	disableChat := fs.Bool("disable-chat", false, "disable the chat relay")
	enablePowerups := fs.Bool("enable-powerups", false, "enable power-up spawning")
	disableAccessibility := fs.Bool("disable-accessibility", false, "disable accessibility features")
	fs.Parse(args)

	cfg := &Config{
		Port:          "3000",
		ClientDir:     "./client",
		Chat:          !*disableChat,
		PowerUps:      *enablePowerups,
		Accessibility: !*disableAccessibility,
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	if dir := os.Getenv("CLIENT_DIR"); dir != "" {
		cfg.ClientDir = dir
	}
	applyEnvBool("ENABLE_CHAT", &cfg.Chat)
	applyEnvBool("ENABLE_POWERUPS", &cfg.PowerUps)
	applyEnvBool("ENABLE_ACCESSIBILITY", &cfg.Accessibility)

	return cfg
}

func applyEnvBool(name string, target *bool) {
	switch os.Getenv(name) {
	case "true":
		*target = true
	case "false":
		*target = false
	}
}
