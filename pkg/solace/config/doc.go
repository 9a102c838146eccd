/*
Package config loads solace settings from YAML or JSON.

Config wraps a decoded document and extracts typed values with defaults.
Keys may be dotted paths into nested maps, so "memory.top_k" reads the
top_k field of the memory section:

	cfg, err := config.FromFile("solace.yaml")
	if err != nil {
	    return err
	}
	settings, err := config.Load(cfg)

Missing keys and values of the wrong type fall back to the default. Settings
holds the typed result and validates it.
*/
package config
