package config

// Defaults returns the default configuration values keyed by viper key.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"log.level":  "info",
		"log.format": "auto",

		"oracle.base_url":         "https://api.openai.com/v1",
		"oracle.api_key_env":      "OPENAI_API_KEY",
		"oracle.model":            "gpt-4o",
		"oracle.timeout_normal":   "2m",
		"oracle.timeout_extended": "6m",

		"state.backend": "json",
		"state.path":    ".aethercodex/state",

		"engine.recursion_budget": 8,

		"serve.addr": "127.0.0.1:8385",

		"workspace.root": ".",
	}
}
