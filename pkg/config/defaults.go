package config

import "github.com/papercomputeco/streamchat/pkg/chat"

// Events providers.
const (
	EventsProviderNop   = "nop"
	EventsProviderKafka = "kafka"
)

const (
	defaultClientTarget   = "http://localhost:8080"
	defaultTimeoutSeconds = 30

	defaultEventsProvider = EventsProviderNop
	defaultEventsTopic    = "streamchat.exchanges"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			Target:         defaultClientTarget,
			SystemPrompt:   chat.DefaultSystemPrompt,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
