package logging

import (
	"testing"

	"github.com/pressline/feedsync/pkg/config"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LoggingConfig
	}{
		{
			name: "json format",
			cfg:  config.LoggingConfig{Level: "INFO", Format: "json"},
		},
		{
			name: "text format",
			cfg:  config.LoggingConfig{Level: "DEBUG", Format: "text"},
		},
		{
			name: "bad level falls back to info",
			cfg:  config.LoggingConfig{Level: "LOUD", Format: "json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldLogger := Logger
			defer func() { Logger = oldLogger }()

			if err := InitLogger(&tt.cfg); err != nil {
				t.Fatalf("Failed to initialize logger: %v", err)
			}
			if Logger == nil {
				t.Fatal("Expected logger to be set")
			}
		})
	}
}

func TestWithComponent(t *testing.T) {
	child := WithComponent("executor")
	if child == nil {
		t.Fatal("Expected a child logger")
	}
}
