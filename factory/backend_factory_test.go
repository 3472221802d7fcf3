package factory

import (
	"sync"
	"testing"
	"time"

	"github.com/opd-ai/whisperchat/interfaces"
	"github.com/opd-ai/whisperchat/subscription"
	simnet "github.com/opd-ai/whisperchat/testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvForcePolling, "")
	t.Setenv(EnvChannelPollInterval, "")
	t.Setenv(EnvUserPollInterval, "")
}

// TestNewBackendFactory verifies default factory creation
func TestNewBackendFactory(t *testing.T) {
	clearEnv(t)
	factory := NewBackendFactory()

	config := factory.GetCurrentConfig()
	if config.ForcePolling {
		t.Error("expected ForcePolling false by default")
	}
	if config.ChannelPollInterval != 2*time.Second {
		t.Errorf("expected default ChannelPollInterval 2s, got %v", config.ChannelPollInterval)
	}
	if config.UserPollInterval != 250*time.Millisecond {
		t.Errorf("expected default UserPollInterval 250ms, got %v", config.UserPollInterval)
	}
}

func TestNewBackendFactoryFromConfig(t *testing.T) {
	clearEnv(t)
	factory := NewBackendFactoryFromConfig(interfaces.BackendConfig{
		ForcePolling:     true,
		UserPollInterval: time.Second,
	})

	config := factory.GetCurrentConfig()
	if !config.ForcePolling {
		t.Error("expected ForcePolling from base config")
	}
	if config.ChannelPollInterval != subscription.DefaultChannelPollInterval {
		t.Errorf("zero channel interval should take the default, got %v", config.ChannelPollInterval)
	}
	if config.UserPollInterval != time.Second {
		t.Errorf("expected UserPollInterval 1s, got %v", config.UserPollInterval)
	}
}

// TestEnvironmentVariableParsing verifies environment variable handling
func TestEnvironmentVariableParsing(t *testing.T) {
	tests := []struct {
		name        string
		envKey      string
		envValue    string
		checkFunc   func(interfaces.BackendConfig) bool
		description string
	}{
		{
			name:        "force_polling_true",
			envKey:      EnvForcePolling,
			envValue:    "true",
			checkFunc:   func(c interfaces.BackendConfig) bool { return c.ForcePolling },
			description: "ForcePolling should be true",
		},
		{
			name:        "force_polling_invalid",
			envKey:      EnvForcePolling,
			envValue:    "maybe",
			checkFunc:   func(c interfaces.BackendConfig) bool { return !c.ForcePolling },
			description: "invalid ForcePolling should keep default",
		},
		{
			name:        "channel_interval",
			envKey:      EnvChannelPollInterval,
			envValue:    "500",
			checkFunc:   func(c interfaces.BackendConfig) bool { return c.ChannelPollInterval == 500*time.Millisecond },
			description: "ChannelPollInterval should be 500ms",
		},
		{
			name:        "channel_interval_too_small",
			envKey:      EnvChannelPollInterval,
			envValue:    "1",
			checkFunc:   func(c interfaces.BackendConfig) bool { return c.ChannelPollInterval == 2*time.Second },
			description: "out of bounds ChannelPollInterval should keep default",
		},
		{
			name:        "user_interval",
			envKey:      EnvUserPollInterval,
			envValue:    "100",
			checkFunc:   func(c interfaces.BackendConfig) bool { return c.UserPollInterval == 100*time.Millisecond },
			description: "UserPollInterval should be 100ms",
		},
		{
			name:        "user_interval_not_a_number",
			envKey:      EnvUserPollInterval,
			envValue:    "fast",
			checkFunc:   func(c interfaces.BackendConfig) bool { return c.UserPollInterval == 250*time.Millisecond },
			description: "unparsable UserPollInterval should keep default",
		},
		{
			name:        "user_interval_too_large",
			envKey:      EnvUserPollInterval,
			envValue:    "600001",
			checkFunc:   func(c interfaces.BackendConfig) bool { return c.UserPollInterval == 250*time.Millisecond },
			description: "out of bounds UserPollInterval should keep default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.envKey, tt.envValue)

			config := NewBackendFactory().GetCurrentConfig()
			if !tt.checkFunc(config) {
				t.Errorf("%s, got %+v", tt.description, config)
			}
		})
	}
}

// TestCreateBackend verifies backend selection from node capability and config
func TestCreateBackend(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name        string
		push        bool
		force       bool
		wantPolling bool
	}{
		{"push node", true, false, false},
		{"push node forced to poll", true, true, true},
		{"poll only node", false, false, true},
		{"poll only node forced", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewBackendFactory()
			if tt.force {
				factory.SwitchToPolling()
			}

			backend, err := factory.CreateBackend(simnet.NewSimulatedNode(tt.push))
			if err != nil {
				t.Fatalf("CreateBackend failed: %v", err)
			}
			if backend.IsPolling() != tt.wantPolling {
				t.Errorf("IsPolling() = %v, want %v", backend.IsPolling(), tt.wantPolling)
			}
		})
	}
}

func TestCreateBackendNilNode(t *testing.T) {
	if _, err := NewBackendFactory().CreateBackend(nil); err == nil {
		t.Error("expected error for nil node")
	}
}

func TestCreateEngine(t *testing.T) {
	clearEnv(t)
	factory := NewBackendFactoryFromConfig(interfaces.BackendConfig{ChannelPollInterval: time.Second})

	engine, err := factory.CreateEngine(simnet.NewSimulatedNode(false))
	if err != nil {
		t.Fatalf("CreateEngine failed: %v", err)
	}
	if !engine.IsPolling() {
		t.Error("expected polling engine for a node without push")
	}
	if engine.Interval(subscription.StreamChannel) != time.Second {
		t.Errorf("expected channel interval 1s, got %v", engine.Interval(subscription.StreamChannel))
	}
	if engine.Interval(subscription.StreamUser) != 250*time.Millisecond {
		t.Errorf("expected user interval 250ms, got %v", engine.Interval(subscription.StreamUser))
	}
}

// TestModeSwitching verifies switching between push and polling
func TestModeSwitching(t *testing.T) {
	clearEnv(t)
	factory := NewBackendFactory()

	factory.SwitchToPolling()
	if !factory.IsForcingPolling() {
		t.Error("expected polling after SwitchToPolling")
	}

	factory.SwitchToPush()
	if factory.IsForcingPolling() {
		t.Error("expected push after SwitchToPush")
	}
}

func TestUpdateConfig(t *testing.T) {
	clearEnv(t)
	factory := NewBackendFactory()

	valid := interfaces.BackendConfig{
		ForcePolling:        true,
		ChannelPollInterval: time.Second,
		UserPollInterval:    100 * time.Millisecond,
	}
	if err := factory.UpdateConfig(valid); err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}
	if factory.GetCurrentConfig() != valid {
		t.Errorf("config not updated, got %+v", factory.GetCurrentConfig())
	}

	invalid := valid
	invalid.UserPollInterval = time.Millisecond
	if err := factory.UpdateConfig(invalid); err == nil {
		t.Error("expected error for out of bounds interval")
	}
	if factory.GetCurrentConfig() != valid {
		t.Error("rejected update must not change config")
	}
}

// TestConcurrentAccess verifies the factory is safe for concurrent use
func TestConcurrentAccess(t *testing.T) {
	clearEnv(t)
	factory := NewBackendFactory()
	node := simnet.NewSimulatedNode(true)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				factory.SwitchToPolling()
			} else {
				factory.SwitchToPush()
			}
			if _, err := factory.CreateBackend(node); err != nil {
				t.Errorf("CreateBackend failed: %v", err)
			}
			_ = factory.GetCurrentConfig()
		}(i)
	}
	wg.Wait()
}
