package factory

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/opd-ai/whisperchat/interfaces"
	"github.com/opd-ai/whisperchat/subscription"
	"github.com/sirupsen/logrus"
)

// Validation constants for configuration bounds checking.
const (
	// MinPollInterval is the minimum allowed poll interval in milliseconds.
	MinPollInterval = 10
	// MaxPollInterval is the maximum allowed poll interval in milliseconds (10 minutes).
	MaxPollInterval = 600000
)

// Environment variables read by the factory.
const (
	EnvForcePolling        = "WHISPERCHAT_FORCE_POLLING"
	EnvChannelPollInterval = "WHISPERCHAT_CHANNEL_POLL_INTERVAL_MS"
	EnvUserPollInterval    = "WHISPERCHAT_USER_POLL_INTERVAL_MS"
)

// BackendFactory creates subscription backends based on configuration and
// node capabilities. It is safe for concurrent use; all methods are protected
// by an internal mutex.
type BackendFactory struct {
	mu            sync.RWMutex
	defaultConfig interfaces.BackendConfig
}

// NewBackendFactory creates a new factory with default configuration
func NewBackendFactory() *BackendFactory {
	return NewBackendFactoryFromConfig(createDefaultConfig())
}

// NewBackendFactoryFromConfig creates a factory from base. Zero intervals take
// the defaults, then environment overrides apply.
func NewBackendFactoryFromConfig(base interfaces.BackendConfig) *BackendFactory {
	config := createDefaultConfig()
	config.ForcePolling = base.ForcePolling
	if base.ChannelPollInterval > 0 {
		config.ChannelPollInterval = base.ChannelPollInterval
	}
	if base.UserPollInterval > 0 {
		config.UserPollInterval = base.UserPollInterval
	}

	applyEnvironmentOverrides(&config)
	logConfigurationInfo(config)

	return &BackendFactory{
		defaultConfig: config,
	}
}

// createDefaultConfig initializes the default backend configuration.
//
// Default Value Rationale:
//   - ForcePolling: false - push is used whenever the node connection supports it
//   - ChannelPollInterval: 2s - public channels tolerate latency
//   - UserPollInterval: 250ms - direct messages should feel immediate
func createDefaultConfig() interfaces.BackendConfig {
	return interfaces.BackendConfig{
		ForcePolling:        false,
		ChannelPollInterval: subscription.DefaultChannelPollInterval,
		UserPollInterval:    subscription.DefaultUserPollInterval,
	}
}

// applyEnvironmentOverrides updates configuration based on environment variables.
// It checks for WHISPERCHAT_* environment variables and overrides values if valid values are found.
func applyEnvironmentOverrides(config *interfaces.BackendConfig) {
	parsePollingSetting(config)
	parseIntervalSetting(EnvChannelPollInterval, &config.ChannelPollInterval)
	parseIntervalSetting(EnvUserPollInterval, &config.UserPollInterval)
}

// parsePollingSetting updates ForcePolling from WHISPERCHAT_FORCE_POLLING.
// It logs a warning if parsing fails and only updates config if parsing succeeds.
func parsePollingSetting(config *interfaces.BackendConfig) {
	if forceStr := os.Getenv(EnvForcePolling); forceStr != "" {
		force, err := strconv.ParseBool(forceStr)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "parsePollingSetting",
				"env_var":     EnvForcePolling,
				"value":       forceStr,
				"error":       err.Error(),
				"using_value": config.ForcePolling,
			}).Warn("Failed to parse WHISPERCHAT_FORCE_POLLING environment variable, using default")
			return
		}
		config.ForcePolling = force
	}
}

// parseIntervalSetting updates an interval from a millisecond environment
// variable. Values outside [MinPollInterval, MaxPollInterval] are ignored with
// a warning.
func parseIntervalSetting(envVar string, interval *time.Duration) {
	msStr := os.Getenv(envVar)
	if msStr == "" {
		return
	}
	ms, err := strconv.Atoi(msStr)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseIntervalSetting",
			"env_var":     envVar,
			"value":       msStr,
			"error":       err.Error(),
			"using_value": *interval,
		}).Warn("Failed to parse poll interval environment variable, using default")
		return
	}
	if ms < MinPollInterval || ms > MaxPollInterval {
		logrus.WithFields(logrus.Fields{
			"function":    "parseIntervalSetting",
			"env_var":     envVar,
			"value":       ms,
			"min":         MinPollInterval,
			"max":         MaxPollInterval,
			"using_value": *interval,
		}).Warn("Poll interval environment variable out of bounds, using default")
		return
	}
	*interval = time.Duration(ms) * time.Millisecond
}

// logConfigurationInfo logs the final configuration settings for debugging purposes.
func logConfigurationInfo(config interfaces.BackendConfig) {
	logrus.WithFields(logrus.Fields{
		"function":              "NewBackendFactory",
		"force_polling":         config.ForcePolling,
		"channel_poll_interval": config.ChannelPollInterval,
		"user_poll_interval":    config.UserPollInterval,
	}).Debug("Created subscription backend factory with configuration")
}

// CreateBackend picks the push backend when the node supports it and polling
// is not forced, and the poll backend otherwise.
func (f *BackendFactory) CreateBackend(node interfaces.Node) (interfaces.SubscriptionBackend, error) {
	if node == nil {
		return nil, fmt.Errorf("node is required to create a subscription backend")
	}

	f.mu.RLock()
	force := f.defaultConfig.ForcePolling
	f.mu.RUnlock()

	if force || !node.SupportsPush() {
		logrus.WithFields(logrus.Fields{
			"function":      "CreateBackend",
			"type":          "poll",
			"force_polling": force,
		}).Info("Creating polling subscription backend")
		return subscription.NewPollBackend(node), nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "CreateBackend",
		"type":     "push",
	}).Info("Creating push subscription backend")
	return subscription.NewPushBackend(node), nil
}

// CreateEngine creates a subscription engine on node using the current
// configuration.
func (f *BackendFactory) CreateEngine(node interfaces.Node) (*subscription.Engine, error) {
	backend, err := f.CreateBackend(node)
	if err != nil {
		return nil, err
	}
	return subscription.NewEngine(backend, f.GetCurrentConfig()), nil
}

// SwitchToPolling forces the poll backend for backends created afterwards.
func (f *BackendFactory) SwitchToPolling() {
	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "SwitchToPolling",
		"previous": f.defaultConfig.ForcePolling,
	}).Info("Switching factory to polling mode")

	f.defaultConfig.ForcePolling = true
}

// SwitchToPush lets backends created afterwards use push when available.
func (f *BackendFactory) SwitchToPush() {
	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "SwitchToPush",
		"previous": f.defaultConfig.ForcePolling,
	}).Info("Switching factory to push mode")

	f.defaultConfig.ForcePolling = false
}

// GetCurrentConfig returns a copy of the current default configuration
func (f *BackendFactory) GetCurrentConfig() interfaces.BackendConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.defaultConfig
}

// IsForcingPolling returns true if the factory always creates poll backends
func (f *BackendFactory) IsForcingPolling() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.defaultConfig.ForcePolling
}

// UpdateConfig replaces the factory's default configuration. Intervals must be
// within [MinPollInterval, MaxPollInterval] milliseconds.
func (f *BackendFactory) UpdateConfig(config interfaces.BackendConfig) error {
	if err := validateInterval("channel poll interval", config.ChannelPollInterval); err != nil {
		return err
	}
	if err := validateInterval("user poll interval", config.UserPollInterval); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":          "UpdateConfig",
		"old_force_polling": f.defaultConfig.ForcePolling,
		"new_force_polling": config.ForcePolling,
	}).Info("Updating factory configuration")

	f.defaultConfig = config
	return nil
}

func validateInterval(name string, d time.Duration) error {
	lo := time.Duration(MinPollInterval) * time.Millisecond
	hi := time.Duration(MaxPollInterval) * time.Millisecond
	if d < lo || d > hi {
		return fmt.Errorf("%s %v out of bounds [%v, %v]", name, d, lo, hi)
	}
	return nil
}
