// Package config loads the Tunable Configuration block of spec §6
// with spf13/viper, the same loader the teacher's service carries as
// a direct dependency.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full set of tunables the core's components accept.
type Config struct {
	MaxAwakeInboxes            int           `mapstructure:"max_awake_inboxes"`
	MaxAwakePendingInvites     int           `mapstructure:"max_awake_pending_invites"`
	NewInboxProtectionWindow   time.Duration `mapstructure:"new_inbox_protection_window"`
	NewInboxConstructionWindow time.Duration `mapstructure:"new_inbox_construction_window"`
	StalePendingInviteInterval time.Duration `mapstructure:"stale_pending_invite_interval"`
	SleepingInboxCheckInterval time.Duration `mapstructure:"sleeping_inbox_check_interval"`
	ExplosionReminderLeadTime  time.Duration `mapstructure:"explosion_reminder_lead_time"`

	DBBaseDir  string `mapstructure:"db_base_dir"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("max_awake_inboxes", 50)
	v.SetDefault("max_awake_pending_invites", 3)
	v.SetDefault("new_inbox_protection_window", 5*time.Minute)
	v.SetDefault("new_inbox_construction_window", 3*time.Second)
	v.SetDefault("stale_pending_invite_interval", 7*24*time.Hour)
	v.SetDefault("sleeping_inbox_check_interval", 5*time.Second)
	v.SetDefault("explosion_reminder_lead_time", time.Hour)
	v.SetDefault("db_base_dir", "./data/inboxes")
	v.SetDefault("metrics_addr", ":9090")
}

// Load reads configuration from configFile (if non-empty), environment
// variables prefixed CONVOS_CORE_, and falls back to the defaults
// above. An empty configFile is not an error: env vars and defaults
// are enough to run.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CONVOS_CORE")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}
