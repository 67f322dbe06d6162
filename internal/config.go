package internal

import (
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/glossa/internal/offsite"
	"github.com/starford/glossa/internal/schedule"
)

// Scheduled job names.
const (
	JobSave   = "save"
	JobBackup = "backup"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Data     DataConfig        `yaml:"data"`
	Schedule ScheduleConfig    `yaml:"schedule"`
	Offsite  OffsiteConfig     `yaml:"offsite"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Data.Validate(); err != nil {
		return err
	}
	if err := c.Schedule.Validate(); err != nil {
		return err
	}
	return c.Offsite.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// DataConfig locates the persisted datasets and the snapshot directory.
type DataConfig struct {
	DictPath     string `yaml:"dict_path"`
	AccountsPath string `yaml:"accounts_path"`
	BackupDir    string `yaml:"backup_dir"`
}

// Validate validates the data configuration.
func (c *DataConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DictPath, validation.Required),
		validation.Field(&c.AccountsPath, validation.Required),
		validation.Field(&c.BackupDir, validation.Required),
	)
}

// ScheduleConfig holds the periodic save and backup intervals. A zero
// interval disables that job.
type ScheduleConfig struct {
	Enabled bool          `yaml:"enabled"`
	Save    time.Duration `yaml:"save_interval"`
	Backup  time.Duration `yaml:"backup_interval"`
}

// Validate validates the schedule configuration.
func (c *ScheduleConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Save, validation.Min(time.Duration(0))),
		validation.Field(&c.Backup, validation.Min(time.Duration(0))),
	)
}

// Plan converts the section into a scheduler plan.
func (c ScheduleConfig) Plan() schedule.Plan {
	return schedule.Plan{
		Enabled: c.Enabled,
		Every: map[string]time.Duration{
			JobSave:   c.Save,
			JobBackup: c.Backup,
		},
	}
}

// OffsiteConfig holds the object storage target backups are shipped to.
type OffsiteConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
}

// Validate validates the off-site configuration.
func (c *OffsiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.Bucket, validation.When(c.Enabled, validation.Required)),
	)
}

// Target converts the section into shipper settings.
func (c OffsiteConfig) Target() offsite.Target {
	return offsite.Target{
		Endpoint:  c.Endpoint,
		Bucket:    c.Bucket,
		Prefix:    c.Prefix,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Secure:    c.Secure,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Data: DataConfig{
			DictPath:     "data/dict.db",
			AccountsPath: "data/accounts.db",
			BackupDir:    "backup",
		},
		Schedule: ScheduleConfig{
			Enabled: true,
			Save:    10 * time.Minute,
			Backup:  24 * time.Hour,
		},
		Offsite: OffsiteConfig{
			Prefix: "glossa",
			Secure: true,
		},
	}
}
