package trayicon

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// Config configures how a tray is published on the session bus.
type Config struct {
	// ID is a unique identifier of the application, such as its name.
	ID string `envconfig:"TRAYICON_ID" default:"trayicon"`

	// Title is a name that describes the application.
	Title string `envconfig:"TRAYICON_TITLE"`

	// Category of the item, see [ItemCategory].
	Category string `envconfig:"TRAYICON_CATEGORY" default:"ApplicationStatus"`

	ItemPath    string `envconfig:"TRAYICON_ITEM_PATH" default:"/StatusNotifierItem"`
	MenuPath    string `envconfig:"TRAYICON_MENU_PATH" default:"/MenuBar"`
	WatcherName string `envconfig:"TRAYICON_WATCHER_NAME" default:"org.kde.StatusNotifierWatcher"`

	LogLevel string `envconfig:"TRAYICON_LOG_LEVEL" default:"info"`
}

// DefaultConfig returns the default configuration without reading the
// environment.
func DefaultConfig() Config {
	return Config{
		ID:          "trayicon",
		Category:    string(ItemCategoryApplicationStatus),
		ItemPath:    StatusNotifierItemPath,
		MenuPath:    MenuPath,
		WatcherName: StatusNotifierWatcherInterface,
		LogLevel:    zerolog.LevelInfoValue,
	}
}

// LoadConfig reads the configuration from the environment. Variables from a
// .env file in the working directory are loaded first, if the file exists.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate reports whether the configuration can be used to publish a tray.
func (c Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("config: empty id")
	}

	for name, path := range map[string]string{"item path": c.ItemPath, "menu path": c.MenuPath} {
		if !dbus.ObjectPath(path).IsValid() {
			return fmt.Errorf("config: invalid %s %q", name, path)
		}
	}

	if c.ItemPath == c.MenuPath {
		return fmt.Errorf("config: item and menu share path %q", c.ItemPath)
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return nil
}

// Level returns the log level of the configuration, falling back to info.
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}

	return level
}
