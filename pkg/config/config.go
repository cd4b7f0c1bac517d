// Package config loads packstore configuration from YAML with layered
// overrides: built-in defaults, then the named config file, then an optional
// ".local" sibling for machine-specific settings.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/packstore/packstore/pkg/domain"
)

// Config is the full packstore configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// Engine selects the storage backend: "file" or "mongo".
	Engine string `yaml:"engine"`

	// DataDir and DataFile locate file-engine storage.
	DataDir  string `yaml:"data_dir"`
	DataFile string `yaml:"data_file"`
	// BackgroundSave enables the periodic save worker of the file engine.
	BackgroundSave bool `yaml:"background_save"`
	// MaxMemoryMB caps the file engine's in-memory collection cache.
	MaxMemoryMB int `yaml:"max_memory_mb"`

	// MongoURI and MongoDatabase configure the mongo engine.
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`

	// DefaultPack receives entries stored without an explicit pack.
	DefaultPack string `yaml:"default_pack"`
	// DefaultThumb is the icon assigned to entries stored without one.
	DefaultThumb string `yaml:"default_thumb"`
	// ManagedPacks are created with metadata records on startup.
	ManagedPacks []string `yaml:"managed_packs"`
	// LockedPacks may only be written by admins.
	LockedPacks []string `yaml:"locked_packs"`

	// ActorID and ActorRole identify this process's local actor.
	ActorID   string `yaml:"actor_id"`
	ActorRole string `yaml:"actor_role"`

	// NATSURL enables the cross-process relay channel when set.
	NATSURL string `yaml:"nats_url"`
	// ProxyTimeout bounds relayed write requests.
	ProxyTimeout time.Duration `yaml:"proxy_timeout"`
	// Peers lists the other processes on the relay channel. Responder
	// election for relayed writes runs over the local actor plus these
	// peers, so the set must match across the deployment or more than one
	// process will consider itself elected.
	Peers []Peer `yaml:"peers"`
}

// Peer identifies another process sharing the relay channel.
type Peer struct {
	ID   string `yaml:"id"`
	Role string `yaml:"role"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		Engine:         "file",
		DataDir:        "collections",
		DataFile:       "packstore_data",
		BackgroundSave: true,
		MaxMemoryMB:    1024,
		MongoDatabase:  "packstore",
		DefaultPack:    "entries",
		DefaultThumb:   "icons/default.svg",
		ActorID:        "local",
		ActorRole:      "admin",
		ProxyTimeout:   6 * time.Second,
	}
}

// LoadConfig reads configuration from path, layered over the defaults. A
// sibling file with ".local" inserted before the extension overrides both
// when present. An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}
	if local := localPath(path); local != "" {
		if err := loadFile(local, cfg); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// localPath maps "config.yaml" to "config.local.yaml".
func localPath(path string) string {
	dot := strings.LastIndex(path, ".")
	if dot <= 0 {
		return path + ".local"
	}
	return path[:dot] + ".local" + path[dot:]
}

// IsLocked reports whether a pack is admin-only.
func (c *Config) IsLocked(pack string) bool {
	for _, locked := range c.LockedPacks {
		if locked == pack {
			return true
		}
	}
	return false
}

// LocalActor builds this process's actor identity.
func (c *Config) LocalActor() domain.Actor {
	return domain.Actor{ID: c.ActorID, Role: domain.ParseRole(c.ActorRole)}
}

// RosterActors returns the relay election roster: the local actor plus every
// configured peer.
func (c *Config) RosterActors() []domain.Actor {
	roster := make([]domain.Actor, 0, len(c.Peers)+1)
	roster = append(roster, c.LocalActor())
	for _, peer := range c.Peers {
		roster = append(roster, domain.Actor{ID: peer.ID, Role: domain.ParseRole(peer.Role)})
	}
	return roster
}

// Validate rejects configurations that cannot start.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	switch c.Engine {
	case "file":
	case "mongo":
		if c.MongoURI == "" {
			return fmt.Errorf("config: mongo engine requires mongo_uri")
		}
	default:
		return fmt.Errorf("config: unknown engine '%s'", c.Engine)
	}
	if c.DefaultPack == "" {
		return fmt.Errorf("config: default_pack must not be empty")
	}
	return nil
}
