package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packstore/packstore/pkg/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "file", cfg.Engine)
	assert.Equal(t, "entries", cfg.DefaultPack)
	assert.Equal(t, 6*time.Second, cfg.ProxyTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "packstore.yaml")
	writeFile(t, path, `
port: 9090
default_pack: weapons
locked_packs:
  - vault
managed_packs:
  - weapons
  - spells
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "weapons", cfg.DefaultPack)
	assert.Equal(t, []string{"vault"}, cfg.LockedPacks)
	assert.Equal(t, []string{"weapons", "spells"}, cfg.ManagedPacks)
	assert.Equal(t, "file", cfg.Engine, "unset keys keep defaults")
	assert.True(t, cfg.IsLocked("vault"))
	assert.False(t, cfg.IsLocked("weapons"))
}

func TestLoadConfigLocalOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "packstore.yaml")
	writeFile(t, path, "port: 9090\ndefault_pack: weapons\n")
	writeFile(t, filepath.Join(dir, "packstore.local.yaml"), "port: 7070\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port, "local overlay wins")
	assert.Equal(t, "weapons", cfg.DefaultPack, "file values survive the overlay")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigBadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	writeFile(t, path, "port: [not a number\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Port = -1 }, true},
		{"unknown engine", func(c *Config) { c.Engine = "redis" }, true},
		{"mongo without uri", func(c *Config) { c.Engine = "mongo" }, true},
		{"mongo with uri", func(c *Config) { c.Engine = "mongo"; c.MongoURI = "mongodb://localhost" }, false},
		{"empty default pack", func(c *Config) { c.DefaultPack = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRosterActors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "packstore.yaml")
	writeFile(t, path, `
actor_id: node-2
actor_role: member
peers:
  - id: node-1
    role: admin
  - id: node-3
    role: keeper
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	roster := cfg.RosterActors()
	require.Len(t, roster, 3)
	assert.Equal(t, domain.Actor{ID: "node-2", Role: domain.RoleMember}, roster[0])
	assert.Equal(t, domain.Actor{ID: "node-1", Role: domain.RoleAdmin}, roster[1])
	assert.Equal(t, domain.Actor{ID: "node-3", Role: domain.RoleKeeper}, roster[2])

	// With a shared roster every process elects the same responder.
	elected, ok := domain.ElectResponder(roster)
	require.True(t, ok)
	assert.Equal(t, "node-1", elected.ID)
}

func TestRosterActorsWithoutPeers(t *testing.T) {
	cfg := DefaultConfig()
	roster := cfg.RosterActors()
	require.Len(t, roster, 1)
	assert.Equal(t, cfg.LocalActor(), roster[0])
}

func TestLocalActor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ActorID = "node-7"
	cfg.ActorRole = "keeper"
	actor := cfg.LocalActor()
	assert.Equal(t, "node-7", actor.ID)
	assert.Equal(t, domain.RoleKeeper, actor.Role)
}
