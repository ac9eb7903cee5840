package cmd

import (
	"path/filepath"

	"github.com/urfave/cli"

	"github.com/onwardseo/missiond/internal/config"
	"github.com/onwardseo/missiond/pkg/missioncli"
)

// configFileName is the config file looked up under the data directory when
// --config is not given.
const configFileName = "config.yaml"

// loadConfig resolves the effective daemon configuration for a CLI
// invocation.
func loadConfig(ctx *cli.Context) (config.Config, error) {
	dir, err := config.DefaultDir()
	if err != nil {
		return config.Config{}, err
	}
	path := ctx.String("config")
	if path == "" {
		path = filepath.Join(dir, configFileName)
	}
	return config.Load(dir, path)
}

// getClient builds an RPC client from the config file plus any --addr and
// --token overrides.
func getClient(ctx *cli.Context) (*missioncli.Client, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	addr := cfg.Daemon.Addr
	if v := ctx.String("addr"); v != "" {
		addr = v
	}
	token := cfg.Daemon.Token
	if v := ctx.String("token"); v != "" {
		token = v
	}
	return missioncli.NewClient(addr, token), nil
}
