package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	craftlink "github.com/craftlink/craftlink-go/client"
)

// cliConfig is the on-disk CLI state at ~/.craftlink/config.toml. The
// bearer token lives here between invocations; endpoint overrides are
// optional and fall back to the environment-driven defaults.
type cliConfig struct {
	Token  string `toml:"token"`
	APIURL string `toml:"api_url,omitempty"`
	WSURL  string `toml:"ws_url,omitempty"`
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".craftlink", "config.toml"), nil
}

func loadCLIConfig() (cliConfig, error) {
	var cfg cliConfig
	path, err := configPath()
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func saveCLIConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	// 0600: the file holds a bearer token.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// clientConfig merges the saved CLI state with environment configuration.
func clientConfig(cli cliConfig) craftlink.Config {
	cfg := craftlink.LoadConfig()
	if cli.APIURL != "" {
		cfg.APIBaseURL = cli.APIURL
	}
	if cli.WSURL != "" {
		cfg.WSBaseURL = cli.WSURL
	}
	return cfg
}

// credentials builds the provider for the stored token, resolving the
// user identity from the token's claims.
func credentials(cli cliConfig) (craftlink.CredentialProvider, error) {
	if cli.Token == "" {
		return nil, errors.New("not logged in, run \"craftlink login\" first")
	}
	user, err := craftlink.IdentityFromToken(cli.Token)
	if err != nil {
		return nil, fmt.Errorf("stored token is unusable: %w", err)
	}
	return craftlink.StaticCredentials{BearerToken: cli.Token, User: user}, nil
}
