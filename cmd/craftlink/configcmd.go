package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or change the stored CLI configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadCLIConfig()
		if err != nil {
			return err
		}
		token := "(not set)"
		if cfg.Token != "" {
			token = redact(cfg.Token)
		}
		fmt.Printf("token:   %s\n", token)
		fmt.Printf("api_url: %s\n", orDefault(cfg.APIURL))
		fmt.Printf("ws_url:  %s\n", orDefault(cfg.WSURL))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set api_url or ws_url (use \"login\" for the token)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadCLIConfig()
		if err != nil {
			return err
		}
		switch args[0] {
		case "api_url":
			cfg.APIURL = args[1]
		case "ws_url":
			cfg.WSURL = args[1]
		default:
			return fmt.Errorf("unknown key %q, expected api_url or ws_url", args[0])
		}
		if err := saveCLIConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", args[0], args[1])
		return nil
	},
}

func redact(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + "..." + token[len(token)-4:]
}

func orDefault(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
