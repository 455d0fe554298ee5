package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	craftlink "github.com/craftlink/craftlink-go/client"
)

var loginToken string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a bearer token for later commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginToken == "" {
			return errors.New("--token is required")
		}
		user, err := craftlink.IdentityFromToken(loginToken)
		if err != nil {
			return err
		}

		cfg, err := loadCLIConfig()
		if err != nil {
			return err
		}
		cfg.Token = loginToken
		if err := saveCLIConfig(cfg); err != nil {
			return err
		}

		name := user.Username
		if name == "" {
			name = fmt.Sprintf("user %d", user.ID)
		}
		fmt.Printf("Logged in as %s\n", name)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginToken, "token", "", "bearer token issued by the CraftLink backend")
}
