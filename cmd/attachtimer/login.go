package main

import (
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and save the session",
	Long:  `Logs into the instance with the configured credentials and writes the session artifact used by upload.`,
	RunE:  runLogin,
}

func runLogin(cmd *cobra.Command, args []string) error {
	application, err := newApp()
	if err != nil {
		return err
	}
	return application.Login(cmd.Context())
}
