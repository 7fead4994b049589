/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/mymiscarriage/apiserver/config"
	"github.com/mymiscarriage/apiserver/internal/db"
	"github.com/mymiscarriage/apiserver/internal/services"
	"github.com/mymiscarriage/apiserver/internal/store"
	"github.com/mymiscarriage/apiserver/types"
	"github.com/spf13/cobra"
)

var signupKeyEmail string

// signupKeyCmd represents the signup-key command
var signupKeyCmd = &cobra.Command{
	Use:   "signup-key",
	Short: "Manage moderator signup keys",
}

var signupKeyAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Provision a one-time signup key for an email",
	RunE: func(cmd *cobra.Command, args []string) error {
		email := services.NormalizeEmail(signupKeyEmail)
		if email == "" {
			return errors.New("--email is required")
		}

		ctx := cmd.Context()
		cfg := config.LoadConfig()

		handle, err := db.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer handle.Close()

		key, err := services.NewAccessToken()
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}

		repo := store.NewSignupKeyRepository(handle.DB())
		if _, err := repo.Create(ctx, types.SignupKey{Email: email, Key: key}); err != nil {
			return fmt.Errorf("store signup key: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signupKeyCmd)
	signupKeyCmd.AddCommand(signupKeyAddCmd)
	signupKeyAddCmd.Flags().StringVar(&signupKeyEmail, "email", "", "moderator email the key is issued for")
}
