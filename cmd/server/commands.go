package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"pulse/internal/config"
	"pulse/internal/domain"
	"pulse/internal/repository/sqlite"
	"pulse/internal/service"
)

var adminFlags struct {
	email    string
	password string
	name     string
}

// createAdminCmd bootstraps the first back-office account.
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an HR admin account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		repos := sqlite.NewRepositories(db)
		if err := repos.Init(cmd.Context()); err != nil {
			return fmt.Errorf("init repositories: %w", err)
		}

		users := service.NewUserService(repos.Users, repos.Vacation, cfg.Vacation.DefaultDays)
		user, err := users.Create(cmd.Context(), service.CreateUserInput{
			Email:    adminFlags.email,
			Password: adminFlags.password,
			FullName: adminFlags.name,
			Role:     domain.RoleAdmin,
		})
		if errors.Is(err, service.ErrUserAlreadyExists) {
			return fmt.Errorf("%s is already registered", adminFlags.email)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %d)\n", user.Email, user.ID)
		return nil
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password <password>",
	Short: "Print the bcrypt hash of a password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := service.HashPassword(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminFlags.email, "email", "", "admin email")
	createAdminCmd.Flags().StringVar(&adminFlags.password, "password", "", "initial password")
	createAdminCmd.Flags().StringVar(&adminFlags.name, "name", "HR Admin", "display name")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
}
