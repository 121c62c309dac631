package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bikestore/internal/config"
	"bikestore/internal/database"
)

func indexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the MongoDB indexes the service relies on",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := database.Connect(config.AppEnv.MongoURI)
			if err != nil {
				return err
			}
			defer client.Disconnect(context.Background())

			return database.EnsureAll(client.Database(config.AppEnv.DBName))
		},
	}
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [paymentId]",
		Short: "Run one reconciliation pass for a provider payment id",
		Long: `Fetches the payment from MercadoPago and applies it to its order exactly as
the webhook worker would. Safe to repeat: an already processed payment is a no-op.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connectServices(config.AppEnv)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			outcome, err := s.reconciler.Process(ctx, args[0])
			if err != nil {
				return fmt.Errorf("reconcile payment %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "payment %s: %s\n", args[0], outcome)
			return nil
		},
	}
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage back-office accounts",
	}

	var email, password string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(password) < 8 {
				return errors.New("password must be at least 8 characters")
			}

			client, err := database.Connect(config.AppEnv.MongoURI)
			if err != nil {
				return err
			}
			defer client.Disconnect(context.Background())

			db := client.Database(config.AppEnv.DBName)
			if err := database.EnsureAdminIndexes(db); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			admin, err := database.NewAdminStore(db).Create(ctx, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created (%s)\n", admin.Email, admin.ID.Hex())
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "admin email")
	create.Flags().StringVar(&password, "password", "", "admin password")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}
