package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/odyssey-erp/distro/internal/app"
	"github.com/odyssey-erp/distro/internal/auth"
	"github.com/odyssey-erp/distro/internal/platform/db"
	"github.com/odyssey-erp/distro/internal/platform/migrate"
)

// runMigrate applies all pending migrations, or rolls back N steps with "down N".
func runMigrate(cfg *app.Config, logger *slog.Logger, args []string) error {
	if len(args) == 0 || args[0] == "up" {
		return migrate.Up(cfg.PGDSN, logger)
	}
	if args[0] != "down" {
		return fmt.Errorf("unknown migrate direction %q", args[0])
	}
	steps := 1
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid step count %q", args[1])
		}
		steps = n
	}
	return migrate.Down(cfg.PGDSN, steps, logger)
}

// createUser provisions an operator account.
func createUser(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	email := fs.String("email", "", "login email")
	name := fs.String("name", "", "display name")
	role := fs.String("role", "", "ADMIN, VENTAS, DEPOSITO, CONTROL, LOGISTICA or REPARTIDOR")
	password := fs.String("password", "", "initial password (min 8 characters)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *role == "" || *password == "" {
		return errors.New("create-user: -email, -role and -password are required")
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	user, err := auth.NewService(auth.NewRepository(pool)).Register(ctx, *email, *name, *role, *password)
	if err != nil {
		return err
	}
	logger.Info("user created", slog.Int64("user_id", user.ID), slog.String("role", string(user.Role)))
	return nil
}
