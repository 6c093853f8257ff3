package main

import (
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"frozen-pos/internal/config"
	"frozen-pos/internal/repository"
	"frozen-pos/internal/seed"
	"frozen-pos/internal/service"
	"frozen-pos/migrations"
	"frozen-pos/pkg/database"
	"frozen-pos/pkg/observability"
)

func main() {
	app := &cli.App{
		Name:  "posctl",
		Usage: "maintenance commands for the frozen food POS backend",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "apply or roll back the embedded SQL migrations",
				Subcommands: []*cli.Command{
					{Name: "up", Usage: "apply all pending migrations", Action: migrateAction(true)},
					{Name: "down", Usage: "roll back all migrations", Action: migrateAction(false)},
				},
			},
			{
				Name:   "reconcile",
				Usage:  "compare every product's stock with the sum of its stock log",
				Action: reconcileAction,
			},
			{
				Name:  "reset-password",
				Usage: "set a new password for a user and end their session",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
				},
				Action: resetPasswordAction,
			},
			{
				Name:   "seed",
				Usage:  "insert default privileges, roles and the admin user",
				Action: seedAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "posctl:", err)
		os.Exit(1)
	}
}

type env struct {
	cfg *config.Config
	log *zap.Logger
}

func setup() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: observability.NewLogger("posctl", cfg.LogLevel, false)}, nil
}

func (e *env) connect() (*gorm.DB, error) {
	return database.ConnectDB(database.Options{DSN: e.cfg.DSN()}, e.log)
}

func migrateAction(up bool) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = e.log.Sync() }()

		src, err := iofs.New(migrations.FS, ".")
		if err != nil {
			return errors.Wrap(err, "open embedded migrations")
		}
		m, err := migrate.NewWithSourceInstance("iofs", src, e.cfg.MigrationURL())
		if err != nil {
			return errors.Wrap(err, "connect migrate")
		}
		defer func() { _, _ = m.Close() }()

		if up {
			err = m.Up()
		} else {
			err = m.Down()
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return errors.Wrap(err, "migrate")
		}

		version, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			return errors.Wrap(verr, "read migration version")
		}
		e.log.Info("migrations applied", zap.Bool("up", up), zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	}
}

func reconcileAction(c *cli.Context) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = e.log.Sync() }()

	db, err := e.connect()
	if err != nil {
		return err
	}

	reports := service.NewReportService(repository.NewReportRepo(db), service.ReportOptions{
		Location:          e.cfg.Location(),
		LowStockThreshold: e.cfg.LowStockThreshold,
		ExpiryWarningDays: e.cfg.ExpiryWarningDays,
	})
	mismatches, err := reports.Reconcile(c.Context)
	if err != nil {
		return err
	}
	if len(mismatches) == 0 {
		fmt.Fprintln(c.App.Writer, "stock is consistent with the stock log")
		return nil
	}

	for _, m := range mismatches {
		fmt.Fprintf(c.App.Writer, "product %d %q: stock=%d log_sum=%d drift=%d\n", m.ProductID, m.Name, m.Stock, m.LogSum, m.Drift)
	}
	return cli.Exit(fmt.Sprintf("%d product(s) out of balance", len(mismatches)), 2)
}

func resetPasswordAction(c *cli.Context) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = e.log.Sync() }()

	db, err := e.connect()
	if err != nil {
		return err
	}
	users := repository.NewUserRepo(db)

	// 1. Find user
	user, err := users.FindByEmail(c.Context, c.String("email"))
	if err != nil {
		return err
	}

	// 2. Hash new password
	if err := user.SetPassword(c.String("password")); err != nil {
		return errors.Wrap(err, "hash password")
	}

	// 3. Update, rotating the token version so open sessions end
	if err := users.UpdatePassword(c.Context, user.ID, user.Password, uuid.NewString()); err != nil {
		return err
	}

	e.log.Info("password reset", zap.String("email", user.Email))
	return nil
}

func seedAction(c *cli.Context) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = e.log.Sync() }()

	db, err := e.connect()
	if err != nil {
		return err
	}
	return seed.Defaults(c.Context, db, seed.Admin{Email: e.cfg.AdminEmail, Password: e.cfg.AdminPassword}, e.log.Named("seed"))
}
