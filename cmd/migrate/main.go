// Command migrate applies the embedded schema migrations.
//
//	migrate up
//	migrate down [steps]
//	migrate version
//	migrate force <version>
//	migrate goto <version>
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/prode-predictions/internal/config"
	"github.com/iliyamo/prode-predictions/internal/database"
	"github.com/iliyamo/prode-predictions/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}
	log := logging.New(os.Getenv("APP_ENV"))
	defer func() { _ = log.Sync() }()

	cfg, err := config.LoadDB()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}
	m, err := database.NewMigrator(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		log.Fatal("create migrator", zap.Error(err))
	}
	defer closeMigrator(m, log)

	switch cmd := strings.ToLower(strings.TrimSpace(os.Args[1])); cmd {
	case "up":
		check(log, m.Up())
		log.Info("migrations applied")
	case "down":
		steps, err := parseSteps(os.Args[2:])
		if err != nil {
			log.Fatal("parse steps", zap.Error(err))
		}
		check(log, m.Steps(-steps))
		log.Info("rolled back", zap.Int("steps", steps))
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("version: none")
			fmt.Println("dirty: false")
			return
		}
		if err != nil {
			log.Fatal("read version", zap.Error(err))
		}
		fmt.Printf("version: %d\n", version)
		fmt.Printf("dirty: %t\n", dirty)
	case "force":
		version, err := parseVersion(os.Args[2:])
		if err != nil {
			log.Fatal("parse version", zap.Error(err))
		}
		if err := m.Force(version); err != nil {
			log.Fatal("force version", zap.Int("version", version), zap.Error(err))
		}
		log.Info("forced version", zap.Int("version", version))
	case "goto":
		version, err := parseVersion(os.Args[2:])
		if err != nil {
			log.Fatal("parse version", zap.Error(err))
		}
		check(log, m.Migrate(uint(version)))
		log.Info("migrated", zap.Int("version", version))
	default:
		printUsage()
		os.Exit(2)
	}
}

func check(log *zap.Logger, err error) {
	if err == nil || errors.Is(err, migrate.ErrNoChange) {
		return
	}
	log.Fatal("migration failed", zap.Error(err))
}

func parseSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	steps, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return 0, fmt.Errorf("invalid down steps %q: %w", args[0], err)
	}
	if steps <= 0 {
		return 0, errors.New("down steps must be > 0")
	}
	return steps, nil
}

func parseVersion(args []string) (int, error) {
	if len(args) == 0 {
		return 0, errors.New("a version argument is required")
	}
	v, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", args[0], err)
	}
	if v < 0 {
		return 0, errors.New("version must be >= 0")
	}
	return v, nil
}

func closeMigrator(m *migrate.Migrate, log *zap.Logger) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		log.Warn("close migration source", zap.Error(srcErr))
	}
	if dbErr != nil {
		log.Warn("close migration database", zap.Error(dbErr))
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: migrate up | down [steps] | version | force <version> | goto <version>")
}
