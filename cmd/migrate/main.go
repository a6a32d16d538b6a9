package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/sportsarena/membership-backend/pkg/config"
	"github.com/sportsarena/membership-backend/pkg/db"
	"github.com/sportsarena/membership-backend/pkg/logger"
	"github.com/sportsarena/membership-backend/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|redo|version|create|validate")
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set (create defaults to "+migrate.SourceDir+")")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	// create and validate only touch the filesystem
	switch *cmd {
	case "create":
		if *name == "" {
			exit("missing -name for create")
		}
		target := *dir
		if target == "" {
			target = migrate.SourceDir
		}
		path, err := migrate.Create(target, *name, time.Now())
		if err != nil {
			exit("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		versions, err := source(*dir).Validate()
		if err != nil {
			exit("migration validation failed: %v", err)
		}
		fmt.Printf("migration validation passed (%d migrations, latest %d)\n", len(versions), versions[len(versions)-1])
		return
	}

	var target int64
	if *cmd == "version" {
		if *version == "" {
			exit("missing -version for version command")
		}
		v, err := migrate.ParseVersion(*version)
		if err != nil {
			exit("%v", err)
		}
		target = v
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "resource not working: config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "resource not working: database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "resource not working: sql database", err)
		os.Exit(1)
	}

	switch *cmd {
	case "up", "down", "status", "redo":
		err = migrate.Run(ctx, sqlDB, source(*dir), *cmd)
	case "version":
		err = migrate.MigrateTo(ctx, sqlDB, source(*dir), target)
	default:
		exit("unknown -cmd value: %s", *cmd)
	}
	if err != nil {
		logg.Error(ctx, "migration command failed", err)
		os.Exit(1)
	}
	current, err := migrate.CurrentVersion(ctx, sqlDB)
	if err != nil {
		logg.Error(ctx, "reading schema version failed", err)
		os.Exit(1)
	}
	logg.Info(logg.WithField(ctx, "schema_version", current), "migration command complete")
}

func source(dir string) migrate.Source {
	if dir == "" {
		return migrate.Embedded()
	}
	return migrate.Disk(dir)
}

func exit(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
