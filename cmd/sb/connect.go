package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/daemon"
	"github.com/zulandar/signalbox/internal/db"
	"github.com/zulandar/signalbox/internal/store"
	"gorm.io/gorm"
)

func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", defaultConfigPath, "path to Signalbox config file")
}

// connectFromConfig loads the config and opens the configured database.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, gormDB, nil
}

// openStore is connectFromConfig for commands that only need the store.
func openStore(configPath string) (*store.Store, func(), error) {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	return store.New(gormDB), func() { db.Close(gormDB) }, nil
}

// openDaemon wires every component without starting any of them.
func openDaemon(cmd *cobra.Command, configPath string) (*daemon.Daemon, func(), error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	d, err := daemon.New(daemon.Opts{DB: gormDB, Config: cfg, Out: cmd.OutOrStdout()})
	if err != nil {
		db.Close(gormDB)
		return nil, nil, err
	}
	return d, func() { db.Close(gormDB) }, nil
}
