package main

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/dosco/docorm/core"
	"github.com/dosco/docorm/mongodriver"
	"github.com/dosco/docorm/serv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// These variables are set using -ldflags
	version string
	commit  string
	date    string
)

var (
	log   *zap.SugaredLogger
	conf  *serv.Config
	pool  *mongodriver.Pool
	cpath string
)

const cmdTimeout = 30 * time.Second

// Cmd is the entry point for the CLI
func Cmd() {
	log = serv.NewConsoleLogger().Sugar()

	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("%s", err)
	}
}

func newRootCmd() *cobra.Command {
	cobra.EnableCommandSorting = false
	rootCmd := &cobra.Command{
		Use:           "docorm",
		Short:         BuildDetails(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cpath,
		"path", "./config", "path to config files")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(dbCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(explainCmd())
	return rootCmd
}

// setup reads the config file picked by GO_ENV from the config path
func setup(cpath string) error {
	if conf != nil {
		return nil
	}

	cp, err := filepath.Abs(cpath)
	if err != nil {
		return err
	}

	if conf, err = serv.ReadInConfig(path.Join(cp, serv.GetConfigName())); err != nil {
		return err
	}
	log = serv.NewLogger(conf).Sugar()
	return nil
}

// initPool connects every configured connection
func initPool(ctx context.Context) error {
	if pool != nil {
		return nil
	}
	var err error
	fs := afero.NewBasePathFs(afero.NewOsFs(), conf.ConfigPath)

	if pool, err = serv.NewPool(ctx, conf, log, fs); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	return nil
}

func closePool() {
	if pool == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Close(ctx); err != nil {
		log.Warnf("closing connections: %s", err)
	}
	pool = nil
}

// newDB creates the query builder over the connected pool
func newDB() (*core.DB, error) {
	return serv.NewDB(conf, pool, log.Desugar())
}
