package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tsawler/inkpage"
	"github.com/tsawler/inkpage/cachedir"
	"github.com/tsawler/inkpage/config"
	"github.com/tsawler/inkpage/logging"
)

var (
	cfgFile  string
	logLevel string

	manager *config.Manager
	log     *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "inkpage",
	Short: "Paginate, cache and read e-books the way an e-ink reader does",
	Long: `inkpage opens EPUB, XTC/XTCH and plain-text books, paginates them for a
fixed panel size and caches the layout next to a fingerprint of the file,
so reopening a book is instant.

Commands cover the whole reader: building caches, rendering single pages,
an interactive reader, the local library, an OPDS catalog browser and
news sync.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		m, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		manager = m
		cfg := *m.Get()
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		log = cfg.Logger(os.Stderr)
		m.SetLogger(log)
		if f := m.ConfigFile(); f != "" {
			log.Debug("config loaded", "file", f)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.inkpage/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn or error",
	)

	rootCmd.AddCommand(indexCmd, pageCmd, readCmd, tocCmd, coverCmd,
		libraryCmd, browseCmd, syncCmd, clearCacheCmd, packCmd, initConfigCmd)
}

// cacheDir returns the configured cache directory.
func cacheDir() *cachedir.Dir {
	root := manager.Get().Cache.Root
	if root == "" {
		root = inkpage.DefaultCacheRoot()
	}
	return cachedir.New(root, cachedir.WithLogger(log))
}

// loader returns a loader for path with the current settings.
func loader(path string) *inkpage.Loader {
	cfg := manager.Get()
	return inkpage.Open(path).
		Cache(cacheDir()).
		Params(cfg.LayoutParams()).
		Fingerprint(cfg.Strategy()).
		ExcludeNavigation(cfg.Exclusion()).
		Logger(log)
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config <path>",
	Short: "Write the default configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.WriteDefault(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
		return nil
	},
}
