package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"unicode"

	"github.com/dvloznov/statement-importer/internal/app"
	"github.com/dvloznov/statement-importer/internal/config"
	"github.com/dvloznov/statement-importer/internal/logger"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cli carries the state shared by every subcommand. app is opened lazily in
// the root PersistentPreRunE.
type cli struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	log     zerolog.Logger
	app     *app.App
}

func main() {
	pterm.Error.Prefix = pterm.Prefix{
		Text:  " ERROR ",
		Style: pterm.NewStyle(pterm.BgLightRed, pterm.FgBlack),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{v: config.NewViper()}
	root := c.newRootCmd()

	err := root.ExecuteContext(ctx)
	if c.app != nil {
		if cerr := c.app.Close(); cerr != nil {
			c.log.Warn().Err(cerr).Msg("close failed")
		}
	}
	if err != nil {
		pterm.Error.Println(capitalize(err.Error()))
		os.Exit(1)
	}
}

func (c *cli) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "importer",
		Short:         "Import bank statements into categorised withdrawals",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.cfgFile, "config", "c", "", "config file path (default ./config.yaml)")
	flags.String("store", "", "store driver: sqlite or bigquery")
	flags.String("db", "", "SQLite database path")
	flags.StringP("user", "u", "", "user the statements belong to")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	c.bind(root, true, "store.driver", "store")
	c.bind(root, true, "store.sqlite_path", "db")
	c.bind(root, true, "import.default_user", "user")
	c.bind(root, true, "log.level", "log-level")

	root.AddCommand(
		c.newImportCmd(),
		c.newParseCmd(),
		c.newUploadCmd(),
		c.newMigrateCmd(),
		c.newCategoriesCmd(),
		c.newTransactionsCmd(),
		c.newExportNotionCmd(),
	)
	return root
}

// bind ties a flag to a config key. Unset flags leave the key alone.
func (c *cli) bind(cmd *cobra.Command, persistent bool, key, name string) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	if err := c.v.BindPFlag(key, flags.Lookup(name)); err != nil {
		panic(fmt.Sprintf("bind %s: %v", key, err))
	}
}

func (c *cli) setup(ctx context.Context) error {
	cfg, err := config.Load(c.v, c.cfgFile)
	if err != nil {
		return err
	}
	c.cfg = cfg

	log, err := logger.NewFromConfig(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	c.log = log

	a, err := app.Open(logger.WithContext(ctx, log), cfg, log)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

// ctx returns the command context carrying the configured logger.
func (c *cli) ctx(cmd *cobra.Command) context.Context {
	return logger.WithContext(cmd.Context(), c.log)
}

func (c *cli) user() string {
	return c.cfg.Import.DefaultUser
}

func capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
