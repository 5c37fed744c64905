package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chenyuwen/myf2fs/internal/device"
	"github.com/chenyuwen/myf2fs/pkg/app"
)

var (
	// Global output flags
	verbose      bool
	quiet        bool
	outputFormat string
	configFile   string
	imageOffset  int64
)

// appCtx is built once flags and configuration are known
var appCtx *app.Context

var rootCmd = &cobra.Command{
	Use:   "myf2fs",
	Short: "Read-only F2FS image inspector",
	Long: `myf2fs is a read-only command-line tool for inspecting F2FS filesystem
images. It validates the superblock and checkpoint, resolves node ids
through the NAT and walks directories without mounting the image.

Commands:
  super       Show the superblock
  checkpoint  Show the current checkpoint
  nat         Show NAT state and resolve node ids
  ls          List a directory
  stat        Describe one path
  config      Show the effective configuration`,
	Version:           "0.1.0-dev",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	flags.StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	flags.StringVar(&configFile, "config", "", "config file (default f2fs-config.yaml in ., ./config, $HOME/.myf2fs, /etc/myf2fs)")
	flags.Bool("metrics", false, "print block device metrics after the command")
	flags.Int64Var(&imageOffset, "offset", -1, "byte offset of the filesystem in the image (default: detect)")

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

// setup loads the configuration and builds the application context
func setup(cmd *cobra.Command, args []string) error {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	flags := cmd.Root().PersistentFlags()
	if err := v.BindPFlag("output_format", flags.Lookup("output")); err != nil {
		return err
	}
	if err := v.BindPFlag("metrics", flags.Lookup("metrics")); err != nil {
		return err
	}

	config, err := device.LoadConfig(v)
	if err != nil {
		return err
	}

	ctx := app.NewContext()
	ctx.Config = config
	ctx.OutputFormat = config.OutputFormat
	ctx.Verbose = verbose
	ctx.Quiet = quiet
	ctx.Out = cmd.OutOrStdout()

	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	ctx.Logger = logrus.NewEntry(logger)
	if err := ctx.ConfigureLogger(); err != nil {
		return err
	}
	if used := v.ConfigFileUsed(); used != "" {
		ctx.Logger.WithField("file", used).Debug("configuration file loaded")
	}

	if config.Metrics {
		ctx.Metrics = device.NewMetrics()
	}

	appCtx = ctx
	return nil
}
