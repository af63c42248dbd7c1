// Package cli provides the command-line interface for drivefetch.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ontahood/drivefetch/internal/logging"
	"github.com/ontahood/drivefetch/internal/version"
)

var (
	// Global flags
	cfgFile    string
	tokenFile  string
	outputDir  string
	imageWidth int
	workers    int
	verbose    bool

	// Fetch behavior flags
	originalImages bool
	skipVideos     bool
	withDocs       bool
	overwrite      bool
	maxAttempts    int

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "drivefetch",
		Short: "Triage downloader for Google Drive folder trees",
		Long: `drivefetch ` + version.Version + ` - Built: ` + version.BuildTime + `
Walks shared Google Drive folders, takes stock of what is there, and
pulls down lightweight previews first so a large collection can be
reviewed before committing to full-size transfers.

Typical flow:
  drivefetch prescan <folder-url>   count everything without downloading
  drivefetch fetch <folder-url>     download previews (and videos/docs per config)
  drivefetch convert <dir>          upgrade downloaded previews to originals`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewCLI()
			if verbose {
				logging.SetGlobalLevel(-1) // zerolog.DebugLevel
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&tokenFile, "token-file", "", "Path to OAuth token JSON")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "o", "", "Local destination directory")
	rootCmd.PersistentFlags().IntVar(&imageWidth, "width", 0, "Preview rendition width in pixels")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "Concurrent download workers")
	rootCmd.PersistentFlags().IntVar(&maxAttempts, "max-attempts", 0, "Retry attempts per transfer")
	rootCmd.PersistentFlags().BoolVar(&originalImages, "original", false, "Fetch full-size images instead of previews")
	rootCmd.PersistentFlags().BoolVar(&skipVideos, "no-videos", false, "Do not download videos")
	rootCmd.PersistentFlags().BoolVar(&withDocs, "docs", false, "Also download documents (PDF, text, office files)")
	rootCmd.PersistentFlags().BoolVar(&overwrite, "overwrite", false, "Re-download files that already exist")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// Execute runs the CLI with Ctrl+C cancelling the active operation.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling; in-flight transfers are wound down...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)
	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newPrescanCmd())
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newConvertCmd())
	rootCmd.AddCommand(newAccountCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewCLI()
	}
	return logger
}

// GetContext returns the signal-aware root context.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}
