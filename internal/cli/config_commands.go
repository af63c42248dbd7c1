package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ontahood/drivefetch/internal/config"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialize the configuration file",
	}
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigInitCmd())
	return configCmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			path := cfgFile
			if path == "" {
				path = config.DefaultConfigPath()
			}
			fmt.Printf("config file:     %s\n", path)
			fmt.Printf("token_file:      %s\n", cfg.TokenFile)
			fmt.Printf("output_dir:      %s\n", cfg.OutputDir)
			fmt.Printf("image_width:     %d\n", cfg.ImageWidth)
			fmt.Printf("workers:         %d\n", cfg.Workers)
			fmt.Printf("max_attempts:    %d\n", cfg.MaxAttempts)
			fmt.Printf("original_images: %t\n", cfg.OriginalImages)
			fmt.Printf("download_videos: %t\n", cfg.DownloadVideos)
			fmt.Printf("download_docs:   %t\n", cfg.DownloadDocs)
			fmt.Printf("overwrite:       %t\n", cfg.Overwrite)
			fmt.Printf("proxy mode:      %s\n", cfg.ProxyMode)
			if cfg.ProxyHost != "" {
				fmt.Printf("proxy host:      %s:%d\n", cfg.ProxyHost, cfg.ProxyPort)
			}
			fmt.Printf("log level:       %s\n", cfg.LogLevel)
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the current settings",
		Long: `Writes the resolved configuration (defaults, file, environment and
flags combined) back to the config file, creating it if needed. The
proxy password is never written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path := cfgFile
			if path == "" {
				path = config.DefaultConfigPath()
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
}
