package cli

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/shortsget/shortsget/internal/config"
	"github.com/shortsget/shortsget/internal/provider"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage shortsget configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadOrDefault()

		fmt.Println("Current configuration:")
		fmt.Printf("  OutputDir:       %s\n", cfg.OutputDir)
		fmt.Printf("  ListenAddr:      %s\n", cfg.ListenAddr)
		fmt.Printf("  LogLevel:        %s\n", cfg.LogLevel)
		fmt.Printf("  ProviderTimeout: %s\n", cfg.ProviderTimeout)
		fmt.Printf("  ProbeTimeout:    %s\n", cfg.ProbeTimeout)
		fmt.Printf("  MaxAttempts:     %d\n", cfg.MaxAttempts)
		fmt.Printf("  Audit:           %t\n", cfg.AuditEnabled)
		fmt.Printf("  Config:          %s\n", config.SavePath())

		if cfg.RapidAPI.Key != "" {
			key := cfg.RapidAPI.Key
			masked := key
			if len(key) > 8 {
				masked = key[:4] + "..." + key[len(key)-4:]
			}
			fmt.Printf("\nRapidAPI key: %s\n", masked)
		}

		fmt.Println("\nProvider chain:")
		for _, p := range provider.Chain(cfg) {
			fmt.Printf("  - %s\n", p.Name())
		}
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.SavePath())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Run: func(cmd *cobra.Command, args []string) {
		if config.Exists() {
			fmt.Fprintf(os.Stderr, "Config already exists at %s\n", config.SavePath())
			os.Exit(1)
		}
		if err := config.Save(config.Default()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", config.SavePath())
	},
}

var configKeyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the RapidAPI key",
}

var configKeySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the RapidAPI key",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadOrDefault()

		key, _ := cmd.Flags().GetString("key")
		if key == "" {
			fmt.Print("RapidAPI key: ")
			keyBytes, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Println()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to read key: %v\n", err)
				os.Exit(1)
			}
			key = string(keyBytes)
		}

		if key == "" {
			fmt.Fprintln(os.Stderr, "Key is required")
			os.Exit(1)
		}

		cfg.RapidAPI.Key = key
		if err := config.Save(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Key saved. The rapidapi provider is now enabled.")
	},
}

var configKeyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the RapidAPI key",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadOrDefault()
		cfg.RapidAPI.Key = ""

		if err := config.Save(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Key removed.")
	},
}

func init() {
	configKeySetCmd.Flags().String("key", "", "key value (prompted when omitted)")
	configKeyCmd.AddCommand(configKeySetCmd)
	configKeyCmd.AddCommand(configKeyClearCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configKeyCmd)

	rootCmd.AddCommand(configCmd)
}
