package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"membot/internal/config"
	"membot/internal/gateway"
	"membot/internal/stager"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your membot installation",
		Long: `Verifies that membot's configuration, memory service and object
storage are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("Membot Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				failed++
				fmt.Printf("\nRun 'membot init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return fmt.Errorf("%d check(s) failed", failed)
			}
			printPass("Config validation", "valid")
			passed++

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			// 3. Telegram token present
			if cfg.Telegram.Token == "" {
				printFail("Telegram token", "not configured")
				failed++
			} else {
				printPass("Telegram token", "configured")
				passed++
			}
			if len(cfg.Telegram.AllowFrom) == 0 {
				printWarn("Telegram allow list", "empty; all users will be accepted")
				warned++
			} else {
				printPass("Telegram allow list", fmt.Sprintf("%d user(s)", len(cfg.Telegram.AllowFrom)))
				passed++
			}

			// 4. Memory service reachable
			memoryGw := gateway.New(gateway.Config{
				BaseURL: cfg.Memory.BaseURL,
				Timeout: 5 * time.Second,
				Logger:  logger,
			})
			if err := memoryGw.Healthy(ctx); err != nil {
				printFail("Memory service", fmt.Sprintf("%s: %v", cfg.Memory.BaseURL, err))
				failed++
			} else {
				printPass("Memory service", cfg.Memory.BaseURL)
				passed++
			}

			// 5. Object storage reachable, bucket present
			store, err := stager.New(stager.Config{
				Endpoint:  cfg.Storage.Endpoint,
				AccessKey: cfg.Storage.AccessKey,
				SecretKey: cfg.Storage.SecretKey,
				Bucket:    cfg.Storage.Bucket,
				UseSSL:    cfg.Storage.UseSSL,
				Timeout:   5 * time.Second,
				Logger:    logger,
			})
			if err != nil {
				printFail("Object storage", err.Error())
				failed++
			} else if err := store.Healthy(ctx); err != nil {
				printFail("Object storage", fmt.Sprintf("%s: %v", cfg.Storage.Endpoint, err))
				failed++
			} else {
				printPass("Object storage", cfg.Storage.Endpoint)
				passed++
				if err := store.EnsureBucket(ctx); err != nil {
					printWarn("Storage bucket", fmt.Sprintf("%s: %v", cfg.Storage.Bucket, err))
					warned++
				} else {
					printPass("Storage bucket", cfg.Storage.Bucket)
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running membot.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nMembot should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! Membot is ready to run.\n")
			}
			return nil
		},
	}
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
