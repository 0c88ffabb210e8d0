// cmd/depsgen/main.go
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ammerola/db-rest-service/internal/depsgen"
	"github.com/ammerola/db-rest-service/internal/pkg/logger"
)

func main() {
	var (
		features   []string
		configPath string
		outputPath string
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:   "depsgen",
		Short: "Generate a pinned dependency list for a set of service features",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := "info"
			if verbose {
				level = "debug"
			}
			log := logger.New(logger.Config{Level: level, Format: "text", Output: os.Stderr})

			log.Info("loading dependency configuration", slog.String("path", configPath))
			manifest, err := depsgen.Load(configPath)
			if err != nil {
				return err
			}

			lines := manifest.Resolve(features, log.Logger)

			if outputPath == "-" {
				return depsgen.Write(cmd.OutOrStdout(), lines)
			}
			if err := depsgen.WriteFile(outputPath, lines); err != nil {
				return err
			}
			log.Info("dependency list generated",
				slog.String("output", outputPath),
				slog.Int("packages", len(lines)))
			return nil
		},
	}

	rootCmd.Flags().StringSliceVarP(&features, "features", "f", nil, "Features to include (e.g. api,postgresql)")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "dependencies-config.yml", "Path to the dependency configuration YAML file")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "dependencies.txt", "Output file, or - for stdout")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	_ = rootCmd.MarkFlagRequired("features")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
