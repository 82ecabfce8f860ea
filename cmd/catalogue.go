package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/content"
)

var catalogueCmd = &cobra.Command{
	Use:   "catalogue",
	Short: "Print the content catalogue as YAML",
	Long:  `Prints the catalogue the server would render, after validation. Useful as a starting point for a custom content file.`,
	RunE:  runCatalogue,
}

func init() {
	rootCmd.AddCommand(catalogueCmd)
}

func runCatalogue(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cat, err := loadCatalogue(cfg.Content.File)
	if err != nil {
		return err
	}
	out, err := cat.Encode()
	if err != nil {
		return fmt.Errorf("encoding catalogue: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func loadCatalogue(path string) (*content.Catalogue, error) {
	if path == "" {
		return content.Default()
	}
	return content.LoadFile(path)
}
