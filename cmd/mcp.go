package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/radar/internal/config"
	"github.com/nextlevelbuilder/radar/internal/mcp"
	"github.com/nextlevelbuilder/radar/internal/tools"
)

func mcpCmd() *cobra.Command {
	var withFinalize bool
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the catalog tools over MCP stdio",
		Long:  "Exposes search_products and compute_budget to MCP clients. finalize_purchase is only exposed with --finalize; its store notices are not delivered from this mode.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			stores, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("open stores: %w", err)
			}
			if stores.Close != nil {
				defer stores.Close()
			}

			reg := tools.NewRegistry()
			tools.RegisterCatalogTools(reg, stores.Catalog)
			names := []string{"search_products", "compute_budget"}
			if withFinalize {
				names = append(names, "finalize_purchase")
			}

			srv, err := mcp.NewServer(reg, Version, names...)
			if err != nil {
				return err
			}
			return mcp.ServeStdio(srv)
		},
	}
	cmd.Flags().BoolVar(&withFinalize, "finalize", false, "also expose finalize_purchase")
	return cmd
}
