package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"retrovue/internal/broadcast"
	"retrovue/internal/store"
)

func newAssetCommand(ctx *commandContext) *cobra.Command {
	assetCmd := &cobra.Command{
		Use:   "asset",
		Short: "Manage catalog assets",
	}

	assetCmd.AddCommand(newAssetAddCommand(ctx))
	assetCmd.AddCommand(newAssetListCommand(ctx))

	return assetCmd
}

func newAssetAddCommand(ctx *commandContext) *cobra.Command {
	var duration time.Duration
	var tags []string
	var fileRef string
	var draft bool

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a catalog asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asset := &broadcast.CatalogAsset{
				Title:      args[0],
				DurationMS: duration.Milliseconds(),
				Tags:       tags,
				FileRef:    fileRef,
				Canonical:  !draft,
			}
			return ctx.withStore(func(st *store.Store) error {
				if err := st.AddAsset(cmd.Context(), asset); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added asset %s (id %d)\n", asset.Title, asset.ID)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 0, "Asset runtime (e.g. 22m30s)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Asset tag (repeatable)")
	cmd.Flags().StringVar(&fileRef, "file", "", "Media file reference")
	cmd.Flags().BoolVar(&draft, "draft", false, "Register as non-canonical (not schedulable)")
	_ = cmd.MarkFlagRequired("duration")
	return cmd
}

func newAssetListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				assets, err := st.ListAssets(cmd.Context())
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(assets) == 0 {
					fmt.Fprintln(stdout, "No assets in catalog")
					return nil
				}

				rows := make([][]string, 0, len(assets))
				for _, a := range assets {
					rows = append(rows, []string{
						fmt.Sprintf("%d", a.ID),
						a.Title,
						a.Duration().Truncate(time.Second).String(),
						fmt.Sprintf("%v", a.Tags),
						yesNo(a.Canonical),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]tableColumn{numCol("ID"), col("Title"), numCol("Duration"), col("Tags"), col("Canonical")},
					rows,
				))
				return nil
			})
		},
	}
}
