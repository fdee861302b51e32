package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"retrovue/internal/broadcast"
	"retrovue/internal/store"
)

func newTemplateCommand(ctx *commandContext) *cobra.Command {
	templateCmd := &cobra.Command{
		Use:   "template",
		Short: "Manage schedule templates",
	}

	templateCmd.AddCommand(newTemplateAddCommand(ctx))
	templateCmd.AddCommand(newTemplateListCommand(ctx))
	templateCmd.AddCommand(newTemplateBlockCommand(ctx))

	return templateCmd
}

func newTemplateAddCommand(ctx *commandContext) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tpl := &broadcast.Template{
				Name:        args[0],
				Description: description,
				IsActive:    true,
			}
			return ctx.withStore(func(st *store.Store) error {
				if err := st.CreateTemplate(cmd.Context(), tpl); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created template %s (id %d)\n", tpl.Name, tpl.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Template description")
	return cmd
}

func newTemplateListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List templates and their blocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				templates, err := st.ListTemplates(cmd.Context())
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(templates) == 0 {
					fmt.Fprintln(stdout, "No templates configured")
					return nil
				}

				for _, tpl := range templates {
					fmt.Fprintf(stdout, "%s (id %d, active: %s)\n", tpl.Name, tpl.ID, yesNo(tpl.IsActive))
					blocks, err := st.ListBlocks(cmd.Context(), tpl.ID)
					if err != nil {
						return err
					}
					if len(blocks) == 0 {
						fmt.Fprintln(stdout, "  no blocks")
						continue
					}
					rows := make([][]string, 0, len(blocks))
					for _, b := range blocks {
						order := string(b.Rule.Order)
						if order == "" {
							order = string(broadcast.OrderLeastRecent)
						}
						rows = append(rows, []string{
							fmt.Sprintf("%d", b.ID),
							b.Start.String(),
							b.End.String(),
							b.Rule.Summary(),
							order,
						})
					}
					fmt.Fprintln(stdout, renderTable(
						[]tableColumn{numCol("Block"), col("Start"), col("End"), col("Content"), col("Order")},
						rows,
					))
				}
				return nil
			})
		},
	}
}

func newTemplateBlockCommand(ctx *commandContext) *cobra.Command {
	blockCmd := &cobra.Command{
		Use:   "block",
		Short: "Manage template blocks",
	}
	blockCmd.AddCommand(newTemplateBlockAddCommand(ctx))
	return blockCmd
}

func newTemplateBlockAddCommand(ctx *commandContext) *cobra.Command {
	var start, end string
	var tags, excludeTags []string
	var minDuration, maxDuration time.Duration
	var order string

	cmd := &cobra.Command{
		Use:   "add <template>",
		Short: "Add a block to a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			startMinute, err := broadcast.ParseClockTime(start)
			if err != nil {
				return fmt.Errorf("start: %w", err)
			}
			endMinute, err := broadcast.ParseClockTime(end)
			if err != nil {
				return fmt.Errorf("end: %w", err)
			}

			return ctx.withStore(func(st *store.Store) error {
				tpl, err := st.GetTemplateByName(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				block := &broadcast.TemplateBlock{
					TemplateID: tpl.ID,
					Start:      startMinute,
					End:        endMinute,
					Rule: broadcast.BlockRule{
						TagsRequired:  tags,
						TagsExcluded:  excludeTags,
						MinDurationMS: minDuration.Milliseconds(),
						MaxDurationMS: maxDuration.Milliseconds(),
						Order:         broadcast.OrderPolicy(order),
					},
				}
				if err := st.AddBlock(cmd.Context(), block); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added block %s-%s to template %s\n", block.Start, block.End, tpl.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Block start time (HH:MM)")
	cmd.Flags().StringVar(&end, "end", "", "Block end time (HH:MM, 24:00 allowed)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Required asset tag (repeatable)")
	cmd.Flags().StringSliceVar(&excludeTags, "exclude-tag", nil, "Excluded asset tag (repeatable)")
	cmd.Flags().DurationVar(&minDuration, "min-duration", 0, "Minimum asset runtime")
	cmd.Flags().DurationVar(&maxDuration, "max-duration", 0, "Maximum asset runtime")
	cmd.Flags().StringVar(&order, "order", "", "Selection order policy (least_recent or by_id)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}
