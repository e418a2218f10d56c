package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/canonica-labs/canonica/internal/capabilities"
	"github.com/canonica-labs/canonica/internal/tables"
	"github.com/canonica-labs/canonica/pkg/models"
)

func (c *CLI) newTableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Table inspection commands",
		Long:  `Inspect tables the gateway has discovered from its configured data sources.`,
	}

	cmd.AddCommand(c.newTableValidateCmd())
	cmd.AddCommand(c.newTableDescribeCmd())
	cmd.AddCommand(c.newTableListCmd())

	return cmd
}

func (c *CLI) newTableValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file.yaml>",
		Short: "Validate a virtual table definition file",
		Long: `Validate a virtual table definition file against the local schema.

This is a local, offline check - it does not contact the gateway. Table
discovery for the gateway itself happens from its configured data
sources, not from files registered by the CLI.

Example file:
  name: analytics.sales_orders
  description: Sales order data from the warehouse
  sources:
    - format: DELTA
      location: s3://data-lake/sales/orders
  capabilities:
    - READ
    - TIME_TRAVEL
  constraints:
    - READ_ONLY`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTableValidate(args[0])
		},
	}
}

func (c *CLI) runTableValidate(filePath string) error {
	vt, err := c.parseTableDefinition(filePath)
	if err != nil {
		if c.jsonOutput {
			return c.outputJSON(map[string]interface{}{
				"valid":  false,
				"file":   filePath,
				"errors": []string{err.Error()},
			})
		}
		c.errorf("Parse error: %v\n", err)
		return err
	}

	if err := vt.Validate(); err != nil {
		if c.jsonOutput {
			return c.outputJSON(map[string]interface{}{
				"valid":  false,
				"file":   filePath,
				"table":  vt.Name,
				"errors": []string{err.Error()},
			})
		}
		c.errorf("Validation failed: %v\n", err)
		return err
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"valid": true,
			"file":  filePath,
			"table": vt.Name,
		})
	}

	c.printf("✓ %s: valid\n", filePath)
	c.printf("  Table: %s\n", vt.Name)
	c.printf("  Sources: %d\n", len(vt.Sources))
	c.printf("  Capabilities: %s\n", formatCapabilities(vt.Capabilities))
	if len(vt.Constraints) > 0 {
		c.printf("  Constraints: %s\n", formatConstraints(vt.Constraints))
	}

	return nil
}

func (c *CLI) newTableDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <schema.table>",
		Short: "Describe a table the gateway has discovered",
		Long:  `Display the data source, schema, and columns of a discovered table.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTableDescribe(args[0])
		},
	}
}

func (c *CLI) runTableDescribe(tableName string) error {
	client := c.newGatewayClient()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	table, err := client.DescribeTable(ctx, tableName)
	if err != nil {
		c.errorf("Failed to describe table: %v\n", err)
		return err
	}

	if c.jsonOutput {
		return c.outputJSON(table)
	}

	c.printf("Table: %s.%s.%s\n", table.DataSource, table.Schema, table.Table)
	c.println("  Columns:")
	for _, col := range table.Columns {
		nullable := ""
		if col.Nullable {
			nullable = " (nullable)"
		}
		c.printf("    - %s: %s%s\n", col.Column, col.Type, nullable)
	}

	return nil
}

func (c *CLI) newTableListCmd() *cobra.Command {
	var namePattern string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tables the gateway has discovered",
		Long:  `List tables across every data source the gateway has discovered, optionally filtered by a LIKE pattern.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTableList(namePattern)
		},
	}

	cmd.Flags().StringVar(&namePattern, "name", "", "filter by table name (SQL LIKE pattern)")

	return cmd
}

func (c *CLI) runTableList(namePattern string) error {
	client := c.newGatewayClient()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tables, err := client.ListTables(ctx, namePattern)
	if err != nil {
		c.errorf("Failed to list tables: %v\n", err)
		return err
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"tables": tables,
		})
	}

	if len(tables) == 0 {
		c.println("No tables discovered")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATA SOURCE\tSCHEMA\tTABLE")
	for _, t := range tables {
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.DataSource, t.Schema, t.Table)
	}
	w.Flush()

	return nil
}

// Helper functions

func (c *CLI) parseTableDefinition(filePath string) (*tables.VirtualTable, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var def models.TableDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	vt := &tables.VirtualTable{
		Name:        def.Name,
		Description: def.Description,
	}

	for _, src := range def.Sources {
		vt.Sources = append(vt.Sources, tables.PhysicalSource{
			Format:   tables.StorageFormat(strings.ToUpper(src.Format)),
			Location: src.Location,
			Engine:   src.Engine,
		})
	}

	for _, capStr := range def.Capabilities {
		cap, err := capabilities.ParseCapability(capStr)
		if err != nil {
			return nil, err
		}
		vt.Capabilities = append(vt.Capabilities, cap)
	}

	for _, conStr := range def.Constraints {
		con, err := capabilities.ParseConstraint(conStr)
		if err != nil {
			return nil, err
		}
		vt.Constraints = append(vt.Constraints, con)
	}

	return vt, nil
}

func formatCapabilities(caps []capabilities.Capability) string {
	if len(caps) == 0 {
		return "(none)"
	}
	strs := make([]string, len(caps))
	for i, c := range caps {
		strs[i] = string(c)
	}
	return strings.Join(strs, ", ")
}

func formatConstraints(cons []capabilities.Constraint) string {
	if len(cons) == 0 {
		return "(none)"
	}
	strs := make([]string, len(cons))
	for i, c := range cons {
		strs[i] = string(c)
	}
	return strings.Join(strs, ", ")
}
