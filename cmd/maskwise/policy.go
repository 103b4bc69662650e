package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bluewave-labs/maskwise-sub001/pkg/cli"
	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/manager"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage stored policies",
	Long:  `Create, inspect, update, list, and delete stored anonymization policies.`,
}

var policyCreateFlags struct {
	file        string
	name        string
	description string
	actor       string
}

var policyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a policy from a YAML file",
	Long: `Validate a policy file and store it as a new policy at version 1.0.0.

The policy name defaults to the document's name field and must not
collide with another active policy.

Examples:
  maskwise policy create --file policy.yaml
  maskwise policy create --file policy.yaml --name "Production PII"`,
	RunE: runPolicyCreate,
}

var policyUpdateFlags struct {
	file        string
	name        string
	description string
	changelog   string
	actor       string
}

var policyUpdateCmd = &cobra.Command{
	Use:   "update <policy-id>",
	Short: "Update a policy",
	Long: `Update a policy's metadata or its configuration content.

Renames and description changes leave the version untouched. New
content from --file is validated like a create and, when it differs
from the active version, appended as a new minor version.

Examples:
  maskwise policy update 4f1f… --description "Tightened thresholds"
  maskwise policy update 4f1f… --file policy.yaml --changelog "Add SSN rule"`,
	Args: cobra.ExactArgs(1),
	RunE: runPolicyUpdate,
}

var policyGetFlags struct {
	format string
}

var policyGetCmd = &cobra.Command{
	Use:   "get <policy-id>",
	Short: "Show one policy",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyGet,
}

var policyListFlags struct {
	page       int
	limit      int
	search     string
	activeOnly bool
	format     string
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored policies",
	RunE:  runPolicyList,
}

var policyVersionsFlags struct {
	format string
}

var policyVersionsCmd = &cobra.Command{
	Use:   "versions <policy-id>",
	Short: "Show a policy's version history",
	Long:  `List every version of a policy, newest first. History is append-only.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyVersions,
}

var policyDeleteFlags struct {
	actor string
}

var policyDeleteCmd = &cobra.Command{
	Use:   "delete <policy-id>",
	Short: "Delete a policy",
	Long: `Soft-delete a policy. The version history is retained; the policy
stops appearing in active listings and its name is freed for reuse.`,
	Args: cobra.ExactArgs(1),
	RunE: runPolicyDelete,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyCreateCmd, policyUpdateCmd, policyGetCmd,
		policyListCmd, policyVersionsCmd, policyDeleteCmd)

	policyCreateCmd.Flags().StringVarP(&policyCreateFlags.file, "file", "f", "", "policy YAML file (required)")
	policyCreateCmd.Flags().StringVar(&policyCreateFlags.name, "name", "", "policy name (defaults to the document's name)")
	policyCreateCmd.Flags().StringVar(&policyCreateFlags.description, "description", "", "policy description")
	policyCreateCmd.Flags().StringVar(&policyCreateFlags.actor, "actor", "cli", "actor recorded on the audit trail")
	policyCreateCmd.MarkFlagRequired("file")

	policyUpdateCmd.Flags().StringVarP(&policyUpdateFlags.file, "file", "f", "", "replacement policy YAML file")
	policyUpdateCmd.Flags().StringVar(&policyUpdateFlags.name, "name", "", "new policy name")
	policyUpdateCmd.Flags().StringVar(&policyUpdateFlags.description, "description", "", "new policy description")
	policyUpdateCmd.Flags().StringVar(&policyUpdateFlags.changelog, "changelog", "", "changelog for the new version")
	policyUpdateCmd.Flags().StringVar(&policyUpdateFlags.actor, "actor", "cli", "actor recorded on the audit trail")

	policyGetCmd.Flags().StringVar(&policyGetFlags.format, "format", "json", "output format: text, json")

	policyListCmd.Flags().IntVar(&policyListFlags.page, "page", 1, "page number")
	policyListCmd.Flags().IntVar(&policyListFlags.limit, "limit", 20, "page size (max 100)")
	policyListCmd.Flags().StringVar(&policyListFlags.search, "search", "", "substring filter on name and description")
	policyListCmd.Flags().BoolVar(&policyListFlags.activeOnly, "active", false, "only active policies")
	policyListCmd.Flags().StringVar(&policyListFlags.format, "format", "text", "output format: text, json")

	policyVersionsCmd.Flags().StringVar(&policyVersionsFlags.format, "format", "text", "output format: text, json")

	policyDeleteCmd.Flags().StringVar(&policyDeleteFlags.actor, "actor", "cli", "actor recorded on the audit trail")
}

func runPolicyCreate(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(policyCreateFlags.file)
	if err != nil {
		return err
	}

	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	pol, err := app.manager.Create(cmd.Context(), policyCreateFlags.actor, manager.CreateRequest{
		Name:        policyCreateFlags.name,
		Description: policyCreateFlags.description,
		RawText:     raw,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created policy %q (id %s, version %s)\n", pol.Name, pol.ID, pol.Version)
	return nil
}

func runPolicyUpdate(cmd *cobra.Command, args []string) error {
	patch := manager.Patch{Changelog: policyUpdateFlags.changelog}
	if policyUpdateFlags.name != "" {
		patch.Name = &policyUpdateFlags.name
	}
	if policyUpdateFlags.description != "" {
		patch.Description = &policyUpdateFlags.description
	}
	if policyUpdateFlags.file != "" {
		raw, err := os.ReadFile(policyUpdateFlags.file)
		if err != nil {
			return err
		}
		patch.RawText = raw
	}

	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	pol, err := app.manager.Update(cmd.Context(), policyUpdateFlags.actor, args[0], patch)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "updated policy %q (version %s)\n", pol.Name, pol.Version)
	return nil
}

func runPolicyGet(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	pol, err := app.manager.GetOne(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	formatter, err := cli.NewFormatter(policyGetFlags.format)
	if err != nil {
		return err
	}
	return formatter.FormatTo(cmd.OutOrStdout(), pol)
}

func runPolicyList(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	page, err := app.manager.ListAll(cmd.Context(), manager.ListOptions{
		Page:       policyListFlags.page,
		Limit:      policyListFlags.limit,
		Search:     policyListFlags.search,
		ActiveOnly: policyListFlags.activeOnly,
	})
	if err != nil {
		return err
	}

	if policyListFlags.format == string(cli.FormatJSON) {
		formatter, err := cli.NewFormatter(policyListFlags.format)
		if err != nil {
			return err
		}
		return formatter.FormatTo(cmd.OutOrStdout(), page)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tVERSION\tACTIVE\tDESCRIPTION")
	for _, pol := range page.Policies {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", pol.ID, pol.Name, pol.Version, pol.Active, pol.Description)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d policies (page %d)\n", len(page.Policies), page.Total, page.Page)
	return nil
}

func runPolicyVersions(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	versions, err := app.manager.ListVersions(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if policyVersionsFlags.format == string(cli.FormatJSON) {
		formatter, err := cli.NewFormatter(policyVersionsFlags.format)
		if err != nil {
			return err
		}
		return formatter.FormatTo(cmd.OutOrStdout(), versions)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tACTIVE\tCREATED\tCHANGELOG")
	for _, v := range versions {
		fmt.Fprintf(w, "%s\t%t\t%s\t%s\n", v.Version, v.Active, v.CreatedAt.Format("2006-01-02 15:04:05"), v.Changelog)
	}
	return w.Flush()
}

func runPolicyDelete(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.manager.Delete(cmd.Context(), policyDeleteFlags.actor, args[0]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "deleted policy %s\n", args[0])
	return nil
}
