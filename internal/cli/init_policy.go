package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/understandly/lockdownd/internal/policy"
)

var initPolicyOut string

func init() {
	rootCmd.AddCommand(initPolicyCmd)
	initPolicyCmd.Flags().StringVarP(&initPolicyOut, "out", "o", "lockdown.policy.yaml", "Output path")
}

var initPolicyCmd = &cobra.Command{
	Use:   "init-policy",
	Short: "Generate a commented policy template",
	Long: "Writes a lockdown.policy.yaml with the default origin allowlist,\n" +
		"capability grants, headers, and escalation bounds.\n" +
		"Edit the file, then validate it with: lockdownd check --policy <path> <url>",
	RunE: runInitPolicy,
}

func runInitPolicy(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(initPolicyOut); err == nil {
		return fmt.Errorf("refusing to overwrite existing %s", initPolicyOut)
	}

	if dir := filepath.Dir(initPolicyOut); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("cannot create directory: %w", err)
		}
	}

	content := policy.TemplateYAML()

	// The template must always satisfy the loader.
	if _, err := policy.Parse([]byte(content)); err != nil {
		return fmt.Errorf("template failed validation: %w", err)
	}

	if err := os.WriteFile(initPolicyOut, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write policy: %w", err)
	}

	fmt.Printf("Created %s\n", initPolicyOut)
	return nil
}
