package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/understandly/lockdownd/internal/audit"
)

var (
	auditSession string
	auditJSON    bool
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditShowCmd)
	auditCmd.AddCommand(auditExportCmd)
	auditShowCmd.Flags().StringVar(&auditSession, "session", "", "Filter by session ID")
	auditShowCmd.Flags().BoolVar(&auditJSON, "json", false, "Output JSON")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Violation log operations",
	Long:  "Commands for verifying, inspecting, and exporting the hash-chained violation log.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <path>",
	Short: "Verify hash chain integrity of a violation log",
	Long: "Walks the JSONL violation log and validates that every entry's prev_hash\n" +
		"matches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.",
	Args: cobra.ExactArgs(1),
	RunE: runAuditVerify,
}

var auditShowCmd = &cobra.Command{
	Use:   "show <path>",
	Short: "Show a session's violation timeline",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditShow,
}

var auditExportCmd = &cobra.Command{
	Use:   "export <path> <db>",
	Short: "Persist a violation log into the SQLite store",
	Long: "Reads every entry of the JSONL violation log and writes it to the\n" +
		"durable SQLite store. Re-exporting is idempotent.",
	Args: cobra.ExactArgs(2),
	RunE: runAuditExport,
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	result := audit.Verify(args[0])
	if result.Valid {
		fmt.Printf("OK: %d entries verified\n", result.Lines)
		return nil
	}
	return fmt.Errorf("chain broken at line %d: %s", result.ErrorLine, result.Error)
}

func runAuditShow(cmd *cobra.Command, args []string) error {
	trail, err := audit.ReadSession(args[0], auditSession)
	if err != nil {
		return err
	}
	if auditJSON {
		out, err := audit.FormatJSON(trail)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(audit.FormatTimeline(trail))
	return nil
}

func runAuditExport(cmd *cobra.Command, args []string) error {
	trail, err := audit.ReadSession(args[0], "")
	if err != nil {
		return err
	}

	store, err := audit.OpenStore(args[1])
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := store.ImportTrail(ctx, trail)
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d entries to %s\n", n, args[1])
	return nil
}
