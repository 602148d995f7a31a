package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/understandly/lockdownd/internal/model"
	"github.com/understandly/lockdownd/internal/navguard"
	"github.com/understandly/lockdownd/internal/policy"
)

var (
	checkPolicy string
	checkKind   string
	checkFormat string
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkPolicy, "policy", "", "Path to policy document (required)")
	checkCmd.Flags().StringVar(&checkKind, "kind", "navigation", "Request kind (navigation|subresource|websocket|ipc)")
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text|json)")
	checkCmd.MarkFlagRequired("policy")
}

var checkCmd = &cobra.Command{
	Use:   "check <url>...",
	Short: "Evaluate URLs against a policy offline",
	Long: "Loads the policy document and runs each URL through the navigation\n" +
		"guard without starting a session.\n\n" +
		"Exit code 0 if every URL is allowed, 1 if any is denied.\n" +
		"Use in CI to gate policy changes on expected reachability.",
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	kind, err := model.ParseRequestKind(checkKind)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	spec, err := policy.Load(ctx, checkPolicy)
	if err != nil {
		return err
	}

	guard := navguard.New(spec)
	denied := 0
	verdicts := make([]model.Verdict, 0, len(args))
	for _, u := range args {
		v := guard.Evaluate(u, kind)
		verdicts = append(verdicts, v)
		if !v.OK() {
			denied++
		}
	}

	switch checkFormat {
	case "json":
		out, err := json.MarshalIndent(verdicts, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	default:
		for i, v := range verdicts {
			if v.OK() {
				fmt.Printf("ALLOW %s\n", args[i])
			} else {
				fmt.Printf("DENY  %s (%s: %s)\n", args[i], v.Kind, v.Reason)
			}
		}
	}

	if denied > 0 {
		return fmt.Errorf("%d of %d URLs denied", denied, len(args))
	}
	return nil
}
