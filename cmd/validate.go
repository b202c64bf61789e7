package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/shipswitch/internal/config"
	"firestige.xyz/shipswitch/internal/policy"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and policy files",
	Long: `Load the configuration and the policy it points to without opening any port.

Prefixes that can never match a parsed sentence are reported as warnings.

Examples:
  shipswitch validate -c config.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(configFile, cmd.OutOrStdout()); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

func runValidate(cfgPath string, out io.Writer) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	tbl, err := policy.LoadTable(cfg.PolicyFile)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "VALID: %d node(s), %s backend, policy %s\n", tbl.Len(), cfg.Backend.Type, cfg.PolicyFile)
	for _, w := range tbl.Lint() {
		fmt.Fprintf(out, "WARN: %s\n", w)
	}
	return nil
}
