package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/shipswitch/internal/config"
	"firestige.xyz/shipswitch/internal/policy"
)

var policyFile string

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Print the resolved node table",
	Long: `Print every node with its port, addresses and prefixes as YAML.

Examples:
  shipswitch policy -c config.yml
  shipswitch policy -p policy.toml`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runPolicy(configFile, policyFile, cmd.OutOrStdout()); err != nil {
			exitWithError("failed to show policy", err)
		}
	},
}

func init() {
	policyCmd.Flags().StringVarP(&policyFile, "policy", "p", "", "policy file (overrides the config's policy_file)")
}

type nodeView struct {
	Port     int      `yaml:"port"`
	Key      string   `yaml:"key"`
	Name     string   `yaml:"name"`
	Iface    string   `yaml:"iface,omitempty"`
	MAC      string   `yaml:"mac"`
	IP       string   `yaml:"ip"`
	Sends    []string `yaml:"sends,flow"`
	Receives []string `yaml:"receives,flow"`
}

type policyView struct {
	Nodes []nodeView `yaml:"nodes"`
}

func runPolicy(cfgPath, override string, out io.Writer) error {
	tbl, err := loadPolicy(cfgPath, override)
	if err != nil {
		return err
	}

	view := policyView{Nodes: make([]nodeView, 0, tbl.Len())}
	for _, n := range tbl.Nodes() {
		view.Nodes = append(view.Nodes, nodeView{
			Port:     n.Port,
			Key:      n.Key,
			Name:     n.Name,
			Iface:    n.Iface,
			MAC:      n.MAC.String(),
			IP:       n.IP.String(),
			Sends:    n.Sends.List(),
			Receives: n.Receives.List(),
		})
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(view); err != nil {
		return fmt.Errorf("encode policy: %w", err)
	}
	return enc.Close()
}

// loadPolicy loads override when set, otherwise the config's policy file.
func loadPolicy(cfgPath, override string) (*policy.Table, error) {
	if override != "" {
		return policy.LoadTable(override)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return policy.LoadTable(cfg.PolicyFile)
}
