// Package forge builds the per-receiver copies of a sentence frame.
package forge

import (
	"fmt"

	"firestige.xyz/shipswitch/internal/core"
	"firestige.xyz/shipswitch/internal/core/decoder"
	"firestige.xyz/shipswitch/internal/policy"
)

// Forge returns a copy of raw addressed to node: destination MAC and IPv4
// replaced, both checksums recomputed. raw is never modified.
func Forge(raw []byte, node policy.Node) ([]byte, error) {
	out, ok := decoder.Rewrite(raw, node.MAC, node.IP)
	if !ok {
		return nil, fmt.Errorf("%w: for node %q", core.ErrNotForgeable, node.Name)
	}
	return out, nil
}
