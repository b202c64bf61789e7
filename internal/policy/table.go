package policy

import (
	"fmt"

	"firestige.xyz/shipswitch/internal/core"
	"firestige.xyz/shipswitch/internal/nmea"
)

// Table is the immutable node list indexed by port.
type Table struct {
	nodes []Node
	byMAC map[core.MAC]int
}

// NewTable validates nodes and indexes them. Node i must carry Port i, and
// every MAC and every name must be unique: names label the node's counters.
func NewTable(nodes []Node) (*Table, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: policy defines no nodes", core.ErrConfigInvalid)
	}

	t := &Table{
		nodes: make([]Node, len(nodes)),
		byMAC: make(map[core.MAC]int, len(nodes)),
	}
	names := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if n.Port != i {
			return nil, fmt.Errorf("%w: node %q has port %d at index %d", core.ErrConfigInvalid, n.Name, n.Port, i)
		}
		if !n.IP.Is4() {
			return nil, fmt.Errorf("%w: node %q has no IPv4 address", core.ErrConfigInvalid, n.Name)
		}
		if prev, dup := t.byMAC[n.MAC]; dup {
			return nil, fmt.Errorf("%w: nodes %q and %q share mac %s",
				core.ErrConfigInvalid, nodes[prev].Name, n.Name, n.MAC)
		}
		if prev, dup := names[n.Name]; dup {
			return nil, fmt.Errorf("%w: ports %d and %d share node name %q",
				core.ErrConfigInvalid, prev, i, n.Name)
		}
		names[n.Name] = i
		if n.Sends == nil {
			n.Sends = PrefixSet{}
		}
		if n.Receives == nil {
			n.Receives = PrefixSet{}
		}
		t.nodes[i] = n
		t.byMAC[n.MAC] = i
	}
	return t, nil
}

// Len returns the number of nodes, which is also the number of ports.
func (t *Table) Len() int {
	return len(t.nodes)
}

// Node returns the node attached to port.
func (t *Table) Node(port int) (Node, bool) {
	if port < 0 || port >= len(t.nodes) {
		return Node{}, false
	}
	return t.nodes[port], true
}

// Nodes returns the nodes in port order.
func (t *Table) Nodes() []Node {
	return append([]Node(nil), t.nodes...)
}

// ByMAC finds the node configured with mac.
func (t *Table) ByMAC(mac core.MAC) (Node, bool) {
	i, ok := t.byMAC[mac]
	if !ok {
		return Node{}, false
	}
	return t.nodes[i], true
}

// MaySend reports whether the node on port may publish prefix. Unknown ports
// are never authorized.
func (t *Table) MaySend(port int, prefix string) bool {
	n, ok := t.Node(port)
	return ok && n.MaySend(prefix)
}

// Authorize returns core.ErrNotAuthorized unless the node on port may send prefix.
func (t *Table) Authorize(port int, prefix string) error {
	if t.MaySend(port, prefix) {
		return nil
	}
	return fmt.Errorf("%w: port %d may not send %s", core.ErrNotAuthorized, port, prefix)
}

// Receivers lists the nodes subscribed to prefix, in port order, skipping except.
func (t *Table) Receivers(prefix string, except int) []Node {
	var out []Node
	for _, n := range t.nodes {
		if n.Port != except && n.MayReceive(prefix) {
			out = append(out, n)
		}
	}
	return out
}

// Lint returns human-readable warnings for prefixes that can never match a
// parsed sentence. They are not errors: the table still loads.
func (t *Table) Lint() []string {
	var warnings []string
	check := func(n Node, dir string, set PrefixSet) {
		for _, p := range set.List() {
			_, st, err := nmea.ParsePrefix(p)
			switch {
			case err != nil:
				warnings = append(warnings, fmt.Sprintf("node %q %s %q: %v", n.Name, dir, p, err))
			case !st.Extractable():
				warnings = append(warnings, fmt.Sprintf("node %q %s %q: %s sentences are never parsed", n.Name, dir, p, st))
			}
		}
	}
	for _, n := range t.nodes {
		check(n, "sends", n.Sends)
		check(n, "receives", n.Receives)
	}
	return warnings
}
