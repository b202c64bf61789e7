package policy

import (
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/shipswitch/internal/core"
)

const samplePolicy = `
[policy.radar]
name = "Radar"
iface = "veth-radar"
mac = "02:00:00:00:00:03"
ip = "10.0.0.3"
sends = ["$RATTM", "$RATLL"]
receives = ["$HEHDT"]

[policy.gyro]
name = "Gyro"
iface = "veth-gyro"
mac = "02:00:00:00:00:01"
ip = "10.0.0.1"
sends = ["$HEHDT"]
receives = []

[policy.ecdis]
name = "ECDIS"
iface = "veth-ecdis"
mac = "02:00:00:00:00:02"
ip = "10.0.0.2"
sends = []
receives = ["$HEHDT", "$RATTM", "$RATLL", "$GPGGA"]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTOML(t *testing.T) {
	nodes, err := Load(writeFile(t, "policy.toml", samplePolicy))
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	// Ports follow sorted keys
	assert.Equal(t, "ecdis", nodes[0].Key)
	assert.Equal(t, "gyro", nodes[1].Key)
	assert.Equal(t, "radar", nodes[2].Key)
	for i, n := range nodes {
		assert.Equal(t, i, n.Port)
	}

	gyro := nodes[1]
	assert.Equal(t, "Gyro", gyro.Name)
	assert.Equal(t, "veth-gyro", gyro.Iface)
	assert.Equal(t, core.MAC{0x02, 0, 0, 0, 0, 0x01}, gyro.MAC)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), gyro.IP)
	assert.Equal(t, []string{"$HEHDT"}, gyro.Sends.List())
	assert.Empty(t, gyro.Receives.List())

	assert.Equal(t, []string{"$GPGGA", "$HEHDT", "$RATLL", "$RATTM"}, nodes[0].Receives.List())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "policy.yaml", `
policy:
  a:
    name: A
    iface: eth0
    mac: "aa:aa:aa:aa:aa:aa"
    ip: 192.168.0.1
    sends: ["$IIHDT"]
  b:
    name: B
    iface: eth1
    mac: "bb:bb:bb:bb:bb:bb"
    ip: 192.168.0.2
    receives: ["$IIHDT"]
`)
	tbl, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	assert.True(t, tbl.MaySend(0, "$IIHDT"))
	assert.False(t, tbl.MaySend(1, "$IIHDT"))
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad mac", `[policy.a]
mac = "zz:00:00:00:00:01"
ip = "10.0.0.1"`},
		{"eui64 mac", `[policy.a]
mac = "02:00:00:00:00:00:00:01"
ip = "10.0.0.1"`},
		{"bad ip", `[policy.a]
mac = "02:00:00:00:00:01"
ip = "10.0.0.300"`},
		{"ipv6", `[policy.a]
mac = "02:00:00:00:00:01"
ip = "fe80::1"`},
		{"missing ip", `[policy.a]
mac = "02:00:00:00:00:01"`},
		{"no policy table", `[other]
x = 1`},
		{"not toml", `[policy.a`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "policy.toml", tt.content))
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrConfigInvalid), "%v", err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestLoadTableDuplicateMAC(t *testing.T) {
	path := writeFile(t, "policy.toml", `
[policy.a]
mac = "02:00:00:00:00:01"
ip = "10.0.0.1"
[policy.b]
mac = "02:00:00:00:00:01"
ip = "10.0.0.2"
`)
	_, err := LoadTable(path)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func newTestTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable([]Node{
		{Port: 0, Name: "A", MAC: core.MAC{0xaa}, IP: netip.MustParseAddr("10.0.0.1"), Sends: NewPrefixSet("$IIHDT")},
		{Port: 1, Name: "B", MAC: core.MAC{0xbb}, IP: netip.MustParseAddr("10.0.0.2"), Receives: NewPrefixSet("$IIHDT")},
		{Port: 2, Name: "C", MAC: core.MAC{0xcc}, IP: netip.MustParseAddr("10.0.0.3")},
		{Port: 3, Name: "D", MAC: core.MAC{0xdd}, IP: netip.MustParseAddr("10.0.0.4"), Sends: NewPrefixSet("$IIHDT"), Receives: NewPrefixSet("$IIHDT")},
	})
	require.NoError(t, err)
	return tbl
}

func TestTableMaySend(t *testing.T) {
	tbl := newTestTable(t)

	assert.True(t, tbl.MaySend(0, "$IIHDT"))
	assert.False(t, tbl.MaySend(0, "$IIHD"))
	assert.False(t, tbl.MaySend(0, "$GPHDT"))
	assert.False(t, tbl.MaySend(1, "$IIHDT"))
	assert.False(t, tbl.MaySend(2, "$IIHDT"))
	assert.False(t, tbl.MaySend(9, "$IIHDT"))
}

func TestTableReceivers(t *testing.T) {
	tbl := newTestTable(t)

	names := func(nodes []Node) []string {
		var out []string
		for _, n := range nodes {
			out = append(out, n.Name)
		}
		return out
	}

	assert.Equal(t, []string{"B", "D"}, names(tbl.Receivers("$IIHDT", 0)))
	assert.Equal(t, []string{"B"}, names(tbl.Receivers("$IIHDT", 3)))
	assert.Empty(t, tbl.Receivers("$GPGGA", 0))
}

func TestTableLookup(t *testing.T) {
	tbl := newTestTable(t)

	n, ok := tbl.ByMAC(core.MAC{0xcc})
	require.True(t, ok)
	assert.Equal(t, 2, n.Port)

	_, ok = tbl.ByMAC(core.MAC{0xee})
	assert.False(t, ok)

	n, ok = tbl.Node(1)
	require.True(t, ok)
	assert.Equal(t, "B", n.Name)
	assert.NotNil(t, n.Sends)

	_, ok = tbl.Node(-1)
	assert.False(t, ok)
	assert.Len(t, tbl.Nodes(), 4)
}

func TestNewTableRejects(t *testing.T) {
	ip := netip.MustParseAddr("10.0.0.1")

	_, err := NewTable(nil)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))

	_, err = NewTable([]Node{{Port: 1, MAC: core.MAC{1}, IP: ip}})
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))

	_, err = NewTable([]Node{{Port: 0, MAC: core.MAC{1}}})
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))

	// Names label the per-node counters, so they must not collide.
	_, err = NewTable([]Node{
		{Port: 0, Name: "gps", MAC: core.MAC{1}, IP: ip},
		{Port: 1, Name: "gps", MAC: core.MAC{2}, IP: netip.MustParseAddr("10.0.0.2")},
	})
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
	assert.ErrorContains(t, err, `share node name "gps"`)
}

func TestLoadTableDuplicateName(t *testing.T) {
	path := writeFile(t, "policy.toml", `
[policy.gps1]
name = "GPS"
mac = "02:00:00:00:00:01"
ip = "10.0.0.1"

[policy.gps2]
name = "GPS"
mac = "02:00:00:00:00:02"
ip = "10.0.0.2"
`)
	_, err := LoadTable(path)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestLoadLowercasesKeys(t *testing.T) {
	nodes, err := Load(writeFile(t, "policy.toml", `
[policy.GPS]
mac = "02:00:00:00:00:01"
ip = "10.0.0.1"

[policy.Gyro]
name = "Gyro"
mac = "02:00:00:00:00:02"
ip = "10.0.0.2"
`))
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "gps", nodes[0].Key)
	assert.Equal(t, "gps", nodes[0].Name)
	assert.Equal(t, "gyro", nodes[1].Key)
	assert.Equal(t, "Gyro", nodes[1].Name)
}

func TestTableAuthorize(t *testing.T) {
	tbl, err := NewTable([]Node{
		{Port: 0, Name: "A", MAC: core.MAC{1}, IP: netip.MustParseAddr("10.0.0.1"), Sends: NewPrefixSet("$IIHDT")},
	})
	require.NoError(t, err)

	assert.NoError(t, tbl.Authorize(0, "$IIHDT"))
	err = tbl.Authorize(0, "$GPGGA")
	assert.True(t, errors.Is(err, core.ErrNotAuthorized))
	assert.ErrorContains(t, err, "$GPGGA")
	assert.True(t, errors.Is(tbl.Authorize(5, "$IIHDT"), core.ErrNotAuthorized))
}

func TestTableLint(t *testing.T) {
	tbl, err := NewTable([]Node{
		{Port: 0, Name: "A", MAC: core.MAC{1}, IP: netip.MustParseAddr("10.0.0.1"),
			Sends: NewPrefixSet("$IIHDT", "$XXHDT", "$AIVDM"), Receives: NewPrefixSet("IIHDT")},
	})
	require.NoError(t, err)

	warnings := tbl.Lint()
	assert.Len(t, warnings, 3)
}
