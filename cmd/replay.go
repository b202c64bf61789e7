package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"firestige.xyz/shipswitch/internal/backend"
	"firestige.xyz/shipswitch/internal/backend/memory"
	"firestige.xyz/shipswitch/internal/capture"
	"firestige.xyz/shipswitch/internal/config"
	"firestige.xyz/shipswitch/internal/core"
	"firestige.xyz/shipswitch/internal/core/decoder"
	"firestige.xyz/shipswitch/internal/dispatcher"
	"firestige.xyz/shipswitch/internal/engine"
	"firestige.xyz/shipswitch/internal/fdb"
	"firestige.xyz/shipswitch/internal/log"
	"firestige.xyz/shipswitch/internal/metrics"
	"firestige.xyz/shipswitch/internal/policy"
)

type replayOptions struct {
	Config   string
	Policy   string
	Input    string
	Output   string
	Prelearn bool // seed the address table with every node before the first frame
	Verify   bool // check IPv4/UDP checksums of transmitted UDP frames
	Dump     bool // print one line per transmitted frame
}

var replayOpts replayOptions

var replayCmd = &cobra.Command{
	Use:   "replay <capture.pcap>",
	Short: "Run a capture through the switch offline",
	Long: `Feed every frame of a pcap or pcapng capture into the switch, attributing it to the
node whose MAC sent it, and report what the switch transmitted.

Examples:
  shipswitch replay -p policy.toml bridge.pcap
  shipswitch replay -p policy.toml -o switched.pcap --prelearn --verify bridge.pcap`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := replayOpts
		opts.Config = configFile
		opts.Input = args[0]
		if err := runReplay(cmd.Context(), opts, cmd.OutOrStdout()); err != nil {
			exitWithError("replay failed", err)
		}
	},
}

func init() {
	replayCmd.Flags().StringVarP(&replayOpts.Policy, "policy", "p", "", "policy file (overrides the config's policy_file)")
	replayCmd.Flags().StringVarP(&replayOpts.Output, "output", "o", "", "write transmitted frames to this pcap file")
	replayCmd.Flags().BoolVar(&replayOpts.Prelearn, "prelearn", false, "treat every node as learned before replaying")
	replayCmd.Flags().BoolVar(&replayOpts.Verify, "verify", false, "fail if a transmitted UDP frame has a bad checksum")
	replayCmd.Flags().BoolVar(&replayOpts.Dump, "dump", false, "print every transmitted frame")
}

func runReplay(ctx context.Context, opts replayOptions, out io.Writer) error {
	logger := log.GetLogger().WithField("component", "replay")

	tbl, err := loadPolicy(opts.Config, opts.Policy)
	if err != nil {
		return err
	}
	pkts, err := capture.ReadFile(opts.Input)
	if err != nil {
		return err
	}

	frameSize := config.DefaultFrameSize
	for _, p := range pkts {
		frameSize = max(frameSize, len(p.Data))
	}
	mem := memory.New(tbl.Len(), memory.Options{FrameSize: frameSize})
	var b backend.Backend = mem
	if opts.Output != "" {
		tap, err := capture.NewTap(mem, opts.Output, 0)
		if err != nil {
			return err
		}
		b = tap
	}
	defer b.Close()

	reg := prometheus.NewRegistry()
	m := metrics.NewSwitchMetrics(reg)
	db := fdb.New()
	if opts.Prelearn {
		for _, n := range tbl.Nodes() {
			db.Observe(n.MAC, n.Port)
		}
	}
	d, err := dispatcher.New(b, engine.New(tbl, db, m), tbl, m, time.Millisecond)
	if err != nil {
		return err
	}

	var replayed, unknown int
	for _, p := range pkts {
		if len(p.Data) < 12 {
			unknown++
			continue
		}
		node, ok := tbl.ByMAC(core.MACFromSlice(p.Data[6:12]))
		if !ok {
			unknown++
			continue
		}
		if err := mem.Inject(node.Port, p.Data); err != nil {
			logger.WithError(err).Warnf("frame from %s not injected", node.Name)
			continue
		}
		if err := d.Iterate(ctx); err != nil {
			return err
		}
		replayed++
	}

	fmt.Fprintf(out, "replayed %d of %d frames (%d from unknown sources)\n", replayed, len(pkts), unknown)
	if err := printCounters(out, tbl, reg); err != nil {
		return err
	}

	var badChecksums int
	for _, n := range tbl.Nodes() {
		for _, frame := range mem.Sent(n.Port) {
			if opts.Dump {
				fmt.Fprintf(out, "%s <- %s\n", n.Name, describeFrame(frame))
			}
			if !opts.Verify {
				continue
			}
			if hdr, err := decoder.Decode(frame); err == nil && hdr.IsUDP() {
				if err := decoder.VerifyChecksums(frame); err != nil {
					logger.WithError(err).Warnf("bad checksum on frame to %s", n.Name)
					badChecksums++
				}
			}
		}
	}
	if badChecksums > 0 {
		return fmt.Errorf("%d transmitted frame(s) failed checksum verification", badChecksums)
	}
	return nil
}

// printCounters writes one line per node listing its non-zero counters.
func printCounters(out io.Writer, tbl *policy.Table, g prometheus.Gatherer) error {
	summary, err := metrics.Summarize(g)
	if err != nil {
		return fmt.Errorf("gather counters: %w", err)
	}
	for _, n := range tbl.Nodes() {
		var fields []string
		for _, name := range metrics.CounterNames() {
			if v := summary[n.Name][name]; v != 0 {
				fields = append(fields, name+"="+strconv.FormatFloat(v, 'f', -1, 64))
			}
		}
		if len(fields) == 0 {
			fields = append(fields, "-")
		}
		fmt.Fprintf(out, "%s: %s\n", n.Name, strings.Join(fields, " "))
	}
	return nil
}

// describeFrame renders the addresses of a frame and any NMEA sentence it carries.
func describeFrame(frame []byte) string {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	var parts []string
	if eth, ok := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet); ok {
		parts = append(parts, fmt.Sprintf("%s > %s", eth.SrcMAC, eth.DstMAC))
	}
	if ip, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		parts = append(parts, fmt.Sprintf("%s > %s", ip.SrcIP, ip.DstIP))
	}
	if udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		parts = append(parts, fmt.Sprintf("udp %d > %d", udp.SrcPort, udp.DstPort))
		line := string(udp.Payload)
		if i := strings.IndexAny(line, "\r\n\x00"); i >= 0 {
			line = line[:i]
		}
		if strings.HasPrefix(line, "$") {
			parts = append(parts, strconv.Quote(line))
		}
	}
	return strings.Join(parts, ", ")
}
