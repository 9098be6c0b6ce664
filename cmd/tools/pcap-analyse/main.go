// Command pcap-analyse summarises the output datagrams in a packet capture:
// payload formats, batch sizes, detection flags and sweep markers.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/banshee-data/sweepcast/internal/lidar/network"
)

var (
	pcapFile = flag.String("pcap", "", "Capture file to analyse (pcap or pcapng)")
	udpPort  = flag.Int("port", 5005, "UDP port carrying output datagrams (0 = any)")
	asJSON   = flag.Bool("json", false, "Print the summary as JSON")
	verbose  = flag.Bool("v", false, "Log every undecodable datagram")
)

func main() {
	flag.Parse()
	if *pcapFile == "" {
		log.Fatal("-pcap is required")
	}

	f, err := os.Open(*pcapFile)
	if err != nil {
		log.Fatalf("failed to open capture: %v", err)
	}
	defer f.Close()

	summary := newSummary()
	n, err := network.ReadCapture(context.Background(), f, *udpPort, func(d network.CapturedDatagram) error {
		if err := summary.Add(d.Timestamp, d.Payload); err != nil && *verbose {
			log.Printf("%s %d->%d: %v", d.Timestamp.Format("15:04:05.000"), d.SrcPort, d.DstPort, err)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("failed to read capture: %v", err)
	}
	summary.Finish()

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			log.Fatalf("failed to encode summary: %v", err)
		}
		return
	}
	printSummary(n, summary)
}

func printSummary(n int, s *Summary) {
	fmt.Printf("datagrams:   %d (%d undecoded)\n", n, s.Undecoded)
	formats := make([]string, 0, len(s.Formats))
	for f := range s.Formats {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	for _, f := range formats {
		fmt.Printf("  %-6s     %d\n", f, s.Formats[f])
	}
	fmt.Printf("batches:     %d (%.1f Hz over %.1fs)\n", s.Batches, s.BatchRateHz, s.DurationSec)
	fmt.Printf("markers:     %d\n", s.Markers)
	fmt.Printf("detections:  %d\n", s.Detections)
	fmt.Printf("sweeps:      %d..%d\n", s.FirstSweep, s.LastSweep)
	fmt.Printf("points:      %.1f ± %.1f per batch, max %d\n", s.PointsMean, s.PointsStd, s.PointsMax)
}
