package main

import (
	"flag"
	"log"
	"math/rand"
	"net"
	"os"
	"sort"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Generates a pcap shaped like the lab testbed: a few clients browsing the
// target server with paced multi-packet flows, optionally overlapped by a
// flood burst from a single attacker. The output feeds the extractor and
// scripts/pcapflows for offline runs.

type packetSpec struct {
	ts      time.Time
	srcIP   net.IP
	dstIP   net.IP
	srcPort layers.TCPPort
	dstPort layers.TCPPort
	size    int
	syn     bool
}

func main() {
	outputFile := flag.String("o", "testbed.pcap", "Output pcap file path")
	clients := flag.Int("clients", 3, "Number of browsing client IPs")
	flows := flag.Int("flows", 12, "Number of browsing flows to generate")
	attack := flag.Bool("attack", false, "Overlay a flood burst from one attacker IP")
	attackPackets := flag.Int("attack-packets", 2000, "Packets in the flood burst")
	window := flag.Duration("window", 30*time.Second, "Capture window the traffic is spread over")
	flag.Parse()

	server := net.IP{192, 168, 56, 2}
	start := time.Now().Add(-*window)

	var specs []packetSpec
	for i := 0; i < *flows; i++ {
		client := net.IP{192, 168, 56, byte(10 + rand.Intn(*clients))}
		specs = append(specs, browseFlow(start, *window, client, server)...)
	}
	if *attack {
		attacker := net.IP{192, 168, 56, 66}
		specs = append(specs, floodBurst(start, *window, attacker, server, *attackPackets)...)
	}

	sort.Slice(specs, func(i, j int) bool { return specs[i].ts.Before(specs[j].ts) })

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	pcapWriter := pcapgo.NewWriter(f)
	if err := pcapWriter.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		log.Fatalf("Failed to write pcap header: %v", err)
	}

	log.Printf("Writing %d packets into %s...", len(specs), *outputFile)
	for _, spec := range specs {
		if err := writePacket(pcapWriter, spec); err != nil {
			log.Fatalf("Failed to write packet: %v", err)
		}
	}
	log.Printf("Done: %d browsing flows, attack=%v.", *flows, *attack)
}

// browseFlow produces one client flow towards port 80: a handful of packets
// with think-time gaps, the shape the flow correlator should split cleanly.
func browseFlow(start time.Time, window time.Duration, client, server net.IP) []packetSpec {
	srcPort := layers.TCPPort(rand.Intn(65535-1024) + 1024)
	ts := start.Add(time.Duration(rand.Float64() * float64(window) * 0.8))

	count := 5 + rand.Intn(25)
	specs := make([]packetSpec, 0, count)
	for i := 0; i < count; i++ {
		specs = append(specs, packetSpec{
			ts:      ts,
			srcIP:   client,
			dstIP:   server,
			srcPort: srcPort,
			dstPort: 80,
			size:    60 + rand.Intn(1340),
			syn:     i == 0,
		})
		ts = ts.Add(time.Duration(10+rand.Intn(290)) * time.Millisecond)
	}
	return specs
}

// floodBurst produces a SYN flood: every packet a fresh source port, gaps
// well under a millisecond, tiny payloads.
func floodBurst(start time.Time, window time.Duration, attacker, server net.IP, count int) []packetSpec {
	ts := start.Add(time.Duration(rand.Float64() * float64(window) * 0.4))

	specs := make([]packetSpec, 0, count)
	for i := 0; i < count; i++ {
		specs = append(specs, packetSpec{
			ts:      ts,
			srcIP:   attacker,
			dstIP:   server,
			srcPort: layers.TCPPort(rand.Intn(65535-1024) + 1024),
			dstPort: 80,
			size:    rand.Intn(20),
			syn:     true,
		})
		ts = ts.Add(time.Duration(100+rand.Intn(900)) * time.Microsecond)
	}
	return specs
}

func writePacket(w *pcapgo.Writer, spec packetSpec) error {
	ethLayer := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ipLayer := &layers.IPv4{
		SrcIP:    spec.srcIP,
		DstIP:    spec.dstIP,
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
	}
	tcpLayer := &layers.TCP{
		SrcPort: spec.srcPort,
		DstPort: spec.dstPort,
		Seq:     rand.Uint32(),
		SYN:     spec.syn,
		ACK:     !spec.syn,
		PSH:     !spec.syn && spec.size > 0,
		Window:  14600,
	}
	tcpLayer.SetNetworkLayerForChecksum(ipLayer)

	payload := make([]byte, spec.size)
	rand.Read(payload)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}
	if err := gopacket.SerializeLayers(buf, opts, ethLayer, ipLayer, tcpLayer, gopacket.Payload(payload)); err != nil {
		return err
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     spec.ts,
		CaptureLength: len(buf.Bytes()),
		Length:        len(buf.Bytes()),
	}
	return w.WritePacket(ci, buf.Bytes())
}
