package pcap

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"NetGauntlet/internal/model"
)

// writeTestPcap fabricates a small capture: two TCP packets and one UDP
// packet, half a second apart.
func writeTestPcap(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.pcap")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create pcap file: %v", err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(1600, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("failed to write pcap header: %v", err)
	}

	base := time.Unix(100, 0)
	frames := []struct {
		proto layers.IPProtocol
		at    time.Time
	}{
		{layers.IPProtocolTCP, base},
		{layers.IPProtocolTCP, base.Add(500 * time.Millisecond)},
		{layers.IPProtocolUDP, base.Add(time.Second)},
	}
	for _, frame := range frames {
		data := buildTestFrame(t, frame.proto)
		ci := gopacket.CaptureInfo{Timestamp: frame.at, CaptureLength: len(data), Length: len(data)}
		if err := w.WritePacket(ci, data); err != nil {
			t.Fatalf("failed to write packet: %v", err)
		}
	}
	return path
}

func buildTestFrame(t *testing.T, proto layers.IPProtocol) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: proto,
		SrcIP:    net.ParseIP("192.168.0.10"),
		DstIP:    net.ParseIP("10.0.0.1"),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	var err error
	if proto == layers.IPProtocolTCP {
		tcp := &layers.TCP{SrcPort: 40000, DstPort: 80}
		if cerr := tcp.SetNetworkLayerForChecksum(ip); cerr != nil {
			t.Fatalf("failed to bind checksum layer: %v", cerr)
		}
		err = gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload([]byte("x")))
	} else {
		udp := &layers.UDP{SrcPort: 40000, DstPort: 53}
		if cerr := udp.SetNetworkLayerForChecksum(ip); cerr != nil {
			t.Fatalf("failed to bind checksum layer: %v", cerr)
		}
		err = gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload([]byte("x")))
	}
	if err != nil {
		t.Fatalf("failed to serialize frame: %v", err)
	}
	return buf.Bytes()
}

func TestReaderStreamsAllPackets(t *testing.T) {
	reader, err := NewReader(writeTestPcap(t), "ip")
	if err != nil {
		t.Fatalf("failed to create reader: %v", err)
	}
	defer reader.Close()

	var records []model.PacketRecord
	for rec := range reader.Records() {
		records = append(records, rec)
	}

	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Protocol != model.ProtocolTCP || records[2].Protocol != model.ProtocolUDP {
		t.Errorf("protocols = %s/%s/%s, want TCP/TCP/UDP", records[0].Protocol, records[1].Protocol, records[2].Protocol)
	}
	if records[0].Timestamp >= records[1].Timestamp {
		t.Errorf("timestamps not increasing: %f then %f", records[0].Timestamp, records[1].Timestamp)
	}
	gap := records[1].Timestamp - records[0].Timestamp
	if gap < 0.49 || gap > 0.51 {
		t.Errorf("capture spacing = %f, want 0.5", gap)
	}
}

func TestReaderRejectsMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "absent.pcap"), ""); err == nil {
		t.Error("expected an error for a missing capture file")
	}
}
