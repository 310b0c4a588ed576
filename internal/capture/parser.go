package capture

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"NetGauntlet/internal/model"
)

// ParsePacket extracts the flow-relevant metadata from a decoded packet.
// Non-IPv4 packets are rejected; IPv4 packets that are neither TCP nor UDP
// are kept with protocol Other and zero ports so they still contribute to
// flow statistics.
func ParsePacket(packet gopacket.Packet) (model.PacketRecord, error) {
	var rec model.PacketRecord

	ipLayer := packet.Layer(layers.LayerTypeIPv4)
	if ipLayer == nil {
		return rec, fmt.Errorf("not an IPv4 packet")
	}
	ip := ipLayer.(*layers.IPv4)
	rec.SrcIP = ip.SrcIP.String()
	rec.DstIP = ip.DstIP.String()

	switch {
	case ip.Protocol == layers.IPProtocolTCP:
		if l := packet.Layer(layers.LayerTypeTCP); l != nil {
			tcp := l.(*layers.TCP)
			rec.SrcPort = uint16(tcp.SrcPort)
			rec.DstPort = uint16(tcp.DstPort)
		}
		rec.Protocol = model.ProtocolTCP
	case ip.Protocol == layers.IPProtocolUDP:
		if l := packet.Layer(layers.LayerTypeUDP); l != nil {
			udp := l.(*layers.UDP)
			rec.SrcPort = uint16(udp.SrcPort)
			rec.DstPort = uint16(udp.DstPort)
		}
		rec.Protocol = model.ProtocolUDP
	default:
		rec.Protocol = model.ProtocolOther
	}

	if meta := packet.Metadata(); meta != nil {
		if !meta.Timestamp.IsZero() {
			rec.Timestamp = float64(meta.Timestamp.UnixNano()) / 1e9
		}
		rec.Length = meta.Length
	}
	if rec.Length == 0 {
		rec.Length = len(packet.Data())
	}

	return rec, nil
}
