package model

import (
	"encoding/json"
	"fmt"
)

// Protocol identifies the transport protocol of a packet, using the IANA
// protocol number as the underlying value.
type Protocol uint8

const (
	ProtocolOther Protocol = 0
	ProtocolTCP   Protocol = 6
	ProtocolUDP   Protocol = 17
)

func (p Protocol) String() string {
	switch p {
	case ProtocolTCP:
		return "TCP"
	case ProtocolUDP:
		return "UDP"
	default:
		return "Other"
	}
}

// MarshalJSON encodes the protocol as its name, e.g. "TCP".
func (p Protocol) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts the protocol name; anything unrecognized maps to Other.
func (p *Protocol) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "TCP":
		*p = ProtocolTCP
	case "UDP":
		*p = ProtocolUDP
	default:
		*p = ProtocolOther
	}
	return nil
}

// PacketRecord holds the metadata extracted from a single captured packet.
// Timestamps are epoch seconds as reported by the capture source.
type PacketRecord struct {
	Timestamp float64  `json:"timestamp"`
	SrcIP     string   `json:"src_ip"`
	DstIP     string   `json:"dst_ip"`
	SrcPort   uint16   `json:"src_port"`
	DstPort   uint16   `json:"dst_port"`
	Protocol  Protocol `json:"protocol"`
	Length    int      `json:"length"`
}

// Key returns the unidirectional flow key of the packet.
func (p PacketRecord) Key() FlowKey {
	return FlowKey{
		SrcIP:    p.SrcIP,
		DstIP:    p.DstIP,
		SrcPort:  p.SrcPort,
		DstPort:  p.DstPort,
		Protocol: p.Protocol,
	}
}

// FlowKey identifies a unidirectional flow. Two packets belong to the same
// flow iff their keys are equal; no reverse-direction merging is performed.
type FlowKey struct {
	SrcIP    string
	DstIP    string
	SrcPort  uint16
	DstPort  uint16
	Protocol Protocol
}

func (k FlowKey) String() string {
	return fmt.Sprintf("%s:%d->%s:%d/%s", k.SrcIP, k.SrcPort, k.DstIP, k.DstPort, k.Protocol)
}

// FlowRecord is the immutable, derived form of a closed flow. Field names
// follow the payload format the detector consumes.
type FlowRecord struct {
	SrcIP            string   `json:"src_ip"`
	DstIP            string   `json:"dst_ip"`
	SrcPort          uint16   `json:"src_port"`
	DstPort          uint16   `json:"dst_port"`
	Protocol         Protocol `json:"protocol"`
	StartTime        float64  `json:"start_time"`
	EndTime          float64  `json:"end_time"`
	Duration         float64  `json:"duration"`
	PacketCount      uint64   `json:"packet_count"`
	TotalBytes       uint64   `json:"total_bytes"`
	AvgPacketSize    float64  `json:"avg_packet_size"`
	BytesPerSecond   float64  `json:"flow_bytes_per_second"`
	PacketsPerSecond float64  `json:"flow_packets_per_second"`
	IATMean          float64  `json:"iat_mean"`
	IATStd           float64  `json:"iat_std"`
}

// Key returns the flow key the record was aggregated under.
func (f FlowRecord) Key() FlowKey {
	return FlowKey{
		SrcIP:    f.SrcIP,
		DstIP:    f.DstIP,
		SrcPort:  f.SrcPort,
		DstPort:  f.DstPort,
		Protocol: f.Protocol,
	}
}
