package pcap

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"

	"NetGauntlet/internal/capture"
	"NetGauntlet/internal/model"
)

// Reader streams packet records from a pcap file. It implements
// model.PacketSource, so offline captures feed the same pipeline as a live
// interface.
type Reader struct {
	handle  *pcap.Handle
	records chan model.PacketRecord
}

// NewReader opens the pcap file and starts decoding packets that match the
// BPF filter. An empty filter keeps every packet.
func NewReader(filePath, bpf string) (*Reader, error) {
	handle, err := pcap.OpenOffline(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file %s: %w", filePath, err)
	}
	if bpf != "" {
		if err := handle.SetBPFFilter(bpf); err != nil {
			handle.Close()
			return nil, fmt.Errorf("failed to set BPF filter %q: %w", bpf, err)
		}
	}

	r := &Reader{
		handle:  handle,
		records: make(chan model.PacketRecord, 256),
	}
	go r.pump()
	return r, nil
}

func (r *Reader) pump() {
	defer close(r.records)
	packetSource := gopacket.NewPacketSource(r.handle, r.handle.LinkType())
	for packet := range packetSource.Packets() {
		rec, err := capture.ParsePacket(packet)
		if err != nil {
			// Unsupported packet types and corrupt data are skipped, the
			// rest of the file is still processed.
			continue
		}
		r.records <- rec
	}
}

// Records returns the stream of packet records. The channel is closed at end
// of file.
func (r *Reader) Records() <-chan model.PacketRecord {
	return r.records
}

// Close releases the pcap handle.
func (r *Reader) Close() error {
	r.handle.Close()
	return nil
}
