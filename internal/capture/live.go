package capture

import (
	"fmt"
	"log"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"

	"NetGauntlet/internal/config"
	"NetGauntlet/internal/model"
)

const promiscuous = true

// LiveSource captures packets from a network interface and streams the
// parsed records. It implements model.PacketSource.
type LiveSource struct {
	handle  *pcap.Handle
	records chan model.PacketRecord
	done    chan struct{}
}

// NewLiveSource opens the configured interface for capture and starts
// decoding packets that match the BPF filter.
func NewLiveSource(cfg config.CaptureConfig) (*LiveSource, error) {
	handle, err := pcap.OpenLive(cfg.Interface, int32(cfg.SnapshotLen), promiscuous, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("failed to open device %s: %w", cfg.Interface, err)
	}
	if cfg.BPF != "" {
		if err := handle.SetBPFFilter(cfg.BPF); err != nil {
			handle.Close()
			return nil, fmt.Errorf("failed to set BPF filter %q: %w", cfg.BPF, err)
		}
	}
	log.Printf("Capturing on %s (filter %q, snaplen %d)", cfg.Interface, cfg.BPF, cfg.SnapshotLen)

	s := &LiveSource{
		handle:  handle,
		records: make(chan model.PacketRecord, 256),
		done:    make(chan struct{}),
	}
	go s.pump()
	return s, nil
}

func (s *LiveSource) pump() {
	defer close(s.records)
	packetSource := gopacket.NewPacketSource(s.handle, s.handle.LinkType())
	for packet := range packetSource.Packets() {
		rec, err := ParsePacket(packet)
		if err != nil {
			continue
		}
		select {
		case s.records <- rec:
		case <-s.done:
			return
		}
	}
}

// Records returns the stream of captured packet records. The channel is
// closed when the capture ends.
func (s *LiveSource) Records() <-chan model.PacketRecord {
	return s.records
}

// Close stops the capture and releases the handle.
func (s *LiveSource) Close() error {
	close(s.done)
	s.handle.Close()
	return nil
}
