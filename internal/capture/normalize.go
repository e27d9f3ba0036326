package capture

import (
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"NetScope/internal/model"
)

// Normalize extracts the L3/L4 fields of a decoded packet into a
// PacketEvent. Packets without an IP layer are not observable traffic for
// this pipeline and return ok=false.
func Normalize(packet gopacket.Packet) (model.PacketEvent, bool) {
	ts := time.Now()
	length := 0
	if meta := packet.Metadata(); meta != nil {
		if !meta.Timestamp.IsZero() {
			ts = meta.Timestamp
		}
		length = meta.Length
	}
	if length == 0 {
		length = len(packet.Data())
	}

	var src, dst, proto string
	switch {
	case packet.Layer(layers.LayerTypeIPv4) != nil:
		ip := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		src, dst = ip.SrcIP.String(), ip.DstIP.String()
		proto = protocolName(uint8(ip.Protocol), false)
	case packet.Layer(layers.LayerTypeIPv6) != nil:
		ip := packet.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
		src, dst = ip.SrcIP.String(), ip.DstIP.String()
		proto = protocolName(uint8(ip.NextHeader), true)
	default:
		return model.PacketEvent{}, false
	}

	var srcPort, dstPort *int
	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		srcPort, dstPort = intPtr(int(tcp.SrcPort)), intPtr(int(tcp.DstPort))
		proto = "TCP"
	} else if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		srcPort, dstPort = intPtr(int(udp.SrcPort)), intPtr(int(udp.DstPort))
		proto = "UDP"
	}

	return model.PacketEvent{
		Timestamp: float64(ts.UnixNano()) / float64(time.Second),
		Src:       src,
		Dst:       dst,
		Proto:     proto,
		Length:    length,
		SrcPort:   srcPort,
		DstPort:   dstPort,
		Summary:   summarize(src, dst, proto, srcPort, dstPort, length),
	}, true
}

// protocolName maps an IP protocol / next-header number to its display name.
func protocolName(n uint8, v6 bool) string {
	switch {
	case n == 6:
		return "TCP"
	case n == 17:
		return "UDP"
	case !v6 && n == 1:
		return "ICMP"
	case v6 && n == 58:
		return "ICMPv6"
	case v6:
		return fmt.Sprintf("IPv6(%d)", n)
	default:
		return fmt.Sprintf("IP(%d)", n)
	}
}

// summarize builds the human-readable one-line description of a packet.
func summarize(src, dst, proto string, srcPort, dstPort *int, length int) string {
	if srcPort != nil && dstPort != nil {
		return fmt.Sprintf("%s %s:%d -> %s:%d len=%d", proto, src, *srcPort, dst, *dstPort, length)
	}
	return fmt.Sprintf("%s %s -> %s len=%d", proto, src, dst, length)
}

func intPtr(v int) *int {
	return &v
}
