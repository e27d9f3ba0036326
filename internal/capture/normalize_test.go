package capture

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	srcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dstMAC = net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb}
)

func buildPacket(t *testing.T, ls ...gopacket.SerializableLayer) gopacket.Packet {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		t.Fatalf("SerializeLayers: %v", err)
	}
	return gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
}

func TestNormalizeTCPv4(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP("192.168.1.10"),
		DstIP:    net.ParseIP("93.184.216.34"),
	}
	tcp := &layers.TCP{SrcPort: 51234, DstPort: 443, SYN: true}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("SetNetworkLayerForChecksum: %v", err)
	}

	event, ok := Normalize(buildPacket(t, eth, ip, tcp))
	if !ok {
		t.Fatal("Normalize rejected a TCP/IPv4 packet")
	}
	if event.Proto != "TCP" {
		t.Errorf("Proto = %q, want TCP", event.Proto)
	}
	if event.Src != "192.168.1.10" || event.Dst != "93.184.216.34" {
		t.Errorf("addresses = %s -> %s", event.Src, event.Dst)
	}
	if event.SrcPort == nil || *event.SrcPort != 51234 || event.DstPort == nil || *event.DstPort != 443 {
		t.Errorf("ports = %v -> %v, want 51234 -> 443", event.SrcPort, event.DstPort)
	}
	if event.Length <= 0 {
		t.Errorf("Length = %d, want > 0", event.Length)
	}
	if event.Timestamp <= 0 {
		t.Errorf("Timestamp = %g, want > 0", event.Timestamp)
	}
	want := "TCP 192.168.1.10:51234 -> 93.184.216.34:443 len="
	if len(event.Summary) <= len(want) || event.Summary[:len(want)] != want {
		t.Errorf("Summary = %q, want prefix %q", event.Summary, want)
	}
}

func TestNormalizeUDPv6(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv6}
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.ParseIP("2001:db8::1"),
		DstIP:      net.ParseIP("2001:db8::2"),
	}
	udp := &layers.UDP{SrcPort: 5353, DstPort: 53}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("SetNetworkLayerForChecksum: %v", err)
	}

	event, ok := Normalize(buildPacket(t, eth, ip, udp, gopacket.Payload([]byte("query"))))
	if !ok {
		t.Fatal("Normalize rejected a UDP/IPv6 packet")
	}
	if event.Proto != "UDP" {
		t.Errorf("Proto = %q, want UDP", event.Proto)
	}
	if event.Src != "2001:db8::1" || event.Dst != "2001:db8::2" {
		t.Errorf("addresses = %s -> %s", event.Src, event.Dst)
	}
	if event.SrcPort == nil || *event.SrcPort != 5353 || event.DstPort == nil || *event.DstPort != 53 {
		t.Errorf("ports = %v -> %v, want 5353 -> 53", event.SrcPort, event.DstPort)
	}
}

func TestNormalizeICMP(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    net.ParseIP("10.0.0.1"),
		DstIP:    net.ParseIP("10.0.0.2"),
	}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)}

	event, ok := Normalize(buildPacket(t, eth, ip, icmp))
	if !ok {
		t.Fatal("Normalize rejected an ICMP packet")
	}
	if event.Proto != "ICMP" {
		t.Errorf("Proto = %q, want ICMP", event.Proto)
	}
	if event.SrcPort != nil || event.DstPort != nil {
		t.Errorf("ICMP packet should carry no ports, got %v -> %v", event.SrcPort, event.DstPort)
	}
	want := "ICMP 10.0.0.1 -> 10.0.0.2 len="
	if len(event.Summary) <= len(want) || event.Summary[:len(want)] != want {
		t.Errorf("Summary = %q, want prefix %q", event.Summary, want)
	}
}

func TestNormalizeUnknownIPProtocol(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocol(47), // GRE, no dedicated handling
		SrcIP:    net.ParseIP("10.0.0.1"),
		DstIP:    net.ParseIP("10.0.0.2"),
	}

	event, ok := Normalize(buildPacket(t, eth, ip, gopacket.Payload([]byte{0, 0, 0, 0})))
	if !ok {
		t.Fatal("Normalize rejected an IPv4 packet with unhandled protocol")
	}
	if event.Proto != "IP(47)" {
		t.Errorf("Proto = %q, want IP(47)", event.Proto)
	}
}

func TestNormalizeRejectsNonIP(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeARP}

	if _, ok := Normalize(buildPacket(t, eth, gopacket.Payload(make([]byte, 28)))); ok {
		t.Error("Normalize accepted a packet without an IP layer")
	}
}

func TestProtocolName(t *testing.T) {
	cases := []struct {
		n    uint8
		v6   bool
		want string
	}{
		{6, false, "TCP"},
		{17, false, "UDP"},
		{1, false, "ICMP"},
		{58, true, "ICMPv6"},
		{47, false, "IP(47)"},
		{47, true, "IPv6(47)"},
		{1, true, "IPv6(1)"},
	}
	for _, tc := range cases {
		if got := protocolName(tc.n, tc.v6); got != tc.want {
			t.Errorf("protocolName(%d, %v) = %q, want %q", tc.n, tc.v6, got, tc.want)
		}
	}
}
