package services

import (
	"bufio"
	"context"
	"fmt"
	"net/netip"
	"runtime"
	"strconv"
	"strings"

	"hostpulse/internal/cmdexec"
	"hostpulse/internal/models"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// ConnectionRow is one socket as reported by a connection source, before
// process names are resolved.
type ConnectionRow struct {
	LocalAddress  string
	LocalPort     int
	RemoteAddress string
	RemotePort    int
	Protocol      models.Protocol
	State         models.ConnectionState
	BytesReceived uint64
	BytesSent     uint64
	PID           int
}

// ConnectionSource lists the host's sockets for one transport protocol.
type ConnectionSource interface {
	Rows(ctx context.Context, proto models.Protocol) ([]ConnectionRow, error)
}

// NewConnectionSource picks BSD netstat where it reports per-socket byte
// counters and the gopsutil socket table elsewhere.
func NewConnectionSource(runner cmdexec.Runner) ConnectionSource {
	switch runtime.GOOS {
	case "darwin", "freebsd", "netbsd", "openbsd", "dragonfly":
		if runner.Exists("netstat") {
			return &NetstatSource{runner: runner}
		}
	}
	return SocketTableSource{}
}

// NetstatSource runs `netstat -anvb` and parses its fixed-column output.
type NetstatSource struct {
	runner cmdexec.Runner
}

func NewNetstatSource(runner cmdexec.Runner) *NetstatSource {
	return &NetstatSource{runner: runner}
}

func (s *NetstatSource) Rows(ctx context.Context, proto models.Protocol) ([]ConnectionRow, error) {
	out, err := s.runner.Output(ctx, "netstat", "-anvb", "-p", strings.ToLower(string(proto)))
	if err != nil {
		return nil, err
	}
	return ParseNetstat(string(out), proto), nil
}

// Column positions of `netstat -anvb` rows.
const (
	netstatLocal  = 3
	netstatRemote = 4

	tcpState   = 5
	tcpRx      = 6
	tcpTx      = 7
	tcpPID     = 10
	tcpMinCols = 11

	udpRx      = 5
	udpTx      = 6
	udpPID     = 9
	udpMinCols = 10
)

// ParseNetstat parses netstat output for one protocol. Headers and rows
// with too few columns are skipped.
func ParseNetstat(output string, proto models.Protocol) []ConnectionRow {
	var rows []ConnectionRow
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		row, ok := parseNetstatFields(fields, proto)
		if ok {
			rows = append(rows, row)
		}
	}
	return rows
}

func parseNetstatFields(fields []string, proto models.Protocol) (ConnectionRow, bool) {
	var row ConnectionRow
	switch proto {
	case models.ProtocolTCP:
		if len(fields) < tcpMinCols || !strings.HasPrefix(fields[0], "tcp") {
			return row, false
		}
		row.State = ParseConnectionState(fields[tcpState])
		row.BytesReceived = parseCounter(fields[tcpRx])
		row.BytesSent = parseCounter(fields[tcpTx])
		row.PID = parsePIDToken(fields[tcpPID])
	case models.ProtocolUDP:
		if len(fields) < udpMinCols || !strings.HasPrefix(fields[0], "udp") {
			return row, false
		}
		row.State = inferUDPState(fields[netstatRemote])
		row.BytesReceived = parseCounter(fields[udpRx])
		row.BytesSent = parseCounter(fields[udpTx])
		row.PID = parsePIDToken(fields[udpPID])
	default:
		return row, false
	}
	row.Protocol = proto
	row.LocalAddress, row.LocalPort = ParseEndpoint(fields[netstatLocal])
	row.RemoteAddress, row.RemotePort = ParseEndpoint(fields[netstatRemote])
	return row, true
}

// ParseEndpoint splits a netstat endpoint into address and port.
// "192.168.1.5.8080" is IPv4 with a dotted port, tokens containing ':' are
// IPv6 split at the last colon (brackets removed), anything else, such as
// "*.*", comes back unchanged with port 0.
func ParseEndpoint(token string) (string, int) {
	if parts := strings.Split(token, "."); len(parts) == 5 {
		if addr, err := netip.ParseAddr(strings.Join(parts[:4], ".")); err == nil && addr.Is4() {
			if port, ok := parsePort(parts[4]); ok {
				return addr.String(), port
			}
		}
	}
	if i := strings.LastIndex(token, ":"); i >= 0 {
		if port, ok := parsePort(token[i+1:]); ok {
			return strings.Trim(token[:i], "[]"), port
		}
		// BSD prints IPv6 endpoints with a dotted port: fe80::1%lo0.631
		if j := strings.LastIndex(token, "."); j > i {
			if port, ok := parsePort(token[j+1:]); ok {
				return token[:j], port
			}
		}
	}
	return token, 0
}

func parsePort(s string) (int, bool) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 0 || port > 65535 {
		return 0, false
	}
	return port, true
}

func parseCounter(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// parsePIDToken accepts "1234" and "name:1234".
func parsePIDToken(s string) int {
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	pid, err := strconv.Atoi(s)
	if err != nil || pid < 0 {
		return 0
	}
	return pid
}

func inferUDPState(remote string) models.ConnectionState {
	switch remote {
	case "", "*", "*.*", "*:*":
		return models.StateListen
	}
	return models.StateEstablished
}

// ParseConnectionState maps BSD and Linux state spellings onto the
// canonical enum.
func ParseConnectionState(s string) models.ConnectionState {
	switch strings.ToUpper(strings.Trim(s, "()")) {
	case "ESTABLISHED":
		return models.StateEstablished
	case "LISTEN":
		return models.StateListen
	case "SYN_SENT":
		return models.StateSynSent
	case "SYN_RCVD", "SYN_RECV", "SYN_RECEIVED":
		return models.StateSynReceived
	case "FIN_WAIT_1", "FIN_WAIT1":
		return models.StateFinWait1
	case "FIN_WAIT_2", "FIN_WAIT2":
		return models.StateFinWait2
	case "CLOSE_WAIT":
		return models.StateCloseWait
	case "CLOSING":
		return models.StateClosing
	case "LAST_ACK":
		return models.StateLastAck
	case "TIME_WAIT":
		return models.StateTimeWait
	case "CLOSED", "CLOSE":
		return models.StateClosed
	}
	return models.StateUnknown
}

// SocketTableSource lists sockets through gopsutil. It has no per-socket
// byte counters, so BytesReceived and BytesSent stay 0.
type SocketTableSource struct{}

func (SocketTableSource) Rows(ctx context.Context, proto models.Protocol) ([]ConnectionRow, error) {
	var kind string
	switch proto {
	case models.ProtocolTCP:
		kind = "tcp"
	case models.ProtocolUDP:
		kind = "udp"
	default:
		return nil, fmt.Errorf("unsupported protocol %s", proto)
	}
	conns, err := psnet.ConnectionsWithContext(ctx, kind)
	if err != nil {
		return nil, err
	}
	rows := make([]ConnectionRow, 0, len(conns))
	for _, c := range conns {
		row := ConnectionRow{
			LocalAddress:  c.Laddr.IP,
			LocalPort:     int(c.Laddr.Port),
			RemoteAddress: c.Raddr.IP,
			RemotePort:    int(c.Raddr.Port),
			Protocol:      proto,
			PID:           int(c.Pid),
		}
		if proto == models.ProtocolUDP {
			remote := c.Raddr.IP
			if remote == "" || c.Raddr.Port == 0 {
				remote = ""
			}
			row.State = inferUDPState(remote)
		} else {
			row.State = ParseConnectionState(c.Status)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
