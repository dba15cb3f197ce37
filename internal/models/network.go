package models

import "time"

// InterfaceCounters holds cumulative counters for one network adapter
type InterfaceCounters struct {
	Interface string `json:"interface"`
	BytesSent uint64 `json:"bytes_sent"`
	BytesRecv uint64 `json:"bytes_recv"`
	ErrorsIn  uint64 `json:"errors_in"`
	ErrorsOut uint64 `json:"errors_out"`
}

// Protocol is the transport protocol of an observed socket.
type Protocol string

const (
	ProtocolTCP   Protocol = "TCP"
	ProtocolUDP   Protocol = "UDP"
	ProtocolICMP  Protocol = "ICMP"
	ProtocolOther Protocol = "Other"
)

// ConnectionState mirrors the TCP state machine names reported by netstat.
type ConnectionState string

const (
	StateEstablished ConnectionState = "ESTABLISHED"
	StateListen      ConnectionState = "LISTEN"
	StateSynSent     ConnectionState = "SYN_SENT"
	StateSynReceived ConnectionState = "SYN_RECEIVED"
	StateFinWait1    ConnectionState = "FIN_WAIT1"
	StateFinWait2    ConnectionState = "FIN_WAIT2"
	StateCloseWait   ConnectionState = "CLOSE_WAIT"
	StateClosing     ConnectionState = "CLOSING"
	StateLastAck     ConnectionState = "LAST_ACK"
	StateTimeWait    ConnectionState = "TIME_WAIT"
	StateClosed      ConnectionState = "CLOSED"
	StateUnknown     ConnectionState = "UNKNOWN"
)

// Connection is one socket observed during a single enumeration cycle.
// Identity is local to the cycle; sets are never merged across polls.
type Connection struct {
	ProcessName   string          `json:"process_name"`
	ProcessID     int             `json:"process_id"`
	LocalAddress  string          `json:"local_address"`
	LocalPort     int             `json:"local_port"`
	RemoteAddress string          `json:"remote_address"`
	RemotePort    int             `json:"remote_port"`
	Protocol      Protocol        `json:"protocol"`
	State         ConnectionState `json:"state"`
	BytesReceived uint64          `json:"bytes_received"`
	BytesSent     uint64          `json:"bytes_sent"`
	ObservedAt    time.Time       `json:"observed_at"`
}

// TotalBytes returns received plus sent bytes.
func (c Connection) TotalBytes() uint64 {
	return c.BytesReceived + c.BytesSent
}

// ConnectionSet is the complete result of one enumeration cycle.
type ConnectionSet struct {
	Connections []Connection `json:"connections"`
	CollectedAt time.Time    `json:"collected_at"`
}

// Len returns the number of connections in the set
func (s ConnectionSet) Len() int {
	return len(s.Connections)
}
