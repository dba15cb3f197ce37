package services

import (
	"context"
	"errors"
	"testing"

	"hostpulse/internal/cmdexec"
	"hostpulse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tcpFixture = `Active Internet connections (including servers)
Proto Recv-Q Send-Q  Local Address          Foreign Address        (state)      rxbytes    txbytes  rhiwat  shiwat    pid   epid state  options
tcp4       0      0  192.168.1.5.54321      17.57.146.20.443       ESTABLISHED     5120       2048  131072  131768  Safari:812      0 00102 00000008
tcp6       0      0  fe80::1%lo0.631        *.*                    LISTEN             0          0  131072  131072    0      0 00100 00000006
tcp4       0      0  *.22                   *.*                    LISTEN             0          0  131072  131072    99      0 00100 00000006
tcp4       0      0  garbage
`

const udpFixture = `Active Internet connections (including servers)
Proto Recv-Q Send-Q  Local Address          Foreign Address           rxbytes    txbytes  rhiwat  shiwat    pid   epid  options
udp4       0      0  *.5353                 *.*                          100         40  786896    9216  mDNSResponder:201      0 00000000
udp4       0      0  10.0.0.2.60000         8.8.8.8.53                    64         32  786896    9216  300      0 00000000
`

func TestParseNetstatTCP(t *testing.T) {
	rows := ParseNetstat(tcpFixture, models.ProtocolTCP)
	require.Len(t, rows, 3)

	first := rows[0]
	assert.Equal(t, "192.168.1.5", first.LocalAddress)
	assert.Equal(t, 54321, first.LocalPort)
	assert.Equal(t, "17.57.146.20", first.RemoteAddress)
	assert.Equal(t, 443, first.RemotePort)
	assert.Equal(t, models.StateEstablished, first.State)
	assert.Equal(t, uint64(5120), first.BytesReceived)
	assert.Equal(t, uint64(2048), first.BytesSent)
	assert.Equal(t, 812, first.PID)
	assert.Equal(t, models.ProtocolTCP, first.Protocol)

	assert.Equal(t, "fe80::1%lo0", rows[1].LocalAddress)
	assert.Equal(t, 631, rows[1].LocalPort)
	assert.Equal(t, models.StateListen, rows[1].State)
	assert.Equal(t, 0, rows[1].PID)

	assert.Equal(t, "*.22", rows[2].LocalAddress)
	assert.Equal(t, 99, rows[2].PID)
}

func TestParseNetstatUDPInfersState(t *testing.T) {
	rows := ParseNetstat(udpFixture, models.ProtocolUDP)
	require.Len(t, rows, 2)

	assert.Equal(t, models.StateListen, rows[0].State)
	assert.Equal(t, 201, rows[0].PID)
	assert.Equal(t, uint64(100), rows[0].BytesReceived)
	assert.Equal(t, uint64(40), rows[0].BytesSent)

	assert.Equal(t, models.StateEstablished, rows[1].State)
	assert.Equal(t, "8.8.8.8", rows[1].RemoteAddress)
	assert.Equal(t, 53, rows[1].RemotePort)
	assert.Equal(t, 300, rows[1].PID)
}

func TestParseNetstatWrongProtocolSkipsRows(t *testing.T) {
	assert.Empty(t, ParseNetstat(udpFixture, models.ProtocolTCP))
	assert.Empty(t, ParseNetstat("", models.ProtocolUDP))
}

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		token string
		addr  string
		port  int
	}{
		{"192.168.1.5.8080", "192.168.1.5", 8080},
		{"[::1]:8080", "::1", 8080},
		{"2001:db8::1:443", "2001:db8::1", 443},
		{"::1.631", "::1", 631},
		{"*.*", "*.*", 0},
		{"*.* ", "*.* ", 0},
		{"*.5353", "*.5353", 0},
		{"300.1.1.1.80", "300.1.1.1.80", 0},
		{"1.2.3.4.99999", "1.2.3.4.99999", 0},
		{"", "", 0},
	}
	for _, tc := range cases {
		addr, port := ParseEndpoint(tc.token)
		assert.Equal(t, tc.addr, addr, tc.token)
		assert.Equal(t, tc.port, port, tc.token)
	}
}

func TestParseConnectionState(t *testing.T) {
	assert.Equal(t, models.StateSynReceived, ParseConnectionState("SYN_RCVD"))
	assert.Equal(t, models.StateFinWait1, ParseConnectionState("FIN_WAIT_1"))
	assert.Equal(t, models.StateFinWait2, ParseConnectionState("FIN_WAIT2"))
	assert.Equal(t, models.StateClosed, ParseConnectionState("CLOSE"))
	assert.Equal(t, models.StateUnknown, ParseConnectionState("NONE"))
}

func TestNetstatSourceRunsCommand(t *testing.T) {
	runner := &cmdexec.StaticRunner{
		Outputs: map[string][]byte{"netstat -anvb -p tcp": []byte(tcpFixture)},
		Errors:  map[string]error{"netstat -anvb -p udp": errors.New("exit status 1")},
	}
	src := NewNetstatSource(runner)

	rows, err := src.Rows(context.Background(), models.ProtocolTCP)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	_, err = src.Rows(context.Background(), models.ProtocolUDP)
	assert.Error(t, err)
	assert.Equal(t, []string{"netstat -anvb -p tcp", "netstat -anvb -p udp"}, runner.Calls)
}
