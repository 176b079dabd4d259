package controller

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbrandon/mbserver"

	"github.com/nichlasrohde/ha-ecl-modbus/internal/codec"
	"github.com/nichlasrohde/ha-ecl-modbus/internal/config"
	"github.com/nichlasrohde/ha-ecl-modbus/internal/link"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

// setFloat stores an IEEE 754 value at a 1-based manual address in the
// server's 0-based holding register image.
func setFloat(s *mbserver.Server, manual uint16, bits uint32) {
	s.HoldingRegisters[manual-1] = uint16(bits >> 16)
	s.HoldingRegisters[manual] = uint16(bits)
}

func setString(s *mbserver.Server, manual uint16, span int, text string) {
	b := make([]byte, span*2)
	copy(b, text)
	for i := 0; i < span; i++ {
		s.HoldingRegisters[int(manual)-1+i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
}

func tcpConfig(port int) *config.Config {
	cfg := &config.Config{Controller: config.ControllerConfig{
		Transport: config.TransportTCP,
		TCP:       config.TCPConfig{Host: "127.0.0.1", Port: port},
		TimeoutMs: 500,
	}}
	config.Normalize(cfg)
	return cfg
}

func TestControllerAgainstModbusServer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	port := freePort(t)
	server := mbserver.NewServer()
	require.NoError(t, server.ListenTCP(fmt.Sprintf("127.0.0.1:%d", port)))
	defer server.Close()

	setFloat(server, 4000, 0x41A80000)  // S1 = 21.0 °C
	setFloat(server, 4010, 0x4248199A)  // S2 = 50.025 °C
	setFloat(server, 21700, 0x42480000) // valve = 50.0 %
	setString(server, 2100, 8, "192.0.2.10")
	server.HoldingRegisters[4199] = 1 // operating mode: Schedule

	ctrl, err := New(tcpConfig(port), nil)
	require.NoError(t, err)
	defer ctrl.Close()

	ctrl.PollOnce()

	t.Run("decoded values land in the cache", func(t *testing.T) {
		e, ok := ctrl.GetValue(4000)
		require.True(t, ok)
		require.NoError(t, e.Err)
		assert.InDelta(t, 21.0, e.Value.Num, 1e-4)

		e, ok = ctrl.GetValue(21700)
		require.True(t, ok)
		assert.InDelta(t, 50.0, e.Value.Num, 1e-4)

		e, ok = ctrl.GetValue(2100)
		require.True(t, ok)
		assert.Equal(t, "192.0.2.10", e.Value.Text)

		e, ok = ctrl.GetValue(4200)
		require.True(t, ok)
		assert.InDelta(t, 1.0, e.Value.Num, 1e-9)
	})

	t.Run("link reports connected", func(t *testing.T) {
		h := ctrl.LinkHealth()
		assert.Equal(t, link.Connected, h.State)
		assert.Zero(t, h.ConsecutiveFailures)
	})

	t.Run("validated write reaches the device", func(t *testing.T) {
		require.NoError(t, ctrl.WriteValue(21210, codec.Number(25.5)))

		// 25.5 is 0x41CC0000, high word first at manual address 21210.
		assert.Equal(t, uint16(0x41CC), server.HoldingRegisters[21209])
		assert.Equal(t, uint16(0x0000), server.HoldingRegisters[21210])

		// Optimistic cache update before the next cycle.
		e, ok := ctrl.GetValue(21210)
		require.True(t, ok)
		assert.InDelta(t, 25.5, e.Value.Num, 1e-4)
	})

	t.Run("enum write uses a single register", func(t *testing.T) {
		require.NoError(t, ctrl.WriteValue(4200, codec.Number(2)))
		assert.Equal(t, uint16(2), server.HoldingRegisters[4199])
	})

	t.Run("invalid write never reaches the device", func(t *testing.T) {
		before := server.HoldingRegisters[21209]
		err := ctrl.WriteValue(21210, codec.Number(200))
		require.Error(t, err)
		assert.Equal(t, before, server.HoldingRegisters[21209])
	})

	t.Run("read now bypasses the cadence", func(t *testing.T) {
		setFloat(server, 4000, 0x41B00000) // 22.0
		v, err := ctrl.ReadNow(4000)
		require.NoError(t, err)
		assert.InDelta(t, 22.0, v.Num, 1e-4)
	})
}

func TestControllerRecoversFromDeadLink(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	port := freePort(t)

	cfg := tcpConfig(port)
	cfg.Controller.Backoff.SeedMs = 1
	cfg.Controller.Backoff.CapMs = 1

	// Nothing listens yet: the first cycle degrades the link and every
	// register records an error.
	ctrl, err := New(cfg, nil)
	require.NoError(t, err)
	defer ctrl.Close()

	ctrl.PollOnce()

	e, ok := ctrl.GetValue(4000)
	require.True(t, ok)
	assert.Error(t, e.Err)
	assert.True(t, e.UpdatedAt.IsZero(), "no value was ever read")
	assert.Equal(t, link.Degraded, ctrl.LinkHealth().State)

	// Bring the device up; the next cycle reconnects and fills values.
	server := mbserver.NewServer()
	require.NoError(t, server.ListenTCP(fmt.Sprintf("127.0.0.1:%d", port)))
	defer server.Close()
	setFloat(server, 4000, 0x41A80000)

	time.Sleep(10 * time.Millisecond) // backoff elapses

	ctrl.PollOnce()

	e, ok = ctrl.GetValue(4000)
	require.True(t, ok)
	require.NoError(t, e.Err)
	assert.InDelta(t, 21.0, e.Value.Num, 1e-4)

	h := ctrl.LinkHealth()
	assert.Equal(t, link.Connected, h.State)
	assert.Zero(t, h.ConsecutiveFailures)
}
