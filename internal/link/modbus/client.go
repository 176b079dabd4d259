// Package modbus adapts github.com/goburrow/modbus to the link layer's
// Transport interface, for serial RTU and TCP gateway connections.
package modbus

import (
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
)

// handler is the subset goburrow's RTU and TCP client handlers share.
type handler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

// Client implements link.Transport over one goburrow client handler.
type Client struct {
	handler handler
	client  modbus.Client
}

// SerialConfig describes an RS-485 RTU connection. The ECL speaks
// 8 data bits, even parity, 1 stop bit at 38400 baud by default.
type SerialConfig struct {
	Port     string
	BaudRate int
	Parity   string // "E", "N" or "O"
	StopBits int
	UnitID   uint8
	Timeout  time.Duration
}

// TCPConfig describes a Modbus TCP gateway connection.
type TCPConfig struct {
	Address string // host:port
	UnitID  uint8
	Timeout time.Duration
}

// NewRTU builds an unconnected serial RTU transport.
func NewRTU(cfg SerialConfig) (*Client, error) {
	if cfg.Port == "" {
		return nil, errors.New("modbus: serial port required")
	}

	h := modbus.NewRTUClientHandler(cfg.Port)
	h.BaudRate = cfg.BaudRate
	h.DataBits = 8
	h.Parity = cfg.Parity
	h.StopBits = cfg.StopBits
	h.SlaveId = cfg.UnitID
	h.Timeout = cfg.Timeout

	return &Client{handler: h, client: modbus.NewClient(h)}, nil
}

// NewTCP builds an unconnected TCP transport.
func NewTCP(cfg TCPConfig) (*Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("modbus: tcp address required")
	}

	h := modbus.NewTCPClientHandler(cfg.Address)
	h.SlaveId = cfg.UnitID
	h.Timeout = cfg.Timeout

	return &Client{handler: h, client: modbus.NewClient(h)}, nil
}

func (c *Client) Connect() error { return c.handler.Connect() }
func (c *Client) Close() error   { return c.handler.Close() }

// ReadHoldingRegisters issues FC 3 and unpacks the big-endian payload.
func (c *Client) ReadHoldingRegisters(address, quantity uint16) ([]uint16, error) {
	data, err := c.client.ReadHoldingRegisters(address, quantity)
	if err != nil {
		return nil, err
	}
	if len(data) != int(quantity)*2 {
		return nil, fmt.Errorf("modbus: want %d payload bytes, got %d", quantity*2, len(data))
	}
	return unpackRegisters(data), nil
}

// WriteSingleRegister issues FC 6.
func (c *Client) WriteSingleRegister(address, value uint16) error {
	_, err := c.client.WriteSingleRegister(address, value)
	return err
}

// WriteMultipleRegisters issues FC 16.
func (c *Client) WriteMultipleRegisters(address uint16, values []uint16) error {
	qty := uint16(len(values))
	_, err := c.client.WriteMultipleRegisters(address, qty, packRegisters(values))
	return err
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}

func unpackRegisters(data []byte) []uint16 {
	out := make([]uint16, len(data)/2)
	for i := range out {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
