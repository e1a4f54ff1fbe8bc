//go:build linux || darwin

package rpctransport

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// baudRates maps the handful of standard baud rates the tty scheme's
// baudrate option accepts to their termios speed constants.
var baudRates = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
}

// TTYChannel is a ByteChannel over a serial device node, put into raw
// mode at the requested baud rate (commonly paired with Serial/SERIAL_CRC
// framing, per original_source/include/shv/rpcclient_stream.h).
type TTYChannel struct {
	path     string
	baudRate int
	file     *os.File
}

// NewTTY opens path and configures it for raw, 8N1 communication at
// baudRate.
func NewTTY(path string, baudRate int) (*TTYChannel, error) {
	c := &TTYChannel{path: path, baudRate: baudRate}
	if err := c.open(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *TTYChannel) open() error {
	f, err := os.OpenFile(c.path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return fmt.Errorf("rpctransport: open tty %v failed: %w", c.path, err)
	}

	if err := configureRaw(int(f.Fd()), c.baudRate); err != nil {
		f.Close()
		return err
	}

	c.file = f
	return nil
}

func configureRaw(fd int, baudRate int) error {
	t, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return fmt.Errorf("rpctransport: get termios failed: %w", err)
	}

	// cfmakeraw equivalent: disable line discipline, echo, signal
	// generation, and input/output processing.
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	if baudRate != 0 {
		speed, ok := baudRates[baudRate]
		if !ok {
			return fmt.Errorf("rpctransport: unsupported baud rate %d", baudRate)
		}
		t.Ispeed = speed
		t.Ospeed = speed
	}

	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, t); err != nil {
		return fmt.Errorf("rpctransport: set termios failed: %w", err)
	}
	return nil
}

func (c *TTYChannel) Read(p []byte) (int, error)  { return c.file.Read(p) }
func (c *TTYChannel) Write(p []byte) (int, error) { return c.file.Write(p) }
func (c *TTYChannel) PeerName() string             { return c.path }

func (c *TTYChannel) Reconnect() error {
	if c.file != nil {
		c.file.Close()
	}
	return c.open()
}

func (c *TTYChannel) Disconnect() error {
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}

var _ ByteChannel = (*TTYChannel)(nil)
