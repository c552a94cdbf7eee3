//go:build !tinygo

package hal

import (
	"errors"
	"io"
	"os"

	"go.bug.st/serial"
)

// openSerial opens a host serial port with COM1's line settings.
func openSerial(name string) (serial.Port, error) {
	return serial.Open(name, &serial.Mode{
		BaudRate: 38400,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
}

// pumpSerial feeds everything read from r into the UART receiver until r
// fails or reaches EOF.
func pumpSerial(r io.Reader, in Input) error {
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			in.Serial(buf[:n])
		}
		if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// uartLine returns the UART's host side: a serial port when name is set,
// otherwise stdin and stdout. The closer is nil for stdio.
func uartLine(name string) (io.Reader, io.Writer, io.Closer, error) {
	if name == "" {
		return os.Stdin, os.Stdout, nil, nil
	}
	p, err := openSerial(name)
	if err != nil {
		return nil, nil, nil, err
	}
	return p, p, p, nil
}
