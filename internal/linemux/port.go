package linemux

import (
	"fmt"
	"os"
	"strings"

	"go.bug.st/serial"
)

const serialPrefix = "serial:"

// SerialOpener opens a serial device. It is a variable so tests can run
// without hardware.
var SerialOpener = func(path string, mode *serial.Mode) (LinePort, error) {
	return serial.Open(path, mode)
}

// Open opens an input source:
//
//	"-" or "stdin"    standard input
//	"serial:<path>"   a serial device configured by opts
//	anything else     a file, read once to EOF
func Open(source string, opts PortOptions) (LinePort, error) {
	switch {
	case source == "" || source == "-" || source == "stdin":
		return os.Stdin, nil
	case strings.HasPrefix(source, serialPrefix):
		path := strings.TrimPrefix(source, serialPrefix)
		if path == "" {
			return nil, fmt.Errorf("serial source needs a device path")
		}
		mode, err := opts.SerialMode()
		if err != nil {
			return nil, err
		}
		port, err := SerialOpener(path, mode)
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
		}
		return port, nil
	default:
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		return f, nil
	}
}
