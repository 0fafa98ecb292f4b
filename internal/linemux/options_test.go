package linemux

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestPortOptionsNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      PortOptions
		want    PortOptions
		wantErr bool
	}{
		{
			name: "defaults",
			in:   PortOptions{},
			want: PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"},
		},
		{
			name: "long parity names",
			in:   PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: " even "},
			want: PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "E"},
		},
		{
			name: "odd",
			in:   PortOptions{Parity: "o"},
			want: PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "O"},
		},
		{name: "data bits too small", in: PortOptions{DataBits: 4}, wantErr: true},
		{name: "data bits too large", in: PortOptions{DataBits: 9}, wantErr: true},
		{name: "stop bits", in: PortOptions{StopBits: 3}, wantErr: true},
		{name: "parity", in: PortOptions{Parity: "mark"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalize()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPortOptionsSerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 57600, StopBits: 2, Parity: "E"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, &serial.Mode{BaudRate: 57600, DataBits: 8, Parity: serial.EvenParity, StopBits: serial.TwoStopBits}, mode)

	_, err = PortOptions{Parity: "?"}.SerialMode()
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	t.Run("stdin", func(t *testing.T) {
		for _, src := range []string{"", "-", "stdin"} {
			p, err := Open(src, PortOptions{})
			require.NoError(t, err)
			assert.Equal(t, os.Stdin, p)
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fixture.jsonl")
		require.NoError(t, os.WriteFile(path, []byte("a\n"), 0o644))
		p, err := Open(path, PortOptions{})
		require.NoError(t, err)
		defer p.Close()
		buf := make([]byte, 2)
		n, err := p.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, "a\n", string(buf[:n]))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "nope.jsonl"), PortOptions{})
		assert.Error(t, err)
	})

	t.Run("serial", func(t *testing.T) {
		original := SerialOpener
		defer func() { SerialOpener = original }()

		var gotPath string
		var gotMode *serial.Mode
		SerialOpener = func(path string, mode *serial.Mode) (LinePort, error) {
			gotPath, gotMode = path, mode
			return NewTestPort(""), nil
		}

		_, err := Open("serial:/dev/ttyACM0", PortOptions{BaudRate: 230400})
		require.NoError(t, err)
		assert.Equal(t, "/dev/ttyACM0", gotPath)
		assert.Equal(t, 230400, gotMode.BaudRate)

		_, err = Open("serial:", PortOptions{})
		assert.Error(t, err)
		_, err = Open("serial:/dev/ttyACM0", PortOptions{DataBits: 12})
		assert.Error(t, err)
	})
}
