package serialport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }

func TestIsTimeout(t *testing.T) {
	require.True(t, IsTimeout(ErrReadTimeout))
	require.True(t, IsTimeout(fmt.Errorf("read: %w", os.ErrDeadlineExceeded)))
	require.True(t, IsTimeout(timeoutErr{}))

	require.False(t, IsTimeout(io.EOF))
	require.False(t, IsTimeout(errors.New("device disconnected")))
}

func TestOpenerFunc(t *testing.T) {
	var gotName string
	var gotBaud int
	opener := OpenerFunc(func(name string, baud int) (Port, error) {
		gotName, gotBaud = name, baud
		return nil, errors.New("busy")
	})

	_, err := opener.Open("COM3", 115200)
	require.EqualError(t, err, "busy")
	require.Equal(t, "COM3", gotName)
	require.Equal(t, 115200, gotBaud)
}

func TestSystemOpenMissingDevice(t *testing.T) {
	_, err := System{}.Open("/dev/clipshare-does-not-exist", 9600)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to open /dev/clipshare-does-not-exist")
}
