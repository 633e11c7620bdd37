package systray

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenCommand(t *testing.T) {
	argv, err := OpenCommand("windows", `C:\Users\me\AppData\Roaming\clipshare\config.toml`)
	require.NoError(t, err)
	require.Equal(t, "rundll32", argv[0])
	require.Equal(t, `C:\Users\me\AppData\Roaming\clipshare\config.toml`, argv[2])

	argv, err = OpenCommand("darwin", "http://localhost:7878")
	require.NoError(t, err)
	require.Equal(t, []string{"open", "http://localhost:7878"}, argv)

	argv, err = OpenCommand("linux", "/home/me/.config/clipshare/config.toml")
	require.NoError(t, err)
	require.Equal(t, "xdg-open", argv[0])

	_, err = OpenCommand("plan9", "x")
	require.Error(t, err)
}

func TestIconEmbedded(t *testing.T) {
	require.NotEmpty(t, iconICO)
	require.Equal(t, []byte{0, 0, 1, 0}, iconICO[:4])
	require.Equal(t, []byte("\x89PNG"), iconPNG[:4])
	require.NotEmpty(t, Icon())
}
