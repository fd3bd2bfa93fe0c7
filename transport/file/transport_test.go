package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDriver(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "flows.log")
	d := &FileDriver{
		fileDestination: dest,
		lineSeparator:   "\n",
		lock:            &sync.RWMutex{},
	}
	require.NoError(t, d.Init())

	require.NoError(t, d.Send([]byte("key"), []byte(`{"bytes":1500}`)))
	require.NoError(t, d.Send(nil, []byte(`{"bytes":64}`)))

	// rotated away, the next write goes to a new file
	require.NoError(t, os.Rename(dest, dest+".1"))
	require.NoError(t, d.reopen())
	require.NoError(t, d.Send(nil, []byte(`{"bytes":40}`)))
	require.NoError(t, d.Close())

	rotated, err := os.ReadFile(dest + ".1")
	require.NoError(t, err)
	assert.Equal(t, "{\"bytes\":1500}\n{\"bytes\":64}\n", string(rotated))

	current, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "{\"bytes\":40}\n", string(current))
}

func TestFileDriverBadPath(t *testing.T) {
	d := &FileDriver{
		fileDestination: filepath.Join(t.TempDir(), "missing", "flows.log"),
		lock:            &sync.RWMutex{},
	}
	assert.Error(t, d.Init())
}
