package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Paths(t *testing.T) {
	b := Builder{TempRoot: "/data/tmp", DestRoot: "/data/files"}

	temp, err := b.TempPath("tenant-a", "9f1c.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/data/tmp/tenant-a/9f1c.pdf", temp)

	dest, err := b.DestPath("tenant-a")
	require.NoError(t, err)
	assert.Equal(t, "/data/files/tenant-a/file_processor", dest)
}

func TestBuilder_RejectsUnsafeSegments(t *testing.T) {
	b := Builder{TempRoot: "/data/tmp", DestRoot: "/data/files"}

	for _, bad := range []string{"", ".", "..", "../etc", "a/b", `a\b`} {
		_, err := b.TempPath("tenant-a", bad)
		assert.Error(t, err, bad)
		_, err = b.DestPath(bad)
		assert.Error(t, err, bad)
	}
}
