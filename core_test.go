package filesystem

import (
	"bytes"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCore formats and mounts a one MiB volume on an in-memory host.
func newTestCore(t *testing.T) (*Core, afero.Fs) {
	t.Helper()
	host := afero.NewMemMapFs()
	core := NewWithHost(host)
	require.NoError(t, core.Format("v.img", 1))
	require.NoError(t, core.Mount("v.img"))
	t.Cleanup(core.Unmount)
	return core, host
}

func TestCore_FormatLayout(t *testing.T) {
	core, _ := newTestCore(t)

	header, err := core.Header()
	require.NoError(t, err)
	assert.Equal(t, uint32(4096), header.ClusterSize)
	assert.Equal(t, uint32(256), header.TotalClusters)
	assert.Equal(t, uint32(1), header.HeaderClusterCount)
	assert.Equal(t, uint32(1), header.BitmapStartCluster)
	assert.Equal(t, header.BitmapStartCluster+header.BitmapSizeClusters, header.FATStartCluster)
	assert.Equal(t, header.FATStartCluster+header.FATSizeClusters, header.RootDirStartCluster)
	assert.Equal(t, uint32(1), header.RootDirSizeClusters)
	assert.Equal(t, header.RootDirStartCluster+1, header.DataStartCluster)

	entries, err := core.ListDirectory("/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCore_FormatRejectsZeroSize(t *testing.T) {
	core := NewWithHost(afero.NewMemMapFs())
	assert.ErrorIs(t, core.Format("v.img", 0), ErrVolumeTooSmall)
}

func TestCore_OperationsRequireMount(t *testing.T) {
	core := NewWithHost(afero.NewMemMapFs())

	_, err := core.OpenFile("/a", "r")
	assert.ErrorIs(t, err, ErrNotMounted)
	assert.ErrorIs(t, core.RemoveFile("/a"), ErrNotMounted)
	assert.ErrorIs(t, core.RenameFile("/a", "/b"), ErrNotMounted)
	assert.ErrorIs(t, core.CreateDirectory("/d"), ErrNotMounted)
	assert.ErrorIs(t, core.RemoveDirectory("/d"), ErrNotMounted)
	_, err = core.ListDirectory("/")
	assert.ErrorIs(t, err, ErrNotMounted)
	_, err = core.Header()
	assert.ErrorIs(t, err, ErrNotMounted)
}

func TestCore_WriteReadRoundTrip(t *testing.T) {
	core, _ := newTestCore(t)

	handle, err := core.OpenFile("/a.txt", "w+")
	require.NoError(t, err)

	n, err := core.WriteFile(handle, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	_, err = core.Seek(handle, 0, SeekSet)
	require.NoError(t, err)

	out := make([]byte, 5)
	n, err = core.ReadFile(handle, out)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), out)

	require.NoError(t, core.CloseFile(handle))

	// Survives a remount.
	core.Unmount()
	require.NoError(t, core.Mount("v.img"))

	handle, err = core.OpenFile("/a.txt", "r")
	require.NoError(t, err)
	n, err = core.ReadFile(handle, out)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), out)
	require.NoError(t, core.CloseFile(handle))
}

func TestCore_ExtendAcrossClusters(t *testing.T) {
	core, _ := newTestCore(t)

	handle, err := core.OpenFile("/big", "w+")
	require.NoError(t, err)

	n, err := core.WriteFile(handle, bytes.Repeat([]byte{'A'}, 4096))
	require.NoError(t, err)
	require.Equal(t, 4096, n)
	n, err = core.WriteFile(handle, bytes.Repeat([]byte{'B'}, 100))
	require.NoError(t, err)
	require.Equal(t, 100, n)
	require.NoError(t, core.CloseFile(handle))

	entry, err := core.dir.FindEntry(core.header.RootDirStartCluster, "big")
	require.NoError(t, err)
	assert.Equal(t, uint32(4196), entry.FileSizeBytes)

	chain := core.fat.Chain(entry.FirstCluster)
	require.Len(t, chain, 2)
	for _, clusterIdx := range chain {
		assert.False(t, core.bitmap.IsFree(clusterIdx), "cluster %d must be allocated", clusterIdx)
	}

	handle, err = core.OpenFile("/big", "r")
	require.NoError(t, err)
	out := make([]byte, 4196)
	n, err = core.ReadFile(handle, out)
	require.NoError(t, err)
	require.Equal(t, 4196, n)
	assert.Equal(t, bytes.Repeat([]byte{'A'}, 4096), out[:4096])
	assert.Equal(t, bytes.Repeat([]byte{'B'}, 100), out[4096:])
	require.NoError(t, core.CloseFile(handle))
}

func TestCore_RemoveFileFreesStorage(t *testing.T) {
	core, _ := newTestCore(t)

	handle, err := core.OpenFile("/big", "w+")
	require.NoError(t, err)
	_, err = core.WriteFile(handle, bytes.Repeat([]byte{'A'}, 4196))
	require.NoError(t, err)
	require.NoError(t, core.CloseFile(handle))

	freeBefore, err := core.FreeClusters()
	require.NoError(t, err)

	require.NoError(t, core.RemoveFile("/big"))

	_, err = core.dir.FindEntry(core.header.RootDirStartCluster, "big")
	assert.ErrorIs(t, err, ErrNotFound)

	freeAfter, err := core.FreeClusters()
	require.NoError(t, err)
	assert.Equal(t, freeBefore+2, freeAfter)
}

func TestCore_RemoveFileRejectsDirectories(t *testing.T) {
	core, _ := newTestCore(t)

	require.NoError(t, core.CreateDirectory("/docs"))
	assert.ErrorIs(t, core.RemoveFile("/docs"), ErrIsDirectory)
	assert.ErrorIs(t, core.RemoveFile("/missing"), ErrNotFound)
}

func TestCore_RenameCollision(t *testing.T) {
	core, _ := newTestCore(t)

	for _, name := range []string{"/a", "/b"} {
		handle, err := core.OpenFile(name, "w+")
		require.NoError(t, err)
		_, err = core.WriteFile(handle, []byte(name))
		require.NoError(t, err)
		require.NoError(t, core.CloseFile(handle))
	}

	assert.ErrorIs(t, core.RenameFile("/a", "/b"), ErrExists)

	// Both entries are still intact.
	root := core.header.RootDirStartCluster
	for _, name := range []string{"a", "b"} {
		entry, err := core.dir.FindEntry(root, name)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), entry.FileSizeBytes)
	}
}

func TestCore_RenamePreservesData(t *testing.T) {
	core, _ := newTestCore(t)

	handle, err := core.OpenFile("/old", "w+")
	require.NoError(t, err)
	_, err = core.WriteFile(handle, []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, core.CloseFile(handle))

	before, err := core.dir.FindEntry(core.header.RootDirStartCluster, "old")
	require.NoError(t, err)

	require.NoError(t, core.RenameFile("/old", "/new"))

	after, err := core.dir.FindEntry(core.header.RootDirStartCluster, "new")
	require.NoError(t, err)
	assert.Equal(t, before.FileSizeBytes, after.FileSizeBytes)
	assert.Equal(t, before.FirstCluster, after.FirstCluster)

	handle, err = core.OpenFile("/new", "r")
	require.NoError(t, err)
	out := make([]byte, 7)
	_, err = core.ReadFile(handle, out)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), out)
	require.NoError(t, core.CloseFile(handle))
}

func TestCore_RenameRewritesOpenHandles(t *testing.T) {
	core, _ := newTestCore(t)

	handle, err := core.OpenFile("/old", "w+")
	require.NoError(t, err)
	_, err = core.WriteFile(handle, []byte("via handle"))
	require.NoError(t, err)

	require.NoError(t, core.RenameFile("/old", "/new"))

	// Closing the handle updates the entry under its new name.
	require.NoError(t, core.CloseFile(handle))

	entry, err := core.dir.FindEntry(core.header.RootDirStartCluster, "new")
	require.NoError(t, err)
	assert.Equal(t, uint32(10), entry.FileSizeBytes)
}

func TestCore_TruncateOnReopen(t *testing.T) {
	core, _ := newTestCore(t)

	handle, err := core.OpenFile("/a.txt", "w+")
	require.NoError(t, err)
	_, err = core.WriteFile(handle, []byte("hello"))
	require.NoError(t, err)
	require.NoError(t, core.CloseFile(handle))

	freeBefore, err := core.FreeClusters()
	require.NoError(t, err)

	handle, err = core.OpenFile("/a.txt", "w")
	require.NoError(t, err)
	require.NoError(t, core.CloseFile(handle))

	entry, err := core.dir.FindEntry(core.header.RootDirStartCluster, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), entry.FileSizeBytes)
	assert.Equal(t, FATEntryFree, entry.FirstCluster)

	freeAfter, err := core.FreeClusters()
	require.NoError(t, err)
	assert.Equal(t, freeBefore+1, freeAfter, "the old chain's cluster must be free again")

	handle, err = core.OpenFile("/a.txt", "r")
	require.NoError(t, err)
	n, err := core.ReadFile(handle, make([]byte, 8))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, core.CloseFile(handle))
}

func TestCore_OpenModes(t *testing.T) {
	core, _ := newTestCore(t)

	// r on a missing file fails.
	_, err := core.OpenFile("/missing", "r")
	assert.ErrorIs(t, err, ErrNotFound)

	// Unknown mode string fails.
	_, err = core.OpenFile("/x", "rw")
	assert.ErrorIs(t, err, ErrBadMode)

	// w+ creates, a+ starts at the end of the file.
	handle, err := core.OpenFile("/x", "w+")
	require.NoError(t, err)
	_, err = core.WriteFile(handle, []byte("12345"))
	require.NoError(t, err)
	require.NoError(t, core.CloseFile(handle))

	handle, err = core.OpenFile("/x", "a+")
	require.NoError(t, err)
	pos, err := core.Seek(handle, 0, SeekCur)
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos)
	require.NoError(t, core.CloseFile(handle))

	// Directories cannot be opened as files.
	require.NoError(t, core.CreateDirectory("/d"))
	_, err = core.OpenFile("/d", "r")
	assert.ErrorIs(t, err, ErrIsDirectory)
}

func TestCore_ReadAtEOFReturnsZero(t *testing.T) {
	core, _ := newTestCore(t)

	handle, err := core.OpenFile("/x", "w+")
	require.NoError(t, err)
	_, err = core.WriteFile(handle, []byte("abc"))
	require.NoError(t, err)

	n, err := core.ReadFile(handle, make([]byte, 4))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, core.CloseFile(handle))
}

func TestCore_SeekSemantics(t *testing.T) {
	core, _ := newTestCore(t)

	handle, err := core.OpenFile("/x", "w+")
	require.NoError(t, err)
	_, err = core.WriteFile(handle, []byte("0123456789"))
	require.NoError(t, err)

	pos, err := core.Seek(handle, 2, SeekSet)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pos)

	pos, err = core.Seek(handle, 3, SeekCur)
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos)

	pos, err = core.Seek(handle, -4, SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(6), pos)

	out := make([]byte, 4)
	n, err := core.ReadFile(handle, out)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("6789"), out)

	_, err = core.Seek(handle, -20, SeekCur)
	assert.ErrorIs(t, err, ErrNegativeSeek)
	_, err = core.Seek(handle, 0, 7)
	assert.ErrorIs(t, err, ErrBadWhence)
	require.NoError(t, core.CloseFile(handle))
}

func TestCore_SeekClampsInReadOnlyMode(t *testing.T) {
	core, _ := newTestCore(t)

	handle, err := core.OpenFile("/x", "w+")
	require.NoError(t, err)
	_, err = core.WriteFile(handle, []byte("hello"))
	require.NoError(t, err)
	require.NoError(t, core.CloseFile(handle))

	handle, err = core.OpenFile("/x", "r")
	require.NoError(t, err)
	pos, err := core.Seek(handle, 100, SeekSet)
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos, "read-only seek past EOF clamps to the file size")
	require.NoError(t, core.CloseFile(handle))
}

func TestCore_WriteAcrossClusterBoundary(t *testing.T) {
	core, _ := newTestCore(t)

	handle, err := core.OpenFile("/x", "w+")
	require.NoError(t, err)

	payload := bytes.Repeat([]byte{0xAB}, 5000)
	n, err := core.WriteFile(handle, payload)
	require.NoError(t, err)
	require.Equal(t, 5000, n)
	require.NoError(t, core.CloseFile(handle))

	entry, err := core.dir.FindEntry(core.header.RootDirStartCluster, "x")
	require.NoError(t, err)
	assert.Len(t, core.fat.Chain(entry.FirstCluster), 2)

	handle, err = core.OpenFile("/x", "r")
	require.NoError(t, err)
	out := make([]byte, 5000)
	n, err = core.ReadFile(handle, out)
	require.NoError(t, err)
	require.Equal(t, 5000, n)
	assert.Equal(t, payload, out)
	require.NoError(t, core.CloseFile(handle))
}

func TestCore_WriteRejectsReadOnlyHandles(t *testing.T) {
	core, _ := newTestCore(t)

	handle, err := core.OpenFile("/x", "w+")
	require.NoError(t, err)
	require.NoError(t, core.CloseFile(handle))

	handle, err = core.OpenFile("/x", "r")
	require.NoError(t, err)
	_, err = core.WriteFile(handle, []byte("nope"))
	assert.ErrorIs(t, err, ErrReadOnly)
	require.NoError(t, core.CloseFile(handle))
}

func TestCore_AppendMode(t *testing.T) {
	core, _ := newTestCore(t)

	handle, err := core.OpenFile("/log", "w+")
	require.NoError(t, err)
	_, err = core.WriteFile(handle, []byte("one"))
	require.NoError(t, err)
	require.NoError(t, core.CloseFile(handle))

	handle, err = core.OpenFile("/log", "a")
	require.NoError(t, err)
	_, err = core.WriteFile(handle, []byte("two"))
	require.NoError(t, err)
	require.NoError(t, core.CloseFile(handle))

	handle, err = core.OpenFile("/log", "r")
	require.NoError(t, err)
	out := make([]byte, 6)
	n, err := core.ReadFile(handle, out)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, []byte("onetwo"), out)
	require.NoError(t, core.CloseFile(handle))
}

func TestCore_HandleIDsAreMonotonic(t *testing.T) {
	core, _ := newTestCore(t)

	first, err := core.OpenFile("/a", "w+")
	require.NoError(t, err)
	second, err := core.OpenFile("/b", "w+")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), first)
	assert.Equal(t, uint32(2), second)

	require.NoError(t, core.CloseFile(first))
	third, err := core.OpenFile("/c", "w+")
	require.NoError(t, err)
	assert.Equal(t, uint32(3), third, "handle ids are not reused within a mount")

	assert.ErrorIs(t, core.CloseFile(first), ErrBadHandle)
}

func TestCore_UnmountClosesHandlesAndFlushes(t *testing.T) {
	core, _ := newTestCore(t)

	handle, err := core.OpenFile("/x", "w+")
	require.NoError(t, err)
	_, err = core.WriteFile(handle, []byte("pending"))
	require.NoError(t, err)

	// Unmount without an explicit close; the data must still be flushed.
	core.Unmount()
	require.NoError(t, core.Mount("v.img"))

	handle, err = core.OpenFile("/x", "r")
	require.NoError(t, err)
	out := make([]byte, 7)
	n, err := core.ReadFile(handle, out)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, []byte("pending"), out)
	require.NoError(t, core.CloseFile(handle))
}

func TestCore_MountUnmountIsANoOpOnDisk(t *testing.T) {
	host := afero.NewMemMapFs()
	core := NewWithHost(host)
	require.NoError(t, core.Format("v.img", 1))

	before, err := afero.ReadFile(host, "v.img")
	require.NoError(t, err)

	require.NoError(t, core.Mount("v.img"))
	core.Unmount()

	after, err := afero.ReadFile(host, "v.img")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCore_DirectoryLifecycle(t *testing.T) {
	core, _ := newTestCore(t)

	require.NoError(t, core.CreateDirectory("/docs"))
	assert.ErrorIs(t, core.CreateDirectory("/docs"), ErrExists)

	entries, err := core.ListDirectory("/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "docs", entries[0].NameString())
	assert.Equal(t, EntityDirectory, entries[0].Type)

	sub, err := core.ListDirectory("/docs")
	require.NoError(t, err)
	assert.Empty(t, sub)

	freeBefore, err := core.FreeClusters()
	require.NoError(t, err)
	require.NoError(t, core.RemoveDirectory("/docs"))
	freeAfter, err := core.FreeClusters()
	require.NoError(t, err)
	assert.Equal(t, freeBefore+1, freeAfter)

	_, err = core.ListDirectory("/docs")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCore_RemoveDirectoryRejectsNonEmpty(t *testing.T) {
	core, _ := newTestCore(t)

	require.NoError(t, core.CreateDirectory("/docs"))
	entry, err := core.dir.FindEntry(core.header.RootDirStartCluster, "docs")
	require.NoError(t, err)

	inner := DirectoryEntry{Type: EntityFile, FirstCluster: FATEntryFree}
	require.NoError(t, inner.SetName("inner"))
	require.NoError(t, core.dir.AddEntry(entry.FirstCluster, inner))

	assert.ErrorIs(t, core.RemoveDirectory("/docs"), ErrDirectoryNotEmpty)

	require.NoError(t, core.dir.RemoveEntry(entry.FirstCluster, "inner"))
	require.NoError(t, core.RemoveDirectory("/docs"))
}

func TestCore_RemoveDirectoryRejectsFiles(t *testing.T) {
	core, _ := newTestCore(t)

	handle, err := core.OpenFile("/f", "w+")
	require.NoError(t, err)
	require.NoError(t, core.CloseFile(handle))

	assert.ErrorIs(t, core.RemoveDirectory("/f"), ErrNotDirectory)
	_, err = core.ListDirectory("/f")
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestCore_OutOfSpace(t *testing.T) {
	core, _ := newTestCore(t)

	free, err := core.FreeClusters()
	require.NoError(t, err)
	capacity := int(free) * ClusterSizeBytes

	handle, err := core.OpenFile("/huge", "w+")
	require.NoError(t, err)

	n, err := core.WriteFile(handle, make([]byte, capacity+1))
	assert.ErrorIs(t, err, ErrNoSpace)
	assert.Equal(t, capacity, n, "everything that fits must be written before failing")
	require.NoError(t, core.CloseFile(handle))

	// The recorded size matches the bytes actually written.
	entry, err := core.dir.FindEntry(core.header.RootDirStartCluster, "huge")
	require.NoError(t, err)
	assert.Equal(t, uint32(capacity), entry.FileSizeBytes)
}

// TestCore_AllocationInvariant checks that after a mix of operations every
// data cluster is either free in the bitmap or a member of exactly one
// chain rooted in a live directory entry.
func TestCore_AllocationInvariant(t *testing.T) {
	core, _ := newTestCore(t)

	for name, size := range map[string]int{"/a": 100, "/b": 5000, "/c": 9000} {
		handle, err := core.OpenFile(name, "w+")
		require.NoError(t, err)
		_, err = core.WriteFile(handle, make([]byte, size))
		require.NoError(t, err)
		require.NoError(t, core.CloseFile(handle))
	}
	require.NoError(t, core.CreateDirectory("/docs"))
	require.NoError(t, core.RemoveFile("/b"))

	handle, err := core.OpenFile("/c", "w")
	require.NoError(t, err)
	require.NoError(t, core.CloseFile(handle))

	owners := map[uint32]int{}
	entries, err := core.ListDirectory("/")
	require.NoError(t, err)
	for i := range entries {
		if entries[i].FirstCluster == FATEntryFree {
			continue
		}
		for _, clusterIdx := range core.fat.Chain(entries[i].FirstCluster) {
			owners[clusterIdx]++
		}
	}
	for _, clusterIdx := range core.fat.Chain(core.header.RootDirStartCluster) {
		if clusterIdx >= core.header.DataStartCluster {
			owners[clusterIdx]++
		}
	}

	for clusterIdx, n := range owners {
		assert.Equal(t, 1, n, "cluster %d is owned by %d chains", clusterIdx, n)
		assert.False(t, core.bitmap.IsFree(clusterIdx), "cluster %d is chained but free", clusterIdx)
	}
	for clusterIdx := core.header.DataStartCluster; clusterIdx < core.header.TotalClusters; clusterIdx++ {
		if _, owned := owners[clusterIdx]; !owned {
			assert.True(t, core.bitmap.IsFree(clusterIdx), "cluster %d is unreachable but allocated", clusterIdx)
		}
	}
}
