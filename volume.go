package filesystem

import (
	"os"

	"github.com/spf13/afero"

	"github.com/skilanet/FileSystem/checkpoint"
)

// Volume owns the backing file of a mounted filesystem and moves whole
// clusters between disk and memory. Host file access goes through an
// afero.Fs so that tests can run on an in-memory filesystem.
type Volume struct {
	host   afero.Fs
	file   afero.File
	header Header
	path   string
	loaded bool
}

// NewVolume returns a Volume that opens backing files on host.
func NewVolume(host afero.Fs) *Volume {
	return &Volume{host: host}
}

// CreateAndFormat creates the backing file at path, extends it to sizeBytes
// by writing a single sentinel byte at the end, computes the region layout
// and persists the header. The volume is left open.
func (v *Volume) CreateAndFormat(path string, sizeBytes uint64) (*Header, error) {
	if v.IsOpen() {
		v.Close()
	}
	if sizeBytes == 0 {
		volumeLog.Error("volume size cannot be zero")
		return nil, checkpoint.From(ErrVolumeTooSmall)
	}

	file, err := v.host.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		volumeLog.WithError(err).Errorf("could not open %q for format", path)
		return nil, checkpoint.From(err)
	}
	v.file = file
	v.path = path

	if _, err := file.WriteAt([]byte{0}, int64(sizeBytes-1)); err != nil {
		volumeLog.WithError(err).Errorf("could not set size of %q to %d bytes", path, sizeBytes)
		v.Close()
		return nil, checkpoint.From(err)
	}

	header, err := initializeHeader(sizeBytes)
	if err != nil {
		v.Close()
		return nil, checkpoint.From(err)
	}
	v.header = header
	v.loaded = true

	if err := v.writeHeader(); err != nil {
		volumeLog.WithError(err).Error("could not write header to disk")
		v.Close()
		return nil, err
	}

	volumeLog.Infof("volume %q initialised and formatted", path)
	h := v.header
	return &h, nil
}

// Load opens an existing volume read-write and validates its header.
func (v *Volume) Load(path string) error {
	if v.IsOpen() {
		v.Close()
	}

	file, err := v.host.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		volumeLog.WithError(err).Errorf("could not open volume file %q", path)
		return checkpoint.From(err)
	}
	v.file = file
	v.path = path
	v.loaded = true

	if err := v.readHeader(); err != nil {
		volumeLog.WithError(err).Errorf("failed to read or validate header of %q", path)
		v.Close()
		return err
	}

	volumeLog.Infof("volume %q loaded", path)
	return nil
}

// Header returns a copy of the cached header.
func (v *Volume) Header() Header {
	return v.header
}

// ClusterSize returns the cluster size of the loaded volume, or the
// compile-time size when nothing is loaded.
func (v *Volume) ClusterSize() uint32 {
	if !v.loaded {
		return ClusterSizeBytes
	}
	return v.header.ClusterSize
}

// TotalClusters returns the number of clusters of the loaded volume.
func (v *Volume) TotalClusters() uint32 {
	return v.header.TotalClusters
}

// IsOpen reports whether a volume file is currently open.
func (v *Volume) IsOpen() bool {
	return v.loaded && v.file != nil
}

// Close closes the backing file and marks the volume unloaded.
func (v *Volume) Close() {
	if v.file != nil {
		if err := v.file.Close(); err != nil {
			volumeLog.WithError(err).Warnf("error closing volume file %q", v.path)
		}
		v.file = nil
	}
	v.loaded = false
	v.path = ""
}

// ReadCluster reads cluster clusterIdx into buf. buf must hold at least one
// cluster.
func (v *Volume) ReadCluster(clusterIdx uint32, buf []byte) error {
	if !v.IsOpen() {
		volumeLog.Error("volume not open for reading cluster")
		return checkpoint.From(ErrVolumeNotOpen)
	}
	if clusterIdx >= v.header.TotalClusters {
		volumeLog.Errorf("cluster index %d out of bounds", clusterIdx)
		return checkpoint.From(ErrOutOfBounds)
	}

	offset := int64(clusterIdx) * int64(v.header.ClusterSize)
	n, err := v.file.ReadAt(buf[:v.header.ClusterSize], offset)
	if err != nil {
		volumeLog.WithError(err).Errorf("read failed for cluster %d, got %d of %d bytes",
			clusterIdx, n, v.header.ClusterSize)
		return checkpoint.Wrap(err, ErrReadCluster)
	}
	if n != int(v.header.ClusterSize) {
		volumeLog.Errorf("short read for cluster %d, got %d of %d bytes",
			clusterIdx, n, v.header.ClusterSize)
		return checkpoint.From(ErrReadCluster)
	}
	return nil
}

// WriteCluster writes one cluster from buf to cluster clusterIdx and flushes
// it to the backing file.
func (v *Volume) WriteCluster(clusterIdx uint32, buf []byte) error {
	if !v.IsOpen() {
		volumeLog.Error("volume not open for writing cluster")
		return checkpoint.From(ErrVolumeNotOpen)
	}
	if clusterIdx >= v.header.TotalClusters {
		volumeLog.Errorf("cluster index %d out of bounds", clusterIdx)
		return checkpoint.From(ErrOutOfBounds)
	}

	offset := int64(clusterIdx) * int64(v.header.ClusterSize)
	if _, err := v.file.WriteAt(buf[:v.header.ClusterSize], offset); err != nil {
		volumeLog.WithError(err).Errorf("write failed for cluster %d", clusterIdx)
		return checkpoint.Wrap(err, ErrWriteCluster)
	}
	if err := v.file.Sync(); err != nil {
		volumeLog.WithError(err).Warnf("sync failed after writing cluster %d", clusterIdx)
	}
	return nil
}

// initializeHeader computes the contiguous region layout for a volume of
// sizeBytes: [header][bitmap][FAT][root dir][data...].
func initializeHeader(sizeBytes uint64) (Header, error) {
	var h Header
	h.Signature = volumeSignature
	h.VolumeSizeBytes = sizeBytes
	h.ClusterSize = ClusterSizeBytes
	h.TotalClusters = uint32(sizeBytes / ClusterSizeBytes)

	if h.TotalClusters < MinTotalClusters {
		volumeLog.Warnf("volume needs at least %d clusters, got %d", MinTotalClusters, h.TotalClusters)
		return Header{}, ErrVolumeTooSmall
	}

	h.HeaderClusterCount = 1

	h.BitmapStartCluster = h.HeaderClusterCount
	bitmapSizeBytes := (h.TotalClusters + 7) / 8
	h.BitmapSizeClusters = (bitmapSizeBytes + h.ClusterSize - 1) / h.ClusterSize

	h.FATStartCluster = h.BitmapStartCluster + h.BitmapSizeClusters
	fatSizeBytes := uint64(h.TotalClusters) * 4
	h.FATSizeClusters = uint32((fatSizeBytes + uint64(h.ClusterSize) - 1) / uint64(h.ClusterSize))

	h.RootDirStartCluster = h.FATStartCluster + h.FATSizeClusters
	h.RootDirSizeClusters = RootDirectoryClusterCount

	h.DataStartCluster = h.RootDirStartCluster + h.RootDirSizeClusters

	if h.DataStartCluster >= h.TotalClusters {
		volumeLog.Errorf("no room for data clusters: data start %d, total %d",
			h.DataStartCluster, h.TotalClusters)
		return Header{}, ErrVolumeTooSmall
	}
	return h, nil
}

// writeHeader persists the cached header into cluster 0.
func (v *Volume) writeHeader() error {
	buf := make([]byte, v.header.ClusterSize)
	encodeHeader(&v.header, buf)

	if _, err := v.file.WriteAt(buf, 0); err != nil {
		return checkpoint.Wrap(err, ErrWriteCluster)
	}
	if err := v.file.Sync(); err != nil {
		volumeLog.WithError(err).Warn("sync failed after writing header")
	}
	return nil
}

// readHeader reads cluster 0 and validates signature and cluster size.
func (v *Volume) readHeader() error {
	buf := make([]byte, ClusterSizeBytes)
	n, err := v.file.ReadAt(buf, 0)
	if err != nil {
		volumeLog.WithError(err).Errorf("read header failed, got %d bytes", n)
		return checkpoint.Wrap(err, ErrReadCluster)
	}
	if n != ClusterSizeBytes {
		volumeLog.Errorf("short header read, got %d bytes", n)
		return checkpoint.From(ErrReadCluster)
	}

	h := decodeHeader(buf)
	if h.Signature != volumeSignature {
		return checkpoint.From(ErrBadSignature)
	}
	if h.ClusterSize != ClusterSizeBytes {
		volumeLog.Errorf("expected cluster size %d, got %d", ClusterSizeBytes, h.ClusterSize)
		return checkpoint.From(ErrClusterSize)
	}
	v.header = h
	return nil
}
