package filesystem

import (
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/spf13/afero"
)

// formatTestVolume formats a one MiB volume on an in-memory host and
// returns it open.
func formatTestVolume(t *testing.T) *Volume {
	t.Helper()
	vol := NewVolume(afero.NewMemMapFs())
	if _, err := vol.CreateAndFormat("test.img", 1*1024*1024); err != nil {
		t.Fatalf("CreateAndFormat() error = %v", err)
	}
	t.Cleanup(vol.Close)
	return vol
}

func TestBitmap_InitializeMarksMetadata(t *testing.T) {
	vol := formatTestVolume(t)
	header := vol.Header()

	bitmap := NewBitmap(vol)
	if err := bitmap.InitializeAndFlush(&header); err != nil {
		t.Fatalf("InitializeAndFlush() error = %v", err)
	}

	for i := uint32(0); i < header.DataStartCluster; i++ {
		if bitmap.IsFree(i) {
			t.Errorf("metadata cluster %d should be allocated", i)
		}
	}
	for i := header.DataStartCluster; i < header.TotalClusters; i++ {
		if !bitmap.IsFree(i) {
			t.Errorf("data cluster %d should be free after format", i)
		}
	}
	if got, want := bitmap.FreeCount(), header.TotalClusters-header.DataStartCluster; got != want {
		t.Errorf("FreeCount() = %d, want %d", got, want)
	}
}

func TestBitmap_AllocateScansFromDataStart(t *testing.T) {
	vol := formatTestVolume(t)
	header := vol.Header()
	bitmap := NewBitmap(vol)
	if err := bitmap.InitializeAndFlush(&header); err != nil {
		t.Fatal(err)
	}

	first, err := bitmap.Allocate()
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if first != header.DataStartCluster {
		t.Errorf("Allocate() = %d, want %d", first, header.DataStartCluster)
	}

	second, err := bitmap.Allocate()
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if second != first+1 {
		t.Errorf("Allocate() = %d, want %d", second, first+1)
	}
	if bitmap.IsFree(first) || bitmap.IsFree(second) {
		t.Error("allocated clusters must not be free")
	}
}

func TestBitmap_AllocateReusesFreedCluster(t *testing.T) {
	vol := formatTestVolume(t)
	header := vol.Header()
	bitmap := NewBitmap(vol)
	if err := bitmap.InitializeAndFlush(&header); err != nil {
		t.Fatal(err)
	}

	first, _ := bitmap.Allocate()
	if _, err := bitmap.Allocate(); err != nil {
		t.Fatal(err)
	}
	if err := bitmap.Free(first); err != nil {
		t.Fatalf("Free() error = %v", err)
	}

	again, err := bitmap.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	if again != first {
		t.Errorf("Allocate() after Free() = %d, want reused %d", again, first)
	}
}

func TestBitmap_FreeProtectsMetadata(t *testing.T) {
	vol := formatTestVolume(t)
	header := vol.Header()
	bitmap := NewBitmap(vol)
	if err := bitmap.InitializeAndFlush(&header); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		clusterIdx uint32
	}{
		{name: "header cluster", clusterIdx: 0},
		{name: "bitmap cluster", clusterIdx: header.BitmapStartCluster},
		{name: "FAT cluster", clusterIdx: header.FATStartCluster},
		{name: "root directory cluster", clusterIdx: header.RootDirStartCluster},
		{name: "beyond the volume", clusterIdx: header.TotalClusters},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := bitmap.Free(tt.clusterIdx); !errors.Is(err, ErrOutOfBounds) {
				t.Errorf("Free(%d) error = %v, want ErrOutOfBounds", tt.clusterIdx, err)
			}
		})
	}
}

func TestBitmap_FreeTwiceIsOnlyAWarning(t *testing.T) {
	vol := formatTestVolume(t)
	header := vol.Header()
	bitmap := NewBitmap(vol)
	if err := bitmap.InitializeAndFlush(&header); err != nil {
		t.Fatal(err)
	}

	idx, _ := bitmap.Allocate()
	if err := bitmap.Free(idx); err != nil {
		t.Fatalf("first Free() error = %v", err)
	}
	if err := bitmap.Free(idx); err != nil {
		t.Errorf("second Free() error = %v, want nil (warning only)", err)
	}
}

func TestBitmap_LoadMatchesDisk(t *testing.T) {
	vol := formatTestVolume(t)
	header := vol.Header()
	bitmap := NewBitmap(vol)
	if err := bitmap.InitializeAndFlush(&header); err != nil {
		t.Fatal(err)
	}
	allocated, _ := bitmap.Allocate()

	reloaded := NewBitmap(vol)
	if err := reloaded.Load(&header); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reloaded.IsFree(allocated) {
		t.Errorf("cluster %d allocated before reload is free after it", allocated)
	}
	if got, want := reloaded.FreeCount(), bitmap.FreeCount(); got != want {
		t.Errorf("FreeCount() after reload = %d, want %d", got, want)
	}
}

func TestBitmap_AllocateRollsBackOnFlushFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dev := NewMockclusterDevice(ctrl)
	dev.EXPECT().IsOpen().Return(true)
	dev.EXPECT().ClusterSize().Return(uint32(ClusterSizeBytes)).AnyTimes()
	dev.EXPECT().WriteCluster(gomock.Any(), gomock.Any()).Return(errTestDevice)

	bitmap := NewBitmap(dev)
	bitmap.totalClusters = 16
	bitmap.startCluster = 1
	bitmap.sizeClusters = 1
	bitmap.dataStart = 4
	bitmap.bits = make([]byte, 2)

	if _, err := bitmap.Allocate(); !errors.Is(err, errTestDevice) {
		t.Fatalf("Allocate() error = %v, want the device error", err)
	}
	if !bitmap.IsFree(4) {
		t.Error("bit must be rolled back after a failed flush")
	}
}

func TestBitmap_FreeFailsWhenFlushFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dev := NewMockclusterDevice(ctrl)
	dev.EXPECT().IsOpen().Return(true)
	dev.EXPECT().ClusterSize().Return(uint32(ClusterSizeBytes)).AnyTimes()
	dev.EXPECT().WriteCluster(gomock.Any(), gomock.Any()).Return(errTestDevice)

	bitmap := NewBitmap(dev)
	bitmap.totalClusters = 16
	bitmap.startCluster = 1
	bitmap.sizeClusters = 1
	bitmap.dataStart = 4
	bitmap.bits = make([]byte, 2)
	bitmap.setBit(5)

	if err := bitmap.Free(5); !errors.Is(err, errTestDevice) {
		t.Errorf("Free() error = %v, want the device error", err)
	}
}

// errTestDevice is the error injected through the mocked device.
var errTestDevice = errors.New("injected device error")
