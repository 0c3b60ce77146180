package filesystem

// clusterDevice provides the cluster-level access the allocators and the
// directory layer need from the volume. It mainly exists to be able to mock
// the volume in tests.
// Generated mock using mockgen:
//
//	mockgen -source=device.go -destination=device_mock.go -package filesystem
type clusterDevice interface {
	ReadCluster(clusterIdx uint32, buf []byte) error
	WriteCluster(clusterIdx uint32, buf []byte) error
	ClusterSize() uint32
	TotalClusters() uint32
	IsOpen() bool
}
