package filesystem

import "github.com/sirupsen/logrus"

// One log entry per subsystem, so every line carries the component that
// produced it.
var (
	volumeLog    = logrus.WithField("component", "volume")
	bitmapLog    = logrus.WithField("component", "bitmap")
	fatLog       = logrus.WithField("component", "fat")
	directoryLog = logrus.WithField("component", "directory")
	coreLog      = logrus.WithField("component", "core")
)
