package server

// Config is the flat, non-sectioned configuration this instance runs
// with, populated from CLI flags.
type Config struct {
	Port       int
	Dir        string
	DBFilename string

	// ReplicaOfHost/Port are set when this instance should run as a
	// replica of another instance from boot.
	ReplicaOfHost string
	ReplicaOfPort string
}

func DefaultConfig() *Config {
	return &Config{
		Port:       6379,
		Dir:        "/tmp/redis-files",
		DBFilename: "dump.rdb",
	}
}

func (c *Config) IsReplica() bool {
	return c.ReplicaOfHost != ""
}
