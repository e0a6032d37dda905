package config

import (
	"os"
	"slices"

	"github.com/go-faster/errors"
	"github.com/spf13/pflag"
)

const (
	FormatJSON  = "json"
	FormatTable = "table"

	defaultBatchSize = 100
)

var formats = []string{FormatJSON, FormatTable}

// Config holds the configuration for the classifier when reading captures or event dumps
type Config struct {
	// InputPath is a pcap/pcapng file for the pcap command or an event dump for the replay command
	InputPath string
	Ports     []uint
	BatchSize int
	Format    string
	// DumpPath, when set, receives every event read so that it can be replayed
	DumpPath string
}

// NewConfig creates a new Config instance with the defaults used by the flags
func NewConfig() *Config {
	return &Config{
		BatchSize: defaultBatchSize,
		Format:    FormatJSON,
	}
}

// RegisterFlags binds the flags shared by the pcap and replay commands
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.IntVar(&c.BatchSize, "batch", c.BatchSize, "number of flows sent per batch")
	fs.StringVarP(&c.Format, "format", "f", c.Format, "output format: json or table")
	fs.StringVar(&c.DumpPath, "dump", "", "write the events read to this file")
}

// RegisterCaptureFlags binds the flags only used when reading a capture file
func (c *Config) RegisterCaptureFlags(fs *pflag.FlagSet) {
	fs.UintSliceVarP(&c.Ports, "port", "p", nil, "only read connections on these ports")
}

// PortFilter returns the configured ports as TCP ports
func (c *Config) PortFilter() []uint16 {
	ports := make([]uint16, 0, len(c.Ports))
	for _, p := range c.Ports {
		ports = append(ports, uint16(p))
	}
	return ports
}

func (c *Config) Validate() error {
	if c.InputPath == "" {
		return errors.New("no input file given")
	}
	info, err := os.Stat(c.InputPath)
	if err != nil {
		return errors.Wrap(err, "input file")
	}
	if info.IsDir() {
		return errors.Errorf("input file %s is a directory", c.InputPath)
	}

	for _, p := range c.Ports {
		if p == 0 || p > 65535 {
			return errors.Errorf("invalid port: %d", p)
		}
	}

	if c.BatchSize < 1 {
		return errors.Errorf("invalid batch size: %d", c.BatchSize)
	}

	if !slices.Contains(formats, c.Format) {
		return errors.Errorf("invalid format: %s", c.Format)
	}

	if c.DumpPath != "" && c.DumpPath == c.InputPath {
		return errors.New("dump file can not be the input file")
	}

	return nil
}
