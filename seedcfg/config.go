package seedcfg

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"
	"github.com/overlaynet/seeddb/build"
	"github.com/overlaynet/seeddb/seed"
	"github.com/overlaynet/seeddb/seeddb"
	"github.com/overlaynet/seeddb/seedsync"
)

const (
	// DefaultConfigFilename is the name of the config file inside the
	// seeddb directory.
	DefaultConfigFilename = "seeddb.conf"

	defaultDataDirname      = "data"
	defaultLogDirname       = "logs"
	defaultLogFilename      = "seeddb.log"
	defaultIdentityFilename = "mySeed.txt"
	defaultPeerName         = "anomic"
	defaultPort             = 8090
	defaultLogLevel         = "info"
	defaultDBTimeout        = 60 * time.Second
	defaultEncoding         = "plain"
	defaultUploadName       = "seed.txt"
)

var (
	// DefaultSeedDBDir is the default directory holding the data, logs
	// and config file.
	DefaultSeedDBDir = btcutil.AppDataDir("seeddb", false)

	// DefaultConfigFile is the default path of the config file.
	DefaultConfigFile = filepath.Join(
		DefaultSeedDBDir, DefaultConfigFilename,
	)

	defaultDataDir = filepath.Join(DefaultSeedDBDir, defaultDataDirname)
	defaultLogDir  = filepath.Join(DefaultSeedDBDir, defaultLogDirname)
)

// PortForwarding holds the settings of a host that forwards connections to
// the node.
//
//nolint:lll
type PortForwarding struct {
	Enabled bool   `long:"enabled" description:"Announce the forwarding host instead of the local listen port"`
	Host    string `long:"host" description:"The host that forwards connections to this node"`
	Port    int    `long:"port" description:"The port on the forwarding host"`
}

// DB holds the settings of the tier stores.
//
//nolint:lll
type DB struct {
	Timeout        time.Duration `long:"timeout" description:"The time to wait for the lock on a tier file"`
	NoFreelistSync bool          `long:"nofreelistsync" description:"Don't sync the bolt freelist to disk, trading startup time for write speed"`
}

// Sync holds the settings of cache publication.
//
//nolint:lll
type Sync struct {
	Timeout    time.Duration `long:"timeout" description:"The time to wait for a published cache to be fetched back"`
	Proxy      string        `long:"proxy" description:"Fetch published caches through this proxy, e.g. socks5://127.0.0.1:9050"`
	URL        string        `long:"url" description:"The URL the published cache can be fetched from"`
	UploadDir  string        `long:"uploaddir" description:"Publish by copying the cache into this directory"`
	UploadName string        `long:"uploadname" description:"The file name of the cache in the upload directory"`
	UploadURL  string        `long:"uploadurl" description:"Publish by sending the cache to this URL with a PUT request"`
	Encoding   string        `long:"encoding" description:"The encoding of exported seeds" choice:"plain" choice:"base64" choice:"zstd"`
}

// Config is the configuration of a seeddb node.
//
//nolint:lll
type Config struct {
	SeedDBDir  string `long:"seeddbdir" description:"The base directory that contains the data, logs and configuration file"`
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"The directory to store the seed tiers in"`
	LogDir     string `long:"logdir" description:"Directory to log output"`

	IdentityFile string `long:"identityfile" description:"The file holding the identity of the local node"`
	PeerName     string `long:"peername" description:"The name given to a newly created local identity"`
	Port         int    `long:"port" description:"The port the node listens on"`

	NameCacheSize uint64 `long:"namecachesize" description:"The number of peer names to cache"`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <global-level>,<subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`

	PortForwarding *PortForwarding `group:"portforwarding" namespace:"portforwarding"`

	DB *DB `group:"db" namespace:"db"`

	Sync *Sync `group:"sync" namespace:"sync"`

	LogConfig *build.LogConfig `group:"logging" namespace:"logging"`
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		SeedDBDir:     DefaultSeedDBDir,
		ConfigFile:    DefaultConfigFile,
		DataDir:       defaultDataDir,
		LogDir:        defaultLogDir,
		PeerName:      defaultPeerName,
		Port:          defaultPort,
		NameCacheSize: seeddb.DefaultNameCacheSize,
		DebugLevel:    defaultLogLevel,
		PortForwarding: &PortForwarding{
			Port: defaultPort,
		},
		DB: &DB{
			Timeout: defaultDBTimeout,
		},
		Sync: &Sync{
			Timeout:    seedsync.DefaultTimeout,
			UploadName: defaultUploadName,
			Encoding:   defaultEncoding,
		},
		LogConfig: build.DefaultLogConfig(),
	}
}

// LoadConfig initializes and parses the config using a config file and the
// given command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func LoadConfig(args []string) (*Config, error) {
	// Pre-parse the command line options to pick up an alternative config
	// file.
	preCfg := DefaultConfig()
	if _, err := flags.ParseArgs(&preCfg, args); err != nil {
		return nil, err
	}

	// If the config file path has not been modified by the user, then
	// we'll use the default config file path. However, if the user has
	// modified their seeddb dir, then we should assume they intend to use
	// the config file within it.
	configFileDir := CleanAndExpandPath(preCfg.SeedDBDir)
	configFilePath := CleanAndExpandPath(preCfg.ConfigFile)
	if configFileDir != DefaultSeedDBDir &&
		configFilePath == DefaultConfigFile {

		configFilePath = filepath.Join(
			configFileDir, DefaultConfigFilename,
		)
	}

	// Next, load any additional configuration options from the file.
	var configFileError error
	cfg := preCfg
	if err := flags.IniParse(configFilePath, &cfg); err != nil {
		// If it's a parsing related error, then we'll return
		// immediately, otherwise we can proceed as possibly the config
		// file doesn't exist which is OK.
		var iniErr *flags.IniError
		if errors.As(err, &iniErr) {
			return nil, err
		}

		configFileError = err
	}

	// Finally, parse the remaining command line options again to ensure
	// they take precedence.
	if _, err := flags.ParseArgs(&cfg, args); err != nil {
		return nil, err
	}

	cleanCfg, err := ValidateConfig(cfg)
	if err != nil {
		return nil, err
	}

	// Warn about missing config file only after all other configuration is
	// done.
	if configFileError != nil {
		log.Debugf("%v", configFileError)
	}

	return cleanCfg, nil
}

// ValidateConfig checks the given configuration to be sane. All file system
// paths are normalized. The cleaned up config is returned on success.
func ValidateConfig(cfg Config) (*Config, error) {
	// If the provided seeddb directory is not the default, we'll modify
	// the path to all of the files and directories that will live within
	// it.
	seedDBDir := CleanAndExpandPath(cfg.SeedDBDir)
	if seedDBDir != DefaultSeedDBDir {
		if cfg.DataDir == defaultDataDir {
			cfg.DataDir = filepath.Join(seedDBDir, defaultDataDirname)
		}
		if cfg.LogDir == defaultLogDir {
			cfg.LogDir = filepath.Join(seedDBDir, defaultLogDirname)
		}
	}

	cfg.SeedDBDir = seedDBDir
	cfg.DataDir = CleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = CleanAndExpandPath(cfg.LogDir)
	cfg.IdentityFile = CleanAndExpandPath(cfg.IdentityFile)
	cfg.Sync.UploadDir = CleanAndExpandPath(cfg.Sync.UploadDir)

	if cfg.IdentityFile == "" {
		cfg.IdentityFile = filepath.Join(
			cfg.DataDir, defaultIdentityFilename,
		)
	}

	if err := validPort(cfg.Port); err != nil {
		return nil, fmt.Errorf("invalid port: %w", err)
	}

	if cfg.PortForwarding.Enabled {
		if cfg.PortForwarding.Host == "" {
			return nil, errors.New("port forwarding requires " +
				"portforwarding.host")
		}
		if err := validPort(cfg.PortForwarding.Port); err != nil {
			return nil, fmt.Errorf("invalid forwarding port: %w",
				err)
		}
	}

	if cfg.NameCacheSize == 0 {
		return nil, errors.New("namecachesize must be positive")
	}

	if cfg.Sync.Timeout <= 0 {
		return nil, errors.New("sync.timeout must be positive")
	}

	if _, err := seed.ParseEncoding(cfg.Sync.Encoding); err != nil {
		return nil, err
	}

	if cfg.Sync.UploadDir != "" && cfg.Sync.UploadURL != "" {
		return nil, errors.New("only one of sync.uploaddir and " +
			"sync.uploadurl can be set")
	}

	if err := cfg.LogConfig.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LogFile returns the path of the log file.
func (c *Config) LogFile() string {
	return filepath.Join(c.LogDir, defaultLogFilename)
}

// SeedEncoding returns the configured encoding of exported seeds.
func (c *Config) SeedEncoding() seed.Encoding {
	enc, err := seed.ParseEncoding(c.Sync.Encoding)
	if err != nil {
		return seed.EncodingPlain
	}

	return enc
}

// Identity returns the settings of the local identity.
func (c *Config) Identity() seeddb.IdentityConfig {
	return seeddb.IdentityConfig{
		Path:           c.IdentityFile,
		Name:           c.PeerName,
		Port:           c.Port,
		PortForwarding: c.PortForwarding.Enabled,
		ForwardHost:    c.PortForwarding.Host,
		ForwardPort:    c.PortForwarding.Port,
	}
}

// Uploader returns the uploader configured for cache publication, if any.
func (c *Config) Uploader() seedsync.Uploader {
	switch {
	case c.Sync.UploadDir != "":
		return &seedsync.FileUploader{
			Dir:  c.Sync.UploadDir,
			Name: c.Sync.UploadName,
		}

	case c.Sync.UploadURL != "":
		return &seedsync.HTTPUploader{URL: c.Sync.UploadURL}

	default:
		return nil
	}
}

func validPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%d out of range", port)
	}

	return nil
}

// CleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
