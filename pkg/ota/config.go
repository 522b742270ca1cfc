package ota

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/kaktoslabs/kaktos/pkg/plan"
	"github.com/kaktoslabs/kaktos/pkg/version"
)

// envConfigPath overrides the default config file location, the same way
// store.go's TOHRU_STORE_DIR overrides the store root.
const envConfigPath = "KAKTOS_CONFIG"

// defaultConfigFile is the config path used when envConfigPath is unset.
const defaultConfigFile = "kaktos.toml"

// Config is every option recognized on Updater construction. Unknown
// top-level TOML keys land in Extra rather than failing the load, so older
// device images tolerate config files written for a newer kaktos; unknown
// keys inside a known table are ignored and not recorded in Extra.
type Config struct {
	Kaktos Meta    `toml:"kaktos"`
	Source Source  `toml:"source"`
	Device Device  `toml:"device"`
	Backup Backup  `toml:"backup"`
	Fetch  Fetch   `toml:"fetch"`
	Delete Delete  `toml:"delete"`

	Extra map[string]any `toml:"-"`
}

// Meta records the config schema version this file was written against.
// EnsureCompatible gates loading a config written for an incompatible major
// version of kaktos itself.
type Meta struct {
	Version string `toml:"version"` // schema/app version this file targets
}

// Source is where remote state is fetched from.
type Source struct {
	ManifestURL     string `toml:"manifest_url"`      // remote manifest location
	BaseFileURL     string `toml:"base_file_url"`     // prefix for per-file GETs
	RecurseHTTPFS   bool   `toml:"recurse_http_fs"`   // select HTTP-FS mode
	StrictHTTPFS    bool   `toml:"strict_http_fs"`    // abort on any HTTP-FS file failure
	HTTPTimeoutS    int    `toml:"http_timeout_s"`    // per-request timeout; 0 disables
	ManifestAuthKey string `toml:"manifest_auth_key"` // HMAC shared secret, empty disables verification
	SignatureField  string `toml:"manifest_signature_field"`
}

// Device is where applied files land and how lifecycle state is tracked.
type Device struct {
	DestDir           string `toml:"dest_dir"`             // root for applied files
	ForceUpdate       bool   `toml:"force_update"`         // apply even when versions match
	StateFile         string `toml:"ota_state_file"`       // state marker path
	LocalManifestFile string `toml:"local_manifest_file"`  // local manifest path
	ApplicationName   string `toml:"application_name"`     // derives backup dir name
}

// Backup controls what the Backup Manager skips copying.
type Backup struct {
	SkipExtensions []string `toml:"skip_extensions"`
	SkipPrefixes   []string `toml:"skip_prefixes"`
}

// Fetch configures the Downloader.
type Fetch struct {
	Retries        int  `toml:"download_retries"`
	RetryBaseDelay int  `toml:"retry_base_delay_ms"`
	ResumeDownloads bool `toml:"resume_downloads"`
	IOChunkSize    int  `toml:"io_chunk_size"`
	MD5ChunkSize   int  `toml:"md5_chunk_size"`
}

// Delete configures the Delete-Extras Policy.
type Delete struct {
	Policy     string   `toml:"delete_files_not_in_manifest_policy"`
	Extensions []string `toml:"delete_files_not_in_manifest_extensions"`
}

var defaultBackupSkipExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".bmp", ".rgb565", ".raw", ".bin", ".ttf", ".otf", ".woff",
}

var defaultBackupSkipPrefixes = []string{"assets/", "static/", "media/", "images/", "fonts/"}

// DefaultConfig returns a Config with every documented default applied.
func DefaultConfig() Config {
	return Config{
		Kaktos: Meta{Version: version.Version},
		Device: Device{
			StateFile:         "ota_state.txt",
			LocalManifestFile: "versions.json",
			ApplicationName:   "app",
		},
		Source: Source{SignatureField: "signature"},
		Backup: Backup{
			SkipExtensions: append([]string(nil), defaultBackupSkipExtensions...),
			SkipPrefixes:   append([]string(nil), defaultBackupSkipPrefixes...),
		},
		Fetch: Fetch{
			Retries:        2,
			RetryBaseDelay: 500,
			IOChunkSize:    32 * 1024,
			MD5ChunkSize:   512,
		},
		Delete: Delete{Policy: string(plan.Never)},
	}
}

// LoadConfig reads a TOML config file at path, starting from DefaultConfig
// and overlaying whatever the file sets. Unknown top-level keys are captured
// into Extra instead of failing the decode.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var meta toml.MetaData
	meta, err = toml.Decode(string(data), &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := version.EnsureCompatible(fmt.Sprintf("config %s", path), cfg.Kaktos.Version); err != nil {
		return Config{}, err
	}

	cfg.Extra = extraKeys(meta)
	return cfg, nil
}

// DefaultConfigPath returns KAKTOS_CONFIG's value when set, or
// "kaktos.toml" in the current directory otherwise.
func DefaultConfigPath() string {
	if custom := strings.TrimSpace(os.Getenv(envConfigPath)); custom != "" {
		return custom
	}
	return defaultConfigFile
}

// LoadDefaultConfig loads the config at DefaultConfigPath.
func LoadDefaultConfig() (Config, error) {
	return LoadConfig(DefaultConfigPath())
}

// extraKeys reports every top-level TOML key the decoder saw that Config
// does not declare a field for, satisfying the forward-compatibility
// "unknown options are accepted and ignored" requirement.
func extraKeys(meta toml.MetaData) map[string]any {
	extra := make(map[string]any)
	known := map[string]struct{}{
		"kaktos": {}, "source": {}, "device": {}, "backup": {}, "fetch": {}, "delete": {},
	}
	for _, key := range meta.Keys() {
		if len(key) == 0 {
			continue
		}
		top := key[0]
		if _, ok := known[top]; !ok {
			extra[top] = true
		}
	}
	return extra
}
