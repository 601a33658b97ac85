package internal

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"chat-relay/errors"
)

type Config struct {
	Host string `env:"HOST"`
	Port int    `env:"PORT,default=8080"`

	MaxFileSizeBytes  int64         `env:"MAX_FILE_SIZE_BYTES,default=20971520"`
	AllowedExtensions string        `env:"ALLOWED_EXTENSIONS"`
	RetentionWindow   time.Duration `env:"RETENTION_WINDOW,default=10m"`
	AllowedOrigin     string        `env:"ALLOWED_ORIGIN"`
	UploadDir         string        `env:"UPLOAD_DIR,default=./uploads"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=32"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=5s"`
	HistoryAPIURL        string        `env:"HISTORY_API_URL"`
	WordCountAPIURL      string        `env:"WORDCOUNT_API_URL"`
	ArchiveDir           string        `env:"ARCHIVE_DIR"`

	JanitorInterval   time.Duration `env:"JANITOR_INTERVAL,default=1m"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
}

// DefaultAllowedExtensions applies when ALLOWED_EXTENSIONS is unset.
// The tag option syntax cannot carry a comma-separated default itself.
const DefaultAllowedExtensions = "jpg,jpeg,png,pdf,txt,mp4"

// ExtensionAllowList parses the comma-separated ALLOWED_EXTENSIONS value
// into a lowercase set. Blank entries and leading dots are discarded.
func ExtensionAllowList(raw string) (map[string]struct{}, error) {
	if strings.TrimSpace(raw) == "" {
		raw = DefaultAllowedExtensions
	}
	allowed := make(map[string]struct{})
	for _, ext := range strings.Split(raw, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		ext = strings.TrimPrefix(ext, ".")
		if ext == "" {
			continue
		}
		allowed[ext] = struct{}{}
	}
	if len(allowed) == 0 {
		return nil, errors.ErrEmptyExtensionList
	}
	return allowed, nil
}

// Origins splits the ALLOWED_ORIGIN value. An empty value means every
// origin is accepted, matching the permissive default of the relay.
func Origins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return lo.FilterMap(strings.Split(raw, ","), func(origin string, _ int) (string, bool) {
		origin = strings.TrimSpace(origin)
		return origin, origin != ""
	})
}
