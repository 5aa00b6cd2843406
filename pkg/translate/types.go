package translate

import (
	"strings"
	"time"
)

const defaultEndpointBase = "wss://dashscope.aliyuncs.com/api/v1/models/"

// Config holds the session parameters for one client.
type Config struct {
	// Endpoint is the vendor streaming-translate WebSocket URL. When empty
	// it is derived from ModelID.
	Endpoint string
	// APIKey is sent as a bearer token during the handshake.
	APIKey string
	// ModelID selects the vendor model.
	ModelID string

	TargetLanguage string
	Voice          string
	// AudioEnabled requests synthesized speech alongside translated text.
	AudioEnabled bool

	// ConnectTimeout bounds the WebSocket handshake.
	ConnectTimeout time.Duration
	// WriteTimeout bounds each outbound write.
	WriteTimeout time.Duration
	// HeartbeatInterval is how often the monitor wakes up.
	HeartbeatInterval time.Duration
	// StalenessThreshold is the idle period after which the monitor probes.
	// A threshold below the interval degenerates to a probe on every tick.
	StalenessThreshold time.Duration
	// ReceiveTimeout bounds each receive before the dispatcher probes
	// liveness.
	ReceiveTimeout time.Duration
}

func normalizeConfig(cfg Config) Config {
	if cfg.ModelID == "" {
		cfg.ModelID = "qwen-audio-turbo"
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = defaultEndpointBase + cfg.ModelID + "/streaming-translate"
	}
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = "zh-Hans"
	}
	if cfg.Voice == "" {
		cfg.Voice = "zh-CN-YunxiNeural"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 25 * time.Second
	}
	if cfg.StalenessThreshold <= 0 {
		cfg.StalenessThreshold = 30 * time.Second
	}
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = 60 * time.Second
	}
	return cfg
}

// Callbacks holds at most one handler per event kind. A nil slot means the
// event is silently dropped.
type Callbacks struct {
	OnText  func(text string)
	OnAudio func(audio []byte)
	OnError func(message string)
	OnClose func(code *int)
	OnOpen  func()
}

// Nop handlers clear a previously registered slot when passed to
// SetCallbacks; a nil slot there means "keep the current handler".
var (
	NopText  = func(string) {}
	NopAudio = func([]byte) {}
	NopError = func(string) {}
	NopClose = func(*int) {}
	NopOpen  = func() {}
)

// Session is a point-in-time view of the connection owned by a client.
type Session struct {
	TaskID       string
	Phase        Phase
	LastActivity time.Time
}
