// Package vendormock serves a local stand-in for the vendor streaming
// translate endpoint. It speaks the same wire contract as the real service
// and is used by the client tests and the mockserver command.
package vendormock

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Options configures the mock behavior.
type Options struct {
	// Token is the bearer token required on upgrade; empty disables the
	// check.
	Token string
	// TranslateFunc maps an inbound audio chunk to translated text. The
	// default reports the chunk size.
	TranslateFunc func(chunk []byte) string
	// EchoAudio returns each audio chunk back as synthesized speech, which
	// lets tests verify the base64 round trip byte for byte.
	EchoAudio bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// NewRouter builds the mock endpoint on /v1/streaming-translate.
func NewRouter(opts Options, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/v1/streaming-translate", func(c *gin.Context) {
		if opts.Token != "" && c.GetHeader("Authorization") != "Bearer "+opts.Token {
			logger.Warn("rejected connection: bad bearer token")
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("upgrade failed", zap.Error(err))
			return
		}
		serveSession(conn, opts, logger)
	})

	return router
}

type inboundMessage struct {
	Type   string `json:"type"`
	TaskID string `json:"task_id"`
	Input  *struct {
		Audio *struct {
			Data string `json:"data"`
		} `json:"audio"`
		Image *struct {
			Data string `json:"data"`
		} `json:"image"`
		End bool `json:"end"`
	} `json:"input"`
}

func serveSession(conn *websocket.Conn, opts Options, logger *zap.Logger) {
	defer conn.Close()

	translateFunc := opts.TranslateFunc
	if translateFunc == nil {
		translateFunc = func(chunk []byte) string {
			return fmt.Sprintf("translated %d bytes", len(chunk))
		}
	}

	// First message must be the init frame.
	var init inboundMessage
	if err := conn.ReadJSON(&init); err != nil {
		logger.Warn("session ended before init", zap.Error(err))
		return
	}
	if init.TaskID == "" {
		writeError(conn, "InvalidParameter", "task_id is required")
		return
	}
	logger.Info("session initialized", zap.String("task_id", init.TaskID))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logger.Info("session ended", zap.Error(err))
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			writeError(conn, "InvalidJSON", err.Error())
			continue
		}

		switch {
		case msg.Type == "heartbeat":
			_ = conn.WriteJSON(map[string]any{"type": "heartbeat_response"})

		case msg.Input != nil && msg.Input.Audio != nil:
			chunk, err := base64.StdEncoding.DecodeString(msg.Input.Audio.Data)
			if err != nil {
				writeError(conn, "InvalidAudio", err.Error())
				continue
			}
			output := map[string]any{"text": translateFunc(chunk)}
			if opts.EchoAudio {
				output["audio"] = base64.StdEncoding.EncodeToString(chunk)
			}
			_ = conn.WriteJSON(map[string]any{"output": output})

		case msg.Input != nil && msg.Input.Image != nil:
			_ = conn.WriteJSON(map[string]any{
				"output": map[string]any{"text": "image frame received"},
			})

		case msg.Input != nil && msg.Input.End:
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "end of input"),
				deadline)
			return
		}
	}
}

func writeError(conn *websocket.Conn, code string, message string) {
	_ = conn.WriteJSON(map[string]any{
		"error": map[string]any{"code": code, "message": message},
	})
}
