package protocol

import (
	"encoding/base64"
	"encoding/json"

	"github.com/google/uuid"
)

const (
	// WireSampleRate is the only input sample rate the vendor accepts.
	WireSampleRate = 16000
	// WireFormat is the only input encoding the vendor accepts.
	WireFormat = "pcm"
	// WireChannels is the only channel count the vendor accepts.
	WireChannels = 1

	heartbeatType    = "heartbeat"
	heartbeatAckType = "heartbeat_response"
)

// InitConfig carries the session parameters announced in the init frame.
type InitConfig struct {
	TargetLanguage string
	Voice          string
	AudioEnabled   bool
}

type initMessage struct {
	TaskID     string         `json:"task_id"`
	Input      initInput      `json:"input"`
	Parameters initParameters `json:"parameters"`
}

type initInput struct {
	Audio initAudio `json:"audio"`
}

type initAudio struct {
	SampleRate int    `json:"sample_rate"`
	Format     string `json:"format"`
	Channel    int    `json:"channel"`
}

type initParameters struct {
	TargetLanguage string       `json:"target_language"`
	TextToSpeech   textToSpeech `json:"text_to_speech"`
}

type textToSpeech struct {
	Enabled bool   `json:"enabled"`
	Voice   string `json:"voice"`
}

type mediaMessage struct {
	Input mediaInput `json:"input"`
}

type mediaInput struct {
	Audio *mediaData `json:"audio,omitempty"`
	Image *mediaData `json:"image,omitempty"`
}

type mediaData struct {
	Data string `json:"data"`
}

type endMessage struct {
	Input endInput `json:"input"`
}

type endInput struct {
	End bool `json:"end"`
}

type heartbeatMessage struct {
	Type string `json:"type"`
}

// EncodeInit builds the init frame with a freshly generated task id and
// returns both the id and the serialized frame.
func EncodeInit(cfg InitConfig) (string, []byte, error) {
	taskID := uuid.NewString()
	msg := initMessage{
		TaskID: taskID,
		Input: initInput{
			Audio: initAudio{
				SampleRate: WireSampleRate,
				Format:     WireFormat,
				Channel:    WireChannels,
			},
		},
		Parameters: initParameters{
			TargetLanguage: cfg.TargetLanguage,
			TextToSpeech: textToSpeech{
				Enabled: cfg.AudioEnabled,
				Voice:   cfg.Voice,
			},
		},
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		return "", nil, err
	}
	return taskID, frame, nil
}

// EncodeAudioChunk wraps raw PCM bytes in the transport-safe encoding.
func EncodeAudioChunk(pcm []byte) ([]byte, error) {
	msg := mediaMessage{
		Input: mediaInput{
			Audio: &mediaData{Data: base64.StdEncoding.EncodeToString(pcm)},
		},
	}
	return json.Marshal(msg)
}

// EncodeImageChunk wraps raw image bytes in the transport-safe encoding.
func EncodeImageChunk(image []byte) ([]byte, error) {
	msg := mediaMessage{
		Input: mediaInput{
			Image: &mediaData{Data: base64.StdEncoding.EncodeToString(image)},
		},
	}
	return json.Marshal(msg)
}

// EncodeEnd builds the end-of-input sentinel. It signals the remote service
// that no further input follows; it does not close the transport.
func EncodeEnd() ([]byte, error) {
	return json.Marshal(endMessage{Input: endInput{End: true}})
}

// EncodeHeartbeatPing builds a keep-alive probe frame.
func EncodeHeartbeatPing() ([]byte, error) {
	return json.Marshal(heartbeatMessage{Type: heartbeatType})
}
