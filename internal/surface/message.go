// Package surface links the browsing surface to a detached player surface.
// Both sides exchange tagged messages wrapped in an origin-stamped envelope;
// receivers drop anything from an unexpected origin and ignore unknown types.
package surface

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Type string

const (
	TypeLoadVideo     Type = "LOAD_VIDEO"
	TypePlayScene     Type = "PLAY_SCENE"
	TypeSeekPlay      Type = "SEEK_PLAY"
	TypeReset         Type = "RESET"
	TypeTimeUpdate    Type = "TIME_UPDATE"
	TypePlaybackEnded Type = "PLAYBACK_ENDED"
	TypePreviewReady  Type = "PREVIEW_READY"
)

var (
	ErrUnknownType = errors.New("unknown message type")
	ErrClosed      = errors.New("surface link closed")
)

// Message is implemented by every message kind.
type Message interface {
	Type() Type
}

// LoadVideo asks the player surface to load a video and its collections.
type LoadVideo struct {
	VideoID string `json:"videoId"`
}

// PlayScene asks for a bounded session from Start to End.
type PlayScene struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	SceneID string  `json:"sceneId,omitempty"`
}

// SeekPlay asks for an unbounded session at Time.
type SeekPlay struct {
	Time float64 `json:"time"`
}

type Reset struct{}

// TimeUpdate reports the player position back to the browsing surface.
type TimeUpdate struct {
	CurrentTime float64 `json:"currentTime"`
}

// PlaybackEnded reports a natural scene completion.
type PlaybackEnded struct{}

// PreviewReady announces that the player surface accepts commands.
type PreviewReady struct{}

func (LoadVideo) Type() Type     { return TypeLoadVideo }
func (PlayScene) Type() Type     { return TypePlayScene }
func (SeekPlay) Type() Type      { return TypeSeekPlay }
func (Reset) Type() Type         { return TypeReset }
func (TimeUpdate) Type() Type    { return TypeTimeUpdate }
func (PlaybackEnded) Type() Type { return TypePlaybackEnded }
func (PreviewReady) Type() Type  { return TypePreviewReady }

// Envelope is the wire form of a message.
type Envelope struct {
	Origin  string          `json:"origin"`
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func Encode(origin string, m Message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", m.Type(), err)
	}
	return json.Marshal(Envelope{Origin: origin, Type: m.Type(), Payload: payload})
}

// DecodeEnvelope parses the outer envelope only.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// Message decodes the payload into its concrete type. Unknown types return
// ErrUnknownType.
func (e Envelope) Message() (Message, error) {
	var m Message
	switch e.Type {
	case TypeLoadVideo:
		m = &LoadVideo{}
	case TypePlayScene:
		m = &PlayScene{}
	case TypeSeekPlay:
		m = &SeekPlay{}
	case TypeReset:
		return Reset{}, nil
	case TypeTimeUpdate:
		m = &TimeUpdate{}
	case TypePlaybackEnded:
		return PlaybackEnded{}, nil
	case TypePreviewReady:
		return PreviewReady{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}

	if len(e.Payload) > 0 && string(e.Payload) != "null" {
		if err := json.Unmarshal(e.Payload, m); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", e.Type, err)
		}
	}

	switch v := m.(type) {
	case *LoadVideo:
		return *v, nil
	case *PlayScene:
		return *v, nil
	case *SeekPlay:
		return *v, nil
	case *TimeUpdate:
		return *v, nil
	}
	return m, nil
}
