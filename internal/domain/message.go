// Package domain defines the core types and interfaces for the burn-after-reading
// chat client. All other packages depend on domain; domain depends on nothing.
package domain

import (
	"fmt"
	"time"
)

// MessageLifetime is how long a message stays visible before it is burned.
// It is fixed: every message satisfies ExpiresAt == CreatedAt + MessageLifetime.
const MessageLifetime = 6000 * time.Millisecond

// Kind classifies a message by the content it carries.
type Kind int

const (
	KindText Kind = iota
	KindVoice
	KindImage
	KindLocation
)

// String returns a human-readable kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindVoice:
		return "voice"
	case KindImage:
		return "image"
	case KindLocation:
		return "location"
	default:
		return "unknown"
	}
}

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderBlade Sender = "blade"
	SenderHead  Sender = "head"
)

// MediaRef points at a media payload owned by a capture collaborator
// (an object URL, a file path, or an inline data URI).
type MediaRef string

// Content is the payload of a message. It is a closed sum type: only the
// variants in this package implement it.
type Content interface {
	Kind() Kind
	// Text is what a list view shows for the message.
	Text() string
	isContent()
}

// Text is a plain text message.
type Text struct {
	Body string
}

func (Text) Kind() Kind     { return KindText }
func (t Text) Text() string { return t.Body }
func (Text) isContent()     {}

// Voice is a recorded voice clip.
type Voice struct {
	Clip    MediaRef
	Caption string
}

func (Voice) Kind() Kind { return KindVoice }
func (v Voice) Text() string {
	if v.Caption == "" {
		return "语音消息"
	}
	return v.Caption
}
func (Voice) isContent() {}

// Image is a shared picture.
type Image struct {
	Ref     MediaRef
	Caption string
}

func (Image) Kind() Kind { return KindImage }
func (i Image) Text() string {
	if i.Caption == "" {
		return "图片消息"
	}
	return i.Caption
}
func (Image) isContent() {}

// Location is a shared position. Available is false when the position
// could not be determined and a simulated placeholder is sent instead.
type Location struct {
	Lat, Lon  float64
	Available bool
}

func (Location) Kind() Kind { return KindLocation }
func (l Location) Text() string {
	if !l.Available {
		return "位置信息 (模拟)"
	}
	return fmt.Sprintf("我的位置: %.4f, %.4f", l.Lat, l.Lon)
}
func (Location) isContent() {}

// Message is a single time-bounded chat message. Messages are never
// mutated after creation.
type Message struct {
	ID        string
	Content   Content
	Sender    Sender
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Kind is a shortcut for m.Content.Kind().
func (m Message) Kind() Kind {
	if m.Content == nil {
		return KindText
	}
	return m.Content.Kind()
}

// Expired reports whether the message must be burned at now.
func (m Message) Expired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}
