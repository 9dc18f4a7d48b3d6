package config

import (
	"bytes"
	"errors"
	"fmt"
)

// Version is written with every saved image. An image carrying any other tag
// is treated as blank.
const Version = "DATA1.1"

// Field widths in the stored image. Each field is NUL padded, so it holds at
// most width-1 bytes.
const (
	ssidWidth     = 36
	passWidth     = 64
	channelWidth  = 16
	writeKeyWidth = 24
	tagWidth      = 10

	ImageSize = ssidWidth + passWidth + channelWidth + writeKeyWidth + tagWidth
)

// Provisioning keys.
const (
	KeySSID     = "SSID"
	KeyPassword = "PASS"
	KeyChannel  = "CID"
	KeyWriteKey = "WRITEKEY"
)

var (
	ErrUnknownKey   = errors.New("unknown configuration key")
	ErrValueTooLong = errors.New("value too long")
	ErrInvalidValue = errors.New("value contains NUL")
	ErrBadImage     = errors.New("configuration image has wrong size")
)

// Configuration is the network and cloud identity of the station.
type Configuration struct {
	SSID      string
	Password  string
	ChannelID string
	WriteKey  string
}

type field struct {
	width int
	get   func(c *Configuration) *string
}

// layout is the order fields appear in the image.
var layout = []struct {
	key string
	field
}{
	{KeySSID, field{ssidWidth, func(c *Configuration) *string { return &c.SSID }}},
	{KeyPassword, field{passWidth, func(c *Configuration) *string { return &c.Password }}},
	{KeyChannel, field{channelWidth, func(c *Configuration) *string { return &c.ChannelID }}},
	{KeyWriteKey, field{writeKeyWidth, func(c *Configuration) *string { return &c.WriteKey }}},
}

func lookup(key string) (field, bool) {
	for _, l := range layout {
		if l.key == key {
			return l.field, true
		}
	}
	return field{}, false
}

// IsKey reports whether key is one the station accepts.
func IsKey(key string) bool {
	_, ok := lookup(key)
	return ok
}

// MaxLen is the longest value key can hold.
func MaxLen(key string) int {
	f, ok := lookup(key)
	if !ok {
		return 0
	}
	return f.width - 1
}

// Set validates value against the stored layout and assigns it. Oversized
// values are rejected, never truncated.
func (c *Configuration) Set(key, value string) error {
	f, ok := lookup(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if len(value) > f.width-1 {
		return fmt.Errorf("%w: %s is %d bytes, max %d", ErrValueTooLong, key, len(value), f.width-1)
	}
	if bytes.IndexByte([]byte(value), 0) >= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidValue, key)
	}
	*f.get(c) = value
	return nil
}

// Provisioned reports whether the station has network credentials.
func (c Configuration) Provisioned() bool {
	return c.SSID != ""
}

// CloudReady reports whether uploads can be authenticated.
func (c Configuration) CloudReady() bool {
	return c.WriteKey != ""
}

// String masks secrets so the configuration can be logged.
func (c Configuration) String() string {
	return fmt.Sprintf("SSID [%v] PASS [%v] CID [%v] WRITEKEY [%v]",
		c.SSID, mask(c.Password), c.ChannelID, mask(c.WriteKey))
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

// Encode renders c and the version tag as a fixed size image.
func (c Configuration) Encode() []byte {
	img := make([]byte, ImageSize)
	off := 0
	for _, l := range layout {
		copy(img[off:off+l.width-1], *l.get(&c))
		off += l.width
	}
	copy(img[off:off+tagWidth-1], Version)
	return img
}

// Decode reads an image. valid is false when the tag does not match, in which
// case every field is empty.
func Decode(img []byte) (c Configuration, valid bool, err error) {
	if len(img) != ImageSize {
		return Configuration{}, false, fmt.Errorf("%w: %d bytes", ErrBadImage, len(img))
	}
	if cString(img[ImageSize-tagWidth:]) != Version {
		return Configuration{}, false, nil
	}
	off := 0
	for _, l := range layout {
		*l.get(&c) = cString(img[off : off+l.width])
		off += l.width
	}
	return c, true, nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
