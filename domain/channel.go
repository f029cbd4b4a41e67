package domain

import (
	"chat-broker/errors"
	"fmt"
)

// Channel is one of the fixed topics messages and live subscriptions are partitioned by.
type Channel string

const (
	ChannelDSA           Channel = "dsa"
	ChannelSystemDesign  Channel = "system-design"
	ChannelDBMS          Channel = "dbms"
	ChannelCareer        Channel = "career"
	ChannelAnnouncements Channel = "announcements"
	ChannelGeneral       Channel = "general"
)

var channels = []Channel{
	ChannelDSA,
	ChannelSystemDesign,
	ChannelDBMS,
	ChannelCareer,
	ChannelAnnouncements,
	ChannelGeneral,
}

// Channels returns the whole enumeration, always in the same order.
func Channels() []Channel {
	res := make([]Channel, len(channels))
	copy(res, channels)
	return res
}

func (c Channel) IsValid() bool {
	for _, known := range channels {
		if c == known {
			return true
		}
	}
	return false
}

func (c Channel) String() string { return string(c) }

// ParseChannel only accepts members of the enumeration, the comparison is case-sensitive.
func ParseChannel(raw string) (Channel, error) {
	c := Channel(raw)
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", errors.ErrUnknownChannel, raw)
	}
	return c, nil
}
