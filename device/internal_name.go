package device

import (
	"strings"
)

// InternalName identifies a device as "room/name", or just "name" for
// devices without a room.
type InternalName string

func (n InternalName) Room() string {
	s := strings.Split(string(n), "/")
	room := ""
	if len(s) > 1 {
		room = s[0]
	}
	room = strings.ReplaceAll(room, "_", " ")

	return title(room)
}

func (n InternalName) Name() string {
	s := strings.Split(string(n), "/")
	name := s[0]
	if len(s) > 1 {
		name = s[1]
	}
	name = strings.ReplaceAll(name, "_", " ")

	return title(name)
}

func (n InternalName) String() string {
	return string(n)
}

// Valid names have at most one slash and no empty parts.
func (n InternalName) Valid() bool {
	s := strings.Split(string(n), "/")
	if len(s) > 2 {
		return false
	}

	for _, part := range s {
		if part == "" {
			return false
		}
	}

	return true
}

// strings.Title is deprecated and only the ASCII words of room and device
// names need it
func title(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}

	return strings.Join(words, " ")
}
