package dht

import "fmt"

var codenameAdjectives = []string{
	"good", "happy", "nice", "evil", "sloppy", "slovenly",
	"meticulous", "beloved", "hateful", "green", "lovely",
	"corporate", "presidential", "stately", "serene",
	"indignant", "exciting", "one", "fluffy",
	"sour", "hot", "sexy", "absent minded", "considerate",
}

var codenameNouns = []string{
	"warthog", "vampire", "person", "nemesis", "pooch",
	"superhero", "scientist", "writer", "author", "oboist",
	"physicist", "musicologist", "teacher", "professor",
	"squirrel", "deer", "beaver", "duck", "poodle",
	"republican", "democrat",
	"bunny", "cat", "kitty", "boy", "girl", "man", "woman",
}

// Codename renders a 32-byte return-magic token as a two-word phrase,
// so a log line can say "greeting code name: happy warthog" instead of
// spelling out 64 hex digits every time an operator wants to match a
// send against its eventual response.
func Codename(token [32]byte) string {
	if len(token) < 2 {
		return fmt.Sprintf("%v", token)
	}
	adj := codenameAdjectives[int(token[0])%len(codenameAdjectives)]
	noun := codenameNouns[int(token[1])%len(codenameNouns)]
	return adj + " " + noun
}
