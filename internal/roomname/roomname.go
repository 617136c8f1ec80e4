// Package roomname generates memorable room ids such as
// "quiet-heron-lantern-cedar".
package roomname

import (
	"crypto/rand"
	"math/big"
	"strings"
)

var (
	moods = []string{
		"quiet", "hushed", "mellow", "lively", "breezy", "sunny", "misty", "snowy", "amber", "velvet",
		"gentle", "rustic", "cosmic", "lucky", "humble", "nimble", "drowsy", "sturdy", "silky", "spicy",
	}
	birds = []string{
		"heron", "wren", "finch", "plover", "kestrel", "lark", "magpie", "oriole", "puffin", "tern",
		"thrush", "warbler", "osprey", "egret", "curlew", "linnet", "siskin", "bunting", "avocet", "dunlin",
	}
	things = []string{
		"lantern", "teapot", "compass", "kettle", "banjo", "harmonica", "accordion", "trumpet", "cello", "flute",
		"ukulele", "tambourine", "gramophone", "radio", "whistle", "bell", "drum", "piano", "fiddle", "oboe",
	}
	trees = []string{
		"cedar", "birch", "aspen", "alder", "rowan", "linden", "juniper", "spruce", "hazel", "larch",
		"poplar", "sequoia", "cypress", "hawthorn", "elder", "laurel", "magnolia", "olive", "acacia", "yew",
	}
)

// lists are always used in this order so the id reads naturally.
var lists = [][]string{moods, birds, things, trees}

// New returns a random id built from one word of each list, joined by
// hyphens. There are 160000 combinations.
func New() string {
	words := make([]string, len(lists))
	for i, list := range lists {
		words[i] = list[randomIndex(len(list))]
	}
	return strings.Join(words, "-")
}

// Unique calls New until taken reports false for the result.
func Unique(taken func(string) bool) string {
	for {
		if id := New(); !taken(id) {
			return id
		}
	}
}

func randomIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("roomname: random source failed: " + err.Error())
	}
	return int(v.Int64())
}
