package firemock

import (
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

const autoIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// randomID produces 20 random alphanumerics, the shape of Firestore's
// auto-generated document IDs.
func randomID() string {
	var b [20]byte
	for i := range b {
		b[i] = autoIDAlphabet[rand.IntN(len(autoIDAlphabet))]
	}
	return string(b[:])
}

func pathAttr(key string, segs []string) slog.Attr {
	return slog.String(key, strings.Join(segs, "/"))
}
