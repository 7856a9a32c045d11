package firemock

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

type DumpFlags uint64

const (
	DumpCollectionHeaders = DumpFlags(1 << iota)
	DumpDocuments
	DumpEmpty
	DumpStats

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the store for debugging, one document per line, with
// subcollections following their parent document. Output is
// deterministic: collections and documents appear in key order.
func (c *Client) Dump(f DumpFlags) string {
	var buf strings.Builder
	if f.Contains(DumpStats) {
		s := c.Stats()
		fmt.Fprintf(&buf, "stats: collections = %d, documents = %d, placeholders = %d, reads = %d, writes = %d\n", s.Collections, s.Documents, s.Placeholders, s.Reads, s.Writes)
	}
	for _, name := range sortedKeys(c.data) {
		coll, ok := c.data[name].(map[string]any)
		if !ok {
			fmt.Fprintf(&buf, "%s ** ERROR: holds %T, not a collection\n", name, c.data[name])
			continue
		}
		dumpCollection(&buf, f, name, coll)
	}
	return buf.String()
}

func dumpCollection(w *strings.Builder, f DumpFlags, prefix string, coll map[string]any) {
	if f.Contains(DumpCollectionHeaders) {
		if strings.Contains(prefix, "/") {
			fmt.Fprintln(w, dumpSep2)
		} else {
			fmt.Fprintln(w, dumpSep1)
		}
		fmt.Fprintf(w, "%s (%d docs)\n", prefix, len(coll))
	}
	for _, id := range sortedKeys(coll) {
		path := prefix + "/" + id
		doc, ok := coll[id].(map[string]any)
		if !ok {
			fmt.Fprintf(w, "%s ** ERROR: holds %T, not a document\n", path, coll[id])
			continue
		}
		fields := make(map[string]any, len(doc))
		var subs []string
		for _, k := range sortedKeys(doc) {
			if sub, ok := doc[k].(map[string]any); ok && len(sub) > 0 && isCollectionShaped(sub) {
				subs = append(subs, k)
			} else {
				fields[k] = doc[k]
			}
		}
		if f.Contains(DumpDocuments) && (len(fields) > 0 || f.Contains(DumpEmpty)) {
			fmt.Fprintf(w, "%s = %s\n", path, loggableDoc(fields))
		}
		for _, k := range subs {
			dumpCollection(w, f, path+"/"+k, doc[k].(map[string]any))
		}
	}
}

func loggableDoc(doc map[string]any) string {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Sprintf("%v", doc)
	}
	return string(raw)
}
