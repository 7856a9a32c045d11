package firemock

// StoreStats summarizes the store. Collections and Documents count every
// level of nesting; Placeholders are empty documents that exist only as
// reference targets.
type StoreStats struct {
	TopLevel     int
	Collections  int
	Documents    int
	Placeholders int

	Reads  uint64
	Writes uint64
}

func (c *Client) Stats() StoreStats {
	s := StoreStats{
		Reads:  c.ReadCount.Load(),
		Writes: c.WriteCount.Load(),
	}
	for _, v := range c.data {
		coll, ok := v.(map[string]any)
		if !ok {
			continue
		}
		s.TopLevel++
		s.addCollection(coll)
	}
	return s
}

func (s *StoreStats) addCollection(coll map[string]any) {
	s.Collections++
	for _, v := range coll {
		doc, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if len(doc) == 0 {
			s.Placeholders++
			continue
		}
		s.Documents++
		for _, field := range doc {
			if sub, ok := field.(map[string]any); ok && len(sub) > 0 && isCollectionShaped(sub) {
				s.addCollection(sub)
			}
		}
	}
}
