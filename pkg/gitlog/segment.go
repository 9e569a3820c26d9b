package gitlog

// Segment splits a log at every "commit <hash>" line. Entries are returned
// in the order they appear; any text before the first boundary is dropped.
// A log without boundaries yields no entries.
func (p *Patterns) Segment(log string) []Entry {
	bounds := p.boundary.FindAllStringSubmatchIndex(log, -1)
	entries := make([]Entry, 0, len(bounds))

	for i, b := range bounds {
		end := len(log)
		if i+1 < len(bounds) {
			end = bounds[i+1][0]
		}
		entries = append(entries, Entry{
			Hash:  log[b[2]:b[3]],
			Block: log[b[1]:end],
		})
	}

	return entries
}
