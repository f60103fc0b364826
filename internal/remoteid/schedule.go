package remoteid

import "time"

// KindForEpoch returns the message kind broadcast during the given Unix second.
// The six kinds rotate once per second, Basic ID on multiples of six.
func KindForEpoch(sec int64) MessageKind {
	m := sec % numKinds
	if m < 0 {
		m += numKinds
	}
	return MessageKind(m)
}

// KindAt returns the message kind scheduled for the second containing t.
func KindAt(t time.Time) MessageKind {
	return KindForEpoch(t.Unix())
}

// Cycle returns the kinds scheduled for the six seconds starting at start.
func Cycle(start time.Time) []MessageKind {
	kinds := make([]MessageKind, numKinds)
	for i := range kinds {
		kinds[i] = KindAt(start.Add(time.Duration(i) * time.Second))
	}
	return kinds
}
