package stub

const ringCapacity = 64

type ringBuffer struct {
	data       [ringCapacity]Advertisement
	head, tail int // head = oldest, tail = next push
	count      int
}

func (rb *ringBuffer) push(a Advertisement) {
	if rb.count == ringCapacity {
		// overwrite the oldest
		rb.head = (rb.head + 1) % ringCapacity
		rb.count--
	}
	rb.data[rb.tail] = a
	rb.tail = (rb.tail + 1) % ringCapacity
	rb.count++
}

func (rb *ringBuffer) snapshot() []Advertisement {
	out := make([]Advertisement, 0, rb.count)
	for c, i := 0, rb.head; c < rb.count; c, i = c+1, (i+1)%ringCapacity {
		a := rb.data[i]
		a.Data = append([]byte(nil), a.Data...)
		out = append(out, a)
	}
	return out
}
