package utils

// ChunkUint splits ids into consecutive slices of at most size elements.
func ChunkUint(ids []uint, size int) [][]uint {
	if size <= 0 {
		size = len(ids)
	}
	chunks := make([][]uint, 0, (len(ids)+size-1)/max(size, 1))
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
