// Package task holds the unit of keyword-search work and its partitioning.
package task

// Task is one document eligible for scanning.
type Task struct {
	ID   int32
	Path string
}

// Chunk is a contiguous slice of the task list assigned to one worker.
type Chunk struct {
	Index int
	Start int
	Tasks []Task
}

// Partition splits tasks into p contiguous chunks as evenly as possible.
// Chunk i gets len/p tasks plus one if i < len%p; overall order is preserved.
// Chunks may be empty when p > len(tasks). p < 1 is treated as 1.
func Partition(tasks []Task, p int) []Chunk {
	if p < 1 {
		p = 1
	}
	n := len(tasks)
	base, extra := n/p, n%p

	chunks := make([]Chunk, p)
	start := 0
	for i := 0; i < p; i++ {
		size := base
		if i < extra {
			size++
		}
		chunks[i] = Chunk{Index: i, Start: start, Tasks: tasks[start : start+size : start+size]}
		start += size
	}
	return chunks
}

// Dedup appends extra to primary, skipping ids already present. primary wins.
func Dedup(primary, extra []Task) []Task {
	seen := make(map[int32]struct{}, len(primary)+len(extra))
	out := make([]Task, 0, len(primary)+len(extra))
	for _, t := range primary {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	for _, t := range extra {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}
