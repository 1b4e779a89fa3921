package fetcher

import (
	"time"

	"gaia/api/quadtree"
)

// Job is one pending tile load.
type Job struct {
	Tile      quadtree.Tile
	CreatedAt time.Time

	seq   uint64
	index int
}

// newer reports whether a should be serviced before b. seq breaks ties between jobs
// created within the same clock tick.
func (a *Job) newer(b *Job) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.seq > b.seq
}

// jobQueue implements heap.Interface with the most recent job on top.
type jobQueue []*Job

func (q jobQueue) Len() int { return len(q) }

func (q jobQueue) Less(i, j int) bool { return q[i].newer(q[j]) }

func (q jobQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *jobQueue) Push(x any) {
	job := x.(*Job)
	job.index = len(*q)
	*q = append(*q, job)
}

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	job.index = -1
	*q = old[:n-1]
	return job
}
