package queue

import (
	"container/heap"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-mapper/pkg/models"
)

// --- Priority Queue Implementation ---

// pqItem represents a task in the priority queue
type pqItem struct {
	task  models.Task
	seq   uint64 // Insertion order, breaks ties between equal depths
	index int    // The index of the item in the heap (required by heap interface)
}

// priorityQueue implements heap.Interface ordered by (depth, seq)
type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].task.Depth != pq[j].task.Depth {
		return pq[i].task.Depth < pq[j].task.Depth
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	*pq = old[0 : n-1]
	return item
}

// TaskQueue is a blocking, closable queue of crawl tasks
// Shallower tasks pop first; tasks of equal depth pop in the order they were added
type TaskQueue struct {
	pq     priorityQueue
	mu     sync.Mutex
	cond   *sync.Cond // Signalled on Add and Close
	closed bool
	seq    uint64
	log    *logrus.Entry
}

// NewTaskQueue creates an empty queue
func NewTaskQueue(logger *logrus.Entry) *TaskQueue {
	q := &TaskQueue{log: logger}
	q.cond = sync.NewCond(&q.mu)
	heap.Init(&q.pq)
	return q
}

// Add enqueues task and reports whether it was accepted; a closed queue rejects it
func (q *TaskQueue) Add(task models.Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.log.Warnf("Attempted to add task to closed queue: %s", task.URL)
		return false
	}

	q.seq++
	heap.Push(&q.pq, &pqItem{task: task, seq: q.seq})
	q.cond.Signal() // Wake one waiting worker
	return true
}

// Pop removes the next task, blocking while the queue is empty and open
// Returns false once the queue is closed and drained
func (q *TaskQueue) Pop() (models.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pq) == 0 {
		if q.closed {
			return models.Task{}, false
		}
		q.cond.Wait()
	}

	item := heap.Pop(&q.pq).(*pqItem)
	return item.task, true
}

// Close stops accepting tasks and wakes every blocked Pop. Idempotent.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.cond.Broadcast()
	}
}

// Len returns the number of queued tasks
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pq)
}
