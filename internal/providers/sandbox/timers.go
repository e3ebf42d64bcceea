package sandbox

import (
	"container/heap"
	"time"

	"github.com/dop251/goja"
)

// task is a pending timer callback on the virtual clock.
type task struct {
	id       int64
	seq      int64
	due      time.Duration
	interval time.Duration
	repeat   bool
	fn       goja.Callable
	code     string
	args     []goja.Value
	index    int
}

// taskQueue orders tasks by due time, then by scheduling order.
type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	t := x.(*task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

// clock is the virtual event loop. Time only advances when a task is taken.
type clock struct {
	now    time.Duration
	nextID int64
	seq    int64
	queue  taskQueue
	byID   map[int64]*task
}

func newClock() *clock {
	return &clock{byID: make(map[int64]*task)}
}

func (c *clock) schedule(t *task, delay time.Duration) int64 {
	if delay < 0 {
		delay = 0
	}
	if t.id == 0 {
		c.nextID++
		t.id = c.nextID
	}
	c.seq++
	t.seq = c.seq
	t.due = c.now + delay
	heap.Push(&c.queue, t)
	c.byID[t.id] = t
	return t.id
}

func (c *clock) cancel(id int64) {
	t, ok := c.byID[id]
	if !ok {
		return
	}
	delete(c.byID, id)
	if t.index >= 0 {
		heap.Remove(&c.queue, t.index)
	}
}

// next pops the earliest task and advances the clock to it.
func (c *clock) next() (*task, bool) {
	if c.queue.Len() == 0 {
		return nil, false
	}
	t := heap.Pop(&c.queue).(*task)
	if t.due > c.now {
		c.now = t.due
	}
	if !t.repeat {
		delete(c.byID, t.id)
	}
	return t, true
}

func (c *clock) pending() int { return c.queue.Len() }
