package ccfl

import (
	"sync/atomic"
	"testing"
)

type countingTask struct {
	counter *int64
}

func (t *countingTask) Execute() {
	atomic.AddInt64(t.counter, 1)
}

func TestPoolRunsEveryTask(t *testing.T) {
	var counter int64
	pool := NewPool(4)
	for i := 0; i < 100; i++ {
		pool.AddTask(&countingTask{counter: &counter})
	}
	pool.Close()
	pool.WaitAll()

	if counter != 100 {
		t.Errorf("expected 100 executed tasks, got %d", counter)
	}
}

type slotTask struct {
	out []int
	pos int
}

func (t *slotTask) Execute() {
	t.out[t.pos] = t.pos
}

func TestPoolDistinctSlots(t *testing.T) {
	out := make([]int, 32)
	pool := NewPool(8)
	for pos := range out {
		pool.AddTask(&slotTask{out: out, pos: pos})
	}
	pool.Close()
	pool.WaitAll()

	for pos, v := range out {
		if v != pos {
			t.Errorf("slot %d holds %d", pos, v)
		}
	}
}
