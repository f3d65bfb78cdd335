package ccfl

import "sync"

//Task is a unit of work for Pool. Execute is called exactly once from a
//worker goroutine.
type Task interface {
	Execute()
}

//Pool runs tasks on a fixed set of worker goroutines. Tasks are handed
//over with AddTask, Close marks the end of submission, and WaitAll
//blocks until every submitted task has finished.
type Pool struct {
	tasks chan Task
	wg    sync.WaitGroup
}

//NewPool starts nWorkers goroutines ready to execute tasks.
func NewPool(nWorkers int) *Pool {
	p := &Pool{tasks: make(chan Task, nWorkers)}
	p.wg.Add(nWorkers)
	for i := 0; i < nWorkers; i++ {
		go func() {
			defer p.wg.Done()
			for t := range p.tasks {
				t.Execute()
			}
		}()
	}
	return p
}

//AddTask submits one task, blocking when all workers are busy and the
//queue is full.
func (p *Pool) AddTask(t Task) {
	p.tasks <- t
}

//Close signals that no further tasks will be submitted.
func (p *Pool) Close() {
	close(p.tasks)
}

//WaitAll blocks until the workers drain the queue and exit. Close must
//be called first.
func (p *Pool) WaitAll() {
	p.wg.Wait()
}
