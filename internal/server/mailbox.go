package server

// mailbox turns in into an unbounded FIFO feeding out, so producers never
// block on a busy actor.
type mailbox struct {
	in   chan func()
	out  chan func()
	done <-chan struct{}
}

func newMailbox(done <-chan struct{}) *mailbox {
	m := &mailbox{
		in:   make(chan func()),
		out:  make(chan func()),
		done: done,
	}
	go m.buffer()
	return m
}

func (m *mailbox) buffer() {
	var queue []func()
	var out chan func()
	var next func()
	for {
		select {
		case out <- next:
			queue = queue[1:]
			if len(queue) > 0 {
				next = queue[0]
			} else {
				out, next = nil, nil
			}

		case task := <-m.in:
			queue = append(queue, task)
			if len(queue) == 1 {
				out, next = m.out, queue[0]
			}

		case <-m.done:
			return
		}
	}
}

// submit queues task and reports whether the actor was still alive to take
// it.
func (m *mailbox) submit(task func()) bool {
	select {
	case m.in <- task:
		return true
	case <-m.done:
		return false
	}
}
