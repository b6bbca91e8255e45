package upload

import "sync"

// latch delivers exactly one outcome. Signals after the first are dropped.
type latch struct {
	once      sync.Once
	onSuccess func(string)
	onError   func(error)
}

func newLatch(onSuccess func(string), onError func(error)) *latch {
	return &latch{onSuccess: onSuccess, onError: onError}
}

func (l *latch) succeed(body string) {
	l.once.Do(func() {
		if l.onSuccess != nil {
			l.onSuccess(body)
		}
	})
}

func (l *latch) fail(err error) {
	l.once.Do(func() {
		if l.onError != nil {
			l.onError(err)
		}
	})
}
