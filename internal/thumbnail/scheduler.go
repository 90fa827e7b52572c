package thumbnail

import (
	"sync"
	"time"
)

// deferredTask 单个可取消的延迟任务
// idle 定时器可被 MarkBusy 反复推迟，deadline 定时器保证有界延迟。
type deferredTask struct {
	mu       sync.Mutex
	done     bool
	idle     *time.Timer
	deadline *time.Timer
	fn       func()
}

func (t *deferredTask) fire() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	t.idle.Stop()
	t.deadline.Stop()
	fn := t.fn
	t.mu.Unlock()
	fn()
}

func (t *deferredTask) cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	t.idle.Stop()
	t.deadline.Stop()
}

// postpone 再等一个空闲期，deadline 不变
func (t *deferredTask) postpone(idleDelay time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.idle.Reset(idleDelay)
}

// Scheduler 空闲调度器
// 任务按资源（幻灯片 ID）键控，新任务替换同键旧任务；任务在宿主
// 空闲一个 idleDelay 后执行，持续繁忙时由 maxDefer 兜底触发，
// 不会被无限推迟。任务在独立定时器协程里执行，绝不阻塞消息处理。
type Scheduler struct {
	mu        sync.Mutex
	idleDelay time.Duration
	maxDefer  time.Duration
	tasks     map[string]*deferredTask
	stopped   bool
}

// NewScheduler 创建空闲调度器
func NewScheduler(idleDelay, maxDefer time.Duration) *Scheduler {
	return &Scheduler{
		idleDelay: idleDelay,
		maxDefer:  maxDefer,
		tasks:     make(map[string]*deferredTask),
	}
}

// Schedule 注册任务，替换同键的未执行任务
func (s *Scheduler) Schedule(key string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if old, ok := s.tasks[key]; ok {
		old.cancel()
	}

	task := &deferredTask{}
	task.fn = func() {
		s.mu.Lock()
		if s.tasks[key] == task {
			delete(s.tasks, key)
		}
		s.mu.Unlock()
		fn()
	}
	// 两个定时器都挂好之前不许触发
	task.mu.Lock()
	task.idle = time.AfterFunc(s.idleDelay, task.fire)
	task.deadline = time.AfterFunc(s.maxDefer, task.fire)
	task.mu.Unlock()
	s.tasks[key] = task
}

// MarkBusy 宿主繁忙提示：推迟所有待执行任务一个空闲期
func (s *Scheduler) MarkBusy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, task := range s.tasks {
		task.postpone(s.idleDelay)
	}
}

// Cancel 取消指定键的待执行任务
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task, ok := s.tasks[key]; ok {
		task.cancel()
		delete(s.tasks, key)
	}
}

// Stop 取消全部待执行任务，之后的 Schedule 调用被忽略
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for key, task := range s.tasks {
		task.cancel()
		delete(s.tasks, key)
	}
}
