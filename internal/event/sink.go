package event

// Sink 处理器写事件的出口，Emit 不得失败
type Sink interface {
	Emit(ev Event)
}

// SinkFunc 函数适配 Sink
type SinkFunc func(ev Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }

// Discard 丢弃所有事件
var Discard Sink = SinkFunc(func(Event) {})

// Buffer 暂存一次调用内的事件，事务提交后再取出发布。
// 非并发安全，每次调用各自持有一个。
type Buffer struct {
	events []Event
}

func (b *Buffer) Emit(ev Event) {
	b.events = append(b.events, ev)
}

func (b *Buffer) Len() int {
	return len(b.events)
}

// Take 取出并清空已缓存事件
func (b *Buffer) Take() []Event {
	out := b.events
	b.events = nil
	return out
}

// Reset 丢弃已缓存事件（调用失败回滚时使用）
func (b *Buffer) Reset() {
	b.events = nil
}
