package approval

import (
	"sync"

	"github.com/phistudioco/holdingmanager-sub001/internal/workflow"
)

// AllInstances 订阅全部实例事件
const AllInstances = "*"

// EventBusConfig 控制事件总线行为
type EventBusConfig struct {
	BufferSize int
}

// EventBus 进程内工作流事件总线
type EventBus struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]chan workflow.Event
	seq    uint64
	buffer int
}

// NewEventBus 创建事件总线
func NewEventBus(cfg *EventBusConfig) *EventBus {
	buffer := 1
	if cfg != nil && cfg.BufferSize > 0 {
		buffer = cfg.BufferSize
	}
	return &EventBus{
		subs:   make(map[string]map[uint64]chan workflow.Event),
		buffer: buffer,
	}
}

// Publish 非阻塞发布，接收方处理慢时丢弃
func (b *EventBus) Publish(evt workflow.Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, key := range []string{evt.InstanceID, AllInstances} {
		for _, ch := range b.subs[key] {
			select {
			case ch <- evt:
			default:
			}
		}
	}
}

// Subscribe 订阅指定实例事件，instanceID 为 AllInstances 时订阅全部
func (b *EventBus) Subscribe(instanceID string) (<-chan workflow.Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan workflow.Event, b.buffer)
	b.mu.Lock()
	b.seq++
	id := b.seq
	if _, ok := b.subs[instanceID]; !ok {
		b.subs[instanceID] = make(map[uint64]chan workflow.Event)
	}
	b.subs[instanceID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.removeListener(instanceID, id) })
	}
}

func (b *EventBus) removeListener(instanceID string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if listeners, ok := b.subs[instanceID]; ok {
		if ch, exists := listeners[id]; exists {
			delete(listeners, id)
			close(ch)
		}
		if len(listeners) == 0 {
			delete(b.subs, instanceID)
		}
	}
}
