package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"aemo-price-feed/internal/nem"
)

// subscriberBuffer 每个订阅通道的缓冲大小。
const subscriberBuffer = 8

// Update 封装一次成功写入后的推送载荷。
type Update struct {
	Region nem.Region
	Kind   nem.ProductKind
	Points []nem.PricePoint
	At     time.Time
}

// Subscription 表示一个区域价格更新的订阅句柄。
type Subscription struct {
	ID     uuid.UUID
	Region nem.Region
	C      <-chan Update

	engine *Engine
	ch     chan Update
	once   sync.Once
}

// Close 注销订阅并关闭通道。可安全地多次调用。
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.engine.subMu.Lock()
		delete(s.engine.subscribers, s.ID)
		close(s.ch)
		s.engine.subMu.Unlock()
	})
}

// Subscribe 注册一个区域的更新订阅。慢消费者会丢弃更新, 不会阻塞引擎。
func (e *Engine) Subscribe(region nem.Region) (*Subscription, error) {
	if !region.Valid() {
		return nil, fmt.Errorf("subscribe %q: %w", region, nem.ErrUnknownRegion)
	}

	ch := make(chan Update, subscriberBuffer)
	sub := &Subscription{
		ID:     uuid.New(),
		Region: region,
		C:      ch,
		engine: e,
		ch:     ch,
	}

	e.subMu.Lock()
	e.subscribers[sub.ID] = sub
	e.subMu.Unlock()
	return sub, nil
}

// publish 把更新分发给匹配区域的订阅者。
func (e *Engine) publish(update Update) {
	e.subMu.RLock()
	defer e.subMu.RUnlock()

	for _, sub := range e.subscribers {
		if sub.Region != update.Region {
			continue
		}
		select {
		case sub.ch <- update:
		default:
		}
	}
}

func (e *Engine) closeSubscribers() {
	e.subMu.Lock()
	subs := make([]*Subscription, 0, len(e.subscribers))
	for _, sub := range e.subscribers {
		subs = append(subs, sub)
	}
	e.subMu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
