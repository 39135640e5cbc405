package service

import (
	"sync"

	"fashion-feedback/internal/model"
)

// FeedbackQueue 有界环形队列。满了之后新元素挤掉最旧的，不报错也不扩容
type FeedbackQueue struct {
	mu    sync.Mutex
	items []*model.FeedbackEntry
	head  int
	size  int
	ready chan struct{}
}

func NewFeedbackQueue(capacity int) *FeedbackQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &FeedbackQueue{
		items: make([]*model.FeedbackEntry, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Push 入队；若因容量已满挤掉了最旧的元素，返回被丢弃的那条
func (q *FeedbackQueue) Push(entry *model.FeedbackEntry) *model.FeedbackEntry {
	q.mu.Lock()
	var dropped *model.FeedbackEntry
	capacity := len(q.items)
	if q.size == capacity {
		dropped = q.items[q.head]
		q.items[q.head] = nil
		q.head = (q.head + 1) % capacity
		q.size--
	}
	q.items[(q.head+q.size)%capacity] = entry
	q.size++
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return dropped
}

// PopBatch 按到达顺序取出最多 limit 条
func (q *FeedbackQueue) PopBatch(limit int) []*model.FeedbackEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.size
	if limit > 0 && limit < n {
		n = limit
	}
	if n == 0 {
		return nil
	}
	out := make([]*model.FeedbackEntry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, q.items[q.head])
		q.items[q.head] = nil
		q.head = (q.head + 1) % len(q.items)
	}
	q.size -= n
	return out
}

// Drain 取出全部剩余元素
func (q *FeedbackQueue) Drain() []*model.FeedbackEntry {
	return q.PopBatch(0)
}

func (q *FeedbackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *FeedbackQueue) Cap() int {
	return len(q.items)
}

// Ready 有新元素入队时收到信号（合并通知，可能有多余信号）
func (q *FeedbackQueue) Ready() <-chan struct{} {
	return q.ready
}
