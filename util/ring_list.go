package util

import (
	"sync"
)

// RingList is a circular list of strings with a set capacity.
// Workers use it to remember which NSQ messages they are holding,
// because nsqd redelivers a message whose timeout expires even if
// a worker is still on it. Safe to share across goroutines.
type RingList struct {
	capacity int
	index    int
	items    []string
	mutex    sync.RWMutex
}

// NewRingList creates a new RingList with the specified capacity.
func NewRingList(capacity int) *RingList {
	if capacity < 1 {
		capacity = 1
	}
	return &RingList{
		capacity: capacity,
		index:    -1,
		items:    make([]string, capacity),
	}
}

// Add adds an item to the RingList. If capacity is ten, then
// the eleventh item you add overwrites item #1.
func (list *RingList) Add(item string) {
	list.mutex.Lock()
	defer list.mutex.Unlock()
	list.index = (list.index + 1) % list.capacity
	list.items[list.index] = item
}

// Contains returns true if the item is in the RingList. The empty
// string is never contained.
func (list *RingList) Contains(item string) bool {
	if item == "" {
		return false
	}
	list.mutex.RLock()
	defer list.mutex.RUnlock()
	for _, value := range list.items {
		if value == item {
			return true
		}
	}
	return false
}

// Del deletes all instances of the item from the list.
func (list *RingList) Del(item string) {
	if item == "" {
		return
	}
	list.mutex.Lock()
	defer list.mutex.Unlock()
	for i, value := range list.items {
		if value == item {
			list.items[i] = ""
		}
	}
}
