// Package storefake provides an in-memory credentials.Store with failure
// injection for tests.
package storefake

import (
	"sync"

	"github.com/taskbotapp/taskbot-go/credentials"
)

var _ credentials.Store = (*FakeStore)(nil)

// FakeStore records every operation and can be told to refuse writes to
// particular keys.
type FakeStore struct {
	mu       sync.Mutex
	values   map[credentials.Key]string
	failSet  map[credentials.Key]bool
	SetCalls []credentials.Key
	GetCalls []credentials.Key
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		values:  make(map[credentials.Key]string),
		failSet: make(map[credentials.Key]bool),
	}
}

// FailSetsFor makes subsequent Set calls for key report failure.
func (s *FakeStore) FailSetsFor(key credentials.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSet[key] = true
}

func (s *FakeStore) Get(key credentials.Key) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCalls = append(s.GetCalls, key)
	v, ok := s.values[key]
	return v, ok
}

func (s *FakeStore) Set(key credentials.Key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SetCalls = append(s.SetCalls, key)
	if s.failSet[key] {
		return false
	}
	s.values[key] = value
	return true
}

func (s *FakeStore) Delete(key credentials.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return true
}

func (s *FakeStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[credentials.Key]string)
}
