package spsc

import (
	"errors"
	"sync"
	"testing"
)

func TestQueue_FIFOAndFull(t *testing.T) {
	var q Queue
	p, c, err := q.Split()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < Capacity; i++ {
		if err := p.Enqueue(byte('a' + i)); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := p.Enqueue('!'); !errors.Is(err, ErrFull) {
		t.Fatalf("17-й enqueue: ожидали ErrFull, получили %v", err)
	}
	if p.Ready() {
		t.Error("Ready() на полной очереди")
	}
	for i := 0; i < Capacity; i++ {
		b, ok := c.Dequeue()
		if !ok || b != byte('a'+i) {
			t.Fatalf("dequeue %d = %q,%v, want %q", i, b, ok, byte('a'+i))
		}
	}
	if _, ok := c.Dequeue(); ok {
		t.Error("dequeue из пустой очереди")
	}
}

func TestQueue_Wrap(t *testing.T) {
	var q Queue
	p, c, _ := q.Split()
	for round := 0; round < 5; round++ {
		for i := 0; i < 10; i++ {
			if err := p.Enqueue(byte(round*10 + i)); err != nil {
				t.Fatal(err)
			}
		}
		for i := 0; i < 10; i++ {
			b, _ := c.Dequeue()
			if b != byte(round*10+i) {
				t.Fatalf("round %d: got %d want %d", round, b, round*10+i)
			}
		}
	}
}

func TestQueue_SplitOnce(t *testing.T) {
	var q Queue
	if _, _, err := q.Split(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := q.Split(); !errors.Is(err, ErrSplit) {
		t.Errorf("второй Split: ожидали ErrSplit, получили %v", err)
	}
}

func TestQueue_Concurrent(t *testing.T) {
	var q Queue
	p, c, _ := q.Split()
	const n = 10000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; {
			if p.Enqueue(byte(i)) == nil {
				i++
			}
		}
	}()
	for i := 0; i < n; {
		b, ok := c.Dequeue()
		if !ok {
			continue
		}
		if b != byte(i) {
			t.Fatalf("порядок нарушен на %d: %d", i, b)
		}
		i++
	}
	wg.Wait()
}
