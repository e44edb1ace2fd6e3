package sim

import (
	"testing"
	"time"
)

func TestNaiveScheduler(t *testing.T) {
	type spec struct {
		speed1   uint32
		speed2   uint32
		rows     uint32
		expRows1 uint32
		expRows2 uint32
	}
	specs := []spec{
		{1, 2, 10, 4, 6},
		{2, 1, 10, 7, 3},
		{1, 1000, 10, 1, 9},
	}

	for index, s := range specs {
		b1 := makeMockBackend("mock-1", s.speed1)
		b2 := makeMockBackend("mock-2", s.speed2)
		backends := []Backend{b1, b2}

		sch := NaiveScheduler()
		assignment := sch.Schedule(backends, s.rows)

		if assignment[0] != s.expRows1 {
			t.Fatalf("[spec %d] expected backend 0 to be assigned %d rows; got %d", index, s.expRows1, assignment[0])
		}

		if assignment[1] != s.expRows2 {
			t.Fatalf("[spec %d] expected backend 1 to be assigned %d rows; got %d", index, s.expRows2, assignment[1])
		}
	}
}

func TestNaiveSchedulerShortFrame(t *testing.T) {
	// More backends than rows. The minimum block height of 1 oversubscribes
	// the frame and the surplus must come off the tail without wrapping.
	backends := []Backend{
		makeMockBackend("mock-1", 1),
		makeMockBackend("mock-2", 1),
		makeMockBackend("mock-3", 1),
	}

	assignment := NaiveScheduler().Schedule(backends, 2)

	var sum uint32
	for _, rows := range assignment {
		sum += rows
	}
	if sum != 2 {
		t.Fatalf("expected assignments to sum to 2; got %v", assignment)
	}
	if assignment[0] != 1 || assignment[1] != 1 || assignment[2] != 0 {
		t.Fatalf("expected the tail backend to be starved; got %v", assignment)
	}
}

func TestPerfectSchedulerShortFrame(t *testing.T) {
	b1 := makeMockBackend("mock-1", 1)
	b2 := makeMockBackend("mock-2", 1)
	b3 := makeMockBackend("mock-3", 1)
	backends := []Backend{b1, b2, b3}

	sch := PerfectScheduler()
	first := sch.Schedule(backends, 2)

	for idx, b := range []*mockBackend{b1, b2, b3} {
		b.stats.BlockH = first[idx]
		b.stats.RenderTime = time.Millisecond
	}

	// The feedback pass keeps the minimum block height and must trim the
	// oversubscribed frame the same way.
	assignment := sch.Schedule(backends, 2)

	var sum uint32
	for _, rows := range assignment {
		sum += rows
	}
	if sum != 2 {
		t.Fatalf("expected assignments to sum to 2; got %v", assignment)
	}
}

func TestPerfectScheduler(t *testing.T) {
	type spec struct {
		rows     uint32
		rTime1   time.Duration
		rTime2   time.Duration
		expRows1 uint32
		expRows2 uint32
	}
	specs := []spec{
		// First call always behaves like the naive scheduler.
		{10, time.Duration(1), time.Duration(5), 5, 5},
		// Second call should use the block times to assign rows.
		{10, time.Duration(1), time.Duration(5), 9, 1},
		// This time backend 2 performed much better.
		{10, time.Duration(5), time.Duration(1), 7, 3},
	}

	// Backends advertise the same static speed.
	b1 := makeMockBackend("mock-1", 1)
	b2 := makeMockBackend("mock-2", 1)
	backends := []Backend{b1, b2}

	sch := PerfectScheduler()
	for index, s := range specs {
		b1.stats.RenderTime = s.rTime1
		b2.stats.RenderTime = s.rTime2

		assignment := sch.Schedule(backends, s.rows)

		if assignment[0] != s.expRows1 {
			t.Fatalf("[spec %d] expected backend 0 to be assigned %d rows; got %d", index, s.expRows1, assignment[0])
		}

		if assignment[1] != s.expRows2 {
			t.Fatalf("[spec %d] expected backend 1 to be assigned %d rows; got %d", index, s.expRows2, assignment[1])
		}

		b1.stats.BlockH = assignment[0]
		b2.stats.BlockH = assignment[1]
	}
}

type mockBackend struct {
	id      string
	speed   uint32
	stats   *Stats
	req     *Request
	initErr error
	workErr error
	blocks  []BlockRequest
}

func makeMockBackend(id string, speed uint32) *mockBackend {
	return &mockBackend{
		id:    id,
		speed: speed,
		stats: &Stats{},
	}
}

func (mb *mockBackend) Id() string {
	return mb.id
}

func (mb *mockBackend) Speed() uint32 {
	return mb.speed
}

func (mb *mockBackend) Init(req *Request) error {
	mb.req = req
	return mb.initErr
}

func (mb *mockBackend) TraceBlock(blockReq BlockRequest) error {
	if mb.workErr != nil {
		return mb.workErr
	}
	mb.blocks = append(mb.blocks, blockReq)

	// Fill the assigned rows with a recognizable value.
	if mb.req != nil {
		width := mb.req.Detector.PixelsFast
		for y := int(blockReq.BlockY); y < int(blockReq.BlockY+blockReq.BlockH); y++ {
			for x := 0; x < width; x++ {
				mb.req.Pixels[y*width+x] = 1
			}
		}
	}

	mb.stats.BlockH = blockReq.BlockH
	mb.stats.RenderTime = time.Millisecond
	return nil
}

func (mb *mockBackend) Stats() *Stats {
	return mb.stats
}

func (mb *mockBackend) Close() {
}
