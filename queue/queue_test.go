package queue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/mapapi"
	"github.com/fiblab-sim/moss-core/queue"
)

func lane(id int32) mapapi.Traversable {
	return mapapi.LaneTraversable(ids.LaneID(id))
}

// fixedPositioner reports a constant front regardless of time, enough
// to drive Positions without needing a real driving.CarState.
type fixedPositioner float64

func (p fixedPositioner) FrontAt(now float64) float64 { return float64(p) }

func newCar(num int64, front, length float64) *queue.CarMember {
	return &queue.CarMember{
		CarID:      ids.CarID{VehicleID: ids.VehicleID(num)},
		CarLength:  length,
		MaxSpeed:   15,
		Positioner: fixedPositioner(front),
	}
}

func TestQueuePositionsClampsFollowingDistance(t *testing.T) {
	q := queue.NewQueue(lane(1), 100, 2)
	head := newCar(1, 50, 5)
	tail := newCar(2, 49, 5) // would overlap head without clamping
	q.PushCarOntoEnd(head)
	q.PushCarOntoEnd(tail)

	pos := q.Positions(0)
	assert.Equal(t, 50.0, pos[head.ID()])
	// tail must be at most head.front - head.length - followingDistance
	assert.LessOrEqual(t, pos[tail.ID()], 50.0-5-2+1e-9)
}

func TestQueueGetIdxToInsertCar(t *testing.T) {
	q := queue.NewQueue(lane(1), 100, 2)
	q.PushCarOntoEnd(newCar(1, 80, 5))

	// a car trying to enter far behind the existing member should find
	// a tail slot.
	idx, ok := q.GetIdxToInsertCar(10, 4, 0)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	// a car trying to overlap the existing member should be refused.
	_, ok = q.GetIdxToInsertCar(79, 4, 0)
	assert.False(t, ok)
}

func TestQueueRemoveMemberPanicsOnAbsent(t *testing.T) {
	q := queue.NewQueue(lane(1), 100, 2)
	assert.Panics(t, func() {
		q.RemoveMember(queue.MemberID{Kind: queue.MemberCar, Car: ids.CarID{VehicleID: 99}})
	})
}

func TestQueueStaticBlockageLifecycle(t *testing.T) {
	q := queue.NewQueue(lane(1), 100, 2)
	assert.False(t, q.HasStaticBlockage("unpark", 0))
	q.AddStaticBlockage("unpark", 0, 0, 30, 25)
	assert.True(t, q.HasStaticBlockage("unpark", 0))
	assert.Equal(t, 1, q.Len())
	q.ClearStaticBlockage("unpark", 0)
	assert.False(t, q.HasStaticBlockage("unpark", 0))
	assert.Equal(t, 0, q.Len())
}

func TestQueueReserveAndFreeRoundTrip(t *testing.T) {
	q := queue.NewQueue(lane(1), 10, 2)
	ok := q.TryToReserveEntry(8, false)
	require.True(t, ok)
	assert.False(t, q.TryToReserveEntry(5, false), "should refuse entry that would overflow capacity")
	q.FreeReservedSpace(8)
	assert.True(t, q.TryToReserveEntry(5, false), "space must be available again after freeing")
}

func TestQueueFreeReservedSpacePanicsOnNegative(t *testing.T) {
	q := queue.NewQueue(lane(1), 10, 2)
	assert.Panics(t, func() { q.FreeReservedSpace(1) })
}

func TestQueueDynamicBlockageRoundTrip(t *testing.T) {
	q := queue.NewQueue(lane(1), 100, 2)
	car := newCar(1, 50, 5)
	q.PushCarOntoEnd(car)
	q.ReplaceCarWithDynamicBlockage(car, 0)
	assert.Equal(t, 1, q.Len())
	q.ClearDynamicBlockage(car.CarID)
	assert.Equal(t, 0, q.Len())
}

func TestQueueMoveFirstCarToLaggyHeadClampsPosition(t *testing.T) {
	q := queue.NewQueue(lane(1), 40, 2)
	head := newCar(1, 55, 5) // already past this traversable's own length
	q.PushCarOntoEnd(head)
	q.MoveFirstCarToLaggyHead()

	pos := q.Positions(0)
	assert.Equal(t, 40.0, pos[head.ID()], "laggy head must clamp to the traversable's own length")
}
