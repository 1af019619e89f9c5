package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"fleet-resource-manager/internal/models"
	rediscommon "fleet-resource-manager/internal/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubAreaStore struct {
	items     []models.SubArea
	upserted  []models.SubArea
	updateErr error
}

func (f *fakeSubAreaStore) GetAll(ctx context.Context) ([]models.SubArea, error) {
	return f.items, nil
}

func (f *fakeSubAreaStore) Upsert(ctx context.Context, sa *models.SubArea) error {
	f.upserted = append(f.upserted, *sa)
	return nil
}

func (f *fakeSubAreaStore) UpdateCapacity(ctx context.Context, id int64, capacity int) error {
	return f.updateErr
}

type fakeElevatorStore struct {
	items     []models.Elevator
	upserted  []models.Elevator
	updateErr error
}

func (f *fakeElevatorStore) GetAll(ctx context.Context) ([]models.Elevator, error) {
	return f.items, nil
}

func (f *fakeElevatorStore) Upsert(ctx context.Context, e *models.Elevator) error {
	f.upserted = append(f.upserted, *e)
	return nil
}

func (f *fakeElevatorStore) UpdateStatus(ctx context.Context, id int, status models.ElevatorStatus) error {
	return f.updateErr
}

func newTestCatalog(t *testing.T) (*Catalog, *fakeSubAreaStore, *fakeElevatorStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := rediscommon.NewRedisClient(&rediscommon.Config{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rediscommon.Close(client) })

	subAreas := &fakeSubAreaStore{items: []models.SubArea{
		{ID: 2, Name: "corridor_2", Behaviour: "corridor", Type: "local_area", Capacity: 2},
		{ID: 1, Name: "charging_1", Behaviour: "charging", Type: "local_area", Capacity: 1},
	}}
	elevators := &fakeElevatorStore{items: []models.Elevator{
		{ID: 1, ElevatorID: "elevator_1", Status: models.ElevatorStatus{Floor: 0, IsAvailable: true}},
	}}

	c := New(subAreas, elevators, rediscommon.NewRedisKV(client), time.Minute, zap.NewNop())
	require.NoError(t, c.Load(context.Background()))
	return c, subAreas, elevators, mr
}

func TestCatalogLoad(t *testing.T) {
	c, _, _, _ := newTestCatalog(t)

	list := c.SubAreas()
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].ID)
	assert.Equal(t, int64(2), list[1].ID)

	sa, ok := c.SubArea(2)
	require.True(t, ok)
	assert.Equal(t, 2, sa.Capacity)

	_, ok = c.SubArea(99)
	assert.False(t, ok)

	require.Len(t, c.Elevators(), 1)
}

func TestSetSubAreaCapacity(t *testing.T) {
	c, store, _, _ := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.SetSubAreaCapacity(ctx, 1, 3))
	sa, _ := c.SubArea(1)
	assert.Equal(t, 3, sa.Capacity)

	err := c.SetSubAreaCapacity(ctx, 99, 3)
	assert.True(t, errors.Is(err, ErrUnknownSubArea))

	assert.Error(t, c.SetSubAreaCapacity(ctx, 1, 0))

	// 持久化失败时内存值不变
	store.updateErr = errors.New("db down")
	assert.Error(t, c.SetSubAreaCapacity(ctx, 1, 5))
	sa, _ = c.SubArea(1)
	assert.Equal(t, 3, sa.Capacity)
}

func TestUpdateElevatorStatus_WritesCache(t *testing.T) {
	c, _, _, mr := newTestCatalog(t)
	ctx := context.Background()

	status := models.ElevatorStatus{Floor: 4, Calls: 2, IsAvailable: false, DoorOpenAtGoalFloor: true}
	require.NoError(t, c.UpdateElevatorStatus(ctx, 1, status))

	e, ok := c.Elevator(1)
	require.True(t, ok)
	assert.Equal(t, status, e.Status)

	key := fmt.Sprintf(StatusKeyFormat, 1)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	cached, err := c.CachedElevatorStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, status, *cached)
}

func TestUpdateElevatorStatus_PersistFailure(t *testing.T) {
	c, _, store, mr := newTestCatalog(t)
	store.updateErr = errors.New("db down")

	err := c.UpdateElevatorStatus(context.Background(), 1, models.ElevatorStatus{Floor: 7})

	assert.Error(t, err)
	e, _ := c.Elevator(1)
	assert.Equal(t, 0, e.Status.Floor)
	assert.False(t, mr.Exists(fmt.Sprintf(StatusKeyFormat, 1)))
}

func TestUpdateElevatorStatus_UnknownElevator(t *testing.T) {
	c, _, _, _ := newTestCatalog(t)

	err := c.UpdateElevatorStatus(context.Background(), 9, models.ElevatorStatus{})
	assert.True(t, errors.Is(err, ErrUnknownElevator))
}

func TestCachedElevatorStatus_Miss(t *testing.T) {
	c, _, _, _ := newTestCatalog(t)

	_, err := c.CachedElevatorStatus(context.Background(), 1)
	assert.True(t, errors.Is(err, rediscommon.ErrCacheMiss))
}

func TestSeedFromConfig_AppliesDefaults(t *testing.T) {
	c, subAreas, elevators, _ := newTestCatalog(t)

	err := c.SeedFromConfig(context.Background(),
		[]models.SubArea{{ID: 10, Name: "dock_10", Behaviour: "docking"}},
		[]models.Elevator{{ID: 2, ElevatorID: "elevator_2"}},
	)
	require.NoError(t, err)

	require.Len(t, subAreas.upserted, 1)
	assert.Equal(t, "local_area", subAreas.upserted[0].Type)
	assert.Equal(t, 1, subAreas.upserted[0].Capacity)
	require.Len(t, elevators.upserted, 1)

	sa, ok := c.SubArea(10)
	require.True(t, ok)
	assert.Equal(t, 1, sa.Capacity)
	_, ok = c.Elevator(2)
	assert.True(t, ok)
}
