package memory

import (
	"context"
	"testing"

	"github.com/josephgoksu/loomboard/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTask(id, user string, status task.Status, order float64, createdAt int64) *task.Task {
	return &task.Task{
		ID: id, UserID: user, Title: "Task " + id, Status: status, Priority: task.PriorityMedium,
		Order: order, CreatedAt: createdAt, UpdatedAt: createdAt,
	}
}

func TestInsertAndGetTask_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	due := int64(1_700_000_000_000)

	in := &task.Task{
		UserID: "u1", Title: "Write docs", Description: "API reference",
		Status: task.StatusBlocked, Priority: task.PriorityUrgent, Tags: []string{"docs", "docs"},
		DueDate: &due, Order: 2.5, IsActive: true, CreatedAt: 10, UpdatedAt: 20,
	}

	require.NoError(t, store.InTx(context.Background(), func(tx task.Tx) error {
		return tx.InsertTask(in)
	}))
	require.NotEmpty(t, in.ID)

	require.NoError(t, store.InTx(context.Background(), func(tx task.Tx) error {
		got, err := tx.GetTask(in.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, *in, *got)
		return nil
	}))
}

func TestGetTask_MissingReturnsNil(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.InTx(context.Background(), func(tx task.Tx) error {
		got, err := tx.GetTask("nope")
		assert.NoError(t, err)
		assert.Nil(t, got)
		return nil
	}))
}

func TestListTasks_Filters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	archived := newTask("a", "u1", task.StatusDone, 1, 1)
	archived.Archived = true
	active := newTask("b", "u1", task.StatusInProgress, 1, 2)
	active.IsActive = true

	require.NoError(t, store.InTx(ctx, func(tx task.Tx) error {
		for _, tk := range []*task.Task{
			archived, active,
			newTask("c", "u1", task.StatusBacklog, 1, 3),
			newTask("d", "u2", task.StatusBacklog, 1, 4),
		} {
			if err := tx.InsertTask(tk); err != nil {
				return err
			}
		}
		return nil
	}))

	ids := func(tasks []task.Task) []string {
		out := make([]string, 0, len(tasks))
		for _, tk := range tasks {
			out = append(out, tk.ID)
		}
		return out
	}

	require.NoError(t, store.InTx(ctx, func(tx task.Tx) error {
		all, err := tx.ListTasks("u1", task.Query{})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, ids(all))

		backlog, err := tx.ListTasks("u1", task.Query{Status: task.StatusBacklog})
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, ids(backlog))

		arch, err := tx.ListTasks("u1", task.Query{Archived: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, ids(arch))

		act, err := tx.ListTasks("u1", task.Query{ActiveOnly: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, ids(act))
		return nil
	}))
}

func TestMaxOrder_IgnoresArchivedAndOtherOwners(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	archived := newTask("x", "u1", task.StatusBacklog, 99, 1)
	archived.Archived = true

	require.NoError(t, store.InTx(ctx, func(tx task.Tx) error {
		empty, err := tx.MaxOrder("u1", task.StatusBacklog)
		require.NoError(t, err)
		assert.Equal(t, float64(0), empty)

		for _, tk := range []*task.Task{
			archived,
			newTask("a", "u1", task.StatusBacklog, 3, 2),
			newTask("b", "u1", task.StatusDone, 7, 3),
			newTask("c", "u2", task.StatusBacklog, 50, 4),
		} {
			require.NoError(t, tx.InsertTask(tk))
		}

		got, err := tx.MaxOrder("u1", task.StatusBacklog)
		require.NoError(t, err)
		assert.Equal(t, float64(3), got)
		return nil
	}))
}

func TestDeleteTask_RemovesHistory(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InTx(ctx, func(tx task.Tx) error {
		return tx.InsertTask(newTask("t1", "u1", task.StatusBacklog, 1, 1))
	}))
	insertHistory(t, store, "t1", "u1", 5)
	insertHistory(t, store, "t1", "u1", 6)
	insertHistory(t, store, "t2", "u1", 7)

	require.NoError(t, store.InTx(ctx, func(tx task.Tx) error {
		return tx.DeleteTask("t1")
	}))

	require.NoError(t, store.InTx(ctx, func(tx task.Tx) error {
		entries, err := tx.TaskHistory("t1")
		require.NoError(t, err)
		assert.Empty(t, entries)

		other, err := tx.TaskHistory("t2")
		require.NoError(t, err)
		assert.Len(t, other, 1)
		return nil
	}))
}

func TestRecentActivity_NewestFirstWithTitles(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InTx(ctx, func(tx task.Tx) error {
		return tx.InsertTask(newTask("t1", "u1", task.StatusBacklog, 1, 1))
	}))
	insertHistory(t, store, "t1", "u1", 10)
	insertHistory(t, store, "gone", "u1", 20)
	insertHistory(t, store, "t1", "u2", 30)

	require.NoError(t, store.InTx(ctx, func(tx task.Tx) error {
		items, err := tx.RecentActivity("u1", 10)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, task.DeletedTaskTitle, items[0].TaskTitle)
		assert.Equal(t, "Task t1", items[1].TaskTitle)

		limited, err := tx.RecentActivity("u1", 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
		return nil
	}))
}

func TestUpdateTask_Missing(t *testing.T) {
	store := setupTestStore(t)

	err := store.InTx(context.Background(), func(tx task.Tx) error {
		return tx.UpdateTask(newTask("ghost", "u1", task.StatusBacklog, 1, 1))
	})
	assert.True(t, task.IsNotFound(err))
}
