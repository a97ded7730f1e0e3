package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestStoreUpdateDiscardsFailedMutation(t *testing.T) {
	store := NewStore(time.Second)
	ctx := context.Background()

	_, err := store.Update(ctx, "u1", func(c *Cart) error {
		return applyAdd(c, Product{ID: 1, Title: "A", Price: decimal.NewFromInt(3)}, 2)
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = store.Update(ctx, "u1", func(c *Cart) error {
		c.Items[0].Quantity = 50
		c.Items = append(c.Items, LineItem{ProductID: 9, Quantity: 1})
		return boom
	})
	require.ErrorIs(t, err, boom)

	got := store.Get("u1")
	require.Len(t, got.Items, 1)
	require.Equal(t, 2, got.Items[0].Quantity)
	require.Equal(t, 1, store.Len())
}

func TestStoreBusyLock(t *testing.T) {
	store := NewStore(20 * time.Millisecond)
	ctx := context.Background()
	hold := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = store.Update(ctx, "u1", func(*Cart) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	_, err := store.Update(ctx, "u1", func(*Cart) error { return nil })
	require.ErrorIs(t, err, ErrCartBusy)
	close(hold)
}

func TestApplyRemoveBoundary(t *testing.T) {
	c := NewCart()
	require.NoError(t, applyAdd(&c, Product{ID: 1, Price: decimal.RequireFromString("5.00")}, 3))

	two := 2
	require.NoError(t, applyRemove(&c, 1, &two))
	require.Equal(t, 1, c.Quantity(1))

	one := 1
	require.NoError(t, applyRemove(&c, 1, &one))
	require.True(t, c.IsEmpty())
	require.ErrorIs(t, applyRemove(&c, 1, nil), ErrItemNotInCart)
}

func TestApplyAddRejectsNonPositive(t *testing.T) {
	c := NewCart()
	require.ErrorIs(t, applyAdd(&c, Product{ID: 1}, 0), ErrInvalidQuantity)
	require.True(t, c.IsEmpty())
}
