package folding

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnotationModel_Apply(t *testing.T) {
	var redraws []Batch
	m := NewAnnotationModel(WithRedraw(func(b Batch) { redraws = append(redraws, b) }))
	ctx := context.Background()

	require.NoError(t, m.Apply(ctx, Batch{Insertions: []Insertion{
		{Handle: 1, Interval: Interval{Offset: 0, Length: 30}},
		{Handle: 2, Interval: Interval{Offset: 40, Length: 30}, Collapsed: true},
	}}))
	require.NoError(t, m.Apply(ctx, Batch{
		Removals:   []Handle{1},
		Insertions: []Insertion{{Handle: 3, Interval: Interval{Offset: 80, Length: 20}}},
		Updates:    []Update{{Handle: 2, Interval: Interval{Offset: 10, Length: 30}}},
	}))

	assert.Equal(t, []Annotation{
		{Handle: 2, Interval: Interval{Offset: 10, Length: 30}, Collapsed: true},
		{Handle: 3, Interval: Interval{Offset: 80, Length: 20}},
	}, m.Snapshot())
	assert.Equal(t, 2, m.Applied())
	assert.Len(t, redraws, 2)
}

func TestAnnotationModel_RejectsInvalidBatchAtomically(t *testing.T) {
	ctx := context.Background()
	seed := Batch{Insertions: []Insertion{{Handle: 1, Interval: Interval{Offset: 0, Length: 10}}}}

	tests := []struct {
		name    string
		batch   Batch
		wantErr error
	}{
		{
			name:    "unknown removal",
			batch:   Batch{Removals: []Handle{7}},
			wantErr: ErrUnknownAnnotation,
		},
		{
			name:    "duplicate insertion",
			batch:   Batch{Insertions: []Insertion{{Handle: 1}}},
			wantErr: ErrDuplicateAnnotation,
		},
		{
			name:    "update of removed handle",
			batch:   Batch{Removals: []Handle{1}, Updates: []Update{{Handle: 1}}},
			wantErr: ErrUnknownAnnotation,
		},
		{
			name:    "negative interval",
			batch:   Batch{Updates: []Update{{Handle: 1, Interval: Interval{Offset: -5}}}},
			wantErr: ErrInvalidInterval,
		},
		{
			name: "valid ops before an invalid one",
			batch: Batch{
				Insertions: []Insertion{{Handle: 2, Interval: Interval{Offset: 20, Length: 10}}},
				Updates:    []Update{{Handle: 9}},
			},
			wantErr: ErrUnknownAnnotation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewAnnotationModel()
			require.NoError(t, m.Apply(ctx, seed))
			before := m.Snapshot()

			err := m.Apply(ctx, tt.batch)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, m.Snapshot())
			assert.Equal(t, 1, m.Applied())
		})
	}
}

func TestAnnotationModel_Close(t *testing.T) {
	m := NewAnnotationModel()
	ctx := context.Background()
	require.NoError(t, m.Apply(ctx, Batch{Insertions: []Insertion{{Handle: 1, Interval: Interval{Length: 10}}}}))

	m.Close()

	assert.ErrorIs(t, m.Apply(ctx, Batch{Removals: []Handle{1}}), ErrSinkUnavailable)
	assert.ErrorIs(t, m.SetCollapsed(1, true), ErrSinkUnavailable)
	assert.Zero(t, m.Len())
}

func TestAnnotationModel_CanceledContext(t *testing.T) {
	m := NewAnnotationModel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Apply(ctx, Batch{Insertions: []Insertion{{Handle: 1}}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, m.Len())
}

func TestAnnotationModel_SetCollapsed(t *testing.T) {
	m := NewAnnotationModel()
	require.NoError(t, m.Apply(context.Background(), Batch{Insertions: []Insertion{{Handle: 4, Interval: Interval{Length: 10}}}}))

	require.NoError(t, m.SetCollapsed(4, true))
	a, ok := m.Get(4)
	require.True(t, ok)
	assert.True(t, a.Collapsed)

	assert.ErrorIs(t, m.SetCollapsed(5, true), ErrUnknownAnnotation)
	_, ok = m.Get(5)
	assert.False(t, ok)
}

func TestAnnotationModel_ConcurrentReaders(t *testing.T) {
	m := NewAnnotationModel()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				for _, a := range m.Snapshot() {
					assert.True(t, a.Interval.Valid())
				}
			}
		}()
	}
	for h := Handle(1); h <= 100; h++ {
		require.NoError(t, m.Apply(ctx, Batch{Insertions: []Insertion{{Handle: h, Interval: Interval{Offset: int(h), Length: 1}}}}))
	}
	wg.Wait()

	assert.Equal(t, 100, m.Len())
}
