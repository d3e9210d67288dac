package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBuffer_AppendAndWrap(t *testing.T) {
	rb := NewRingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		rb.Append(i)
	}

	assert.Equal(t, 3, rb.Size())
	assert.True(t, rb.IsFull())
	assert.Equal(t, []int{3, 4, 5}, rb.GetAll())
	assert.Equal(t, []int{4, 5}, rb.GetLatest(2))
	assert.Equal(t, []int{3, 4, 5}, rb.GetLatest(10))
}

func TestRingBuffer_Empty(t *testing.T) {
	rb := NewRingBuffer[string](0)
	assert.Equal(t, 1000, rb.Capacity())
	assert.Empty(t, rb.GetAll())
}

func TestRingBuffer_Resize(t *testing.T) {
	rb := NewRingBuffer[int](4)
	for i := 1; i <= 6; i++ {
		rb.Append(i)
	}

	rb.Resize(2)
	assert.Equal(t, []int{5, 6}, rb.GetAll())

	rb.Append(7)
	assert.Equal(t, []int{6, 7}, rb.GetAll())

	rb.Resize(5)
	rb.Append(8)
	assert.Equal(t, []int{6, 7, 8}, rb.GetAll())
}

func TestRingBuffer_Clear(t *testing.T) {
	rb := NewRingBuffer[int](2)
	rb.Append(1)
	rb.Clear()
	assert.Equal(t, 0, rb.Size())
	rb.Append(9)
	assert.Equal(t, []int{9}, rb.GetAll())
}
