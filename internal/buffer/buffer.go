// Package buffer implements a byte container with a fixed capacity.
// The capacity is set at construction and never grows: any operation
// that would exceed it fails with ErrCapacityExceeded instead of
// reallocating.
package buffer

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacityExceeded is returned when an operation would grow the
	// buffer past its fixed capacity.
	ErrCapacityExceeded = errors.New("buffer capacity exceeded")

	// ErrOutOfBounds is returned when an index does not refer to a valid
	// position in the buffer.
	ErrOutOfBounds = errors.New("buffer index out of bounds")
)

// Buffer is an ordered byte sequence with a fixed maximum capacity.
// The zero value is not usable; construct with New or FromBytes.
type Buffer struct {
	data   []byte
	length int
}

// New returns an empty buffer that can hold up to capacity bytes.
func New(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// FromBytes returns a buffer seeded with a copy of data.
func FromBytes(data []byte, capacity int) (*Buffer, error) {
	if len(data) > capacity {
		return nil, fmt.Errorf("seed of %d bytes into capacity %d: %w", len(data), capacity, ErrCapacityExceeded)
	}
	b := New(capacity)
	copy(b.data, data)
	b.length = len(data)
	return b, nil
}

// Len returns the number of bytes currently stored.
func (b *Buffer) Len() int {
	return b.length
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Free returns the number of bytes that can still be added.
func (b *Buffer) Free() int {
	return len(b.data) - b.length
}

// Insert places value at index, shifting everything at or after index
// right by one. index may equal Len(), which appends.
func (b *Buffer) Insert(index int, value byte) error {
	if index < 0 || index > b.length {
		return fmt.Errorf("insert at %d with length %d: %w", index, b.length, ErrOutOfBounds)
	}
	if b.length == len(b.data) {
		return ErrCapacityExceeded
	}
	copy(b.data[index+1:b.length+1], b.data[index:b.length])
	b.data[index] = value
	b.length++
	return nil
}

// Write overwrites the byte at an existing position.
func (b *Buffer) Write(index int, value byte) error {
	if index < 0 || index >= b.length {
		return fmt.Errorf("write at %d with length %d: %w", index, b.length, ErrOutOfBounds)
	}
	b.data[index] = value
	return nil
}

// Push appends value at the end.
func (b *Buffer) Push(value byte) error {
	if b.length == len(b.data) {
		return ErrCapacityExceeded
	}
	b.data[b.length] = value
	b.length++
	return nil
}

// Clear empties the buffer. Capacity is unchanged.
func (b *Buffer) Clear() {
	b.length = 0
}

// At returns the byte at index. Like a slice access, it panics when
// index is outside the live content.
func (b *Buffer) At(index int) byte {
	return b.Bytes()[index]
}

// Bytes returns a view of the live content. The slice aliases the
// buffer's storage and is invalidated by any later mutation.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.length]
}
