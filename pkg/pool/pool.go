// Package pool provides object pooling to reduce GC pressure, chiefly for
// the search engine's per-query candidate-id slice, collected across query
// variants before RRF fusion.
package pool

import (
	"sync"
)

// MapPool pools map[string]interface{} for JSON output
var MapPool = sync.Pool{
	New: func() interface{} {
		return make(map[string]interface{}, 8)
	},
}

// SlicePool pools []interface{} for JSON output
var SlicePool = sync.Pool{
	New: func() interface{} {
		return make([]interface{}, 0, 32)
	},
}

// StringSlicePool pools []string
var StringSlicePool = sync.Pool{
	New: func() interface{} {
		return make([]string, 0, 16)
	},
}

// Int64SlicePool pools []int64, used by the search engine to collect
// candidate row ids across expanded query variants before fusion.
var Int64SlicePool = sync.Pool{
	New: func() interface{} {
		return make([]int64, 0, 64)
	},
}

// GetInt64Slice gets an []int64 from the pool, truncated to length 0.
func GetInt64Slice() []int64 {
	s := Int64SlicePool.Get().([]int64)
	return s[:0]
}

// PutInt64Slice returns an []int64 to the pool.
func PutInt64Slice(s []int64) {
	Int64SlicePool.Put(s) //nolint:staticcheck // pool accepts any prior capacity
}

// GetMap gets a map from pool
func GetMap() map[string]interface{} {
	m := MapPool.Get().(map[string]interface{})
	for k := range m {
		delete(m, k)
	}
	return m
}

// PutMap returns a map to pool
func PutMap(m map[string]interface{}) {
	MapPool.Put(m)
}

// GetSlice gets a slice from pool
func GetSlice() []interface{} {
	s := SlicePool.Get().([]interface{})
	return s[:0]
}

// PutSlice returns a slice to pool
func PutSlice(s []interface{}) {
	SlicePool.Put(s)
}
