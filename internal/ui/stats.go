package ui

import "sync/atomic"

type Stats struct {
	TotalAlbums atomic.Int64
	TotalBytes  atomic.Int64
	TotalFailed atomic.Int64
}
