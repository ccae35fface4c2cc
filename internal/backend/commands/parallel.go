package commands

import (
	"runtime"
	"sync"
)

// minRowsPerBand keeps small images on a single goroutine.
const minRowsPerBand = 32

// parallelRows splits [0, rows) into contiguous bands and calls fn(y0, y1)
// for each band on its own goroutine.
func parallelRows(rows int, fn func(y0, y1 int)) {
	if rows <= 0 {
		return
	}
	bands := runtime.GOMAXPROCS(0)
	if maxBands := (rows + minRowsPerBand - 1) / minRowsPerBand; bands > maxBands {
		bands = maxBands
	}
	if bands <= 1 {
		fn(0, rows)
		return
	}

	step := (rows + bands - 1) / bands
	var wg sync.WaitGroup
	for y0 := 0; y0 < rows; y0 += step {
		y0 := y0
		y1 := min(y0+step, rows)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(y0, y1)
		}()
	}
	wg.Wait()
}

// parallelFor calls fn once per row, rows spread across bands.
func parallelFor(rows int, fn func(y int)) {
	parallelRows(rows, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			fn(y)
		}
	})
}
