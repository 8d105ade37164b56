package field

import (
	"runtime"
	"sync"
)

// ForEachParallel runs fn for every index in [0, n) using at most workers
// goroutines and waits for all of them. workers <= 0 means one goroutine
// per CPU. fn must do its own locking around shared state; RunSummary and
// RasterCache are already safe.
func ForEachParallel(n, workers int, fn func(i int)) {
	if n == 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	if workers == 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}
