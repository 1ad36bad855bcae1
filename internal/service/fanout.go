package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Branch is one named unit of concurrent work. Run stores its own result.
type Branch struct {
	Name string
	Run  func(ctx context.Context) error
}

// BranchErrors maps a failed branch name to its error. Successful branches
// have no entry.
type BranchErrors map[string]error

// Failed reports whether the named branch failed.
func (e BranchErrors) Failed(name string) bool {
	return e[name] != nil
}

// Err joins every branch error in name order, or returns nil.
func (e BranchErrors) Err() error {
	if len(e) == 0 {
		return nil
	}
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)
	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, fmt.Errorf("%s: %w", name, e[name]))
	}
	return errors.Join(errs...)
}

// FanOut runs every branch concurrently and waits for all of them. A failing
// branch never cancels or blanks the others. A panicking branch is reported
// as that branch's error.
func FanOut(ctx context.Context, branches ...Branch) BranchErrors {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs = BranchErrors{}
	)

	for _, b := range branches {
		wg.Add(1)
		go func(b Branch) {
			defer wg.Done()
			err := runBranch(ctx, b)
			if err != nil {
				mu.Lock()
				errs[b.Name] = err
				mu.Unlock()
			}
		}(b)
	}
	wg.Wait()

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func runBranch(ctx context.Context, b Branch) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("branch panicked: %v", rec)
		}
	}()
	return b.Run(ctx)
}
