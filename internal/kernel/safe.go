package kernel

import "fmt"

// runSafely runs fn and converts a panic into a returned error tagged with scope.
// Every goroutine and lifecycle hook boundary goes through it so a misbehaving
// module cannot take the process down.
func runSafely(scope string, fn func() error) (err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		err = fmt.Errorf("%s: panic recovered: %v", scope, recovered)
	}()

	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", scope, err)
	}

	return nil
}
