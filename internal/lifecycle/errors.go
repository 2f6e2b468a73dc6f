package lifecycle

import "github.com/hashicorp/go-multierror"

// combineErrors aggregates the per-entry error slots StopAll
// allocates, grounded on the pack's use of hashicorp/go-multierror for
// sweep-style fan-in error reporting. Coordinator.Stop reports no
// error, so those slots stay nil and the result is nil.
func combineErrors(errs []error) error {
	var result *multierror.Error
	for _, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
