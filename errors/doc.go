// Package errors classifies failures for the exchange CLI.
//
// Every error that crosses a package boundary is either one of the standard
// variables declared here, a wrapped form of one, or a ClassifiedError built
// with WrapTransient, WrapInvalid or WrapFatal. Callers use the predicates to
// decide what to do next:
//
//	switch {
//	case errors.IsInvalid(err):
//	    // bad input or configuration, report and exit 1
//	case errors.IsFatal(err):
//	    // credentials or environment, report and exit 1
//	case errors.IsTransient(err):
//	    // broker or network hiccup, safe to retry
//	}
//
// Wrapping always follows the "component.method: action failed: cause"
// format so log lines read the same everywhere:
//
//	return errors.WrapTransient(err, "Producer", "Produce", "write message")
//
// RetryIf bridges the classification to pkg/retry. Only transient failures
// are repeated and the original error is returned for everything else:
//
//	err := errors.RetryIf(ctx, retry.Broker(), nil, func() error {
//	    return writer.WriteMessages(ctx, msg)
//	})
package errors
