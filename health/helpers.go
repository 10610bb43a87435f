package health

import "time"

func newStatus(component, status, message string) Status {
	return Status{
		Component: component,
		Healthy:   status == StatusHealthy,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy creates a healthy status.
func NewHealthy(component, message string) Status {
	return newStatus(component, StatusHealthy, message)
}

// NewUnhealthy creates an unhealthy status.
func NewUnhealthy(component, message string) Status {
	return newStatus(component, StatusUnhealthy, message)
}

// NewDegraded creates a degraded status.
func NewDegraded(component, message string) Status {
	return newStatus(component, StatusDegraded, message)
}

// Aggregate combines sub-statuses: any unhealthy makes the result
// unhealthy, otherwise any degraded makes it degraded.
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(component, "nothing to check")
	}

	worst := StatusHealthy
	failing := 0
	for _, sub := range subStatuses {
		switch {
		case sub.IsUnhealthy():
			worst = StatusUnhealthy
			failing++
		case sub.IsDegraded():
			if worst == StatusHealthy {
				worst = StatusDegraded
			}
			failing++
		}
	}

	message := "all dependencies are healthy"
	if failing > 0 {
		message = "one or more dependencies are " + worst
	}

	status := newStatus(component, worst, message)
	status.SubStatuses = append([]Status(nil), subStatuses...)
	return status
}
