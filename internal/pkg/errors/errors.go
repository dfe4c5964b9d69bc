package errors

import "errors"

// Custom application errors
var (
	ErrValidation         = errors.New("invalid request")                    // Missing or malformed input
	ErrScheduling         = errors.New("failed to schedule reminder")        // Frequency could not be turned into an instant, or the job could not be armed
	ErrMedicationNotFound = errors.New("medication not found")               // No medication matches id (+ owner)
	ErrForbidden          = errors.New("caller does not own this resource")  // Owner mismatch
	ErrUnauthorized       = errors.New("authentication required")            // Missing or unknown credentials
	ErrUserNotFound       = errors.New("user not found")                     // Identity lookup miss
	ErrConflict           = errors.New("resource already exists")            // Unique key taken, e.g. a registered email
	ErrDelivery           = errors.New("failed to deliver notification")     // Notification transport failure
	ErrDatabaseOperation  = errors.New("database operation failed")          // Generic store error
	ErrJobNotFound        = errors.New("scheduled job not found")            // Cancel/get of an unknown job id
	ErrDuplicateJob       = errors.New("scheduled job already exists")       // Schedule with an id that is already armed
	ErrSchedulerStopped   = errors.New("scheduler is shutting down")         // Schedule after shutdown signal
	ErrInternalServer     = errors.New("internal server error")              // Generic internal error
)
