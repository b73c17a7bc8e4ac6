package allowance

import (
	"fmt"

	"github.com/kimmokhwa/meals-management-app/generic"
)

// InvalidEmployeeError explains why an employee record cannot be calculated.
type InvalidEmployeeError struct {
	EmployeeID string
	Reason     string
}

func (e *InvalidEmployeeError) Error() string {
	return fmt.Sprintf("invalid employee %q: %s", e.EmployeeID, e.Reason)
}

func (e *InvalidEmployeeError) Unwrap() error {
	return generic.ErrInvalidEmployeeData
}
