package ccfl

import "fmt"

//InvalidOptionError reports an unsupported value in a CCFOptions field.
//Option validation happens before any tree is grown, so a forest is never
//partially built because of a bad option.
type InvalidOptionError struct {
	Field  string
	Reason string
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("invalid option %s: %s", e.Field, e.Reason)
}

//InvalidInputError reports training data that is inconsistent with itself
//or with the supplied configuration.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

//HandleError panics on a non-nil error. Used on the CLI and rendering
//paths where there is no caller to return the error to.
func HandleError(err error) {
	if err != nil {
		panic(err)
	}
}
