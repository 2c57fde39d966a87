package config

import "fmt"

// Transfer configures the file commands.
type Transfer struct {
	Path   string
	Offset int64
	Size   int64
}

// Validate checks the file and its byte range.
func (c *Transfer) Validate() []error {
	var errors []error

	if c.Path == "" {
		errors = append(errors, fmt.Errorf("file path must not be empty"))
	}

	errors = appendErr(errors, nonNegative("offset", c.Offset))
	errors = appendErr(errors, nonNegative("size", c.Size))

	return errors
}
