package config

import "fmt"

// Message configures the message commands.
type Message struct {
	TTL     int
	InOrder bool
	BufSize int
	Count   int
}

// Validate checks the message flags.
func (c *Message) Validate() []error {
	var errors []error

	if c.TTL < -1 {
		errors = append(errors, fmt.Errorf("'--ttl' must be -1 (forever) or a number of milliseconds"))
	}

	if c.BufSize < 1 {
		errors = append(errors, fmt.Errorf("'--bufsize' must be positive"))
	}

	errors = appendErr(errors, nonNegative("count", c.Count))

	return errors
}
