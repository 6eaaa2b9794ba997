package eda

import "fmt"

// PlotError indicates a chart could not be rendered or stored.
type PlotError struct {
	Visual Visual
	Err    error
}

func (e *PlotError) Error() string {
	if e.Visual.Column != "" {
		return fmt.Sprintf("render %s for column '%s': %v", e.Visual.Kind, e.Visual.Column, e.Err)
	}
	return fmt.Sprintf("render %s: %v", e.Visual.Kind, e.Err)
}

func (e *PlotError) Unwrap() error { return e.Err }
