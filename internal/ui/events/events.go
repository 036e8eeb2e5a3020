// Package events holds messages the app shell sends to its modules.
package events

// Focus is sent to a module when it starts receiving keys
type Focus struct{}

// Blur is sent to a module when it stops receiving keys
type Blur struct{}

// ThemeChanged is broadcast after the palette was switched
type ThemeChanged struct {
	Name string
}
