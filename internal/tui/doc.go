// Package tui implements the interactive terminal dashboard.
//
// The dashboard shows the device registry live and drives the same
// operations the REST API exposes: discovery sweeps, connecting and
// disconnecting devices, and removing registrations. Registry bus events
// feed the UI, so changes made by other clients appear without polling.
//
// Built with Bubble Tea; styling lives in styles.go so screens share one
// palette and container layout.
package tui
