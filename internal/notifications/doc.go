// Package notifications publishes handoff lifecycle events on an in-process
// bus.
//
// The default implementation is a watermill GoChannel pub/sub: Publish
// encodes the payload as JSON and tags the message with its event type, and
// Subscribe yields decoded Messages until the subscription context ends or
// the service closes. When notifications are disabled NewService returns a
// no-op implementation, so monitor and pipeline code depend only on the
// Service interface.
package notifications
