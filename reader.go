//go:build windows

package splittun

import (
	"errors"
	"log"
)

// EventHandler receives decoded driver events off the reader loop. It runs
// on the reader goroutine; handlers that need to touch the device client
// must hand work off to the request serialiser instead of calling it
// directly.
type EventHandler func(*DriverEvent)

// RunEventReader dequeues driver events in a loop until quit fires or the
// client reports a non-transient error. It is meant to run on its own
// goroutine for the lifetime of an open Client.
//
// A decode failure (malformed event buffer) is logged and the loop
// continues: the driver is still alive and later events are still worth
// having. A failure from DequeueEvent itself (the ioctl layer) is treated
// as fatal, since it most likely means the device handle is no longer
// usable.
func RunEventReader(client Client, quit Waitable, handle EventHandler) error {
	for {
		event, err := client.DequeueEvent(quit)
		if err != nil {
			var decodeErr *DecodeEventError
			if errors.As(err, &decodeErr) {
				log.Printf("splittun: dropping malformed event: %v", decodeErr)
				continue
			}
			return &EventThreadError{Err: err}
		}
		if event == nil {
			// quit fired.
			return nil
		}

		if event.ID&0x80000000 != 0 {
			log.Printf("splittun: driver error event: %s", event.ID)
		} else {
			log.Printf("splittun: driver event: %s", event.ID)
		}

		handle(event)
	}
}
