//go:build windows

package splittun

import "golang.org/x/sys/windows"

// QuitEvent is a manual-reset Win32 event used to cancel a blocked
// overlapped wait (the event reader's DequeueEvent) from another goroutine.
// Once Signal is called the event stays signaled, so every future wait on
// it returns immediately; Close invalidates it for further use.
type QuitEvent struct {
	handle windows.Handle
}

// NewQuitEvent creates an unsignaled manual-reset event.
func NewQuitEvent() (*QuitEvent, error) {
	h, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return nil, err
	}
	return &QuitEvent{handle: h}, nil
}

// Handle implements Waitable.
func (q *QuitEvent) Handle() uintptr {
	return uintptr(q.handle)
}

// Signal puts the event into the signaled state.
func (q *QuitEvent) Signal() error {
	return windows.SetEvent(q.handle)
}

// Close releases the underlying event object.
func (q *QuitEvent) Close() error {
	if q.handle == 0 {
		return nil
	}
	err := windows.CloseHandle(q.handle)
	q.handle = 0
	return err
}
