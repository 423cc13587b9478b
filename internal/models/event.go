package models

import "time"

// EventType names the kind of status event a monitoring session publishes.
type EventType string

const (
	EventFileDetected     EventType = "file_detected"
	EventFileSkippedEmpty EventType = "file_skipped_empty"
	EventDispatch         EventType = "dispatch"
	EventFileDelivered    EventType = "file_delivered"
	EventFileFailed       EventType = "file_failed"
	EventFolderError      EventType = "folder_error"
	EventSessionStarted   EventType = "session_started"
	EventSessionStopped   EventType = "session_stopped"
	EventSnapshot         EventType = "snapshot"
	EventWarning          EventType = "warning"
	EventDebugScan        EventType = "debug_scan"
)

// Event is a single status update from the monitor to the presentation layer.
// Only the fields relevant to Type are populated.
type Event struct {
	Type      EventType
	Time      time.Time
	SessionID string

	Folder  string // watched folder path
	Path    string // absolute file path
	RelPath string // path relative to Folder

	Endpoint string // endpoint name, dispatch events only
	Outcome  *DispatchOutcome

	// Counter snapshot, set on file_delivered and file_failed.
	Delivered int64
	Failed    int64

	Scan    *ScanDiagnostics
	Message string
	Err     error
}

// ScanDiagnostics is attached to debug_scan events.
type ScanDiagnostics struct {
	Folders       int
	Candidates    int
	SeenFiles     int
	Duration      time.Duration
	Goroutines    int
	HeapAllocMB   float64
	SystemMemUsed float64 // percent
	CPUPercent    float64
}
