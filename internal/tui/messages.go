package tui

import (
	flowcanvassdk "flowcanvas/sdk/go"
)

// processListMsg carries a successful library fetch.
type processListMsg struct {
	Items []flowcanvassdk.Process
}

// processListErrMsg signals a failed fetch; the shell keeps the last view.
type processListErrMsg struct {
	Err error
}

// sessionReadyMsg signals the editor finished importing the diagram.
type sessionReadyMsg struct{}

// sessionFailedMsg signals the editor could not open; the session is gone.
type sessionFailedMsg struct {
	Err error
}

// savedMsg carries the stored record after a successful save.
type savedMsg struct {
	Process flowcanvassdk.Process
}

// saveFailedMsg signals a failed save; local edits stay in the editor.
type saveFailedMsg struct {
	Err error
}

// deletedMsg signals a completed delete.
type deletedMsg struct {
	ID string
}

// deleteFailedMsg signals a failed delete; the list stays as-is.
type deleteFailedMsg struct {
	Err error
}

// importDoneMsg reports a file import into the open editor.
type importDoneMsg struct {
	Path string
	Err  error
}

// exportDoneMsg reports a file export from the open editor.
type exportDoneMsg struct {
	Path string
	Err  error
}
