package ui

import (
	"vidsqueeze/internal/job"
	"vidsqueeze/internal/model"
	"vidsqueeze/internal/progress"
)

type probedMsg struct {
	Path  string
	Stats model.VideoStats
	Err   error
}

type jobStartedMsg struct {
	Handle *job.Handle
	Err    error
}

type jobProgressMsg struct {
	Event progress.Event
}

type jobDoneMsg struct {
	Completion progress.Completion
	Err        error
}

type closedMsg struct{}
