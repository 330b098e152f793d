package ui

import "taxoclean/internal/progress"

type connCheckedMsg struct {
	APIBase string
	Err     error
}

type jobUpdateMsg struct {
	U progress.Update
}

type jobLogMsg struct {
	L progress.Log
}

type jobResultMsg struct {
	R progress.Result
}

type allDoneMsg struct{}
