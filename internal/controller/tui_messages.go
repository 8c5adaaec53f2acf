package controller

import (
	"time"

	"github.com/quire-dev/quire/internal/model"
)

// Message types.
type tickMsg time.Time

type blocksMsg struct {
	reports []model.PageReport
}

type sessionEventMsg struct {
	event model.Event
}

type savedNowMsg struct {
	err error
}

// List item types.
type blockItem struct {
	page    string
	id      string
	typ     string
	anchor  string
	void    bool
	preview string
}

func (b blockItem) FilterValue() string {
	return b.page + " " + b.typ + " " + b.preview
}
