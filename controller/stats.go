package controller

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Stats holds controller counters.
type Stats struct {
	Adds            uint64 `json:"adds"`
	Duplicates      uint64 `json:"duplicates"`
	Evictions       uint64 `json:"evictions"`
	Removals        uint64 `json:"removals"`
	InstallFailures uint64 `json:"install_failures"`

	Occupied int `json:"occupied"`
	Capacity int `json:"capacity"`
}

// Summary renders the counters on one line with digit grouping for tag.
func (s Stats) Summary(tag language.Tag) string {
	p := message.NewPrinter(tag)
	return p.Sprintf("occupied %d/%d, adds %d, duplicates %d, evictions %d, removals %d, install failures %d",
		s.Occupied, s.Capacity, s.Adds, s.Duplicates, s.Evictions, s.Removals, s.InstallFailures)
}
