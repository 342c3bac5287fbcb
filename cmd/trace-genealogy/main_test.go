package main

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/carlohamalainen/un-ga-documents-go/store"
)

func TestPrintTree(t *testing.T) {
	color.NoColor = true

	var b bytes.Buffer
	printTree(&b, &store.Related{
		Symbol:           "A/RES/78/220",
		Title:            "Emergency humanitarian assistance",
		Meetings:         []string{"A/78/PV.50", "A/C.3/78/SR.20"},
		Drafts:           []string{"A/C.3/78/L.45"},
		CommitteeReports: []string{},
		AgendaItems:      []string{"A/78/251_item_71"},
	})

	assert.Equal(t, `A/RES/78/220  Emergency humanitarian assistance
├── Drafts (1)
│   └── A/C.3/78/L.45
├── Committee reports (0)
├── Meeting records (2)
│   ├── A/78/PV.50
│   └── A/C.3/78/SR.20
└── Agenda items (1)
    └── A/78/251_item_71
`, b.String())
}
