package dashboard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const widgetIDPrefix = "widget-"

// NewDashboardID returns a random dashboard id.
func NewDashboardID() string {
	return uuid.NewString()
}

// IDGenerator produces widget IDs for one dashboard. IDs come from a counter
// stored on the dashboard, so an ID is never handed out twice in the
// dashboard's lifetime, even after the widget holding it is removed.
type IDGenerator struct {
	next  int
	taken map[string]bool
}

// NewIDGenerator creates a generator continuing d's counter.
func NewIDGenerator(d Dashboard) *IDGenerator {
	g := &IDGenerator{next: d.NextSeq, taken: make(map[string]bool, len(d.Widgets))}
	for _, w := range d.Widgets {
		g.taken[w.ID] = true
	}
	return g
}

// Next returns the next unused widget ID.
func (g *IDGenerator) Next() string {
	for {
		id := fmt.Sprintf("%s%d", widgetIDPrefix, g.next)
		g.next++
		if !g.taken[id] {
			g.taken[id] = true
			return id
		}
	}
}

// Seq returns the counter value to store back on the dashboard.
func (g *IDGenerator) Seq() int {
	return g.next
}

// widgetSeq parses the counter out of a "widget-<n>" ID.
func widgetSeq(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, widgetIDPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
