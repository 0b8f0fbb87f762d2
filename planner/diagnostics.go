package planner

import (
	"strings"

	"github.com/flosch/pongo2/v5"
	uuid "github.com/satori/go.uuid"

	"github.com/onekk/gplanner/internal/logger"
)

// diagnostics renders the absorbed-invalid / quick-stop host-channel
// messages named in spec.md §7. Every message is a short, pre-parsed
// pongo2 template so the hot admission path never re-parses text; only the
// small set of diagnostic call sites in this file pay the render cost, and
// only when a move is actually being absorbed or dropped.
type diagnostics struct {
	coldExtrude  *pongo2.Template
	overLong     *pongo2.Template
	tinyMove     *pongo2.Template
	quickStopped *pongo2.Template
}

func newDiagnostics() *diagnostics {
	must := func(src string) *pongo2.Template {
		t, err := pongo2.FromString(src)
		if err != nil {
			panic(err) // template text is a compile-time constant below
		}
		return t
	}
	return &diagnostics{
		coldExtrude:  must("[gid {{ gid }}] move {{ id }}: cold extrude rejected, extruder {{ extruder }} below minimum temperature"),
		overLong:     must("[gid {{ gid }}] move {{ id }}: extrude length {{ delta_e }}mm exceeds configured maximum, absorbed"),
		tinyMove:     must("[gid {{ gid }}] move {{ id }}: below minimum step threshold ({{ steps }} steps), dropped"),
		quickStopped: must("[gid {{ gid }}] queue cleared by quick_stop, epoch {{ epoch }}"),
	}
}

// shortID mints a per-move correlation id, trimmed to 8 hex characters so
// log lines stay readable while still letting a reader match a diagnostic
// back to the buffer_line call that produced it.
func shortID() string {
	id := uuid.NewV4()
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}

func (d *diagnostics) logColdExtrude(id string, extruderIdx int) {
	out, _ := d.coldExtrude.Execute(pongo2.Context{"id": id, "extruder": extruderIdx, "gid": logger.GID()})
	logger.Warnf(out)
}

func (d *diagnostics) logOverLong(id string, deltaE float64) {
	out, _ := d.overLong.Execute(pongo2.Context{"id": id, "delta_e": deltaE, "gid": logger.GID()})
	logger.Warnf(out)
}

func (d *diagnostics) logTinyMove(id string, steps uint32) {
	out, _ := d.tinyMove.Execute(pongo2.Context{"id": id, "steps": steps, "gid": logger.GID()})
	logger.Debugf(out)
}

func (d *diagnostics) logQuickStop(epoch string) {
	out, _ := d.quickStopped.Execute(pongo2.Context{"epoch": epoch, "gid": logger.GID()})
	logger.Infof(out)
}
